// Package filestore keeps attachment bytes outside the database. Blobs are
// addressed by URI: file:// for DiskStore, s3:// for S3Store.
package filestore

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/dmitrijs2005/memosync/internal/cryptox"
)

// ErrNotExist is returned by Read for a missing blob.
var ErrNotExist = errors.New("file does not exist")

// FileStore is the file half of the local store.
type FileStore interface {
	// Save stores data for the account and returns its URI. Saving the same
	// bytes under the same name twice yields the same URI.
	Save(ctx context.Context, accountKey string, data []byte, filename string) (string, error)
	Read(ctx context.Context, uri string) ([]byte, error)
	Exists(ctx context.Context, uri string) (bool, error)
	// Delete removes the blob; a missing blob is not an error.
	Delete(ctx context.Context, uri string) error
}

// objectKey lays blobs out as <account digest>/<content digest>-<name>.
func objectKey(accountKey string, data []byte, filename string) string {
	return path.Join(
		cryptox.ShortDigest([]byte(accountKey), 16),
		cryptox.ShortDigest(data, 16)+"-"+sanitize(filename),
	)
}

func sanitize(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == ':', r == '*', r == '?', r == '"', r == '<', r == '>', r == '|':
			return '_'
		}
		return r
	}, name)
	if name == "." || name == "/" || name == "" {
		return "blob"
	}
	return name
}
