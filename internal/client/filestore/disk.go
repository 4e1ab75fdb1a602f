package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/memosync/internal/filex"
)

// DiskStore keeps blobs under a root directory.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("files dir: %w", err)
	}
	return &DiskStore{root: abs}, nil
}

func (s *DiskStore) Root() string { return s.root }

func (s *DiskStore) Save(ctx context.Context, accountKey string, data []byte, filename string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(objectKey(accountKey, data, filename)))

	if _, err := filex.EnsureDir(filepath.Dir(p)); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", p, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return "", fmt.Errorf("rename into %s: %w", p, err)
	}

	return filex.FileURI(p), nil
}

func (s *DiskStore) Read(ctx context.Context, uri string) ([]byte, error) {
	p, err := filex.PathFromURI(uri)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", uri, ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

func (s *DiskStore) Exists(ctx context.Context, uri string) (bool, error) {
	p, err := filex.PathFromURI(uri)
	if err != nil {
		return false, nil
	}
	return filex.Exists(p)
}

func (s *DiskStore) Delete(ctx context.Context, uri string) error {
	p, err := filex.PathFromURI(uri)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}
