package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/storage"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/gabriel-vasile/mimetype"
)

func (c *core) ListResources(ctx context.Context) ([]*models.Resource, error) {
	list, err := c.store.Resources().GetAll(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return list, nil
}

// CreateResource saves the bytes to the file store first, so a resource row
// never exists without its file.
func (c *core) CreateResource(ctx context.Context, in ResourceInput) (*models.Resource, error) {
	name := strings.TrimSpace(in.Filename)
	if name == "" {
		return nil, fmt.Errorf("%w: resource needs a filename", common.ErrValidation)
	}
	if in.MemoID != "" {
		if _, err := c.liveMemo(ctx, c.store, in.MemoID); err != nil {
			return nil, fmt.Errorf("create resource: %w", err)
		}
	}

	mime := in.MimeType
	if mime == "" {
		mime = mimetype.Detect(in.Data).String()
	}

	now := c.now()
	r := &models.Resource{
		Identifier: c.newID(),
		AccountKey: c.key,
		Date:       now,
		Filename:   name,
		MimeType:   mime,
	}
	uri, err := c.files.Save(ctx, c.key, in.Data, r.Identifier+"-"+name)
	if err != nil {
		return nil, fmt.Errorf("save resource file: %w", err)
	}
	r.URI = uri
	r.LocalURI = uri

	err = c.store.WithTx(ctx, func(ctx context.Context, s storage.Store) error {
		if in.MemoID == "" {
			return s.Resources().Upsert(ctx, r)
		}
		m, err := c.liveMemo(ctx, s, in.MemoID)
		if err != nil {
			return err
		}
		r.MemoID = &m.Identifier
		if err := s.Resources().Upsert(ctx, r); err != nil {
			return err
		}
		m.MarkDirty(now)
		return s.Memos().Upsert(ctx, m)
	})
	if err != nil {
		c.removeFile(ctx, uri)
		return nil, fmt.Errorf("create resource: %w", err)
	}

	if r.MemoID != nil {
		c.schedule(ctx, pushMemoJob(*r.MemoID))
	} else {
		c.schedule(ctx, uploadResourceJob(r.Identifier))
	}
	return r, nil
}

// DeleteResource removes the row and its cached file. The attaching memo
// is marked dirty and an uploaded resource is queued for remote deletion.
func (c *core) DeleteResource(ctx context.Context, id string) error {
	var r *models.Resource
	err := c.store.WithTx(ctx, func(ctx context.Context, s storage.Store) error {
		var err error
		r, err = s.Resources().GetByID(ctx, id, c.key)
		if err != nil {
			return err
		}
		if err := s.Resources().Delete(ctx, id, c.key); err != nil {
			return err
		}
		if r.RemoteID != "" {
			if err := s.Metadata().Set(ctx, c.key, resourceDeleteKey(r.RemoteID), []byte(r.RemoteID)); err != nil {
				return err
			}
		}
		if r.MemoID == nil {
			return nil
		}
		m, err := s.Memos().GetByID(ctx, *r.MemoID, c.key)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if m.IsDeleted {
			return nil
		}
		m.MarkDirty(c.now())
		return s.Memos().Upsert(ctx, m)
	})
	if err != nil {
		return fmt.Errorf("delete resource %s: %w", id, err)
	}

	c.removeFile(ctx, r.LocalURI)
	if r.MemoID != nil {
		c.schedule(ctx, pushMemoJob(*r.MemoID))
	}
	if r.RemoteID != "" {
		c.schedule(ctx, deleteResourcesJob())
	}
	return nil
}

func (c *core) CacheResourceFile(ctx context.Context, id, downloadedURI string) error {
	if downloadedURI == "" {
		return fmt.Errorf("%w: empty uri", common.ErrValidation)
	}

	var previous string
	err := c.store.WithTx(ctx, func(ctx context.Context, s storage.Store) error {
		r, err := s.Resources().GetByID(ctx, id, c.key)
		if err != nil {
			return err
		}
		if r.LocalURI == downloadedURI {
			return nil
		}
		previous = r.LocalURI
		if r.RemoteID == "" && r.URI == previous {
			r.URI = downloadedURI
		}
		r.LocalURI = downloadedURI
		return s.Resources().Upsert(ctx, r)
	})
	if err != nil {
		return fmt.Errorf("cache resource %s: %w", id, err)
	}

	c.removeFile(ctx, previous)
	return nil
}

func (c *core) removeFile(ctx context.Context, uri string) {
	if uri == "" {
		return
	}
	if err := c.files.Delete(ctx, uri); err != nil {
		c.logger.Warn(ctx, "failed to delete cached file", "uri", uri, "error", err)
	}
}

const resourceDeletePrefix = "resource_delete:"

func resourceDeleteKey(remoteID string) string {
	return resourceDeletePrefix + remoteID
}
