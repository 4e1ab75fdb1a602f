package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/filestore"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/storage"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/dmitrijs2005/memosync/internal/logging"
	"github.com/dmitrijs2005/memosync/internal/markdown"
)

// core holds the local-first half of the engine shared by both variants.
type core struct {
	account models.Account
	key     string
	store   storage.Store
	files   filestore.FileStore
	logger  logging.Logger
	now     func() time.Time
	newID   func() string

	// enqueue schedules a background push; nil when pushes are off.
	enqueue func(job) bool
}

func newCore(account models.Account, store storage.Store, files filestore.FileStore, o options) *core {
	key := account.Key()
	return &core{
		account: account,
		key:     key,
		store:   store,
		files:   files,
		logger:  o.logger.With("module", "memos", "account", key),
		now:     func() time.Time { return models.NormalizeTime(o.now()) },
		newID:   o.newID,
	}
}

func (c *core) AccountKey() string { return c.key }

func (c *core) schedule(ctx context.Context, j job) {
	if c.enqueue == nil {
		return
	}
	if !c.enqueue(j) {
		c.logger.Warn(ctx, "background push not scheduled", "job", j.key())
	}
}

// liveMemo loads a memo and hides tombstones.
func (c *core) liveMemo(ctx context.Context, s storage.Store, id string) (*models.Memo, error) {
	m, err := s.Memos().GetByID(ctx, id, c.key)
	if err != nil {
		return nil, err
	}
	if m.IsDeleted {
		return nil, fmt.Errorf("memo %s: %w", id, common.ErrNotFound)
	}
	return m, nil
}

func (c *core) withResources(ctx context.Context, list []*models.Memo) ([]*models.Memo, error) {
	for _, m := range list {
		rs, err := c.store.Resources().GetByMemoID(ctx, m.Identifier, c.key)
		if err != nil {
			return nil, fmt.Errorf("load resources of %s: %w", m.Identifier, err)
		}
		m.Resources = rs
	}
	return list, nil
}

func (c *core) ListMemos(ctx context.Context) ([]*models.Memo, error) {
	list, err := c.store.Memos().GetAll(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("list memos: %w", err)
	}
	return c.withResources(ctx, list)
}

func (c *core) ListArchivedMemos(ctx context.Context) ([]*models.Memo, error) {
	list, err := c.store.Memos().GetArchived(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("list archived memos: %w", err)
	}
	return c.withResources(ctx, list)
}

func (c *core) GetMemo(ctx context.Context, id string) (*models.Memo, error) {
	m, err := c.liveMemo(ctx, c.store, id)
	if err != nil {
		return nil, err
	}
	list, err := c.withResources(ctx, []*models.Memo{m})
	if err != nil {
		return nil, err
	}
	return list[0], nil
}

func (c *core) CreateMemo(ctx context.Context, in MemoInput) (*models.Memo, error) {
	if strings.TrimSpace(in.Content) == "" && len(in.ResourceIDs) == 0 {
		return nil, fmt.Errorf("%w: memo needs content or an attachment", common.ErrValidation)
	}
	vis, err := models.ParseVisibility(string(in.Visibility))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}

	now := c.now()
	m := &models.Memo{
		Identifier: c.newID(),
		AccountKey: c.key,
		Content:    in.Content,
		Date:       now,
		Visibility: vis,
		Pinned:     in.Pinned,
	}
	if u := c.cachedUser(ctx); u != nil {
		m.CreatorID = u.RemoteID
		m.CreatorName = u.DisplayName()
	}
	m.MarkDirty(now)

	err = c.store.WithTx(ctx, func(ctx context.Context, s storage.Store) error {
		if err := s.Memos().Upsert(ctx, m); err != nil {
			return err
		}
		return c.attach(ctx, s, m.Identifier, in.ResourceIDs)
	})
	if err != nil {
		return nil, fmt.Errorf("create memo: %w", err)
	}

	c.logger.Debug(ctx, "memo created", "memo", m.Identifier)
	c.schedule(ctx, pushMemoJob(m.Identifier))
	return c.GetMemo(ctx, m.Identifier)
}

// attach points the listed resources at memoID and detaches any other
// resource currently attached to it.
func (c *core) attach(ctx context.Context, s storage.Store, memoID string, ids []string) error {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
		r, err := s.Resources().GetByID(ctx, id, c.key)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return fmt.Errorf("%w: resource %s does not exist", common.ErrValidation, id)
			}
			return err
		}
		if r.AttachedTo(memoID) {
			continue
		}
		r.MemoID = &memoID
		if err := s.Resources().Upsert(ctx, r); err != nil {
			return err
		}
	}

	current, err := s.Resources().GetByMemoID(ctx, memoID, c.key)
	if err != nil {
		return err
	}
	for _, r := range current {
		if want[r.Identifier] {
			continue
		}
		r.MemoID = nil
		if err := s.Resources().Upsert(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (c *core) UpdateMemo(ctx context.Context, id string, upd MemoUpdate) (*models.Memo, error) {
	var vis models.Visibility
	if upd.Visibility != nil {
		v, err := models.ParseVisibility(string(*upd.Visibility))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
		}
		vis = v
	}

	err := c.store.WithTx(ctx, func(ctx context.Context, s storage.Store) error {
		m, err := c.liveMemo(ctx, s, id)
		if err != nil {
			return err
		}

		if upd.Content != nil {
			m.Content = *upd.Content
		}
		if upd.Visibility != nil {
			m.Visibility = vis
		}
		if upd.Pinned != nil {
			m.Pinned = *upd.Pinned
		}
		if upd.ResourceIDs != nil {
			if err := c.attach(ctx, s, m.Identifier, *upd.ResourceIDs); err != nil {
				return err
			}
		}

		if strings.TrimSpace(m.Content) == "" {
			rs, err := s.Resources().GetByMemoID(ctx, m.Identifier, c.key)
			if err != nil {
				return err
			}
			if len(rs) == 0 {
				return fmt.Errorf("%w: memo needs content or an attachment", common.ErrValidation)
			}
		}

		m.MarkDirty(c.now())
		return s.Memos().Upsert(ctx, m)
	})
	if err != nil {
		return nil, fmt.Errorf("update memo %s: %w", id, err)
	}

	c.schedule(ctx, pushMemoJob(id))
	return c.GetMemo(ctx, id)
}

// DeleteMemo leaves a tombstone; the row is purged once the server agrees.
func (c *core) DeleteMemo(ctx context.Context, id string) error {
	err := c.store.WithTx(ctx, func(ctx context.Context, s storage.Store) error {
		m, err := c.liveMemo(ctx, s, id)
		if err != nil {
			return err
		}
		m.IsDeleted = true
		m.MarkDirty(c.now())
		return s.Memos().Upsert(ctx, m)
	})
	if err != nil {
		return fmt.Errorf("delete memo %s: %w", id, err)
	}

	c.schedule(ctx, pushMemoJob(id))
	return nil
}

func (c *core) ArchiveMemo(ctx context.Context, id string) (*models.Memo, error) {
	return c.setArchived(ctx, id, true)
}

func (c *core) RestoreMemo(ctx context.Context, id string) (*models.Memo, error) {
	return c.setArchived(ctx, id, false)
}

func (c *core) setArchived(ctx context.Context, id string, archived bool) (*models.Memo, error) {
	err := c.store.WithTx(ctx, func(ctx context.Context, s storage.Store) error {
		m, err := c.liveMemo(ctx, s, id)
		if err != nil {
			return err
		}
		if m.Archived == archived {
			return nil
		}
		m.Archived = archived
		m.MarkDirty(c.now())
		return s.Memos().Upsert(ctx, m)
	})
	if err != nil {
		return nil, fmt.Errorf("set archived on %s: %w", id, err)
	}

	c.schedule(ctx, pushMemoJob(id))
	return c.GetMemo(ctx, id)
}

// ListTags collects hashtags across live memos, archived ones included.
func (c *core) ListTags(ctx context.Context) ([]string, error) {
	all, err := c.store.Memos().GetAllForSync(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	contents := make([]string, 0, len(all))
	for _, m := range all {
		if !m.IsDeleted {
			contents = append(contents, m.Content)
		}
	}
	return markdown.ExtractAllTags(contents), nil
}

func (c *core) PendingCount(ctx context.Context) (int, error) {
	n, err := c.store.Memos().CountPending(ctx, c.key)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}
