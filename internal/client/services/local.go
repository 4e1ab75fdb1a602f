package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/memosync/internal/client/models"
)

// localService keeps memos on this device only. Nothing is ever pushed and
// the dirty flags are left for a future remote account to ignore.
type localService struct {
	*core
}

func (s *localService) CurrentUser(ctx context.Context) (*models.User, error) {
	if u := s.cachedUser(ctx); u != nil {
		return u, nil
	}
	return &models.User{Username: models.LocalAccountKey}, nil
}

// PendingCount is always zero: there is no server to be behind.
func (s *localService) PendingCount(context.Context) (int, error) { return 0, nil }

func (s *localService) Sync(context.Context) error  { return nil }
func (s *localService) Flush(context.Context) error { return nil }
func (s *localService) Close() error                { return nil }

// DeleteMemo removes the memo at once; there is no server to tell.
func (s *localService) DeleteMemo(ctx context.Context, id string) error {
	if _, err := s.liveMemo(ctx, s.store, id); err != nil {
		return fmt.Errorf("delete memo %s: %w", id, err)
	}
	return s.purge(ctx, id)
}
