// Package memos persists memo records, tombstones included, scoped by
// account key.
package memos

import (
	"context"

	"github.com/dmitrijs2005/memosync/internal/client/models"
)

// Repository is the memo half of the local store. Lookups of a missing row
// return common.ErrNotFound.
type Repository interface {
	// GetByID returns the row whether or not it is a tombstone.
	GetByID(ctx context.Context, id, accountKey string) (*models.Memo, error)
	GetByRemoteID(ctx context.Context, remoteID, accountKey string) (*models.Memo, error)

	// GetAll lists live, non-archived memos: pinned first, newest first.
	GetAll(ctx context.Context, accountKey string) ([]*models.Memo, error)
	// GetArchived lists live archived memos, newest first.
	GetArchived(ctx context.Context, accountKey string) ([]*models.Memo, error)
	// GetAllForSync lists every row of the account, tombstones included.
	GetAllForSync(ctx context.Context, accountKey string) ([]*models.Memo, error)

	// Upsert inserts or replaces the row keyed by (Identifier, AccountKey).
	Upsert(ctx context.Context, m *models.Memo) error
	// Delete removes the row permanently.
	Delete(ctx context.Context, id, accountKey string) error

	// CountPending counts rows with outstanding local changes.
	CountPending(ctx context.Context, accountKey string) (int, error)
}
