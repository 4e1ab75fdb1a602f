package resources

import (
	"context"

	"github.com/dmitrijs2005/memosync/internal/client/models"
)

// Repository is the resource half of the local store.
type Repository interface {
	GetByID(ctx context.Context, id, accountKey string) (*models.Resource, error)
	GetAll(ctx context.Context, accountKey string) ([]*models.Resource, error)
	// GetByMemoID lists the resources attached to a memo, oldest first.
	GetByMemoID(ctx context.Context, memoID, accountKey string) ([]*models.Resource, error)

	Upsert(ctx context.Context, r *models.Resource) error
	Delete(ctx context.Context, id, accountKey string) error

	// ReassignMemo moves every resource attached to fromMemoID onto toMemoID
	// and returns how many rows moved.
	ReassignMemo(ctx context.Context, fromMemoID, toMemoID, accountKey string) (int64, error)
}
