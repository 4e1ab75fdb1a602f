package client

import (
	"context"

	"github.com/dmitrijs2005/memosync/internal/client/models"
)

// Remote is the server contract the sync engine reconciles against. Every
// successful call returns the server's canonical record.
type Remote interface {
	ListMemos(ctx context.Context) ([]*models.RemoteMemo, error)
	ListArchivedMemos(ctx context.Context) ([]*models.RemoteMemo, error)

	CreateMemo(ctx context.Context, req CreateMemoRequest) (*models.RemoteMemo, error)
	UpdateMemo(ctx context.Context, remoteID string, req UpdateMemoRequest) (*models.RemoteMemo, error)
	ArchiveMemo(ctx context.Context, remoteID string) (*models.RemoteMemo, error)
	RestoreMemo(ctx context.Context, remoteID string) (*models.RemoteMemo, error)
	DeleteMemo(ctx context.Context, remoteID string) error

	CreateResource(ctx context.Context, req CreateResourceRequest) (*models.RemoteResource, error)
	DeleteResource(ctx context.Context, remoteID string) error

	CurrentUser(ctx context.Context) (*models.User, error)
}

type CreateMemoRequest struct {
	Content           string
	Visibility        models.Visibility
	ResourceRemoteIDs []string
	Tags              []string
}

// UpdateMemoRequest changes only the non-nil fields.
type UpdateMemoRequest struct {
	Content           *string
	Visibility        *models.Visibility
	Pinned            *bool
	ResourceRemoteIDs []string
	// SetResources sends ResourceRemoteIDs even when empty (detach all).
	SetResources bool
}

type CreateResourceRequest struct {
	Filename     string
	MimeType     string
	Content      []byte
	MemoRemoteID string
}
