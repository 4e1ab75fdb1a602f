// Package services contains the memo sync engine.
//
// A MemoService serves one account. Reads and writes always go to the local
// store first; the synced variant then pushes changes to the server in the
// background and reconciles both sides on Sync. The local-only variant keeps
// the same surface without a server.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/filestore"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/storage"
	"github.com/dmitrijs2005/memosync/internal/logging"
	"github.com/google/uuid"
)

// MemoService is the engine surface exposed to hosts (CLI, UI).
type MemoService interface {
	AccountKey() string

	ListMemos(ctx context.Context) ([]*models.Memo, error)
	ListArchivedMemos(ctx context.Context) ([]*models.Memo, error)
	GetMemo(ctx context.Context, id string) (*models.Memo, error)
	CreateMemo(ctx context.Context, in MemoInput) (*models.Memo, error)
	UpdateMemo(ctx context.Context, id string, upd MemoUpdate) (*models.Memo, error)
	DeleteMemo(ctx context.Context, id string) error
	ArchiveMemo(ctx context.Context, id string) (*models.Memo, error)
	RestoreMemo(ctx context.Context, id string) (*models.Memo, error)
	ListTags(ctx context.Context) ([]string, error)

	ListResources(ctx context.Context) ([]*models.Resource, error)
	CreateResource(ctx context.Context, in ResourceInput) (*models.Resource, error)
	DeleteResource(ctx context.Context, id string) error
	// CacheResourceFile records a downloaded copy of a resource and evicts
	// the previously cached file.
	CacheResourceFile(ctx context.Context, id, downloadedURI string) error

	CurrentUser(ctx context.Context) (*models.User, error)
	// PendingCount is the number of memos with changes the server has not seen.
	PendingCount(ctx context.Context) (int, error)

	// Sync runs one full reconciliation pass.
	Sync(ctx context.Context) error
	// Flush waits until queued background pushes have run.
	Flush(ctx context.Context) error
	// Close stops intake, drains queued pushes and releases the service.
	Close() error
}

type MemoInput struct {
	Content     string
	Visibility  models.Visibility
	Pinned      bool
	ResourceIDs []string
}

// MemoUpdate changes the non-nil fields. A non-nil ResourceIDs replaces the
// attachment list.
type MemoUpdate struct {
	Content     *string
	Visibility  *models.Visibility
	Pinned      *bool
	ResourceIDs *[]string
}

type ResourceInput struct {
	Filename string
	// MimeType is sniffed from Data when empty.
	MimeType string
	Data     []byte
	// MemoID attaches the new resource to a memo when set.
	MemoID string
}

type options struct {
	logger     logging.Logger
	now        func() time.Time
	newID      func() string
	queueSize  int
	background bool
}

type Option func(*options)

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithBackgroundPush toggles pushing after each local write. When off, only
// Sync talks to the server.
func WithBackgroundPush(enabled bool) Option {
	return func(o *options) { o.background = enabled }
}

func buildOptions(opts []Option) options {
	o := options{
		logger:     logging.Discard(),
		now:        time.Now,
		newID:      uuid.NewString,
		queueSize:  64,
		background: true,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// NewSyncService builds the engine for a remote account. remote may be nil
// while the user is signed out; Sync then fails with common.ErrNotLoggedIn.
func NewSyncService(account models.Account, store storage.Store, files filestore.FileStore, remote client.Remote, opts ...Option) MemoService {
	o := buildOptions(opts)
	s := &syncService{
		core:   newCore(account, store, files, o),
		remote: remote,
	}
	if o.background && remote != nil {
		s.queue = newPushQueue(o.queueSize, s.runJob, s.logger.With("module", "queue"))
		s.enqueue = s.queue.Enqueue
	}
	return s
}

// NewLocalService builds the engine for the offline-only account.
func NewLocalService(store storage.Store, files filestore.FileStore, opts ...Option) MemoService {
	o := buildOptions(opts)
	return &localService{core: newCore(models.Account{Kind: models.AccountLocal}, store, files, o)}
}
