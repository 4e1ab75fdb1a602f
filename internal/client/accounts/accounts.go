// Package accounts hands out one memo engine per account and tracks which
// one the user is working in.
package accounts

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/filestore"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/services"
	"github.com/dmitrijs2005/memosync/internal/client/storage"
	"github.com/dmitrijs2005/memosync/internal/logging"
	"go.uber.org/multierr"
)

// newRemote builds the server client for an account; tests replace it.
var newRemote = func(acc models.Account) (client.Remote, error) {
	c, err := client.NewHTTPClient(acc.Host, acc.AccessToken)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Manager caches engines by account key so switching back to an account
// reuses its queue.
type Manager struct {
	store  storage.Store
	files  filestore.FileStore
	logger logging.Logger
	opts   []services.Option

	mu      sync.Mutex
	engines map[string]services.MemoService
	current string
}

func NewManager(store storage.Store, files filestore.FileStore, logger logging.Logger, opts ...services.Option) *Manager {
	return &Manager{
		store:   store,
		files:   files,
		logger:  logger,
		opts:    append([]services.Option{services.WithLogger(logger)}, opts...),
		engines: map[string]services.MemoService{},
	}
}

func (m *Manager) engine(acc models.Account) (services.MemoService, error) {
	key := acc.Key()
	if svc, ok := m.engines[key]; ok {
		return svc, nil
	}

	var svc services.MemoService
	switch acc.Kind {
	case models.AccountRemote:
		if acc.Host == "" {
			return nil, fmt.Errorf("remote account needs a server address")
		}
		var remote client.Remote
		if acc.AccessToken != "" {
			r, err := newRemote(acc)
			if err != nil {
				return nil, fmt.Errorf("connect %s: %w", acc.Host, err)
			}
			remote = r
		}
		svc = services.NewSyncService(acc, m.store, m.files, remote, m.opts...)
	default:
		svc = services.NewLocalService(m.store, m.files, m.opts...)
	}

	m.engines[key] = svc
	return svc, nil
}

// Switch makes acc the current account and returns its engine.
func (m *Manager) Switch(ctx context.Context, acc models.Account) (services.MemoService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	svc, err := m.engine(acc)
	if err != nil {
		return nil, err
	}
	if m.current != svc.AccountKey() {
		m.logger.Info(ctx, "switched account", "account", svc.AccountKey())
	}
	m.current = svc.AccountKey()
	return svc, nil
}

// Current returns the engine of the active account.
func (m *Manager) Current() (services.MemoService, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	svc, ok := m.engines[m.current]
	return svc, ok
}

// SignOut stops the account's engine and forgets the cached user. Its
// memos stay on disk for the next sign-in.
func (m *Manager) SignOut(ctx context.Context, acc models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := acc.Key()
	var err error
	if svc, ok := m.engines[key]; ok {
		err = svc.Close()
		delete(m.engines, key)
	}
	if m.current == key {
		m.current = ""
	}
	return multierr.Append(err, m.store.Metadata().Delete(ctx, key, services.CurrentUserKey))
}

// Close drains every engine.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	for key, svc := range m.engines {
		err = multierr.Append(err, svc.Close())
		delete(m.engines, key)
	}
	m.current = ""
	return err
}
