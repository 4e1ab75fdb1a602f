package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/accounts"
	"github.com/dmitrijs2005/memosync/internal/client/config"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/services"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/dmitrijs2005/memosync/internal/logging"
)

type Mode string

const (
	ModeLocal   Mode = "local"
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config   *config.Config
	accounts *accounts.Manager
	memos    services.MemoService
	logger   logging.Logger

	mu       sync.Mutex
	userName string
	Mode     Mode

	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config, mgr *accounts.Manager, logger logging.Logger) *App {
	return &App{
		config:   c,
		accounts: mgr,
		logger:   logger.With("module", "cli"),
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		a.logger.Info(ctx, "switched mode", "mode", string(mode))
	}
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

func (a *App) setUser(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userName = name
}

// account resolves the configured account, asking for a token when a
// server is set without one.
func (a *App) account() (models.Account, error) {
	if a.config.ServerAddr == "" {
		return models.Account{Kind: models.AccountLocal}, nil
	}

	token := a.config.AccessToken
	if token == "" {
		raw, err := getToken(a.out)
		if err != nil {
			return models.Account{}, err
		}
		token = string(raw)
	}
	return models.Account{Kind: models.AccountRemote, Host: a.config.ServerAddr, AccessToken: token}, nil
}

// Open switches to the configured account and learns who the user is.
func (a *App) Open(ctx context.Context) error {
	acc, err := a.account()
	if err != nil {
		return err
	}
	svc, err := a.accounts.Switch(ctx, acc)
	if err != nil {
		return err
	}
	a.memos = svc

	if acc.Kind == models.AccountLocal {
		a.setMode(ctx, ModeLocal)
	}

	u, err := svc.CurrentUser(ctx)
	switch {
	case err == nil:
		a.setUser(u.DisplayName())
		if acc.Kind == models.AccountRemote {
			a.setMode(ctx, ModeOnline)
		}
	case errors.Is(err, common.ErrRemoteFailure):
		a.setMode(ctx, ModeOffline)
	default:
		a.logger.Warn(ctx, "unknown user", "error", err)
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	if err := a.Open(ctx); err != nil {
		return err
	}
	defer a.accounts.Close()

	a.Root(ctx)
	return nil
}

// syncOnce runs one pass and tracks connectivity from its outcome.
func (a *App) syncOnce(ctx context.Context) error {
	if a.mode() == ModeLocal {
		return nil
	}
	err := a.memos.Sync(ctx)
	switch {
	case err == nil, errors.Is(err, common.ErrPartialSync):
		a.setMode(ctx, ModeOnline)
	case errors.Is(err, common.ErrRemoteFailure):
		a.setMode(ctx, ModeOffline)
	}
	return err
}

// StartAutoSync syncs every interval until ctx is done.
func (a *App) StartAutoSync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			syncCtx, cancel := context.WithTimeout(ctx, interval)
			if err := a.syncOnce(syncCtx); err != nil {
				a.logger.Warn(ctx, "auto-sync failed", "error", err)
			}
			cancel()

		case <-ctx.Done():
			return
		}
	}
}
