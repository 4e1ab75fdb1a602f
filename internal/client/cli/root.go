package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := ""
	if a.userName != "" {
		s = a.userName + " "
	}
	if a.Mode != "" {
		s = s + string(a.Mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// Root runs the REPL until the user exits, with auto-sync in the
// background when an interval is configured.
func (a *App) Root(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Fprintln(a.out, "Welcome to memosync (type 'help' for commands)")

	if a.mode() != ModeLocal && a.config.SyncInterval > 0 {
		go a.StartAutoSync(ctx, a.config.SyncInterval)
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}
