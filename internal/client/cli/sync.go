package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/cuesync/internal/common"
)

// Sync runs a cycle in the foreground, printing each step and asking about
// every conflict.
func (a *App) Sync(ctx context.Context) error {
	a.syncing.Store(true)
	defer a.syncing.Store(false)

	res, err := a.records.SyncNow(withInteractive(ctx))
	switch {
	case errors.Is(err, common.ErrSyncInProgress):
		a.say("A sync is already running, try again in a moment")
		return nil
	case errors.Is(err, common.ErrUnreachable):
		a.say("Server unreachable, changes stay queued")
		return nil
	case err != nil:
		return err
	}

	a.sayf("Pushed %d, pulled %d, conflicts %d\n", res.Pushed, res.Pulled, res.Conflicted)
	for _, e := range res.Errors {
		a.say("  failed:", e)
	}
	return nil
}

func (a *App) Status(ctx context.Context) error {
	n, err := a.pending.PendingCount(ctx)
	if err != nil {
		return err
	}

	user := a.userName
	if user == "" {
		user = "-"
	}
	push := "disconnected"
	if a.presence.Connected() {
		push = "connected"
	}

	a.sayf("user: %s\nmode: %s\npending changes: %d\npush channel: %s\n", user, a.records.Mode(), n, push)
	return nil
}
