package main

import (
	"context"

	"github.com/desertthunder/ledgersync/internal/formatter"
	"github.com/urfave/cli/v3"
)

// Status prints connectivity and sync engine state.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}

	status := r.engine.GetSyncStatus()
	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}
	return r.writePlain("%s", formatter.StatusToText(status))
}

// SyncNow drains the pending queue immediately, failing fast when offline.
func (r *Runner) SyncNow(ctx context.Context, cmd *cli.Command) error {
	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}

	before := len(r.engine.GetQueueStatus())
	if before == 0 {
		return r.writePlainln("Queue is empty, nothing to sync")
	}

	if err := r.engine.SyncNow(ctx); err != nil {
		return err
	}

	status := r.engine.GetSyncStatus()
	r.writePlainln("Drained %d of %d operations", before-status.PendingOperations, before)
	if status.Error != "" {
		r.writePlainln("Errors: %s", status.Error)
	}
	return nil
}
