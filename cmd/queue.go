package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/ledgersync/internal/formatter"
	"github.com/desertthunder/ledgersync/internal/shared"
	"github.com/urfave/cli/v3"
)

// QueueList prints pending operations in drain order.
func (r *Runner) QueueList(ctx context.Context, cmd *cli.Command) error {
	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}

	ops := r.engine.GetQueueStatus()
	switch {
	case cmd.Bool("json"):
		return r.writeJSON(ops, true)
	case cmd.Bool("csv"):
		data, err := formatter.QueueToCSV(ops)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	default:
		return r.writePlain("%s", formatter.QueueToText(ops))
	}
}

// QueueClear destructively empties the pending queue.
func (r *Runner) QueueClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}

	count := len(r.engine.GetQueueStatus())
	if err := r.engine.ClearQueue(); err != nil {
		return err
	}
	return r.writePlainln("Cleared %d pending operations", count)
}

// QueueDeadLetter prints dropped operations.
func (r *Runner) QueueDeadLetter(ctx context.Context, cmd *cli.Command) error {
	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}

	entries := r.engine.DeadLetter()
	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}
	return r.writePlain("%s", formatter.DeadLetterToText(entries))
}

// QueueRequeue moves one dead-letter entry back onto the queue.
func (r *Runner) QueueRequeue(ctx context.Context, cmd *cli.Command) error {
	opID := cmd.StringArg("id")
	if opID == "" {
		return fmt.Errorf("%w: operation id", shared.ErrMissingArgument)
	}

	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}
	if err := r.engine.Requeue(opID); err != nil {
		return err
	}
	return r.writePlainln("Requeued %s", opID)
}
