package main

import (
	"context"
	"time"

	"github.com/desertthunder/ledgersync/internal/formatter"
	"github.com/urfave/cli/v3"
)

// MigrateStatus prints the local data summary and the per-user migration state.
func (r *Runner) MigrateStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}
	userID := cmd.String("user")

	summary, err := r.migrator.GetLocalDataSummary()
	if err != nil {
		return err
	}
	status, found, err := r.migrator.GetMigrationStatus(userID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"summary": summary,
			"status":  status,
			"checked": found,
		}, true)
	}

	r.writePlain("%s", formatter.SummaryToText(summary))
	switch {
	case !found:
		r.writePlainln("\nMigration: not checked for %s", userID)
	case status.Completed && status.CompletedAt != nil:
		r.writePlainln("\nMigration: completed for %s at %s", userID, status.CompletedAt.Format(time.RFC3339))
	case status.Completed:
		r.writePlainln("\nMigration: completed for %s", userID)
	default:
		r.writePlainln("\nMigration: pending for %s", userID)
	}
	return nil
}

// MigrateRun diffs local data against the cloud account and uploads the remainder.
func (r *Runner) MigrateRun(ctx context.Context, cmd *cli.Command) error {
	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}
	userID := cmd.String("user")

	hasLocal, err := r.migrator.HasLocalData()
	if err != nil {
		return err
	}
	if !hasLocal {
		return r.writePlainln("No local data to migrate")
	}

	lastPercent := -1
	result, err := r.migrator.MigrateToCloud(ctx, userID, func(percent float64) {
		p := int(percent)
		if p != lastPercent {
			lastPercent = p
			r.writePlain("\rMigrating... %d%%", p)
		}
	})
	if err != nil {
		return err
	}
	r.writePlain("\n\n")
	return r.writePlain("%s", formatter.ResultToText(result))
}

// MigrateReset clears the per-user migration-completed flag.
func (r *Runner) MigrateReset(ctx context.Context, cmd *cli.Command) error {
	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}
	userID := cmd.String("user")

	if err := r.migrator.ResetMigrationStatus(userID); err != nil {
		return err
	}
	return r.writePlainln("Migration status reset for %s", userID)
}
