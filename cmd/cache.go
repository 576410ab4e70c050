package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/ledgersync/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheKeys lists every key in the local cache.
func (r *Runner) CacheKeys(ctx context.Context, cmd *cli.Command) error {
	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}

	keys, err := r.cache.Keys()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return r.writePlainln("Cache is empty")
	}
	for _, key := range keys {
		r.writePlainln("%s", key)
	}
	return nil
}

// CacheGet prints the JSON value stored under a key.
func (r *Runner) CacheGet(ctx context.Context, cmd *cli.Command) error {
	key := cmd.StringArg("key")
	if key == "" {
		return fmt.Errorf("%w: cache key", shared.ErrMissingArgument)
	}

	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}

	var value json.RawMessage
	found, err := r.cache.Get(key, &value)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: cache key %q", shared.ErrNotFound, key)
	}

	var decoded any
	if err := json.Unmarshal(value, &decoded); err != nil {
		return fmt.Errorf("failed to decode cache value: %w", err)
	}
	return r.writeJSON(decoded, cmd.Bool("pretty"))
}

// CacheClear destructively empties the entire cache, sync queue included.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}

	if err := r.cache.Clear(); err != nil {
		return err
	}
	return r.writePlainln("Cache cleared")
}
