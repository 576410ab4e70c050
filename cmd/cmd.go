// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// statusCommand reports connectivity and sync state
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show connectivity and sync engine status",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

// syncCommand triggers an immediate queue drain
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Drain the pending operation queue now (fails fast when offline)",
		Flags: []cli.Flag{
			configFlag(),
		},
		Action: r.SyncNow,
	}
}

// queueCommand handles queue inspection and maintenance
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "queue",
		Aliases: []string{"q"},
		Usage:   "Inspect and maintain the sync queue",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List pending operations in drain order",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Output CSV",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.QueueList,
			},
			{
				Name:  "clear",
				Usage: "Destructively empty the pending queue",
				Flags: []cli.Flag{
					configFlag(),
				},
				Action: r.QueueClear,
			},
			{
				Name:    "deadletter",
				Aliases: []string{"dl"},
				Usage:   "List operations dropped after exhausting retries",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.QueueDeadLetter,
			},
			{
				Name:  "requeue",
				Usage: "Move a dead-letter entry back onto the queue",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					configFlag(),
				},
				Action: r.QueueRequeue,
			},
		},
	}
}

// migrateCommand handles local-to-cloud migration operations
func migrateCommand(r *Runner) *cli.Command {
	userFlag := &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "User identity to migrate under",
		Required: true,
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Migrate local-only data into the cloud account",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show local data summary and migration state",
				Flags: []cli.Flag{
					configFlag(),
					userFlag,
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.MigrateStatus,
			},
			{
				Name:  "run",
				Usage: "Diff local data against the cloud and upload the remainder",
				Flags: []cli.Flag{
					configFlag(),
					userFlag,
				},
				Action: r.MigrateRun,
			},
			{
				Name:  "reset",
				Usage: "Reset the per-user migration-completed flag (debug)",
				Flags: []cli.Flag{
					configFlag(),
					userFlag,
				},
				Action: r.MigrateReset,
			},
		},
	}
}

// cacheCommand handles local cache inspection
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and maintain the local persistent cache",
		Commands: []*cli.Command{
			{
				Name:  "keys",
				Usage: "List all cache keys",
				Flags: []cli.Flag{
					configFlag(),
				},
				Action: r.CacheKeys,
			},
			{
				Name:  "get",
				Usage: "Print the JSON value stored under a key",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "key",
					},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.CacheGet,
			},
			{
				Name:  "clear",
				Usage: "Destructively empty the entire cache",
				Flags: []cli.Flag{
					configFlag(),
				},
				Action: r.CacheClear,
			},
		},
	}
}

// tuiCommand launches the interactive queue browser
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Browse the sync queue and dead-letter list interactively",
		Flags: []cli.Flag{
			configFlag(),
		},
		Action: r.TUI,
	}
}
