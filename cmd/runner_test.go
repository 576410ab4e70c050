package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/desertthunder/ledgersync/internal/cache"
	"github.com/desertthunder/ledgersync/internal/models"
	"github.com/desertthunder/ledgersync/internal/shared"
	tu "github.com/desertthunder/ledgersync/internal/testing"
	"github.com/urfave/cli/v3"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			store := tu.NewMemoryCache()
			gateway := tu.NewFakeGateway()

			runner := NewRunner(RunnerOpts{
				Config:  config,
				Logger:  logger,
				Output:  output,
				Cache:   store,
				Gateway: gateway,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.cache != store {
				t.Error("expected cache to be set")
			}
			if runner.gateway != gateway {
				t.Error("expected gateway to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output == nil {
				t.Error("expected default output to be set")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()
		if len(commands) != 7 {
			t.Errorf("registered commands = %d, want 7", len(commands))
		}

		names := map[string]bool{}
		for _, cmd := range commands {
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "status", "sync", "queue", "migrate", "cache", "tui"} {
			if !names[want] {
				t.Errorf("missing command %q", want)
			}
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writeJSON(map[string]int{"pending": 2}, false); err != nil {
			t.Fatalf("writeJSON failed: %v", err)
		}
		if got := output.String(); got != "{\"pending\":2}\n" {
			t.Errorf("output = %q", got)
		}
	})

	t.Run("writeJSON to failing writer", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
		if err := runner.writeJSON("x", false); err == nil {
			t.Error("expected write error")
		}
	})

	t.Run("writePlainln", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writePlainln("hello %s", "world"); err != nil {
			t.Fatalf("writePlainln failed: %v", err)
		}
		if got := output.String(); got != "hello world\n" {
			t.Errorf("output = %q", got)
		}
	})
}

// newTestApp builds the CLI against injected in-memory doubles.
func newTestApp(t *testing.T) (*cli.Command, *Runner, *tu.FakeGateway, *tu.MemoryCache, *bytes.Buffer) {
	t.Helper()

	gateway := tu.NewFakeGateway()
	store := tu.NewMemoryCache()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Cache:   store,
		Gateway: gateway,
		Output:  output,
	})
	t.Cleanup(runner.close)

	app := &cli.Command{Name: "ledgersync", Commands: runner.register()}
	return app, runner, gateway, store, output
}

func TestCommands(t *testing.T) {
	t.Run("StatusReportsOnline", func(t *testing.T) {
		app, _, _, _, output := newTestApp(t)

		if err := app.Run(context.Background(), []string{"ledgersync", "status"}); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(output.String(), "Online:     true") {
			t.Errorf("output = %q, want online against a healthy fake gateway", output.String())
		}
	})

	t.Run("QueueListEmpty", func(t *testing.T) {
		app, _, _, _, output := newTestApp(t)

		if err := app.Run(context.Background(), []string{"ledgersync", "queue", "list"}); err != nil {
			t.Fatalf("queue list failed: %v", err)
		}
		if !strings.Contains(output.String(), "Queue is empty") {
			t.Errorf("output = %q", output.String())
		}
	})

	t.Run("MigrateStatusSummarizesLocalData", func(t *testing.T) {
		app, _, _, store, output := newTestApp(t)
		if err := store.Set(cache.KeyTransactions, []models.Transaction{
			{ID: "tx-1", Amount: 10, Category: "food", Type: models.TransactionExpense},
		}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		if err := app.Run(context.Background(), []string{"ledgersync", "migrate", "status", "--user", "u1"}); err != nil {
			t.Fatalf("migrate status failed: %v", err)
		}
		out := output.String()
		if !strings.Contains(out, "Transactions:           1") {
			t.Errorf("output missing summary:\n%s", out)
		}
		if !strings.Contains(out, "not checked") {
			t.Errorf("output missing migration state:\n%s", out)
		}
	})

	t.Run("MigrateRunUploadsLocalData", func(t *testing.T) {
		app, _, gateway, store, output := newTestApp(t)
		if err := store.Set(cache.KeyTransactions, []models.Transaction{
			{ID: "tx-1", Amount: 10, Category: "food", Type: models.TransactionExpense},
			{ID: "tx-2", Amount: 20, Category: "food", Type: models.TransactionExpense},
		}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		if err := app.Run(context.Background(), []string{"ledgersync", "migrate", "run", "--user", "u1"}); err != nil {
			t.Fatalf("migrate run failed: %v", err)
		}
		if got := gateway.TransactionCount("u1"); got != 2 {
			t.Errorf("remote transactions = %d, want 2", got)
		}
		if !strings.Contains(output.String(), "transactions: migrated 2") {
			t.Errorf("output = %q", output.String())
		}
	})

	t.Run("CacheKeysListsEntries", func(t *testing.T) {
		app, _, _, store, output := newTestApp(t)
		if err := store.Set("settings", models.Settings{Currency: "USD"}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		if err := app.Run(context.Background(), []string{"ledgersync", "cache", "keys"}); err != nil {
			t.Fatalf("cache keys failed: %v", err)
		}
		if !strings.Contains(output.String(), "settings") {
			t.Errorf("output = %q", output.String())
		}
	})

	t.Run("CacheGetMissingKeyFails", func(t *testing.T) {
		app, _, _, _, _ := newTestApp(t)

		err := app.Run(context.Background(), []string{"ledgersync", "cache", "get", "nope"})
		if err == nil {
			t.Error("expected error for a missing key")
		}
	})
}
