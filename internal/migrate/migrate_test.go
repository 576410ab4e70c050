package migrate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/ledgersync/internal/cache"
	"github.com/desertthunder/ledgersync/internal/models"
	ledgertest "github.com/desertthunder/ledgersync/internal/testing"
)

func newTestEngine(t *testing.T) (*Engine, *ledgertest.FakeGateway, *ledgertest.MemoryCache) {
	t.Helper()

	gateway := ledgertest.NewFakeGateway()
	store := ledgertest.NewMemoryCache()
	engine := New(Opts{Gateway: gateway, Cache: store})
	return engine, gateway, store
}

func seedLocalTransactions(t *testing.T, store *ledgertest.MemoryCache, n int) []models.Transaction {
	t.Helper()

	txs := make([]models.Transaction, n)
	for i := range txs {
		txs[i] = models.Transaction{
			ID:       fmt.Sprintf("tx-%d", i),
			Amount:   float64(i+1) * 10,
			Category: "groceries",
			Type:     models.TransactionExpense,
			Date:     time.Now(),
		}
	}
	if err := store.Set(cache.KeyTransactions, txs); err != nil {
		t.Fatalf("failed to seed local transactions: %v", err)
	}
	return txs
}

func TestHasLocalData(t *testing.T) {
	t.Run("EmptyCache", func(t *testing.T) {
		engine, _, _ := newTestEngine(t)
		has, err := engine.HasLocalData()
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if has {
			t.Error("empty cache should report no local data")
		}
	})

	t.Run("EmptyListDoesNotCount", func(t *testing.T) {
		engine, _, store := newTestEngine(t)
		if err := store.Set(cache.KeyTransactions, []models.Transaction{}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		has, err := engine.HasLocalData()
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if has {
			t.Error("a persisted empty list is not meaningful content")
		}
	})

	t.Run("ZeroBudgetDoesNotCount", func(t *testing.T) {
		engine, _, store := newTestEngine(t)
		if err := store.Set(cache.KeyBudget, models.Budget{}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		has, err := engine.HasLocalData()
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if has {
			t.Error("a zero-limit budget is not meaningful content")
		}
	})

	t.Run("TransactionsCount", func(t *testing.T) {
		engine, _, store := newTestEngine(t)
		seedLocalTransactions(t, store, 2)
		has, err := engine.HasLocalData()
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if !has {
			t.Error("cached transactions should count as local data")
		}
	})
}

func TestGetLocalDataSummary(t *testing.T) {
	engine, _, store := newTestEngine(t)
	seedLocalTransactions(t, store, 3)
	if err := store.Set(cache.KeyGoals, []models.Goal{{ID: "g1", Name: "x", TargetAmount: 100}}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := store.Set(cache.KeyBudget, models.Budget{MonthlyLimit: 500}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	summary, err := engine.GetLocalDataSummary()
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.Transactions != 3 || summary.Goals != 1 || !summary.HasBudget {
		t.Errorf("summary = %+v, want 3 transactions, 1 goal, budget present", summary)
	}
	if summary.Total() != 5 {
		t.Errorf("total = %d, want 5", summary.Total())
	}
}

func TestMigrateToCloud(t *testing.T) {
	t.Run("DeduplicatesByIdentity", func(t *testing.T) {
		engine, gateway, store := newTestEngine(t)
		txs := seedLocalTransactions(t, store, 10)
		for _, tx := range txs[:4] {
			gateway.SeedTransaction("u1", tx)
		}

		result, err := engine.MigrateToCloud(context.Background(), "u1", nil)
		if err != nil {
			t.Fatalf("migration failed: %v", err)
		}

		if got := result.MigratedCounts[models.DomainTransactions]; got != 6 {
			t.Errorf("migrated transactions = %d, want 6", got)
		}
		if got := result.SkippedCounts[models.DomainTransactions]; got != 4 {
			t.Errorf("skipped transactions = %d, want 4", got)
		}
		if gateway.Calls != 6 {
			t.Errorf("remote writes = %d, want exactly 6", gateway.Calls)
		}
		if !result.Success {
			t.Errorf("result = %+v, want success", result)
		}
	})

	t.Run("ProgressIsMonotone", func(t *testing.T) {
		engine, _, store := newTestEngine(t)
		seedLocalTransactions(t, store, 7)

		var reports []float64
		_, err := engine.MigrateToCloud(context.Background(), "u1", func(p float64) {
			reports = append(reports, p)
		})
		if err != nil {
			t.Fatalf("migration failed: %v", err)
		}

		if len(reports) == 0 {
			t.Fatal("expected progress reports")
		}
		for i := 1; i < len(reports); i++ {
			if reports[i] < reports[i-1] {
				t.Fatalf("progress went backwards: %v", reports)
			}
		}
		if last := reports[len(reports)-1]; last != 100 {
			t.Errorf("final progress = %v, want 100", last)
		}
	})

	t.Run("CategoryBudgetTupleMatchUpdates", func(t *testing.T) {
		engine, gateway, store := newTestEngine(t)
		gateway.SeedCategoryBudget("u1", models.CategoryBudget{
			ID: "remote-cb", Category: "food", Period: models.PeriodMonthly, Limit: 200,
		})
		local := []models.CategoryBudget{
			{ID: "local-cb-1", Category: "food", Period: models.PeriodMonthly, Limit: 350},
			{ID: "local-cb-2", Category: "transport", Period: models.PeriodWeekly, Limit: 60},
		}
		if err := store.Set(cache.KeyCategoryBudgets, local); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		result, err := engine.MigrateToCloud(context.Background(), "u1", nil)
		if err != nil {
			t.Fatalf("migration failed: %v", err)
		}
		if got := result.MigratedCounts[models.DomainCategoryBudgets]; got != 2 {
			t.Errorf("migrated category budgets = %d, want 2 (one update, one insert)", got)
		}

		remote, _ := gateway.GetCategoryBudgets(context.Background(), "u1")
		if len(remote) != 2 {
			t.Fatalf("remote category budgets = %d, want 2", len(remote))
		}
		for _, cb := range remote {
			if cb.Category == "food" && cb.Limit != 350 {
				t.Errorf("tuple-matched budget limit = %v, want the local value 350", cb.Limit)
			}
		}
	})

	t.Run("BudgetUpsertsUnconditionally", func(t *testing.T) {
		engine, gateway, store := newTestEngine(t)
		if _, err := gateway.PutBudget(context.Background(), "u1", models.Budget{MonthlyLimit: 100}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		gateway.Calls = 0
		if err := store.Set(cache.KeyBudget, models.Budget{MonthlyLimit: 900}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		result, err := engine.MigrateToCloud(context.Background(), "u1", nil)
		if err != nil {
			t.Fatalf("migration failed: %v", err)
		}
		if got := result.MigratedCounts[models.DomainBudget]; got != 1 {
			t.Errorf("migrated budget = %d, want 1", got)
		}
		remote, _ := gateway.GetBudget(context.Background(), "u1")
		if remote.MonthlyLimit != 900 {
			t.Errorf("remote budget = %v, want the local value 900", remote.MonthlyLimit)
		}
	})

	t.Run("SuccessClearsCacheAndPersistsFlag", func(t *testing.T) {
		engine, _, store := newTestEngine(t)
		seedLocalTransactions(t, store, 2)

		if _, err := engine.MigrateToCloud(context.Background(), "u1", nil); err != nil {
			t.Fatalf("migration failed: %v", err)
		}

		var txs []models.Transaction
		if found, _ := store.Get(cache.KeyTransactions, &txs); found {
			t.Error("local transactions should be cleared after a clean migration")
		}
		completed, err := engine.IsMigrationCompleted("u1")
		if err != nil || !completed {
			t.Errorf("completed = %v err = %v, want true", completed, err)
		}
	})

	t.Run("ErrorsRetainCacheButPersistFlag", func(t *testing.T) {
		engine, gateway, store := newTestEngine(t)
		seedLocalTransactions(t, store, 3)
		gateway.FailNextWrites = 1

		result, err := engine.MigrateToCloud(context.Background(), "u1", nil)
		if err != nil {
			t.Fatalf("migration returned a hard error: %v", err)
		}
		if result.Success {
			t.Error("result should not be success with write errors")
		}
		if len(result.Errors) != 1 {
			t.Errorf("errors = %v, want exactly 1", result.Errors)
		}
		if got := result.MigratedCounts[models.DomainTransactions]; got != 2 {
			t.Errorf("migrated transactions = %d, want 2 (batch continues past a failure)", got)
		}

		var txs []models.Transaction
		if found, _ := store.Get(cache.KeyTransactions, &txs); !found {
			t.Error("local cache should be retained for retry after errors")
		}
		completed, _ := engine.IsMigrationCompleted("u1")
		if !completed {
			t.Error("completion flag is persisted even with item errors")
		}
	})
}

func TestHasNewLocalData(t *testing.T) {
	engine, gateway, store := newTestEngine(t)
	txs := seedLocalTransactions(t, store, 2)
	for _, tx := range txs {
		gateway.SeedTransaction("u1", tx)
	}

	hasNew, err := engine.HasNewLocalData(context.Background(), "u1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if hasNew {
		t.Error("fully mirrored data should not count as new")
	}

	goals := []models.Goal{{ID: "g-new", Name: "new goal", TargetAmount: 500}}
	if err := store.Set(cache.KeyGoals, goals); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	hasNew, err = engine.HasNewLocalData(context.Background(), "u1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !hasNew {
		t.Error("a local-only goal should count as new data")
	}
}

func TestCheckMigration(t *testing.T) {
	t.Run("NoLocalDataCompletesSilently", func(t *testing.T) {
		engine, _, _ := newTestEngine(t)

		decision, err := engine.CheckMigration(context.Background(), "u1")
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if decision != DecisionNone {
			t.Errorf("decision = %v, want none", decision)
		}
		completed, _ := engine.IsMigrationCompleted("u1")
		if !completed {
			t.Error("empty device should be marked completed")
		}
	})

	t.Run("FirstRunWithLocalDataPrompts", func(t *testing.T) {
		engine, _, store := newTestEngine(t)
		seedLocalTransactions(t, store, 1)

		decision, err := engine.CheckMigration(context.Background(), "u1")
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if decision != DecisionPrompt {
			t.Errorf("decision = %v, want prompt", decision)
		}
	})

	t.Run("RepeatLoginWithMirroredDataClearsCache", func(t *testing.T) {
		engine, gateway, store := newTestEngine(t)
		txs := seedLocalTransactions(t, store, 2)
		for _, tx := range txs {
			gateway.SeedTransaction("u1", tx)
		}
		if err := engine.Skip("u1"); err != nil {
			t.Fatalf("skip failed: %v", err)
		}

		decision, err := engine.CheckMigration(context.Background(), "u1")
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if decision != DecisionNone {
			t.Errorf("decision = %v, want none", decision)
		}
		var cached []models.Transaction
		if found, _ := store.Get(cache.KeyTransactions, &cached); found {
			t.Error("stale local copy should be cleared on repeat login")
		}
	})

	t.Run("NewLocalItemRepromptsAfterCompletion", func(t *testing.T) {
		engine, gateway, store := newTestEngine(t)
		txs := seedLocalTransactions(t, store, 1)
		gateway.SeedTransaction("u1", txs[0])
		if err := engine.Skip("u1"); err != nil {
			t.Fatalf("skip failed: %v", err)
		}

		if err := store.Set(cache.KeyGoals, []models.Goal{{ID: "g1", Name: "fresh", TargetAmount: 50}}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		decision, err := engine.CheckMigration(context.Background(), "u1")
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if decision != DecisionPrompt {
			t.Errorf("decision = %v, want prompt for new local data", decision)
		}
	})
}

func TestResetMigrationStatus(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	if err := engine.Skip("u1"); err != nil {
		t.Fatalf("skip failed: %v", err)
	}
	if err := engine.ResetMigrationStatus("u1"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	completed, err := engine.IsMigrationCompleted("u1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if completed {
		t.Error("flag should be gone after reset")
	}
}

func TestBatching(t *testing.T) {
	engine, gateway, store := newTestEngine(t)
	engine.batchSize = 10
	seedLocalTransactions(t, store, 25)

	result, err := engine.MigrateToCloud(context.Background(), "u1", nil)
	if err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	if got := result.MigratedCounts[models.DomainTransactions]; got != 25 {
		t.Errorf("migrated = %d, want 25 across batches", got)
	}
	if gateway.Calls != 25 {
		t.Errorf("remote writes = %d, want 25", gateway.Calls)
	}
}
