package syncq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/ledgersync/internal/models"
	"github.com/desertthunder/ledgersync/internal/shared"
	ledgertest "github.com/desertthunder/ledgersync/internal/testing"
)

func newTestEngine(t *testing.T) (*Engine, *ledgertest.FakeGateway, *ledgertest.MemoryCache) {
	t.Helper()

	gateway := ledgertest.NewFakeGateway()
	store := ledgertest.NewMemoryCache()
	engine, err := New(Opts{Gateway: gateway, Cache: store})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine, gateway, store
}

func createOp(userID string, tx models.Transaction) models.SyncOperation {
	payload, _ := json.Marshal(tx)
	return models.SyncOperation{
		Type:     models.OpCreate,
		Domain:   models.DomainTransactions,
		UserID:   userID,
		TargetID: tx.ID,
		Payload:  payload,
	}
}

func testTransaction(id string, amount float64) models.Transaction {
	return models.Transaction{
		ID:       id,
		Amount:   amount,
		Category: "groceries",
		Type:     models.TransactionExpense,
		Date:     time.Now(),
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestQueueOperation(t *testing.T) {
	t.Run("AssignsIdentityAndPersists", func(t *testing.T) {
		engine, _, store := newTestEngine(t)

		op, err := engine.QueueOperation(createOp("u1", testTransaction("tx-1", 12.50)))
		if err != nil {
			t.Fatalf("failed to queue operation: %v", err)
		}
		if op.ID == "" {
			t.Error("operation ID should be assigned")
		}
		if op.RetryCount != 0 {
			t.Errorf("retry count = %d, want 0", op.RetryCount)
		}
		if op.EnqueuedAt.IsZero() {
			t.Error("enqueued timestamp should be set")
		}

		var persisted []models.SyncOperation
		found, err := store.Get("sync_queue", &persisted)
		if err != nil || !found {
			t.Fatalf("queue not persisted: found=%v err=%v", found, err)
		}
		if len(persisted) != 1 || persisted[0].ID != op.ID {
			t.Errorf("persisted queue = %+v, want the queued op", persisted)
		}
	})

	t.Run("UpdatesPendingCount", func(t *testing.T) {
		engine, _, _ := newTestEngine(t)

		for i := 0; i < 3; i++ {
			if _, err := engine.QueueOperation(createOp("u1", testTransaction(shared.GenerateID(), 5))); err != nil {
				t.Fatalf("failed to queue operation: %v", err)
			}
		}
		if got := engine.GetSyncStatus().PendingOperations; got != 3 {
			t.Errorf("pending operations = %d, want 3", got)
		}
	})
}

func TestOfflineOnlineConvergence(t *testing.T) {
	engine, gateway, _ := newTestEngine(t)

	for i, id := range []string{"tx-a", "tx-b", "tx-c"} {
		if _, err := engine.QueueOperation(createOp("u1", testTransaction(id, float64(i+1)))); err != nil {
			t.Fatalf("failed to queue operation: %v", err)
		}
	}
	if got := engine.GetSyncStatus().PendingOperations; got != 3 {
		t.Fatalf("pending operations = %d, want 3 while offline", got)
	}

	engine.SetOnline(true)

	waitFor(t, func() bool {
		return engine.GetSyncStatus().PendingOperations == 0
	}, "queue to drain after reconnect")

	if got := gateway.TransactionCount("u1"); got != 3 {
		t.Errorf("remote transaction count = %d, want 3", got)
	}
}

func TestDuplicateCreateReplay(t *testing.T) {
	engine, gateway, _ := newTestEngine(t)

	tx := testTransaction("tx-dup", 9.99)
	for i := 0; i < 2; i++ {
		if _, err := engine.QueueOperation(createOp("u1", tx)); err != nil {
			t.Fatalf("failed to queue operation: %v", err)
		}
	}

	engine.SetOnline(true)
	waitFor(t, func() bool {
		return engine.GetSyncStatus().PendingOperations == 0
	}, "queue to drain")

	if got := gateway.TransactionCount("u1"); got != 1 {
		t.Errorf("remote transaction count = %d, want exactly 1", got)
	}
	if entries := engine.DeadLetter(); len(entries) != 0 {
		t.Errorf("dead-letter entries = %d, want 0", len(entries))
	}
}

func TestFIFOOrdering(t *testing.T) {
	engine, gateway, _ := newTestEngine(t)
	gateway.SeedTransaction("u1", testTransaction("tx-a", 10))

	updated := testTransaction("tx-a", 10)
	payload, _ := json.Marshal(updated)
	if _, err := engine.QueueOperation(models.SyncOperation{
		Type: models.OpUpdate, Domain: models.DomainTransactions,
		UserID: "u1", TargetID: "tx-a", Payload: payload,
	}); err != nil {
		t.Fatalf("failed to queue update: %v", err)
	}
	if _, err := engine.QueueOperation(models.SyncOperation{
		Type: models.OpDelete, Domain: models.DomainTransactions,
		UserID: "u1", TargetID: "tx-a",
	}); err != nil {
		t.Fatalf("failed to queue delete: %v", err)
	}

	engine.SetOnline(true)
	waitFor(t, func() bool {
		return engine.GetSyncStatus().PendingOperations == 0
	}, "queue to drain")

	if gateway.HasTransaction("u1", "tx-a") {
		t.Error("entity should be deleted after update-then-delete drain")
	}
	if entries := engine.DeadLetter(); len(entries) != 0 {
		t.Errorf("dead-letter entries = %d, want 0", len(entries))
	}
}

func TestRetryExhaustion(t *testing.T) {
	engine, gateway, _ := newTestEngine(t)

	// Enqueue while offline so the reconnect below triggers exactly one
	// background drain.
	gateway.FailNextWrites = 10
	if _, err := engine.QueueOperation(createOp("u1", testTransaction("tx-bad", 5))); err != nil {
		t.Fatalf("failed to queue operation: %v", err)
	}
	engine.SetOnline(true)

	waitFor(t, func() bool {
		ops := engine.GetQueueStatus()
		return len(ops) == 1 && ops[0].RetryCount == 1 && !engine.GetSyncStatus().IsSyncing
	}, "first failed attempt")

	for i := 0; i < 2; i++ {
		if err := engine.ProcessQueue(context.Background()); err != nil {
			t.Fatalf("drain %d failed: %v", i+2, err)
		}
	}

	if got := engine.GetSyncStatus().PendingOperations; got != 0 {
		t.Errorf("pending operations = %d, want 0 after retry cap", got)
	}
	entries := engine.DeadLetter()
	if len(entries) != 1 {
		t.Fatalf("dead-letter entries = %d, want 1", len(entries))
	}
	if entries[0].Op.RetryCount != DefaultMaxRetries {
		t.Errorf("dropped op retry count = %d, want %d", entries[0].Op.RetryCount, DefaultMaxRetries)
	}

	// A further drain must not attempt the dropped operation a 4th time.
	attempts := gateway.Calls
	if err := engine.ProcessQueue(context.Background()); err != nil {
		t.Fatalf("post-drop drain failed: %v", err)
	}
	if gateway.Calls != attempts {
		t.Errorf("gateway calls = %d, want %d (no 4th attempt)", gateway.Calls, attempts)
	}
}

func TestNetworkFailureAbortsPassWithoutRetryCharge(t *testing.T) {
	engine, gateway, _ := newTestEngine(t)

	for _, id := range []string{"tx-1", "tx-2"} {
		if _, err := engine.QueueOperation(createOp("u1", testTransaction(id, 3))); err != nil {
			t.Fatalf("failed to queue operation: %v", err)
		}
	}

	gateway.FailNetwork = true
	engine.SetOnline(true)
	waitFor(t, func() bool {
		status := engine.GetSyncStatus()
		return !status.IsSyncing && status.Error != ""
	}, "aborted drain pass")

	ops := engine.GetQueueStatus()
	if len(ops) != 2 {
		t.Fatalf("queue length = %d, want 2 after aborted pass", len(ops))
	}
	for _, op := range ops {
		if op.RetryCount != 0 {
			t.Errorf("op %s retry count = %d, want 0 (transport failures are free)", op.TargetID, op.RetryCount)
		}
	}

	gateway.FailNetwork = false
	if err := engine.ProcessQueue(context.Background()); err != nil {
		t.Fatalf("recovery drain failed: %v", err)
	}
	if got := engine.GetSyncStatus().PendingOperations; got != 0 {
		t.Errorf("pending operations = %d, want 0 after recovery", got)
	}
}

func TestSyncNowFailsFastOffline(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	err := engine.SyncNow(context.Background())
	if err == nil {
		t.Fatal("expected error when offline")
	}
	if !errors.Is(err, shared.ErrOffline) {
		t.Errorf("error = %v, want ErrOffline", err)
	}
}

func TestDeleteNotFoundIsSuccess(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	if _, err := engine.QueueOperation(models.SyncOperation{
		Type: models.OpDelete, Domain: models.DomainTransactions,
		UserID: "u1", TargetID: "never-existed",
	}); err != nil {
		t.Fatalf("failed to queue delete: %v", err)
	}

	engine.SetOnline(true)
	waitFor(t, func() bool {
		return engine.GetSyncStatus().PendingOperations == 0
	}, "queue to drain")

	if entries := engine.DeadLetter(); len(entries) != 0 {
		t.Errorf("dead-letter entries = %d, want 0 (delete of missing record is idempotent)", len(entries))
	}
}

func TestQueueRestoredAcrossRestart(t *testing.T) {
	gateway := ledgertest.NewFakeGateway()
	store := ledgertest.NewMemoryCache()

	first, err := New(Opts{Gateway: gateway, Cache: store})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if _, err := first.QueueOperation(createOp("u1", testTransaction("tx-1", 7))); err != nil {
		t.Fatalf("failed to queue operation: %v", err)
	}

	second, err := New(Opts{Gateway: gateway, Cache: store})
	if err != nil {
		t.Fatalf("failed to create second engine: %v", err)
	}
	if got := second.GetSyncStatus().PendingOperations; got != 1 {
		t.Errorf("restored pending operations = %d, want 1", got)
	}
}

func TestRequeueDeadLetter(t *testing.T) {
	engine, gateway, _ := newTestEngine(t)

	// Enqueue before reconnecting so only one background drain runs.
	gateway.FailNextWrites = 10
	if _, err := engine.QueueOperation(createOp("u1", testTransaction("tx-r", 4))); err != nil {
		t.Fatalf("failed to queue operation: %v", err)
	}
	engine.SetOnline(true)
	waitFor(t, func() bool {
		ops := engine.GetQueueStatus()
		return len(ops) == 1 && ops[0].RetryCount == 1 && !engine.GetSyncStatus().IsSyncing
	}, "first failed attempt")
	for i := 0; i < 2; i++ {
		if err := engine.ProcessQueue(context.Background()); err != nil {
			t.Fatalf("drain failed: %v", err)
		}
	}
	entries := engine.DeadLetter()
	if len(entries) != 1 {
		t.Fatalf("dead-letter entries = %d, want 1", len(entries))
	}

	gateway.FailNextWrites = 0
	if err := engine.Requeue(entries[0].Op.ID); err != nil {
		t.Fatalf("requeue failed: %v", err)
	}
	if got := len(engine.DeadLetter()); got != 0 {
		t.Errorf("dead-letter entries after requeue = %d, want 0", got)
	}

	ops := engine.GetQueueStatus()
	if len(ops) != 1 || ops[0].RetryCount != 0 {
		t.Fatalf("requeued op = %+v, want one op with fresh retry budget", ops)
	}

	if err := engine.ProcessQueue(context.Background()); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if !gateway.HasTransaction("u1", "tx-r") {
		t.Error("requeued operation should reach the backend")
	}
}

func TestOnSyncStatusChange(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	var statuses []models.SyncStatus
	unsub := engine.OnSyncStatusChange(func(status models.SyncStatus) {
		statuses = append(statuses, status)
	})

	engine.SetOnline(true)
	if len(statuses) == 0 || !statuses[len(statuses)-1].IsOnline {
		t.Errorf("listener should observe the online transition, got %+v", statuses)
	}

	unsub()
	before := len(statuses)
	engine.SetOnline(false)
	if len(statuses) != before {
		t.Error("unsubscribed listener should not be called")
	}
}

func TestClearQueue(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	if _, err := engine.QueueOperation(createOp("u1", testTransaction("tx-1", 2))); err != nil {
		t.Fatalf("failed to queue operation: %v", err)
	}
	if err := engine.ClearQueue(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if got := engine.GetSyncStatus().PendingOperations; got != 0 {
		t.Errorf("pending operations = %d, want 0", got)
	}
}
