// package syncq implements the durable pending-mutation queue.
//
// The engine provides at-least-once delivery of mutations that could not be
// written to the backend synchronously. Operations drain in strict FIFO order
// across the whole queue; a drain pass is single-flight, so overlapping
// triggers from connectivity flapping collapse into one pass. An operation
// that keeps failing is dropped after a bounded number of attempts and parked
// on a persisted dead-letter list.
package syncq

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ledgersync/internal/cache"
	"github.com/desertthunder/ledgersync/internal/models"
	"github.com/desertthunder/ledgersync/internal/services"
	"github.com/desertthunder/ledgersync/internal/shared"
)

// DefaultMaxRetries is the delivery attempt cap per operation.
const DefaultMaxRetries = 3

// Engine is the sync engine. Construct with New and share one instance per
// process; entity stores enqueue into it and the network monitor feeds it
// connectivity transitions.
type Engine struct {
	mu      sync.Mutex
	gateway services.Gateway
	cache   cache.Store
	logger  *log.Logger

	maxRetries int
	queue      []models.SyncOperation
	deadLetter []models.DeadLetterEntry
	draining   bool
	status     models.SyncStatus

	subs    map[int]func(models.SyncStatus)
	nextSub int
}

// Opts contains configuration options for creating an Engine.
type Opts struct {
	Gateway    services.Gateway
	Cache      cache.Store
	Logger     *log.Logger
	MaxRetries int // 0 means DefaultMaxRetries
}

// New creates an Engine and restores the persisted queue, dead-letter list,
// and last sync time from the cache.
func New(opts Opts) (*Engine, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	e := &Engine{
		gateway:    opts.Gateway,
		cache:      opts.Cache,
		logger:     opts.Logger.With("component", "syncq"),
		maxRetries: opts.MaxRetries,
		subs:       make(map[int]func(models.SyncStatus)),
	}

	if _, err := e.cache.Get(cache.KeySyncQueue, &e.queue); err != nil {
		return nil, fmt.Errorf("failed to restore sync queue: %w", err)
	}
	if _, err := e.cache.Get(cache.KeyDeadLetter, &e.deadLetter); err != nil {
		return nil, fmt.Errorf("failed to restore dead-letter list: %w", err)
	}
	var last time.Time
	if ok, err := e.cache.Get(cache.KeyLastSyncTime, &last); err != nil {
		return nil, fmt.Errorf("failed to restore last sync time: %w", err)
	} else if ok {
		e.status.LastSyncTime = &last
	}
	e.status.PendingOperations = len(e.queue)

	return e, nil
}

// QueueOperation appends op to the durable queue. The engine assigns the
// operation ID, enqueue timestamp, and a zero retry count; callers supply
// everything else. If the device is online and no drain is running, a drain
// starts immediately in the background.
func (e *Engine) QueueOperation(op models.SyncOperation) (models.SyncOperation, error) {
	op.ID = shared.GenerateID()
	op.EnqueuedAt = time.Now()
	op.RetryCount = 0

	e.mu.Lock()
	e.queue = append(e.queue, op)
	if err := e.persistQueueLocked(); err != nil {
		e.queue = e.queue[:len(e.queue)-1]
		e.mu.Unlock()
		return models.SyncOperation{}, err
	}
	e.status.PendingOperations = len(e.queue)
	shouldDrain := e.status.IsOnline && !e.draining
	e.mu.Unlock()

	e.logger.Debug("operation queued", "op", op.ID, "type", op.Type, "domain", op.Domain)
	e.notify()

	if shouldDrain {
		go func() {
			if err := e.ProcessQueue(context.Background()); err != nil {
				e.logger.Warn("background drain failed", "error", err)
			}
		}()
	}
	return op, nil
}

// ProcessQueue drains the queue while online. A call during an in-progress
// drain is a no-op, as is a call while offline; SyncNow is the fail-fast
// variant for user-initiated syncs.
func (e *Engine) ProcessQueue(ctx context.Context) error {
	e.mu.Lock()
	if e.draining || !e.status.IsOnline || len(e.queue) == 0 {
		e.mu.Unlock()
		return nil
	}
	e.draining = true
	e.status.IsSyncing = true
	pass := make([]models.SyncOperation, len(e.queue))
	copy(pass, e.queue)
	e.mu.Unlock()
	e.notify()

	var (
		remaining []models.SyncOperation
		dropped   []models.DeadLetterEntry
		errs      []string
		aborted   bool
	)

	for _, op := range pass {
		if aborted {
			remaining = append(remaining, op)
			continue
		}

		err := e.execute(ctx, op)
		switch {
		case err == nil:
			e.logger.Debug("operation delivered", "op", op.ID, "type", op.Type, "domain", op.Domain)

		case op.Type == models.OpCreate && services.IsDuplicate(err):
			// Re-delivery of a create that already landed. Success.
			e.logger.Debug("duplicate create acknowledged", "op", op.ID, "domain", op.Domain)

		case op.Type == models.OpDelete && services.IsNotFound(err):
			// The record is already gone; the delete is idempotent.
			e.logger.Debug("delete target already absent", "op", op.ID, "domain", op.Domain)

		case services.IsNetwork(err):
			// The backend was never reached: abort the remainder of the pass
			// without charging this operation an attempt.
			e.logger.Warn("drain aborted mid-pass", "op", op.ID, "error", err)
			errs = append(errs, err.Error())
			remaining = append(remaining, op)
			aborted = true

		default:
			op.RetryCount++
			if op.RetryCount >= e.maxRetries {
				e.logger.Error("operation dropped after retry cap",
					"op", op.ID, "type", op.Type, "domain", op.Domain, "attempts", op.RetryCount, "error", err)
				dropped = append(dropped, models.DeadLetterEntry{
					Op:        op,
					DroppedAt: time.Now(),
					Reason:    err.Error(),
				})
			} else {
				remaining = append(remaining, op)
			}
			errs = append(errs, fmt.Sprintf("%s %s: %v", op.Type, op.Domain, err))
		}
	}

	now := time.Now()

	e.mu.Lock()
	// Operations enqueued while the pass ran sit past the snapshot length.
	e.queue = append(remaining, e.queue[len(pass):]...)
	if err := e.persistQueueLocked(); err != nil {
		e.logger.Error("failed to persist queue after drain", "error", err)
		errs = append(errs, err.Error())
	}
	if len(dropped) > 0 {
		e.deadLetter = append(e.deadLetter, dropped...)
		if err := e.cache.Set(cache.KeyDeadLetter, e.deadLetter); err != nil {
			e.logger.Error("failed to persist dead-letter list", "error", err)
		}
	}
	e.status.LastSyncTime = &now
	if err := e.cache.Set(cache.KeyLastSyncTime, now); err != nil {
		e.logger.Error("failed to persist last sync time", "error", err)
	}
	e.status.PendingOperations = len(e.queue)
	e.status.Error = strings.Join(errs, "; ")
	e.status.IsSyncing = false
	e.draining = false
	e.mu.Unlock()
	e.notify()

	return nil
}

// SyncNow is the user-initiated drain. It fails fast when offline.
func (e *Engine) SyncNow(ctx context.Context) error {
	e.mu.Lock()
	online := e.status.IsOnline
	e.mu.Unlock()
	if !online {
		return fmt.Errorf("%w: cannot sync now", shared.ErrOffline)
	}
	return e.ProcessQueue(ctx)
}

// SetOnline records a connectivity transition from the network monitor.
// Reconnecting triggers a background drain.
func (e *Engine) SetOnline(online bool) {
	e.mu.Lock()
	changed := e.status.IsOnline != online
	e.status.IsOnline = online
	e.mu.Unlock()

	if !changed {
		return
	}
	e.notify()
	if online {
		go func() {
			if err := e.ProcessQueue(context.Background()); err != nil {
				e.logger.Warn("reconnect drain failed", "error", err)
			}
		}()
	}
}

// GetQueueStatus returns a snapshot of the pending operations in queue order.
func (e *Engine) GetQueueStatus() []models.SyncOperation {
	e.mu.Lock()
	defer e.mu.Unlock()
	ops := make([]models.SyncOperation, len(e.queue))
	copy(ops, e.queue)
	return ops
}

// ClearQueue destructively empties the queue. Debug tooling only.
func (e *Engine) ClearQueue() error {
	e.mu.Lock()
	e.queue = nil
	err := e.persistQueueLocked()
	e.status.PendingOperations = 0
	e.mu.Unlock()
	e.notify()
	return err
}

// DeadLetter returns a snapshot of the dropped operations.
func (e *Engine) DeadLetter() []models.DeadLetterEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	entries := make([]models.DeadLetterEntry, len(e.deadLetter))
	copy(entries, e.deadLetter)
	return entries
}

// Requeue moves the dead-letter entry with the given operation ID back onto
// the queue with a fresh retry budget.
func (e *Engine) Requeue(opID string) error {
	e.mu.Lock()
	idx := -1
	for i, entry := range e.deadLetter {
		if entry.Op.ID == opID {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: no dead-letter entry %s", shared.ErrNotFound, opID)
	}

	op := e.deadLetter[idx].Op
	op.RetryCount = 0
	e.deadLetter = append(e.deadLetter[:idx], e.deadLetter[idx+1:]...)
	e.queue = append(e.queue, op)
	if err := e.persistQueueLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := e.cache.Set(cache.KeyDeadLetter, e.deadLetter); err != nil {
		e.mu.Unlock()
		return err
	}
	e.status.PendingOperations = len(e.queue)
	e.mu.Unlock()
	e.notify()

	e.logger.Info("dead-letter entry requeued", "op", opID)
	return nil
}

// GetSyncStatus returns the current observable sync state.
func (e *Engine) GetSyncStatus() models.SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// OnSyncStatusChange registers a status listener and returns an unsubscribe
// function. Listeners receive a copy of the status after every change.
func (e *Engine) OnSyncStatusChange(cb func(models.SyncStatus)) func() {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = cb
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

func (e *Engine) notify() {
	e.mu.Lock()
	status := e.status
	subs := make([]func(models.SyncStatus), 0, len(e.subs))
	for _, cb := range e.subs {
		subs = append(subs, cb)
	}
	e.mu.Unlock()

	for _, cb := range subs {
		cb(status)
	}
}

func (e *Engine) persistQueueLocked() error {
	if err := e.cache.Set(cache.KeySyncQueue, e.queue); err != nil {
		return fmt.Errorf("failed to persist sync queue: %w", err)
	}
	return nil
}
