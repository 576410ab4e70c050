// package stores implements the offline-first entity stores.
//
// Every mutation validates first, then tries the backend synchronously when
// an authenticated identity exists and the device is online, and otherwise
// (or on remote failure) applies locally and hands the operation to the sync
// engine. Push subscriptions wholesale-replace a store's in-memory state with
// the authoritative remote snapshot. Sync problems never fail the caller;
// only validation does.
package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ledgersync/internal/cache"
	"github.com/desertthunder/ledgersync/internal/models"
	"github.com/desertthunder/ledgersync/internal/services"
	"github.com/desertthunder/ledgersync/internal/shared"
)

// Connectivity is the read-side of the network monitor.
type Connectivity interface {
	IsOnline() bool
}

// OperationQueue is the enqueue side of the sync engine.
type OperationQueue interface {
	QueueOperation(op models.SyncOperation) (models.SyncOperation, error)
}

// gatewayOps binds one collection domain to its four gateway calls.
type gatewayOps[T any] struct {
	add       func(ctx context.Context, userID string, item T) (T, error)
	update    func(ctx context.Context, userID, id string, item T) (T, error)
	remove    func(ctx context.Context, userID, id string) error
	subscribe func(ctx context.Context, userID string, cb func([]T)) (func(), error)
}

// Collection is a store for a list-shaped domain (transactions, recurring
// transactions, goals, category budgets). It exclusively owns the in-memory
// slice for its domain and mirrors it to the local cache after every change.
type Collection[T any] struct {
	mu       sync.Mutex
	domain   models.Domain
	cacheKey string
	validate func(T) error
	ident    func(*T) *string
	stamp    func(*T, time.Time, bool)
	ops      gatewayOps[T]

	cache  cache.Store
	queue  OperationQueue
	online Connectivity
	logger *log.Logger

	userID  string
	items   []T
	subs    map[int]func([]T)
	nextSub int
	unsub   func()
}

// Load restores the collection from the local cache. Call once at startup.
func (c *Collection[T]) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	if _, err := c.cache.Get(c.cacheKey, &c.items); err != nil {
		return fmt.Errorf("failed to load %s from cache: %w", c.domain, err)
	}
	return nil
}

// SetUser records the authenticated identity carried on every remote call
// and queued operation. An empty userID means anonymous local-only mode.
func (c *Collection[T]) SetUser(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

// Create validates item, generates identity and timestamps if absent, and
// runs the offline-first write path.
func (c *Collection[T]) Create(ctx context.Context, item T) (T, error) {
	var zero T
	if err := c.validate(item); err != nil {
		return zero, err
	}

	now := time.Now()
	if *c.ident(&item) == "" {
		*c.ident(&item) = shared.GenerateID()
	}
	c.stamp(&item, now, true)

	userID := c.currentUser()
	if userID != "" && c.online.IsOnline() {
		created, err := c.ops.add(ctx, userID, item)
		if err == nil {
			c.applyUpsert(created)
			return created, nil
		}
		if services.IsDuplicate(err) {
			// The entity already landed on a previous attempt.
			c.applyUpsert(item)
			return item, nil
		}
		c.logger.Debug("remote create failed, queueing", "domain", c.domain, "error", err)
	}

	c.applyUpsert(item)
	if userID != "" {
		c.enqueue(userID, models.OpCreate, *c.ident(&item), item)
	}
	return item, nil
}

// Update validates item and applies the offline-first write path against the
// entity with the given ID.
func (c *Collection[T]) Update(ctx context.Context, id string, item T) (T, error) {
	var zero T
	if err := c.validate(item); err != nil {
		return zero, err
	}

	c.mu.Lock()
	existing := c.findLocked(id)
	c.mu.Unlock()
	if existing == nil {
		return zero, fmt.Errorf("%w: no %s with id %s", shared.ErrNotFound, c.domain, id)
	}

	*c.ident(&item) = id
	c.stamp(&item, time.Now(), false)

	userID := c.currentUser()
	if userID != "" && c.online.IsOnline() {
		updated, err := c.ops.update(ctx, userID, id, item)
		if err == nil {
			c.applyUpsert(updated)
			return updated, nil
		}
		c.logger.Debug("remote update failed, queueing", "domain", c.domain, "error", err)
	}

	c.applyUpsert(item)
	if userID != "" {
		c.enqueue(userID, models.OpUpdate, id, item)
	}
	return item, nil
}

// Delete removes the entity with the given ID locally and remotely.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	existing := c.findLocked(id)
	c.mu.Unlock()
	if existing == nil {
		return fmt.Errorf("%w: no %s with id %s", shared.ErrNotFound, c.domain, id)
	}

	userID := c.currentUser()
	if userID != "" && c.online.IsOnline() {
		err := c.ops.remove(ctx, userID, id)
		if err == nil || services.IsNotFound(err) {
			c.applyRemove(id)
			return nil
		}
		c.logger.Debug("remote delete failed, queueing", "domain", c.domain, "error", err)
	}

	c.applyRemove(id)
	if userID != "" {
		c.enqueue(userID, models.OpDelete, id, nil)
	}
	return nil
}

// Items returns a snapshot of the in-memory state.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]T, len(c.items))
	copy(items, c.items)
	return items
}

// Subscribe registers a listener for state snapshots and returns an
// unsubscribe function. Listeners always receive a fresh copy.
func (c *Collection[T]) Subscribe(cb func([]T)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = cb
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// StartRealtimeSync opens the push subscription for this domain. Calling it
// twice does not create two subscriptions. Each push wholesale-replaces the
// in-memory list with the remote snapshot and re-persists the cache.
func (c *Collection[T]) StartRealtimeSync(ctx context.Context) error {
	c.mu.Lock()
	if c.unsub != nil {
		c.mu.Unlock()
		return nil
	}
	userID := c.userID
	c.mu.Unlock()

	if userID == "" {
		return fmt.Errorf("%w: realtime sync requires an authenticated user", shared.ErrInvalidInput)
	}

	unsub, err := c.ops.subscribe(ctx, userID, func(snapshot []T) {
		c.replaceAll(snapshot)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.domain, err)
	}

	c.mu.Lock()
	if c.unsub != nil {
		// A concurrent start won; keep the existing subscription.
		c.mu.Unlock()
		unsub()
		return nil
	}
	c.unsub = unsub
	c.mu.Unlock()
	return nil
}

// StopRealtimeSync tears down the push subscription if one is active.
func (c *Collection[T]) StopRealtimeSync() {
	c.mu.Lock()
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Reset clears in-memory state and tears down the subscription on sign-out.
// The durable cache is left untouched.
func (c *Collection[T]) Reset() {
	c.StopRealtimeSync()
	c.mu.Lock()
	c.userID = ""
	c.items = nil
	c.mu.Unlock()
	c.emit()
}

func (c *Collection[T]) currentUser() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Collection[T]) findLocked(id string) *T {
	for i := range c.items {
		if *c.ident(&c.items[i]) == id {
			return &c.items[i]
		}
	}
	return nil
}

func (c *Collection[T]) applyUpsert(item T) {
	id := *c.ident(&item)
	c.mu.Lock()
	replaced := false
	for i := range c.items {
		if *c.ident(&c.items[i]) == id {
			c.items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		c.items = append(c.items, item)
	}
	c.persistLocked()
	c.mu.Unlock()
	c.emit()
}

func (c *Collection[T]) applyRemove(id string) {
	c.mu.Lock()
	for i := range c.items {
		if *c.ident(&c.items[i]) == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	c.persistLocked()
	c.mu.Unlock()
	c.emit()
}

// replaceAll installs an authoritative remote snapshot. Last write wins
// between this and an optimistic local write; the snapshot is authoritative
// whenever it arrives.
func (c *Collection[T]) replaceAll(items []T) {
	c.mu.Lock()
	c.items = items
	c.persistLocked()
	c.mu.Unlock()
	c.emit()
}

func (c *Collection[T]) persistLocked() {
	if err := c.cache.Set(c.cacheKey, c.items); err != nil {
		c.logger.Error("failed to persist store", "domain", c.domain, "error", err)
	}
}

func (c *Collection[T]) emit() {
	c.mu.Lock()
	snapshot := make([]T, len(c.items))
	copy(snapshot, c.items)
	subs := make([]func([]T), 0, len(c.subs))
	for _, cb := range c.subs {
		subs = append(subs, cb)
	}
	c.mu.Unlock()

	for _, cb := range subs {
		cb(snapshot)
	}
}

func (c *Collection[T]) enqueue(userID string, t models.OpType, targetID string, payload any) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			c.logger.Error("failed to encode operation payload", "domain", c.domain, "error", err)
			return
		}
		raw = data
	}

	op := models.SyncOperation{
		Type:     t,
		Domain:   c.domain,
		UserID:   userID,
		TargetID: targetID,
		Payload:  raw,
	}
	if _, err := c.queue.QueueOperation(op); err != nil {
		c.logger.Error("failed to queue operation", "domain", c.domain, "error", err)
	}
}
