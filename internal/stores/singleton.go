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
	"github.com/desertthunder/ledgersync/internal/shared"
)

// singletonOps binds a singleton domain (budget, settings) to its gateway
// calls. Remotely both create and update are the same upsert.
type singletonOps[T any] struct {
	put       func(ctx context.Context, userID string, item T) (T, error)
	subscribe func(ctx context.Context, userID string, cb func(T)) (func(), error)
}

// Singleton is a store for a document-shaped domain with exactly one record
// per user (the overall budget, the settings document).
type Singleton[T any] struct {
	mu       sync.Mutex
	domain   models.Domain
	cacheKey string
	validate func(T) error
	stamp    func(*T, time.Time, bool)
	ops      singletonOps[T]

	cache  cache.Store
	queue  OperationQueue
	online Connectivity
	logger *log.Logger

	userID  string
	value   *T
	subs    map[int]func(T, bool)
	nextSub int
	unsub   func()
}

// Load restores the document from the local cache.
func (s *Singleton[T]) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v T
	ok, err := s.cache.Get(s.cacheKey, &v)
	if err != nil {
		return fmt.Errorf("failed to load %s from cache: %w", s.domain, err)
	}
	if ok {
		s.value = &v
	} else {
		s.value = nil
	}
	return nil
}

// SetUser records the authenticated identity.
func (s *Singleton[T]) SetUser(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}

// Get returns the current document and whether one exists.
func (s *Singleton[T]) Get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == nil {
		var zero T
		return zero, false
	}
	return *s.value, true
}

// Set validates and upserts the document with the offline-first write path.
func (s *Singleton[T]) Set(ctx context.Context, item T) (T, error) {
	var zero T
	if err := s.validate(item); err != nil {
		return zero, err
	}

	s.mu.Lock()
	isNew := s.value == nil
	userID := s.userID
	s.mu.Unlock()
	s.stamp(&item, time.Now(), isNew)

	if userID != "" && s.online.IsOnline() {
		saved, err := s.ops.put(ctx, userID, item)
		if err == nil {
			s.apply(saved)
			return saved, nil
		}
		s.logger.Debug("remote upsert failed, queueing", "domain", s.domain, "error", err)
	}

	s.apply(item)
	if userID != "" {
		s.enqueue(userID, item)
	}
	return item, nil
}

// Subscribe registers a listener called with the document and a presence
// flag after every change. Returns an unsubscribe function.
func (s *Singleton[T]) Subscribe(cb func(T, bool)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = cb
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// StartRealtimeSync opens the push subscription; idempotent.
func (s *Singleton[T]) StartRealtimeSync(ctx context.Context) error {
	s.mu.Lock()
	if s.unsub != nil {
		s.mu.Unlock()
		return nil
	}
	userID := s.userID
	s.mu.Unlock()

	if userID == "" {
		return fmt.Errorf("%w: realtime sync requires an authenticated user", shared.ErrInvalidInput)
	}

	unsub, err := s.ops.subscribe(ctx, userID, func(snapshot T) {
		s.apply(snapshot)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.domain, err)
	}

	s.mu.Lock()
	if s.unsub != nil {
		s.mu.Unlock()
		unsub()
		return nil
	}
	s.unsub = unsub
	s.mu.Unlock()
	return nil
}

// StopRealtimeSync tears down the push subscription if one is active.
func (s *Singleton[T]) StopRealtimeSync() {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Reset clears in-memory state on sign-out; the cache stays.
func (s *Singleton[T]) Reset() {
	s.StopRealtimeSync()
	s.mu.Lock()
	s.userID = ""
	s.value = nil
	s.mu.Unlock()
	s.emit()
}

func (s *Singleton[T]) apply(item T) {
	s.mu.Lock()
	s.value = &item
	if err := s.cache.Set(s.cacheKey, item); err != nil {
		s.logger.Error("failed to persist store", "domain", s.domain, "error", err)
	}
	s.mu.Unlock()
	s.emit()
}

func (s *Singleton[T]) emit() {
	s.mu.Lock()
	var snapshot T
	present := s.value != nil
	if present {
		snapshot = *s.value
	}
	subs := make([]func(T, bool), 0, len(s.subs))
	for _, cb := range s.subs {
		subs = append(subs, cb)
	}
	s.mu.Unlock()

	for _, cb := range subs {
		cb(snapshot, present)
	}
}

func (s *Singleton[T]) enqueue(userID string, item T) {
	data, err := json.Marshal(item)
	if err != nil {
		s.logger.Error("failed to encode operation payload", "domain", s.domain, "error", err)
		return
	}
	op := models.SyncOperation{
		Type:    models.OpUpdate,
		Domain:  s.domain,
		UserID:  userID,
		Payload: data,
	}
	if _, err := s.queue.QueueOperation(op); err != nil {
		s.logger.Error("failed to queue operation", "domain", s.domain, "error", err)
	}
}
