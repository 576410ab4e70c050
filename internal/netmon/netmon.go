// package netmon tracks backend connectivity for the sync engine.
//
// The monitor is the single source of truth for online/offline state. It
// probes the gateway health endpoint on a ticker and notifies subscribers
// once per transition, never on every poll.
package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ledgersync/internal/shared"
)

// Prober is the reachability probe the monitor polls. The HTTP gateway's
// Health method satisfies it.
type Prober interface {
	Health(ctx context.Context) error
}

// Monitor maintains connectivity state and fires transition callbacks.
type Monitor struct {
	mu       sync.Mutex
	prober   Prober
	interval time.Duration
	logger   *log.Logger

	online  bool
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	subs    map[int]func(bool)
	nextSub int
}

// New creates a Monitor polling prober at the given interval.
// An interval of zero defaults to 5 seconds.
func New(prober Prober, interval time.Duration, logger *log.Logger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		logger:   logger.With("component", "netmon"),
		subs:     make(map[int]func(bool)),
	}
}

// Start begins polling. Calling Start on a running monitor is a no-op.
//
// The first probe runs synchronously so callers observe a settled state as
// soon as Start returns.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	pollCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.SetOnline(m.probe(pollCtx))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				m.SetOnline(m.probe(pollCtx))
			}
		}
	}()
}

// Stop halts polling and waits for the poll goroutine to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Monitor) probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	return m.prober.Health(probeCtx) == nil
}

// IsOnline reports the last observed connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers a callback fired on every connectivity transition and
// returns an unsubscribe function. Callbacks run outside the monitor lock
// but must still return promptly; slow reactions to a reconnect (like a
// queue drain) belong on their own goroutine.
func (m *Monitor) OnChange(cb func(online bool)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = cb
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// SetOnline records a connectivity observation. Subscribers are notified only
// when the state actually changes. Exposed for hosts that learn connectivity
// from the platform instead of the health probe, and for tests.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if online == m.online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, cb := range m.subs {
		subs = append(subs, cb)
	}
	m.mu.Unlock()

	if online {
		m.logger.Info("connectivity restored")
	} else {
		m.logger.Warn("connectivity lost")
	}
	for _, cb := range subs {
		cb(online)
	}
}
