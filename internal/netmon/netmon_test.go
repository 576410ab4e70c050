package netmon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// flakyProber answers from a settable health state.
type flakyProber struct {
	mu      sync.Mutex
	healthy bool
}

func (p *flakyProber) Health(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.healthy {
		return nil
	}
	return errors.New("unreachable")
}

func (p *flakyProber) set(healthy bool) {
	p.mu.Lock()
	p.healthy = healthy
	p.mu.Unlock()
}

func TestSetOnline(t *testing.T) {
	t.Run("NotifiesOnlyOnTransitions", func(t *testing.T) {
		m := New(&flakyProber{}, time.Minute, nil)

		var transitions []bool
		m.OnChange(func(online bool) {
			transitions = append(transitions, online)
		})

		m.SetOnline(true)
		m.SetOnline(true)
		m.SetOnline(false)
		m.SetOnline(false)
		m.SetOnline(true)

		want := []bool{true, false, true}
		if len(transitions) != len(want) {
			t.Fatalf("transitions = %v, want %v", transitions, want)
		}
		for i := range want {
			if transitions[i] != want[i] {
				t.Fatalf("transitions = %v, want %v", transitions, want)
			}
		}
	})

	t.Run("UnsubscribeStopsNotifications", func(t *testing.T) {
		m := New(&flakyProber{}, time.Minute, nil)

		calls := 0
		unsub := m.OnChange(func(bool) { calls++ })

		m.SetOnline(true)
		unsub()
		m.SetOnline(false)

		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

func TestStart(t *testing.T) {
	t.Run("FirstProbeIsSynchronous", func(t *testing.T) {
		prober := &flakyProber{healthy: true}
		m := New(prober, time.Minute, nil)
		defer m.Stop()

		m.Start(context.Background())
		if !m.IsOnline() {
			t.Error("monitor should be online immediately after Start")
		}
	})

	t.Run("StartIsIdempotent", func(t *testing.T) {
		prober := &flakyProber{healthy: true}
		m := New(prober, time.Minute, nil)
		defer m.Stop()

		m.Start(context.Background())
		m.Start(context.Background())
		if !m.IsOnline() {
			t.Error("monitor should stay online after a second Start")
		}
	})

	t.Run("PollDetectsRecovery", func(t *testing.T) {
		prober := &flakyProber{}
		m := New(prober, 10*time.Millisecond, nil)
		defer m.Stop()

		transitioned := make(chan bool, 1)
		m.OnChange(func(online bool) {
			if online {
				select {
				case transitioned <- true:
				default:
				}
			}
		})

		m.Start(context.Background())
		if m.IsOnline() {
			t.Fatal("monitor should start offline against a failing probe")
		}

		prober.set(true)
		select {
		case <-transitioned:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for the recovery transition")
		}
	})

	t.Run("StopHaltsPolling", func(t *testing.T) {
		prober := &flakyProber{healthy: true}
		m := New(prober, 10*time.Millisecond, nil)

		m.Start(context.Background())
		m.Stop()

		// Flipping health after Stop must not change state.
		prober.set(false)
		time.Sleep(50 * time.Millisecond)
		if !m.IsOnline() {
			t.Error("state should be frozen after Stop")
		}
	})
}
