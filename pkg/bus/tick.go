package bus

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Tick is an externally owned scheduling pulse that coordinates bundler
// flushes across many server-managed clients. Instead of every adopted
// client arming its own per-channel timers, a server attaches them all
// to one Tick; each pulse flushes every attached client's pending
// queues.
//
// Attach clients with WithTick at construction or Attach afterwards,
// then run the pulse with Start.
type Tick struct {
	every time.Duration
	clock clockwork.Clock

	mu      sync.Mutex
	clients map[*Client]struct{}
	stop    chan struct{}
	stopped bool
}

// NewTick creates a pulse firing at the given interval.
func NewTick(every time.Duration) *Tick {
	return NewTickWithClock(every, clockwork.NewRealClock())
}

// NewTickWithClock creates a pulse driven by the given clock. Tests use
// a fake clock to advance pulses deterministically.
func NewTickWithClock(every time.Duration, clock clockwork.Clock) *Tick {
	return &Tick{
		every:   every,
		clock:   clock,
		clients: make(map[*Client]struct{}),
		stop:    make(chan struct{}),
	}
}

// Attach registers c for flushing on each pulse.
func (t *Tick) Attach(c *Client) {
	t.mu.Lock()
	t.clients[c] = struct{}{}
	t.mu.Unlock()
}

// Detach removes c. Safe to call for a client that was never attached.
func (t *Tick) Detach(c *Client) {
	t.mu.Lock()
	delete(t.clients, c)
	t.mu.Unlock()
}

// Start runs the pulse loop until ctx is done or Stop is called.
// It returns immediately; pulses fire on a background goroutine.
func (t *Tick) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stop:
				return
			case <-t.clock.After(t.every):
				t.pulse()
			}
		}
	}()
}

// Stop halts the pulse loop. Idempotent.
func (t *Tick) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		t.stopped = true
		close(t.stop)
	}
}

// pulse flushes every attached client once.
func (t *Tick) pulse() {
	t.mu.Lock()
	clients := make([]*Client, 0, len(t.clients))
	for c := range t.clients {
		clients = append(clients, c)
	}
	t.mu.Unlock()

	for _, c := range clients {
		c.Flush()
	}
}
