package bus

import (
	"reflect"
	"sync"

	"github.com/bft-labs/wirebus/pkg/log"
)

// Handler receives packets delivered on a channel. Every handler
// registered on a channel sees every packet (broadcast fan-out).
type Handler interface {
	Process(channel string, packet []byte)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(channel string, packet []byte)

// Process calls f(channel, packet).
func (f HandlerFunc) Process(channel string, packet []byte) {
	f(channel, packet)
}

// Channel is a named FIFO queue of packets with its own bundler timer
// and subscriber set. Channels are created lazily by the owning Client
// and must not be constructed directly.
type Channel struct {
	name   string
	opts   BundlerOptions
	client *Client

	mu          sync.Mutex
	queue       [][]byte
	queuedBytes int
	handlers    []Handler

	// armed and cancel track the in-flight bundler timer. cancel is
	// closed by resetBundler; the timer goroutine compares its own
	// cancel channel against the current one so a canceled flush can
	// never fire.
	armed  bool
	cancel chan struct{}

	// gen counts trump resets. A flush that took its batch before a
	// sendOnce must not restore it over the newer value.
	gen uint64
}

func newChannel(name string, opts BundlerOptions, client *Client) *Channel {
	return &Channel{
		name:   name,
		opts:   opts,
		client: client,
	}
}

// Name returns the channel name.
func (ch *Channel) Name() string { return ch.name }

// Pending returns the number of queued-but-unsent packets.
func (ch *Channel) Pending() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.queue)
}

// send appends payload to the queue tail and arms the bundler. When the
// size trigger is configured and crossed, the queue is flushed at once.
func (ch *Channel) send(payload []byte) {
	ch.mu.Lock()
	ch.queue = append(ch.queue, payload)
	ch.queuedBytes += len(payload)
	overflow := ch.opts.MaxBytes > 0 && ch.queuedBytes >= ch.opts.MaxBytes
	if !overflow {
		ch.armLocked()
	}
	ch.mu.Unlock()

	if overflow {
		ch.flush()
	}
}

// sendOnce replaces the whole pending queue with payload: only the most
// recently queued value survives until the next flush.
func (ch *Channel) sendOnce(payload []byte) {
	ch.mu.Lock()
	if len(ch.queue) > 0 {
		ch.queue = ch.queue[:0]
	}
	ch.queue = append(ch.queue, payload)
	ch.queuedBytes = len(payload)
	ch.gen++
	ch.armLocked()
	ch.mu.Unlock()
}

// sendNow bypasses queue and bundler and emits an immediate
// single-packet frame. The pending queue is untouched.
func (ch *Channel) sendNow(payload []byte) {
	ch.client.transmit(ch.name, [][]byte{payload})
}

// armLocked starts the bundler timer if it is idle. Tick-driven and
// destroyed clients never arm wall timers. Caller holds ch.mu.
func (ch *Channel) armLocked() {
	if ch.armed || ch.client.tickDriven() || !ch.client.alive() {
		return
	}
	ch.armed = true
	cancel := make(chan struct{})
	ch.cancel = cancel

	clock := ch.client.clock
	go func() {
		select {
		case <-clock.After(ch.opts.Every):
			ch.timerFlush(cancel)
		case <-cancel:
		}
	}()
}

// timerFlush is the bundler expiry path. It disarms the timer and
// flushes, unless this arm generation was canceled in the meantime.
func (ch *Channel) timerFlush(cancel chan struct{}) {
	ch.mu.Lock()
	if ch.cancel != cancel {
		// resetBundler won the race; the flush does not happen.
		ch.mu.Unlock()
		return
	}
	ch.armed = false
	ch.cancel = nil
	ch.flushLocked()
}

// flush hands the whole pending queue to the client as one batch.
func (ch *Channel) flush() {
	ch.mu.Lock()
	ch.flushLocked()
}

// flushLocked hands the pending queue to the transport. With no socket
// attached the queue is left in place untouched (reconnection resume),
// decided while still holding ch.mu so no concurrent sendOnce can slip
// between a dequeue and a restore. Otherwise the queue is taken and
// transmitted outside the lock; if the socket vanished in that window
// the batch is put back at the head of the queue, unless a trump reset
// superseded it, in which case it is dropped as stale. Caller holds
// ch.mu; the lock is released before returning.
func (ch *Channel) flushLocked() {
	if len(ch.queue) == 0 || !ch.client.connected() {
		ch.mu.Unlock()
		return
	}
	packets := ch.queue
	gen := ch.gen
	ch.queue = nil
	ch.queuedBytes = 0
	ch.mu.Unlock()

	if ch.client.transmit(ch.name, packets) {
		return
	}

	ch.mu.Lock()
	if ch.gen == gen {
		ch.queue = append(packets, ch.queue...)
		ch.queuedBytes = 0
		for _, p := range ch.queue {
			ch.queuedBytes += len(p)
		}
		ch.armLocked()
	}
	ch.mu.Unlock()
}

// resetBundler cancels an armed timer without flushing. Queue contents
// are retained so a reconnect can resume them.
func (ch *Channel) resetBundler() {
	ch.mu.Lock()
	if ch.cancel != nil {
		close(ch.cancel)
		ch.cancel = nil
		ch.armed = false
	}
	ch.mu.Unlock()
}

// startBundler arms the timer if the channel holds pending data.
func (ch *Channel) startBundler() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.queue) == 0 {
		return false
	}
	ch.armLocked()
	return true
}

// addHandler registers h without disturbing an in-flight dispatch.
func (ch *Channel) addHandler(h Handler) {
	ch.mu.Lock()
	ch.handlers = append(ch.handlers, h)
	ch.mu.Unlock()
}

// removeHandler removes every registration equal to h. Missing handlers
// are a no-op.
func (ch *Channel) removeHandler(h Handler) {
	ch.mu.Lock()
	kept := ch.handlers[:0]
	for _, reg := range ch.handlers {
		if !handlerEq(reg, h) {
			kept = append(kept, reg)
		}
	}
	ch.handlers = kept
	ch.mu.Unlock()
}

// handleData delivers every packet, in order, to every registered
// handler. A failing handler is isolated: delivery continues to the
// remaining handlers and packets.
func (ch *Channel) handleData(packets [][]byte) {
	ch.mu.Lock()
	handlers := append([]Handler(nil), ch.handlers...)
	ch.mu.Unlock()

	if len(handlers) == 0 {
		// Zero handlers is legal; the data is simply undelivered.
		return
	}
	for _, p := range packets {
		for _, h := range handlers {
			ch.dispatch(h, p)
		}
	}
}

func (ch *Channel) dispatch(h Handler, packet []byte) {
	defer func() {
		if r := recover(); r != nil {
			ch.client.logger.Error("handler panic",
				log.String("channel", ch.name),
				log.Any("panic", r))
		}
	}()
	h.Process(ch.name, packet)
}

// handlerEq reports whether two handler registrations are the same
// handler. Function handlers (HandlerFunc) compare by code pointer, so
// removing requires the same function value that was registered.
func handlerEq(a, b Handler) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Kind() == reflect.Func {
		return va.Pointer() == vb.Pointer()
	}
	if !va.Comparable() {
		return false
	}
	return a == b
}
