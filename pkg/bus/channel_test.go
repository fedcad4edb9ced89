package bus

import (
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
)

func TestChannelBatchOrder(t *testing.T) {
	fa, fe, opts := registerFakes(t)
	fc := clockwork.NewFakeClock()

	c, err := NewClient(opts, WithClock(fc))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()
	c.Use(nil)

	c.Send("orders", []byte("a"))
	c.Send("orders", []byte("b"))
	c.Send("orders", []byte("c"))

	if n := fa.frameCount(); n != 0 {
		t.Fatalf("frames before interval = %d, want 0", n)
	}

	fc.BlockUntil(1)
	fc.Advance(opts.Bundler.Every)

	eventually(t, func() bool { return fa.frameCount() == 1 }, "batch was not flushed")

	frames := fa.decoded(t, fe)
	if frames[0].Channel != "orders" {
		t.Errorf("channel = %q, want orders", frames[0].Channel)
	}
	want := []string{"a", "b", "c"}
	if len(frames[0].Packets) != len(want) {
		t.Fatalf("packets = %d, want %d", len(frames[0].Packets), len(want))
	}
	for i, w := range want {
		if string(frames[0].Packets[i]) != w {
			t.Errorf("packet[%d] = %q, want %q", i, frames[0].Packets[i], w)
		}
	}
}

func TestSendOnceTrumpsQueue(t *testing.T) {
	fa, fe, opts := registerFakes(t)
	fc := clockwork.NewFakeClock()

	c, err := NewClient(opts, WithClock(fc))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()
	c.Use(nil)

	c.Send("state", []byte("v1"))
	c.Send("state", []byte("v2"))
	c.SendOnce("state", []byte("v3"))
	c.SendOnce("state", []byte("v4"))

	fc.BlockUntil(1)
	fc.Advance(opts.Bundler.Every)

	eventually(t, func() bool { return fa.frameCount() == 1 }, "batch was not flushed")

	frames := fa.decoded(t, fe)
	if len(frames[0].Packets) != 1 {
		t.Fatalf("packets = %d, want 1", len(frames[0].Packets))
	}
	if got := string(frames[0].Packets[0]); got != "v4" {
		t.Errorf("surviving packet = %q, want v4", got)
	}
}

func TestSendNowBypassesBundler(t *testing.T) {
	fa, fe, opts := registerFakes(t)
	fc := clockwork.NewFakeClock()

	c, err := NewClient(opts, WithClock(fc))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()
	c.Use(nil)

	c.Send("mixed", []byte("queued"))
	c.SendNow("mixed", []byte("urgent"))

	if n := fa.frameCount(); n != 1 {
		t.Fatalf("frames = %d, want 1 immediate frame", n)
	}
	frames := fa.decoded(t, fe)
	if len(frames[0].Packets) != 1 || string(frames[0].Packets[0]) != "urgent" {
		t.Errorf("immediate frame = %v, want [urgent]", frames[0].Packets)
	}

	// The queued packet is untouched and still flushes on the interval.
	fc.BlockUntil(1)
	fc.Advance(opts.Bundler.Every)
	eventually(t, func() bool { return fa.frameCount() == 2 }, "queued packet was not flushed")

	frames = fa.decoded(t, fe)
	if len(frames[1].Packets) != 1 || string(frames[1].Packets[0]) != "queued" {
		t.Errorf("interval frame = %v, want [queued]", frames[1].Packets)
	}
}

func TestSizeTriggerFlushesEarly(t *testing.T) {
	fa, fe, opts := registerFakes(t)
	opts.Bundler.MaxBytes = 8

	c, err := NewClient(opts, WithClock(clockwork.NewFakeClock()))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()
	c.Use(nil)

	c.Send("bulk", []byte("1234"))
	if n := fa.frameCount(); n != 0 {
		t.Fatalf("frames below threshold = %d, want 0", n)
	}

	c.Send("bulk", []byte("5678"))
	if n := fa.frameCount(); n != 1 {
		t.Fatalf("frames at threshold = %d, want 1", n)
	}

	frames := fa.decoded(t, fe)
	if len(frames[0].Packets) != 2 {
		t.Errorf("packets = %d, want 2", len(frames[0].Packets))
	}
}

func TestHandleDataFanout(t *testing.T) {
	_, fe, opts := registerFakes(t)

	c, err := NewClient(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()

	var mu sync.Mutex
	var first, second []string
	c.Subscribe("feed", HandlerFunc(func(channel string, packet []byte) {
		mu.Lock()
		first = append(first, string(packet))
		mu.Unlock()
	}), nil)
	c.Subscribe("feed", HandlerFunc(func(channel string, packet []byte) {
		mu.Lock()
		second = append(second, string(packet))
		mu.Unlock()
	}), nil)

	raw, err := fe.Encode(encoderFrame("feed", "x", "y"))
	if err != nil {
		t.Fatal(err)
	}
	c.HandleRequest(raw)

	mu.Lock()
	defer mu.Unlock()
	for name, got := range map[string][]string{"first": first, "second": second} {
		if len(got) != 2 || got[0] != "x" || got[1] != "y" {
			t.Errorf("%s handler received %v, want [x y]", name, got)
		}
	}
}

func TestHandlerPanicIsolation(t *testing.T) {
	_, fe, opts := registerFakes(t)

	c, err := NewClient(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()

	var mu sync.Mutex
	var survived []string
	c.Subscribe("feed", HandlerFunc(func(channel string, packet []byte) {
		panic("handler bug")
	}), nil)
	c.Subscribe("feed", HandlerFunc(func(channel string, packet []byte) {
		mu.Lock()
		survived = append(survived, string(packet))
		mu.Unlock()
	}), nil)

	raw, err := fe.Encode(encoderFrame("feed", "x", "y"))
	if err != nil {
		t.Fatal(err)
	}
	c.HandleRequest(raw)

	mu.Lock()
	defer mu.Unlock()
	if len(survived) != 2 {
		t.Errorf("surviving handler received %d packets, want 2", len(survived))
	}
}

type countingHandler struct {
	mu sync.Mutex
	n  int
}

func (h *countingHandler) Process(channel string, packet []byte) {
	h.mu.Lock()
	h.n++
	h.mu.Unlock()
}

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n
}

func TestUnsubscribeRemovesByIdentity(t *testing.T) {
	_, fe, opts := registerFakes(t)

	c, err := NewClient(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()

	kept := &countingHandler{}
	removed := &countingHandler{}
	c.Subscribe("feed", kept, nil)
	c.Subscribe("feed", removed, nil)
	c.Unsubscribe("feed", removed)

	raw, err := fe.Encode(encoderFrame("feed", "x"))
	if err != nil {
		t.Fatal(err)
	}
	c.HandleRequest(raw)

	if kept.count() != 1 {
		t.Errorf("kept handler count = %d, want 1", kept.count())
	}
	if removed.count() != 0 {
		t.Errorf("removed handler count = %d, want 0", removed.count())
	}
}

func TestSendOnceRacingDisconnectedFlush(t *testing.T) {
	_, _, opts := registerFakes(t)

	c, err := NewClient(opts, WithClock(clockwork.NewFakeClock()))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()

	// No socket attached: flushes must leave the queue alone, so a
	// concurrent trump can never be undone by a batch restore.
	ch := c.channel("state", nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			ch.flush()
		}
	}()

	for i := 0; i < 2000; i++ {
		c.SendOnce("state", []byte("latest"))
		if p := ch.Pending(); p > 1 {
			t.Fatalf("iteration %d: pending = %d after sendOnce, want <= 1", i, p)
		}
	}
	<-done

	if p := ch.Pending(); p != 1 {
		t.Errorf("pending = %d, want 1 (queue retained while disconnected)", p)
	}
}

func TestHandlerEq(t *testing.T) {
	f := HandlerFunc(func(string, []byte) {})
	g := HandlerFunc(func(string, []byte) {})
	h1 := &countingHandler{}
	h2 := &countingHandler{}

	// Distinct closures from one literal share a code pointer and are
	// the same handler for removal purposes.
	mk := func() Handler { return HandlerFunc(func(string, []byte) {}) }
	c1, c2 := mk(), mk()

	tests := []struct {
		name string
		a, b Handler
		want bool
	}{
		{"same func value", f, f, true},
		{"different funcs", f, g, false},
		{"closures from one literal", c1, c2, true},
		{"same pointer", h1, h1, true},
		{"different pointers", h1, h2, false},
		{"both nil", nil, nil, true},
		{"one nil", f, nil, false},
		{"func vs pointer", f, h1, false},
	}

	for _, tt := range tests {
		if got := handlerEq(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: handlerEq = %v, want %v", tt.name, got, tt.want)
		}
	}
}
