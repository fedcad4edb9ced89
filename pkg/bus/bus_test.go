package bus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/wirebus/pkg/adapter"
	"github.com/bft-labs/wirebus/pkg/encoder"
)

// fakeSocket implements adapter.Socket for testing.
type fakeSocket struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeAdapter records transmitted frames and lets tests inject dial and
// send failures.
type fakeAdapter struct {
	mu      sync.Mutex
	frames  [][]byte
	dialErr error
	sendErr error
	peer    adapter.Peer
}

func (a *fakeAdapter) CreateSocket(p adapter.Peer, existing adapter.Socket) (adapter.Socket, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.peer = p
	if a.dialErr != nil {
		return nil, a.dialErr
	}
	if existing != nil {
		return existing, nil
	}
	return &fakeSocket{}, nil
}

func (a *fakeAdapter) Send(s adapter.Socket, frame []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sendErr != nil {
		return a.sendErr
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	a.frames = append(a.frames, cp)
	return nil
}

func (a *fakeAdapter) Disconnect(s adapter.Socket) error {
	if s == nil {
		return nil
	}
	return s.Close()
}

func (a *fakeAdapter) Stop(ctx context.Context) error { return nil }

func (a *fakeAdapter) frameCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.frames)
}

func (a *fakeAdapter) setSendErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sendErr = err
}

// decoded returns every recorded frame decoded through enc.
func (a *fakeAdapter) decoded(t *testing.T, enc encoder.Encoder) []encoder.Frame {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]encoder.Frame, 0, len(a.frames))
	for _, raw := range a.frames {
		f, ok := enc.Decode(raw)
		if !ok {
			t.Fatalf("recorded frame did not decode: %q", raw)
		}
		out = append(out, f)
	}
	return out
}

type fakeWireFrame struct {
	Channel string   `json:"channel"`
	Packets [][]byte `json:"packets"`
}

// fakeEncoder is a JSON codec with an injectable encode failure.
type fakeEncoder struct {
	mu        sync.Mutex
	encodeErr error
}

func (e *fakeEncoder) Encode(f encoder.Frame) ([]byte, error) {
	e.mu.Lock()
	err := e.encodeErr
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return json.Marshal(fakeWireFrame{Channel: f.Channel, Packets: f.Packets})
}

func (e *fakeEncoder) Decode(b []byte) (encoder.Frame, bool) {
	var w fakeWireFrame
	if err := json.Unmarshal(b, &w); err != nil {
		return encoder.Frame{}, false
	}
	return encoder.Frame{Channel: w.Channel, Packets: w.Packets}, true
}

func (e *fakeEncoder) setEncodeErr(err error) {
	e.mu.Lock()
	e.encodeErr = err
	e.mu.Unlock()
}

// recEvents records every event for assertions.
type recEvents struct {
	mu          sync.Mutex
	connects    []ConnectEvent
	disconnects int
	errs        []error
	stats       []StatsEvent
}

func (r *recEvents) OnConnect(e ConnectEvent) {
	r.mu.Lock()
	r.connects = append(r.connects, e)
	r.mu.Unlock()
}

func (r *recEvents) OnDisconnect(e DisconnectEvent) {
	r.mu.Lock()
	r.disconnects++
	r.mu.Unlock()
}

func (r *recEvents) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recEvents) OnStats(e StatsEvent) {
	r.mu.Lock()
	r.stats = append(r.stats, e)
	r.mu.Unlock()
}

func (r *recEvents) errCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

// registerFakes registers one fake adapter/encoder pair under names
// unique to the running test (the registries reject duplicates) and
// returns Options resolving to them.
func registerFakes(t *testing.T) (*fakeAdapter, *fakeEncoder, Options) {
	t.Helper()
	fa := &fakeAdapter{}
	fe := &fakeEncoder{}
	adapterName := "test-adapter/" + t.Name()
	encoderName := "test-encoder/" + t.Name()
	adapter.Register(adapterName, fa)
	encoder.Register(encoderName, fe)

	opts := DefaultOptions()
	opts.Adapter = adapterName
	opts.Encoder = encoderName
	return fa, fe, opts
}

// encoderFrame builds a Frame from string packets.
func encoderFrame(channel string, packets ...string) encoder.Frame {
	f := encoder.Frame{Channel: channel}
	for _, p := range packets {
		f.Packets = append(f.Packets, []byte(p))
	}
	return f
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}
