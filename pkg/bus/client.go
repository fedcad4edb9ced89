package bus

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/bft-labs/wirebus/pkg/adapter"
	"github.com/bft-labs/wirebus/pkg/encoder"
	"github.com/bft-labs/wirebus/pkg/log"
)

// Client multiplexes named channels over one transport socket. It
// orchestrates subscription, the three send variants, connection
// lifecycle, and hands serialized batches to the adapter through the
// encoder.
//
// All methods are safe for concurrent use. The send family returns the
// client for chaining and never returns an error: transport and
// protocol failures surface through the error event only.
type Client struct {
	id      string
	opts    Options
	adapter adapter.Adapter
	encoder encoder.Encoder

	logger  log.Logger
	events  EventHandler
	clock   clockwork.Clock
	tick    *Tick
	metrics *statsMetrics

	mu            sync.RWMutex
	channels      map[string]*Channel
	socket        adapter.Socket
	serverSpawned bool
	destroyed     bool
}

// NewClient creates a client from opts. Adapter and encoder names are
// resolved eagerly: an unregistered name fails here with
// ErrInvalidConfig rather than degrading silently at first use.
//
// The client holds no socket yet; call Use to dial or adopt one, or
// pass WithSocket for server-spawned instances.
func NewClient(opts Options, options ...Option) (*Client, error) {
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	ad, err := adapter.Lookup(opts.Adapter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	enc, err := encoder.Lookup(opts.Encoder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	co := defaultClientOptions()
	for _, opt := range options {
		opt(&co)
	}

	c := &Client{
		id:       newID(),
		opts:     opts,
		adapter:  ad,
		encoder:  enc,
		logger:   co.logger,
		events:   co.events,
		clock:    co.clock,
		tick:     co.tick,
		channels: make(map[string]*Channel),
	}
	if opts.Stats {
		c.metrics = newStatsMetrics(co.registry)
	}
	if c.tick != nil {
		c.tick.Attach(c)
	}
	if co.socket != nil {
		c.Use(co.socket)
	}
	return c, nil
}

// ID returns the client identity token.
func (c *Client) ID() string { return c.id }

// ServerSpawned reports whether the client adopted a socket handed over
// by a server-side owner rather than dialing itself.
func (c *Client) ServerSpawned() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverSpawned
}

// Subscribe idempotently creates the named channel, merging opts over
// the client bundler defaults, and attaches handler if non-nil.
// Repeated calls with the same name operate on the same channel; the
// per-channel options of the first creation win.
func (c *Client) Subscribe(name string, handler Handler, opts *BundlerOptions) *Client {
	ch := c.channel(name, opts)
	if handler != nil {
		ch.addHandler(handler)
	}
	return c
}

// Unsubscribe removes handler from the named channel. A channel that
// was never created is a no-op, not an error. HandlerFunc handlers are
// matched by code pointer: closures created from the same function
// literal count as the same handler and are all removed.
func (c *Client) Unsubscribe(name string, handler Handler) *Client {
	c.mu.RLock()
	ch := c.channels[name]
	c.mu.RUnlock()
	if ch != nil {
		ch.removeHandler(handler)
	}
	return c
}

// Use attaches a socket. A nil existing dials the configured endpoint
// through the adapter; a non-nil existing adopts a server-accepted
// connection and marks the client server-spawned. Any previously
// attached socket is disconnected first: exactly one socket is live at
// a time. Dial failures are reported through the error event.
func (c *Client) Use(existing adapter.Socket) *Client {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		c.HandleError(ErrDestroyed)
		return c
	}
	if c.socket != nil {
		_ = c.adapter.Disconnect(c.socket)
		c.socket = nil
	}
	if existing != nil {
		c.serverSpawned = true
	}
	c.mu.Unlock()

	sock, err := c.adapter.CreateSocket(c, existing)
	if err != nil {
		c.HandleError(err)
		return c
	}
	c.HandleConnect(sock)
	return c
}

// Send appends payload to the named channel's queue, creating the
// channel if needed, and arms its bundler.
func (c *Client) Send(name string, payload []byte) *Client {
	c.channel(name, nil).send(payload)
	return c
}

// SendOnce queues payload with trump semantics: any not-yet-sent
// packets on the channel are discarded and only payload survives until
// the next flush.
func (c *Client) SendOnce(name string, payload []byte) *Client {
	c.channel(name, nil).sendOnce(payload)
	return c
}

// SendNow bypasses the channel queue and bundler and transmits payload
// immediately as a single-packet frame.
func (c *Client) SendNow(name string, payload []byte) *Client {
	c.channel(name, nil).sendNow(payload)
	return c
}

// Flush hands every channel's pending queue to the transport now. It
// is the flush entry point for tick-coordinated clients and may be
// called directly to short-circuit the batching interval.
func (c *Client) Flush() {
	for _, ch := range c.snapshot() {
		ch.flush()
	}
}

// HandleConnect attaches sock and restarts the bundler of every channel
// holding buffered-but-unsent packets, so no channel is left stalled
// after a reconnection.
func (c *Client) HandleConnect(sock adapter.Socket) {
	c.mu.Lock()
	c.socket = sock
	c.mu.Unlock()

	resumed := 0
	for _, ch := range c.snapshot() {
		if ch.startBundler() {
			resumed++
		}
	}
	c.logger.Info("socket connected",
		log.String("client", c.id),
		log.Int("resumed_channels", resumed))
	if c.events != nil {
		c.events.OnConnect(ConnectEvent{Resumed: resumed})
	}
}

// HandleDisconnect clears the socket reference. Subsequent sends keep
// accumulating in channel queues until a reconnection.
func (c *Client) HandleDisconnect() {
	c.mu.Lock()
	c.socket = nil
	c.mu.Unlock()

	c.logger.Info("socket disconnected", log.String("client", c.id))
	if c.events != nil {
		c.events.OnDisconnect(DisconnectEvent{})
	}
}

// HandleError reports a non-fatal failure through the error event. It
// never panics and never interrupts the client.
func (c *Client) HandleError(err error) {
	if err == nil {
		return
	}
	c.logger.Error("bus error", log.String("client", c.id), log.Err(err))
	if c.events != nil {
		c.events.OnError(err)
	}
}

// HandleRequest decodes one inbound frame and routes its packets to the
// matching channel's dispatch. Undecodable frames and frames addressed
// to unknown channels are dropped silently, counted when stats are on.
func (c *Client) HandleRequest(frame []byte) {
	f, ok := c.encoder.Decode(frame)
	if !ok {
		c.dropFrame("undecodable frame")
		return
	}
	c.mu.RLock()
	ch := c.channels[f.Channel]
	c.mu.RUnlock()
	if ch == nil {
		c.dropFrame("unknown channel " + f.Channel)
		return
	}
	ch.handleData(f.Packets)
}

// Destroy disconnects the socket, cancels every channel's bundler, and
// detaches from the tick. The client is unusable afterwards; sends
// still queue but are never transmitted.
func (c *Client) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	sock := c.socket
	c.socket = nil
	c.mu.Unlock()

	if sock != nil {
		_ = c.adapter.Disconnect(sock)
	}
	for _, ch := range c.snapshot() {
		ch.resetBundler()
	}
	if c.tick != nil {
		c.tick.Detach(c)
	}
	c.logger.Info("client destroyed", log.String("client", c.id))
}

// Hostname implements adapter.Peer.
func (c *Client) Hostname() string { return c.opts.Hostname }

// Port implements adapter.Peer.
func (c *Client) Port() int { return c.opts.Port }

// SocketTimeout implements adapter.Peer.
func (c *Client) SocketTimeout() time.Duration { return c.opts.SocketTimeout }

// channel returns the named channel, creating it lazily with opts
// merged over the client bundler defaults.
func (c *Client) channel(name string, opts *BundlerOptions) *Channel {
	c.mu.RLock()
	ch := c.channels[name]
	c.mu.RUnlock()
	if ch != nil {
		return ch
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ch = c.channels[name]; ch != nil {
		return ch
	}
	ch = newChannel(name, c.opts.Bundler.merged(opts), c)
	c.channels[name] = ch
	return ch
}

// transmit encodes one (channel, packets) frame and hands it to the
// adapter. It reports false only when no socket is attached, so the
// caller can retain the batch; encode and send failures consume the
// batch (fire-and-forget) and surface as error events.
func (c *Client) transmit(name string, packets [][]byte) bool {
	c.mu.RLock()
	sock := c.socket
	c.mu.RUnlock()
	if sock == nil {
		return false
	}

	data, err := c.encoder.Encode(encoder.Frame{Channel: name, Packets: packets})
	if err != nil {
		c.HandleError(err)
		return true
	}
	if err := c.adapter.Send(sock, data); err != nil {
		c.HandleError(err)
		return true
	}

	if c.metrics != nil {
		c.metrics.recordBatch(name, len(packets), len(data))
	}
	if c.opts.Stats && c.events != nil {
		c.events.OnStats(StatsEvent{Channel: name, Packets: len(packets), Bytes: len(data)})
	}
	return true
}

func (c *Client) dropFrame(reason string) {
	c.logger.Debug("frame dropped", log.String("client", c.id), log.String("reason", reason))
	if c.metrics != nil {
		c.metrics.recordDropped()
	}
}

func (c *Client) snapshot() []*Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

func (c *Client) tickDriven() bool { return c.tick != nil }

func (c *Client) connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.socket != nil
}

func (c *Client) alive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.destroyed
}

func newID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "client-unknown"
	}
	return hex.EncodeToString(b[:])
}
