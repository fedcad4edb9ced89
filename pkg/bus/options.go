package bus

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/wirebus/pkg/adapter"
	"github.com/bft-labs/wirebus/pkg/log"
)

// BundlerOptions control per-channel batching. Zero fields inherit the
// next configuration layer (built-in defaults < client options <
// per-channel subscribe options).
type BundlerOptions struct {
	// Every is the batching interval: how long a channel accumulates
	// sends before flushing them as one frame.
	Every time.Duration

	// MaxBytes flushes the queue early once the pending payload bytes
	// reach this threshold. Zero disables the size trigger.
	MaxBytes int
}

// merged returns b overlaid with the non-zero fields of over.
func (b BundlerOptions) merged(over *BundlerOptions) BundlerOptions {
	if over == nil {
		return b
	}
	out := b
	if over.Every > 0 {
		out.Every = over.Every
	}
	if over.MaxBytes > 0 {
		out.MaxBytes = over.MaxBytes
	}
	return out
}

// Options holds client configuration. Use DefaultOptions for a Config
// with working defaults; zero fields are filled by SetDefaults at
// construction.
type Options struct {
	// Hostname and Port identify the remote endpoint for self-initiated
	// connections. Ignored for adopted (server-spawned) sockets.
	Hostname string
	Port     int

	// Adapter names the registered transport, Encoder the registered
	// codec. Both are resolved eagerly at construction.
	Adapter string
	Encoder string

	// Bundler holds the client-level batching defaults, overridable per
	// channel at Subscribe.
	Bundler BundlerOptions

	// Stats enables per-batch {packets, bytes} telemetry: prometheus
	// counters plus OnStats events.
	Stats bool

	// SocketTimeout bounds adapter dial and write deadlines.
	SocketTimeout time.Duration
}

// DefaultOptions returns Options with working defaults.
func DefaultOptions() Options {
	return Options{
		Hostname:      "localhost",
		Port:          7341,
		Adapter:       "tcp",
		Encoder:       "json",
		Bundler:       BundlerOptions{Every: 50 * time.Millisecond},
		SocketTimeout: 15 * time.Second,
	}
}

// SetDefaults fills zero fields from DefaultOptions.
func (o *Options) SetDefaults() {
	def := DefaultOptions()
	if o.Hostname == "" {
		o.Hostname = def.Hostname
	}
	if o.Port == 0 {
		o.Port = def.Port
	}
	if o.Adapter == "" {
		o.Adapter = def.Adapter
	}
	if o.Encoder == "" {
		o.Encoder = def.Encoder
	}
	if o.Bundler.Every <= 0 {
		o.Bundler.Every = def.Bundler.Every
	}
	if o.SocketTimeout <= 0 {
		o.SocketTimeout = def.SocketTimeout
	}
}

// Validate checks the configuration after defaults are applied.
func (o *Options) Validate() error {
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("port %d out of range", o.Port)
	}
	if o.Bundler.Every <= 0 {
		return fmt.Errorf("bundler interval must be positive")
	}
	if o.Bundler.MaxBytes < 0 {
		return fmt.Errorf("bundler max bytes must not be negative")
	}
	return nil
}

// Option configures optional behavior of a Client.
type Option func(*clientOptions)

type clientOptions struct {
	logger   log.Logger
	events   EventHandler
	clock    clockwork.Clock
	tick     *Tick
	registry prometheus.Registerer
	socket   adapter.Socket
}

func defaultClientOptions() clientOptions {
	return clientOptions{
		logger:   log.NewNoopLogger(),
		clock:    clockwork.NewRealClock(),
		registry: prometheus.DefaultRegisterer,
	}
}

// WithLogger sets a custom logger. The default discards all output.
func WithLogger(logger log.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithEventHandler sets an observer for lifecycle and telemetry events.
// Events are delivered synchronously; implementations should return
// quickly to avoid stalling flushes.
func WithEventHandler(h EventHandler) Option {
	return func(o *clientOptions) {
		o.events = h
	}
}

// WithClock injects the clock driving bundler timers. Tests use a fake
// clock to advance batching time deterministically.
func WithClock(clock clockwork.Clock) Option {
	return func(o *clientOptions) {
		o.clock = clock
	}
}

// WithTick attaches the client to an externally owned scheduling pulse.
// Tick-driven clients do not arm per-channel timers; the Tick flushes
// all attached clients on each pulse.
func WithTick(t *Tick) Option {
	return func(o *clientOptions) {
		o.tick = t
	}
}

// WithMetricsRegistry sets the prometheus registry for stats counters.
// Defaults to prometheus.DefaultRegisterer. Clients sharing a registry
// share the counters.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(o *clientOptions) {
		o.registry = reg
	}
}

// WithSocket adopts an already-established socket, marking the client
// as server-spawned. The socket is attached through the adapter's
// CreateSocket, same as a Use call.
func WithSocket(s adapter.Socket) Option {
	return func(o *clientOptions) {
		o.socket = s
	}
}
