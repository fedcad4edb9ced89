// Package wirebus multiplexes named pub/sub channels over a single
// transport connection, batching outbound packets per channel.
//
// Example usage:
//
//	opts := wirebus.DefaultOptions()
//	opts.Hostname = "bus.example.com"
//	client, err := wirebus.NewClient(opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client.Subscribe("chat", wirebus.HandlerFunc(func(channel string, packet []byte) {
//	    fmt.Printf("%s: %s\n", channel, packet)
//	}), nil)
//	client.Use(nil)
//	client.Send("chat", []byte("hello"))
//
// Transports and codecs register themselves on import:
//
//	import (
//	    _ "github.com/bft-labs/wirebus/pkg/adapter/tcp"
//	    _ "github.com/bft-labs/wirebus/pkg/encoder/jsoncodec"
//	)
package wirebus

import (
	"time"

	"github.com/bft-labs/wirebus/pkg/bus"
)

// Client multiplexes named channels over one transport socket.
type Client = bus.Client

// Options holds client configuration.
type Options = bus.Options

// BundlerOptions control per-channel batching.
type BundlerOptions = bus.BundlerOptions

// Option configures optional behavior of a Client.
type Option = bus.Option

// Handler consumes inbound packets.
type Handler = bus.Handler

// HandlerFunc adapts a plain function to a Handler.
type HandlerFunc = bus.HandlerFunc

// EventHandler observes client lifecycle and telemetry events.
type EventHandler = bus.EventHandler

// BaseEventHandler is a no-op EventHandler for embedding.
type BaseEventHandler = bus.BaseEventHandler

// Tick is a shared flush pulse for many clients.
type Tick = bus.Tick

// NewClient creates a client from opts. See bus.NewClient.
func NewClient(opts Options, options ...Option) (*Client, error) {
	return bus.NewClient(opts, options...)
}

// DefaultOptions returns Options with working defaults.
func DefaultOptions() Options {
	return bus.DefaultOptions()
}

// NewTick creates a flush pulse with the given interval.
func NewTick(every time.Duration) *Tick {
	return bus.NewTick(every)
}
