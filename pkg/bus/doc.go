// Package bus implements the wirebus core: named channels of packets
// multiplexed over a single transport connection, with timer-driven
// batching and broadcast fan-out dispatch.
//
// # Clients and channels
//
// A [Client] owns one socket and a set of named [Channel]s. Channels are
// created lazily on first Subscribe or Send and live until the client is
// destroyed. Outbound packets accumulate in a per-channel FIFO queue;
// an armed bundler timer flushes the whole queue as one frame, amortizing
// per-frame transport and encoding cost across bursts of sends.
//
//	client, err := bus.NewClient(bus.DefaultOptions())
//	if err != nil {
//	    // unknown adapter/encoder names fail here, not at first use
//	}
//	client.Use(nil) // dial via the configured adapter
//	client.Subscribe("scores", bus.HandlerFunc(onScore), nil)
//	client.Send("scores", payload)
//
// SendOnce applies trump semantics: the pending queue is replaced by the
// newest value, for latest-state-wins feeds where superseded values are
// worthless. SendNow bypasses queue and bundler entirely and emits an
// immediate single-packet frame.
//
// # Delivery characteristics
//
// The bus is fire-and-forget. Transport and protocol failures surface as
// error events, never as errors from the send family, and malformed or
// unroutable inbound frames are dropped silently. There is no
// backpressure: a producer that outruns the transport grows the pending
// queue without bound. Callers needing bounded memory must bound their
// own production rate or use SendOnce.
//
// Ordering is guaranteed within a channel batch only. Nothing is
// guaranteed across channels, nor between a SendNow frame and a
// concurrently flushing bundled batch.
//
// # Reconnection
//
// On disconnect the socket reference is cleared and sends keep queueing.
// When a new socket is attached, every channel holding pending data has
// its bundler restarted, so buffered packets are eventually delivered
// exactly once after resume.
package bus
