// Package encoder defines the pluggable codec contract that converts a
// (channel, packets) frame to and from wire bytes.
//
// The bus core resolves an Encoder by name at client construction and
// never inspects wire bytes itself. Malformed inbound data is reported
// by Decode returning ok=false; the core drops such frames silently.
package encoder

// Frame is the logical wire unit: a channel name and an ordered sequence
// of opaque payloads batched into one transmission.
type Frame struct {
	// Channel is the logical channel name the packets belong to. It is
	// never empty on the wire: codecs reject a frame with an empty
	// channel name on decode.
	Channel string

	// Packets are the payloads in enqueue order.
	Packets [][]byte
}

// Encoder converts frames to and from wire bytes.
//
// Decode must not panic on arbitrary input. It returns ok=false for
// input it cannot interpret; it must never return ok=true with a
// partially decoded frame.
type Encoder interface {
	Encode(f Frame) ([]byte, error)
	Decode(data []byte) (Frame, bool)
}
