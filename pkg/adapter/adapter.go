// Package adapter defines the pluggable transport contract for wirebus.
//
// An Adapter owns everything transport-specific: dialing, framing on
// stream transports, datagram sizing, listener teardown. The bus core
// only ever calls the four-method contract below and never branches on
// transport kind.
package adapter

import (
	"context"
	"time"
)

// Socket is an opaque transport connection handle. Concrete adapters
// return their own socket types and type-assert them back in Send and
// Disconnect.
type Socket interface {
	Close() error
}

// Peer is the narrow view of a bus client that adapters need: dial
// parameters and the inbound delivery callbacks. Inbound frames and
// transport failures are pushed through these methods from the
// adapter's read loop.
type Peer interface {
	// Hostname and Port identify the remote endpoint for dialing.
	Hostname() string
	Port() int

	// SocketTimeout bounds dial and per-operation deadlines.
	SocketTimeout() time.Duration

	// HandleRequest delivers one raw inbound frame.
	HandleRequest(frame []byte)

	// HandleError reports a non-fatal transport failure.
	HandleError(err error)

	// HandleDisconnect reports that the socket is gone.
	HandleDisconnect()
}

// Adapter is the uniform transport contract.
//
// Send is fire-and-forget: no acknowledgment is modeled and a returned
// error means only that the local write failed. Disconnect must be
// idempotent. Stop releases listening-side resources held by the
// adapter and is invoked by an external process-lifecycle owner at
// shutdown.
type Adapter interface {
	// CreateSocket dials a new connection for the peer, or adopts
	// existing when a server-side owner hands over an accepted
	// connection. The adapter starts its read loop before returning.
	CreateSocket(p Peer, existing Socket) (Socket, error)

	// Send transmits one encoded frame on the socket.
	Send(s Socket, frame []byte) error

	// Disconnect tears the socket down. Safe to call repeatedly.
	Disconnect(s Socket) error

	// Stop releases listeners and other server-side resources.
	Stop(ctx context.Context) error
}
