// Package unixsock provides the local-IPC transport adapter for
// wirebus, using unix domain stream sockets with the same
// length-prefixed framing as the tcp adapter.
//
// The peer's Hostname is interpreted as the socket path; Port is
// ignored. Importing the package registers the adapter under the name
// "unix".
package unixsock

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/bft-labs/wirebus/internal/netframe"
	"github.com/bft-labs/wirebus/pkg/adapter"
)

// Name is the registry name of this adapter.
const Name = "unix"

var errWrongSocket = errors.New("unixsock: socket was not created by this adapter")

func init() {
	adapter.Register(Name, New())
}

// Adapter implements adapter.Adapter over unix domain sockets.
type Adapter struct {
	mu        sync.Mutex
	listeners []net.Listener
}

// New creates an unregistered Adapter instance.
func New() *Adapter {
	return &Adapter{}
}

// CreateSocket dials the socket path from the peer's Hostname unless
// existing carries an accepted connection to adopt.
func (a *Adapter) CreateSocket(p adapter.Peer, existing adapter.Socket) (adapter.Socket, error) {
	if existing != nil {
		sock, ok := existing.(*netframe.Socket)
		if !ok {
			return nil, errWrongSocket
		}
		go sock.ReadLoop(p)
		return sock, nil
	}

	conn, err := net.DialTimeout("unix", p.Hostname(), p.SocketTimeout())
	if err != nil {
		return nil, err
	}
	sock := netframe.NewSocket(conn)
	go sock.ReadLoop(p)
	return sock, nil
}

// Send transmits one encoded frame.
func (a *Adapter) Send(s adapter.Socket, frame []byte) error {
	sock, ok := s.(*netframe.Socket)
	if !ok {
		return errWrongSocket
	}
	return sock.Send(frame)
}

// Disconnect closes the socket. Idempotent.
func (a *Adapter) Disconnect(s adapter.Socket) error {
	if s == nil {
		return nil
	}
	return s.Close()
}

// Listen accepts connections on the socket at path and hands each
// accepted socket to accept.
func (a *Adapter) Listen(path string, accept func(adapter.Socket)) error {
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.listeners = append(a.listeners, ln)
	a.mu.Unlock()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accept(netframe.NewSocket(conn))
		}
	}()
	return nil
}

// Stop closes all listeners opened through Listen.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	listeners := a.listeners
	a.listeners = nil
	a.mu.Unlock()

	var firstErr error
	for _, ln := range listeners {
		if err := ln.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
