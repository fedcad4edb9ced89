// Package tcp provides the stream transport adapter for wirebus.
//
// Frames are length-prefixed on the wire (4-byte big-endian length
// followed by the frame bytes). Importing the package registers the
// adapter under the name "tcp".
package tcp

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	"github.com/bft-labs/wirebus/internal/netframe"
	"github.com/bft-labs/wirebus/pkg/adapter"
)

// Name is the registry name of this adapter.
const Name = "tcp"

var errWrongSocket = errors.New("tcp: socket was not created by this adapter")

func init() {
	adapter.Register(Name, New())
}

// Adapter implements adapter.Adapter over TCP.
type Adapter struct {
	mu        sync.Mutex
	listeners []net.Listener
}

// New creates an unregistered Adapter instance. Most callers use the
// registry; direct construction is for servers that keep a private
// listener set.
func New() *Adapter {
	return &Adapter{}
}

// CreateSocket dials hostname:port unless existing carries an accepted
// connection to adopt. Either way the read loop is started before
// returning.
func (a *Adapter) CreateSocket(p adapter.Peer, existing adapter.Socket) (adapter.Socket, error) {
	if existing != nil {
		sock, ok := existing.(*netframe.Socket)
		if !ok {
			return nil, errWrongSocket
		}
		go sock.ReadLoop(p)
		return sock, nil
	}

	addr := net.JoinHostPort(p.Hostname(), strconv.Itoa(p.Port()))
	conn, err := net.DialTimeout("tcp", addr, p.SocketTimeout())
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

// Listen accepts connections on addr and hands each accepted socket to
// accept. The accepted socket is inert until a client adopts it with
// Use or WithSocket. Listeners stay open until Stop.
func (a *Adapter) Listen(addr string, accept func(adapter.Socket)) error {
	ln, err := net.Listen("tcp", addr)
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

// Addr returns the address of the most recently opened listener, or
// nil when none is open. Useful when listening on port 0.
func (a *Adapter) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.listeners) == 0 {
		return nil
	}
	return a.listeners[len(a.listeners)-1].Addr()
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
