// Package udp provides the datagram transport adapter for wirebus.
//
// Each encoded frame travels as one datagram: no stream framing, no
// delivery or ordering guarantees beyond what UDP gives. Frames larger
// than MaxDatagram are rejected locally. Importing the package
// registers the adapter under the name "udp".
package udp

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	"github.com/someonegg/gox/syncx"

	"github.com/bft-labs/wirebus/pkg/adapter"
)

// Name is the registry name of this adapter.
const Name = "udp"

// MaxDatagram is the largest frame accepted for a single datagram.
const MaxDatagram = 64 << 10

var (
	errWrongSocket   = errors.New("udp: socket was not created by this adapter")
	errFrameTooLarge = errors.New("udp: frame exceeds datagram size")
)

func init() {
	adapter.Register(Name, New())
}

// Adapter implements adapter.Adapter over UDP. It is dial-side only:
// server-side datagram demultiplexing is out of scope and adopting an
// existing socket requires one previously created by this adapter.
type Adapter struct{}

// New creates an unregistered Adapter instance.
func New() *Adapter {
	return &Adapter{}
}

// Socket is a connected UDP socket.
type Socket struct {
	conn *net.UDPConn

	closeOnce sync.Once
	closeErr  error
	stopD     syncx.DoneChan
}

// Close tears the socket down. Idempotent.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		s.stopD.SetDone()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *Socket) closed() bool {
	return s.stopD.R().Done()
}

// readLoop delivers inbound datagrams until the socket dies.
func (s *Socket) readLoop(p adapter.Peer) {
	buf := make([]byte, MaxDatagram)
	for {
		n, _, err := s.conn.ReadFrom(buf)
		if err != nil {
			if s.closed() {
				return
			}
			_ = s.Close()
			p.HandleError(err)
			p.HandleDisconnect()
			return
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		p.HandleRequest(frame)
	}
}

// CreateSocket opens a connected UDP socket to hostname:port, or adopts
// an existing one.
func (a *Adapter) CreateSocket(p adapter.Peer, existing adapter.Socket) (adapter.Socket, error) {
	if existing != nil {
		sock, ok := existing.(*Socket)
		if !ok {
			return nil, errWrongSocket
		}
		go sock.readLoop(p)
		return sock, nil
	}

	addr := net.JoinHostPort(p.Hostname(), strconv.Itoa(p.Port()))
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	sock := &Socket{
		conn:  conn.(*net.UDPConn),
		stopD: syncx.NewDoneChan(),
	}
	go sock.readLoop(p)
	return sock, nil
}

// Send transmits one frame as a single datagram. Delivery is
// best-effort by nature of the transport.
func (a *Adapter) Send(s adapter.Socket, frame []byte) error {
	sock, ok := s.(*Socket)
	if !ok {
		return errWrongSocket
	}
	if len(frame) > MaxDatagram {
		return errFrameTooLarge
	}
	_, err := sock.conn.Write(frame)
	return err
}

// Disconnect closes the socket. Idempotent.
func (a *Adapter) Disconnect(s adapter.Socket) error {
	if s == nil {
		return nil
	}
	return s.Close()
}

// Stop is a no-op: the udp adapter holds no listening resources.
func (a *Adapter) Stop(ctx context.Context) error {
	return nil
}
