package netframe

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/someonegg/gox/syncx"

	"github.com/bft-labs/wirebus/pkg/adapter"
)

// Socket is the stream-transport socket shared by the tcp and unixsock
// adapters: a framed connection plus a write lock and a teardown
// signal. It satisfies adapter.Socket.
type Socket struct {
	conn *Conn

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
	stopD     syncx.DoneChan
}

// NewSocket wraps conn. The read loop is not started; the adapter
// starts it when the socket is attached to a peer.
func NewSocket(conn net.Conn) *Socket {
	return &Socket{
		conn:  New(conn),
		stopD: syncx.NewDoneChan(),
	}
}

// Send writes one frame. Concurrent senders are serialized.
func (s *Socket) Send(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteFrame(frame)
}

// Close tears the socket down. Idempotent.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		s.stopD.SetDone()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Closed reports whether Close has been called.
func (s *Socket) Closed() bool {
	return s.stopD.R().Done()
}

// RemoteAddr returns the remote address.
func (s *Socket) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// ReadLoop reads frames until the socket dies, delivering each to
// p.HandleRequest. A remote close or read failure reports a disconnect;
// a local Close (deliberate teardown) reports nothing.
func (s *Socket) ReadLoop(p adapter.Peer) {
	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			if s.Closed() {
				return
			}
			_ = s.Close()
			if !errors.Is(err, io.EOF) {
				p.HandleError(err)
			}
			p.HandleDisconnect()
			return
		}
		p.HandleRequest(frame)
	}
}
