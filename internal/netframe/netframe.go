// Package netframe implements the length-prefixed framing shared by the
// stream transports (tcp, unixsock).
//
// Layout on the wire: Length (4-byte big-endian int32) followed by the
// frame bytes. The length covers the frame only, not itself.
package netframe

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
)

// MaxFrameLen is the largest frame accepted on a stream transport.
const MaxFrameLen = 32 << 20

var (
	// ErrFrameLength reports a zero, negative or oversized length prefix.
	ErrFrameLength = errors.New("netframe: wrong frame length")
)

// Conn wraps a net.Conn with buffered length-prefixed frame I/O.
// Reads and writes are independently safe for one reader plus one
// writer; concurrent writers must serialize externally.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

// New wraps conn.
func New(conn net.Conn) *Conn {
	return &Conn{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}
}

// ReadFrame reads one length-prefixed frame.
func (c *Conn) ReadFrame() ([]byte, error) {
	var l int32
	if err := binary.Read(c.r, binary.BigEndian, &l); err != nil {
		return nil, err
	}
	if l <= 0 || int(l) > MaxFrameLen {
		return nil, ErrFrameLength
	}
	frame := make([]byte, l)
	if _, err := io.ReadFull(c.r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// WriteFrame writes one length-prefixed frame and flushes.
func (c *Conn) WriteFrame(frame []byte) error {
	if len(frame) == 0 || len(frame) > MaxFrameLen {
		return ErrFrameLength
	}
	if err := binary.Write(c.w, binary.BigEndian, int32(len(frame))); err != nil {
		return err
	}
	if _, err := c.w.Write(frame); err != nil {
		return err
	}
	return c.w.Flush()
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote address of the underlying connection.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
