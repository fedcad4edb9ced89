package netframe

import (
	"bytes"
	"errors"
	"net"
	"testing"
)

func pipeConns(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return New(a), New(b)
}

func TestFrameRoundTrip(t *testing.T) {
	left, right := pipeConns(t)

	frames := [][]byte{
		[]byte("x"),
		[]byte("a longer frame with some content"),
		{0x00, 0xff, 0x80},
	}

	errCh := make(chan error, 1)
	go func() {
		for _, f := range frames {
			if err := left.WriteFrame(f); err != nil {
				errCh <- err
				return
			}
		}
		errCh <- nil
	}()

	for i, want := range frames {
		got, err := right.ReadFrame()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d = %v, want %v", i, got, want)
		}
	}
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
}

func TestWriteFrameRejectsBadLengths(t *testing.T) {
	left, _ := pipeConns(t)

	if err := left.WriteFrame(nil); !errors.Is(err, ErrFrameLength) {
		t.Errorf("empty frame: err = %v, want ErrFrameLength", err)
	}
	if err := left.WriteFrame(make([]byte, MaxFrameLen+1)); !errors.Is(err, ErrFrameLength) {
		t.Errorf("oversized frame: err = %v, want ErrFrameLength", err)
	}
}

func TestReadFrameRejectsBadPrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix []byte
	}{
		{"zero length", []byte{0, 0, 0, 0}},
		{"negative length", []byte{0xff, 0xff, 0xff, 0xff}},
		{"oversized length", []byte{0x7f, 0xff, 0xff, 0xff}},
	}

	for _, tt := range tests {
		a, b := net.Pipe()
		go func() {
			a.Write(tt.prefix)
			a.Close()
		}()
		_, err := New(b).ReadFrame()
		if !errors.Is(err, ErrFrameLength) {
			t.Errorf("%s: err = %v, want ErrFrameLength", tt.name, err)
		}
		b.Close()
	}
}
