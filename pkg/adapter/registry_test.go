package adapter

import (
	"context"
	"strings"
	"testing"
)

type nopAdapter struct{}

func (nopAdapter) CreateSocket(p Peer, existing Socket) (Socket, error) { return nil, nil }
func (nopAdapter) Send(s Socket, frame []byte) error                    { return nil }
func (nopAdapter) Disconnect(s Socket) error                            { return nil }
func (nopAdapter) Stop(ctx context.Context) error                       { return nil }

func TestRegisterAndLookup(t *testing.T) {
	Register("registry-test", nopAdapter{})

	a, err := Lookup("registry-test")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := a.(nopAdapter); !ok {
		t.Errorf("Lookup returned %T", a)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("registry-test-unknown")
	if err == nil {
		t.Fatal("Lookup of unknown name did not error")
	}
	if !strings.Contains(err.Error(), "registry-test-unknown") {
		t.Errorf("error does not name the adapter: %v", err)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("registry-test-dup", nopAdapter{})

	defer func() {
		if recover() == nil {
			t.Error("duplicate Register did not panic")
		}
	}()
	Register("registry-test-dup", nopAdapter{})
}

func TestRegisterNilPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("nil Register did not panic")
		}
	}()
	Register("registry-test-nil", nil)
}
