// Package ws provides the websocket transport adapter for wirebus,
// built on gorilla/websocket. Each encoded frame travels as one binary
// websocket message.
//
// Importing the package registers the adapter under the name "ws".
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/someonegg/gox/syncx"

	"github.com/bft-labs/wirebus/pkg/adapter"
)

// Name is the registry name of this adapter.
const Name = "ws"

// Path is the HTTP path the adapter dials and serves.
const Path = "/wirebus"

var errWrongSocket = errors.New("ws: socket was not created by this adapter")

func init() {
	adapter.Register(Name, New())
}

// Adapter implements adapter.Adapter over websocket connections.
type Adapter struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	servers []*http.Server
}

// New creates an unregistered Adapter instance.
func New() *Adapter {
	return &Adapter{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The bus carries no browser credentials; origin checks are
			// the embedding application's concern.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Socket is a websocket connection handle.
type Socket struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
	stopD     syncx.DoneChan
}

func newSocket(conn *websocket.Conn) *Socket {
	return &Socket{
		conn:  conn,
		stopD: syncx.NewDoneChan(),
	}
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

func (s *Socket) send(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// readLoop reads binary messages until the connection dies, delivering
// each to p.HandleRequest.
func (s *Socket) readLoop(p adapter.Peer) {
	for {
		mt, msg, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed() {
				return
			}
			_ = s.Close()
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {
				p.HandleError(err)
			}
			p.HandleDisconnect()
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		p.HandleRequest(msg)
	}
}

// CreateSocket dials ws://hostname:port/wirebus unless existing carries
// an upgraded connection to adopt.
func (a *Adapter) CreateSocket(p adapter.Peer, existing adapter.Socket) (adapter.Socket, error) {
	if existing != nil {
		sock, ok := existing.(*Socket)
		if !ok {
			return nil, errWrongSocket
		}
		go sock.readLoop(p)
		return sock, nil
	}

	url := fmt.Sprintf("ws://%s%s", net.JoinHostPort(p.Hostname(), strconv.Itoa(p.Port())), Path)
	dialer := websocket.Dialer{HandshakeTimeout: p.SocketTimeout()}
	conn, resp, err := dialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	sock := newSocket(conn)
	go sock.readLoop(p)
	return sock, nil
}

// Send transmits one frame as a binary message.
func (a *Adapter) Send(s adapter.Socket, frame []byte) error {
	sock, ok := s.(*Socket)
	if !ok {
		return errWrongSocket
	}
	return sock.send(frame)
}

// Disconnect closes the socket. Idempotent.
func (a *Adapter) Disconnect(s adapter.Socket) error {
	if s == nil {
		return nil
	}
	return s.Close()
}

// Listen serves websocket upgrades on addr and hands each upgraded
// socket to accept. The socket is inert until a client adopts it.
func (a *Adapter) Listen(addr string, accept func(adapter.Socket)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc(Path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := a.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accept(newSocket(conn))
	})
	srv := &http.Server{Handler: mux}

	a.mu.Lock()
	a.servers = append(a.servers, srv)
	a.mu.Unlock()

	go func() {
		_ = srv.Serve(ln)
	}()
	return nil
}

// Stop shuts down all HTTP servers opened through Listen.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	servers := a.servers
	a.servers = nil
	a.mu.Unlock()

	var firstErr error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
