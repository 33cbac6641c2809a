// Package ws carries ChanStream links over WebSocket, one binary message per
// protocol frame.
package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/TheusHen/ChanStream/internal/logging"
	"github.com/gorilla/websocket"
	"github.com/pterm/pterm"
)

const DefaultPath = "/chanstream"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades requests and hands the connections to Accept.
type Handler struct {
	connCh chan *Conn
	log    *pterm.Logger
}

type Option func(*Handler)

// WithLogger sets the handler logger. The shared logger is used otherwise.
func WithLogger(l *pterm.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// NewHandler returns a handler holding at most one pending link.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{connCh: make(chan *Conn, 1), log: logging.Logger()}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", h.log.Args("remote", r.RemoteAddr, "error", err))
		return
	}
	// Only one pending link at a time.
	select {
	case h.connCh <- &Conn{ws: ws}:
		h.log.Debug("ws link connected", h.log.Args("remote", r.RemoteAddr))
	default:
		h.log.Warn("ws link rejected, another is pending", h.log.Args("remote", r.RemoteAddr))
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "busy"))
		_ = ws.Close()
	}
}

// Accept blocks until a peer connects or ctx is done.
func (h *Handler) Accept(ctx context.Context) (*Conn, error) {
	select {
	case c := <-h.connCh:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Server is a Handler listening on its own TCP socket.
type Server struct {
	*Handler
	listener net.Listener
	srv      *http.Server
}

// Listen serves the handler at path on addr.
func Listen(addr, path string, opts ...Option) (*Server, error) {
	if path == "" {
		path = DefaultPath
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ws: listen: %w", err)
	}
	h := NewHandler(opts...)
	mux := http.NewServeMux()
	mux.Handle(path, h)
	s := &Server{Handler: h, listener: listener, srv: &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}}
	go func() {
		_ = s.srv.Serve(listener)
	}()
	return s, nil
}

func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// URL returns the ws:// address peers dial.
func (s *Server) URL(path string) string {
	if path == "" {
		path = DefaultPath
	}
	return "ws://" + s.listener.Addr().String() + path
}

// Close stops accepting new peers. Established links stay open.
func (s *Server) Close() error { return s.listener.Close() }

// Dial connects to a ws:// URL.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", url, err)
	}
	return &Conn{ws: ws}, nil
}

// Conn is a link.Conn over a WebSocket.
type Conn struct {
	ws *websocket.Conn
}

func (c *Conn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *Conn) WriteMessage(msg []byte) error {
	return c.ws.WriteMessage(websocket.BinaryMessage, msg)
}

// ReadMessage returns the next binary message. A normal close from the peer
// is reported as io.EOF.
func (c *Conn) ReadMessage() ([]byte, error) {
	for {
		mt, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			if errors.Is(err, net.ErrClosed) {
				return nil, net.ErrClosed
			}
			return nil, err
		}
		if mt == websocket.BinaryMessage {
			return msg, nil
		}
	}
}

func (c *Conn) Close() error {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}
