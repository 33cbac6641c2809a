// Package quic carries ChanStream links over a single bidirectional QUIC
// stream.
package quic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/TheusHen/ChanStream/chanstream/protocol"
	q "github.com/quic-go/quic-go"
)

// DefaultLinger is how long Close waits for the peer to drain the stream.
const DefaultLinger = 3 * time.Second

var ErrBadPreamble = errors.New("quic: link did not start with OPEN")

func quicConfig() *q.Config {
	return &q.Config{
		KeepAlivePeriod: 10 * time.Second,
		MaxIdleTimeout:  30 * time.Second,
	}
}

// Listener accepts QUIC links.
type Listener struct {
	inner *q.Listener
}

// Listen binds a QUIC listener on addr with a fresh self-signed certificate.
func Listen(addr string) (*Listener, error) {
	tlsConf, err := NewServerTLSConfig()
	if err != nil {
		return nil, err
	}
	ln, err := q.ListenAddr(addr, tlsConf, quicConfig())
	if err != nil {
		return nil, err
	}
	return &Listener{inner: ln}, nil
}

// Accept waits for a peer to connect and open its link stream.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	qc, err := l.inner.Accept(ctx)
	if err != nil {
		return nil, err
	}
	st, err := qc.AcceptStream(ctx)
	if err != nil {
		_ = qc.CloseWithError(1, "no stream")
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = st.SetReadDeadline(dl)
	}
	f, err := protocol.ReadFrame(st)
	_ = st.SetReadDeadline(time.Time{})
	if err != nil || f.Type != protocol.MessageTypeOpen {
		_ = qc.CloseWithError(1, "bad preamble")
		if err == nil {
			err = ErrBadPreamble
		}
		return nil, fmt.Errorf("quic: accept link: %w", err)
	}
	return newConn(qc, st), nil
}

func (l *Listener) Addr() net.Addr { return l.inner.Addr() }

func (l *Listener) AddrString() string {
	if l.inner == nil {
		return ""
	}
	return l.inner.Addr().String()
}

func (l *Listener) Close() error { return l.inner.Close() }

// Dial connects to addr and opens the link stream.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	tlsConf, err := NewClientTLSConfig()
	if err != nil {
		return nil, err
	}
	qc, err := q.DialAddr(ctx, addr, tlsConf, quicConfig())
	if err != nil {
		return nil, err
	}
	st, err := qc.OpenStreamSync(ctx)
	if err != nil {
		_ = qc.CloseWithError(1, "open stream")
		return nil, err
	}
	// The acceptor only sees the stream once bytes flow on it.
	if err := protocol.WriteFrame(st, protocol.OpenFrame()); err != nil {
		_ = qc.CloseWithError(1, "preamble")
		return nil, err
	}
	return newConn(qc, st), nil
}

// Conn is a link.Conn over one QUIC stream.
type Conn struct {
	qc         q.Connection
	stream     q.Stream
	linger     time.Duration
	peerClosed atomic.Bool
}

func newConn(qc q.Connection, st q.Stream) *Conn {
	return &Conn{qc: qc, stream: st, linger: DefaultLinger}
}

// SetLinger overrides DefaultLinger.
func (c *Conn) SetLinger(d time.Duration) { c.linger = d }

func (c *Conn) RemoteAddr() net.Addr { return c.qc.RemoteAddr() }

// WriteMessage writes one encoded frame to the stream.
func (c *Conn) WriteMessage(msg []byte) error {
	_, err := c.stream.Write(msg)
	return err
}

func (c *Conn) ReadMessage() ([]byte, error) {
	raw, err := protocol.ReadRaw(c.stream)
	if err != nil {
		var appErr *q.ApplicationError
		if errors.As(err, &appErr) && appErr.ErrorCode == 0 {
			if appErr.Remote {
				return nil, io.EOF
			}
			return nil, net.ErrClosed
		}
		return nil, err
	}
	if protocol.MessageType(raw[0]) == protocol.MessageTypeClose {
		c.peerClosed.Store(true)
	}
	return raw, nil
}

// Close finishes the stream. Unless the peer already said CLOSE, it waits
// up to the linger time for the peer to tear the connection down so that
// written frames are not discarded.
func (c *Conn) Close() error {
	err := c.stream.Close()
	if !c.peerClosed.Load() {
		select {
		case <-c.qc.Context().Done():
		case <-time.After(c.linger):
		}
	}
	if cerr := c.qc.CloseWithError(0, "closed"); err == nil {
		err = cerr
	}
	return err
}
