package link

import (
	"io"
	"net"
	"sync"
)

// Pipe returns two connected in-memory Conns. Messages written to one are
// read from the other in order. Messages buffered when a side closes are
// still delivered before its peer sees io.EOF.
func Pipe() (Conn, Conn) {
	ab := make(chan []byte, 1024)
	ba := make(chan []byte, 1024)
	a := &pipeConn{in: ba, out: ab, closed: make(chan struct{})}
	b := &pipeConn{in: ab, out: ba, closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

type pipeConn struct {
	in, out chan []byte
	peer    *pipeConn
	once    sync.Once
	closed  chan struct{}
}

func (p *pipeConn) WriteMessage(msg []byte) error {
	select {
	case <-p.closed:
		return net.ErrClosed
	case <-p.peer.closed:
		return io.ErrClosedPipe
	default:
	}
	cp := append([]byte(nil), msg...)
	select {
	case p.out <- cp:
		return nil
	case <-p.closed:
		return net.ErrClosed
	case <-p.peer.closed:
		return io.ErrClosedPipe
	}
}

func (p *pipeConn) ReadMessage() ([]byte, error) {
	select {
	case m := <-p.in:
		return m, nil
	case <-p.closed:
		return nil, net.ErrClosed
	case <-p.peer.closed:
		select {
		case m := <-p.in:
			return m, nil
		default:
			return nil, io.EOF
		}
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}
