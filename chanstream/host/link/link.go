// Package link implements host.Host over a message-oriented connection to a
// peer. Each side keeps its own copy of the channel areas; writes are sent to
// the peer as protocol SET frames and applied to its copy.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/TheusHen/ChanStream/chanstream/host"
	"github.com/TheusHen/ChanStream/chanstream/protocol"
	"github.com/TheusHen/ChanStream/internal/logging"
	"github.com/pterm/pterm"
)

// Conn carries one encoded protocol frame per message.
type Conn interface {
	WriteMessage(msg []byte) error
	ReadMessage() ([]byte, error)
	Close() error
}

// DefaultMaxPending bounds the SET frames held for channels that are not
// yet subscribed.
const DefaultMaxPending = 4096

// Option customizes a linked Host.
type Option func(*Host)

// WithLogger sets the link logger. The shared logger is used otherwise.
func WithLogger(l *pterm.Logger) Option {
	return func(h *Host) { h.log = l }
}

// WithName labels the link in log lines.
func WithName(name string) Option {
	return func(h *Host) { h.name = name }
}

// WithMaxPending overrides DefaultMaxPending.
func WithMaxPending(n int) Option {
	return func(h *Host) { h.maxPending = n }
}

// Host is a host.Host backed by a Conn.
type Host struct {
	conn       Conn
	log        *pterm.Logger
	name       string
	maxPending int

	writeMu sync.Mutex

	mu      sync.Mutex
	areas   map[host.ChannelID]*host.Area
	pending map[host.ChannelID][]protocol.Set
	npend   int
	queue   []host.Event
	readErr error
	closed  bool

	done chan struct{}
}

var _ host.Host = (*Host)(nil)

// New starts reading from conn. The reader stops when the peer sends CLOSE,
// the connection ends, or Close is called.
func New(conn Conn, opts ...Option) *Host {
	h := &Host{
		conn:       conn,
		log:        logging.Logger(),
		name:       "link",
		maxPending: DefaultMaxPending,
		areas:      map[host.ChannelID]*host.Area{},
		pending:    map[host.ChannelID][]protocol.Set{},
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	go h.readLoop()
	return h
}

// Done is closed once the reader has stopped.
func (h *Host) Done() <-chan struct{} { return h.done }

// Err returns the reader's terminal error. A clean end of stream is nil.
func (h *Host) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readErr
}

func (h *Host) DeclareChannel(name string) (host.ChannelID, error) {
	if name == "" {
		return 0, host.ErrInvalidName
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, host.ErrClosed
	}
	id := host.ChannelIDFromName(name)
	if a, ok := h.areas[id]; ok {
		if a.Name != name {
			return 0, fmt.Errorf("%w: %q collides with %q", host.ErrDuplicateName, name, a.Name)
		}
		return 0, fmt.Errorf("%w: %q", host.ErrDuplicateName, name)
	}
	h.areas[id] = &host.Area{Name: name}
	return id, nil
}

func (h *Host) DeclareLayout(id host.ChannelID, size int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, err := h.lookup(id)
	if err != nil {
		return err
	}
	return a.DeclareLayout(size)
}

func (h *Host) Allocate(id host.ChannelID, size int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, err := h.lookup(id)
	if err != nil {
		return err
	}
	return a.Allocate(size)
}

// RequestNotifications sets the policy. Subscribing replays any SET frames
// that arrived for the channel before it was ready.
func (h *Host) RequestNotifications(id host.ChannelID, policy host.PeriodPolicy) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, err := h.lookup(id)
	if err != nil {
		return err
	}
	a.Policy = policy
	if a.Data == nil || policy != host.PeriodOnSet {
		return nil
	}
	sets := h.pending[id]
	delete(h.pending, id)
	h.npend -= len(sets)
	for _, s := range sets {
		h.apply(id, a, s)
	}
	return nil
}

func (h *Host) SetContents(ctx context.Context, id host.ChannelID, offset int, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	a, err := h.lookup(id)
	if err == nil {
		_, err = a.Write(offset, data)
	}
	h.mu.Unlock()
	if err != nil {
		return err
	}

	msg, err := protocol.Marshal(protocol.Set{Channel: uint32(id), Offset: uint32(offset), Data: data}.Frame())
	if err != nil {
		return err
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if err := h.conn.WriteMessage(msg); err != nil {
		return fmt.Errorf("link %s: write: %w", h.name, err)
	}
	return nil
}

// Poll drains queued events without blocking. Once the queue is empty and
// the reader has failed, the failure is returned.
func (h *Host) Poll() ([]host.Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, host.ErrClosed
	}
	out := h.queue
	h.queue = nil
	if len(out) == 0 && h.readErr != nil {
		return nil, h.readErr
	}
	return out, nil
}

// Close sends CLOSE to the peer, closes the connection and waits for the
// reader to stop.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.queue = nil
	h.mu.Unlock()

	if msg, err := protocol.Marshal(protocol.CloseFrame()); err == nil {
		h.writeMu.Lock()
		_ = h.conn.WriteMessage(msg)
		h.writeMu.Unlock()
	}
	err := h.conn.Close()
	<-h.done
	return err
}

func (h *Host) readLoop() {
	defer close(h.done)
	for {
		msg, err := h.conn.ReadMessage()
		if err != nil {
			h.stop(err)
			return
		}
		f, err := protocol.Unmarshal(msg)
		if err != nil {
			h.log.Warn("link dropped malformed frame", h.log.Args("link", h.name, "error", err))
			continue
		}
		switch f.Type {
		case protocol.MessageTypeClose:
			h.log.Debug("link closed by peer", h.log.Args("link", h.name))
			h.stop(nil)
			return
		case protocol.MessageTypeSet:
			s, err := protocol.DecodeSet(f.Payload)
			if err != nil {
				h.log.Warn("link dropped malformed set", h.log.Args("link", h.name, "error", err))
				continue
			}
			h.receive(s)
		default:
			h.log.Warn("link dropped unknown frame", h.log.Args("link", h.name, "type", f.Type.String()))
		}
	}
}

func (h *Host) receive(s protocol.Set) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	id := host.ChannelID(s.Channel)
	a, ok := h.areas[id]
	if ok && a.Data != nil && a.Policy == host.PeriodOnSet {
		h.apply(id, a, s)
		return
	}
	// Park until the channel is allocated and subscribed.
	if h.npend >= h.maxPending {
		h.log.Warn("link dropped set for channel not ready", h.log.Args("link", h.name, "channel", uint32(id)))
		return
	}
	h.pending[id] = append(h.pending[id], s)
	h.npend++
}

// apply writes s into the local area and queues an event. h.mu must be held.
func (h *Host) apply(id host.ChannelID, a *host.Area, s protocol.Set) {
	snap, err := a.Write(int(s.Offset), s.Data)
	if err != nil {
		h.log.Warn("link rejected peer write", h.log.Args(
			"link", h.name,
			"channel", a.Name,
			"offset", s.Offset,
			"bytes", len(s.Data),
			"error", err,
		))
		return
	}
	h.queue = append(h.queue, host.Event{Channel: id, Data: snap})
}

func (h *Host) stop(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return
	}
	h.readErr = err
	if err != nil {
		h.log.Error("link reader stopped", h.log.Args("link", h.name, "error", err))
	}
}

// lookup returns a declared area. h.mu must be held.
func (h *Host) lookup(id host.ChannelID) (*host.Area, error) {
	if h.closed {
		return nil, host.ErrClosed
	}
	a, ok := h.areas[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", host.ErrUnknownChannel, id)
	}
	return a, nil
}
