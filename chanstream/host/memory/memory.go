// Package memory is an in-process channel host.
//
// Every connection of a Bus sees the same channel areas. A write through one
// connection is delivered as an event to every other connection that asked
// for PeriodOnSet notifications on that channel. It is useful for tests,
// examples and embedding two endpoints in one process.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/TheusHen/ChanStream/chanstream/host"
	"github.com/TheusHen/ChanStream/internal/logging"
	"github.com/pterm/pterm"
)

// Bus owns the shared channel areas.
type Bus struct {
	mu     sync.Mutex
	areas  map[host.ChannelID]*host.Area
	conns  []*Host
	log    *pterm.Logger
	closed bool
}

// Option customizes a Bus.
type Option func(*Bus)

// WithLogger sets the bus logger. The shared logger is used otherwise.
func WithLogger(l *pterm.Logger) Option {
	return func(b *Bus) { b.log = l }
}

// NewBus returns an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{areas: map[host.ChannelID]*host.Area{}, log: logging.Logger()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Connect opens a new connection to the bus.
func (b *Bus) Connect(name string) (*Host, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, host.ErrClosed
	}
	h := &Host{
		bus:      b,
		name:     name,
		declared: map[host.ChannelID]host.PeriodPolicy{},
		writes:   map[host.ChannelID]int{},
	}
	b.conns = append(b.conns, h)
	b.log.Debug("bus connection opened", b.log.Args("conn", name, "conns", len(b.conns)))
	return h, nil
}

// Close closes every connection.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, h := range b.conns {
		h.closed = true
		h.queue = nil
	}
	b.conns = nil
	b.closed = true
	return nil
}

// Host is one connection to a Bus. All of its state is guarded by the bus
// mutex.
type Host struct {
	bus      *Bus
	name     string
	declared map[host.ChannelID]host.PeriodPolicy
	writes   map[host.ChannelID]int
	fail     func(id host.ChannelID, n int) error
	queue    []host.Event
	closed   bool
}

var _ host.Host = (*Host)(nil)

// Name returns the name the connection was opened with.
func (h *Host) Name() string { return h.name }

// FailWrites installs a hook consulted before every write. n is the 1-based
// count of writes on that channel through this connection. A non-nil return
// fails the write and leaves the area untouched. Passing nil removes the hook.
func (h *Host) FailWrites(fn func(id host.ChannelID, n int) error) {
	h.bus.mu.Lock()
	h.fail = fn
	h.bus.mu.Unlock()
}

func (h *Host) DeclareChannel(name string) (host.ChannelID, error) {
	if name == "" {
		return 0, host.ErrInvalidName
	}
	b := h.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if h.closed {
		return 0, host.ErrClosed
	}
	id := host.ChannelIDFromName(name)
	if _, ok := h.declared[id]; ok {
		return 0, fmt.Errorf("%w: %q", host.ErrDuplicateName, name)
	}
	a, ok := b.areas[id]
	switch {
	case !ok:
		b.areas[id] = &host.Area{Name: name}
	case a.Name != name:
		return 0, fmt.Errorf("%w: %q collides with %q", host.ErrDuplicateName, name, a.Name)
	}
	h.declared[id] = host.PeriodNever
	return id, nil
}

func (h *Host) DeclareLayout(id host.ChannelID, size int) error {
	h.bus.mu.Lock()
	defer h.bus.mu.Unlock()
	a, err := h.lookup(id)
	if err != nil {
		return err
	}
	return a.DeclareLayout(size)
}

func (h *Host) Allocate(id host.ChannelID, size int) error {
	h.bus.mu.Lock()
	defer h.bus.mu.Unlock()
	a, err := h.lookup(id)
	if err != nil {
		return err
	}
	return a.Allocate(size)
}

func (h *Host) RequestNotifications(id host.ChannelID, policy host.PeriodPolicy) error {
	h.bus.mu.Lock()
	defer h.bus.mu.Unlock()
	if _, err := h.lookup(id); err != nil {
		return err
	}
	h.declared[id] = policy
	return nil
}

func (h *Host) SetContents(ctx context.Context, id host.ChannelID, offset int, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.bus.mu.Lock()
	defer h.bus.mu.Unlock()
	a, err := h.lookup(id)
	if err != nil {
		return err
	}

	h.writes[id]++
	if h.fail != nil {
		if err := h.fail(id, h.writes[id]); err != nil {
			return err
		}
	}
	snap, err := a.Write(offset, data)
	if err != nil {
		return err
	}
	for _, peer := range h.bus.conns {
		if peer == h || peer.declared[id] != host.PeriodOnSet {
			continue
		}
		// Each subscriber gets its own copy.
		peer.queue = append(peer.queue, host.Event{Channel: id, Data: append([]byte(nil), snap...)})
	}
	return nil
}

func (h *Host) Poll() ([]host.Event, error) {
	b := h.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if h.closed {
		return nil, host.ErrClosed
	}
	out := h.queue
	h.queue = nil
	return out, nil
}

func (h *Host) Close() error {
	b := h.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.queue = nil
	for i, c := range b.conns {
		if c == h {
			b.conns = append(b.conns[:i], b.conns[i+1:]...)
			break
		}
	}
	b.log.Debug("bus connection closed", b.log.Args("conn", h.name))
	return nil
}

// lookup returns a declared area. The bus mutex must be held.
func (h *Host) lookup(id host.ChannelID) (*host.Area, error) {
	if h.closed {
		return nil, host.ErrClosed
	}
	if _, ok := h.declared[id]; !ok {
		return nil, fmt.Errorf("%w: %d", host.ErrUnknownChannel, id)
	}
	return h.bus.areas[id], nil
}
