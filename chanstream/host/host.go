// Package host defines the contract ChanStream expects from the system that
// owns the shared channels.
//
// A host hands out named, fixed-size channel areas. Writes into an area are
// bounded to MaxFrameSize bytes, and peers learn about writes through change
// events drained by a non-blocking Poll. Concrete hosts live in the memory
// and link sub-packages.
package host

import (
	"context"
	"errors"
	"hash/fnv"
)

// MaxFrameSize is the largest single write a host accepts.
const MaxFrameSize = 8192

var (
	ErrUnknownChannel = errors.New("host: unknown channel")
	ErrInvalidName    = errors.New("host: invalid channel name")
	ErrDuplicateName  = errors.New("host: channel name already declared")
	ErrNotAllocated   = errors.New("host: channel area not allocated")
	ErrLayoutMismatch = errors.New("host: allocation does not match declared layout")
	ErrFrameTooLarge  = errors.New("host: write exceeds maximum frame size")
	ErrOutOfBounds    = errors.New("host: write exceeds channel area")
	ErrClosed         = errors.New("host: connection closed")
)

// ChannelID identifies a declared channel.
type ChannelID uint32

// PeriodPolicy controls when change events are delivered.
type PeriodPolicy uint8

const (
	PeriodNever PeriodPolicy = iota
	PeriodOnSet
)

// Event reports a channel whose contents changed. Data is a copy of the
// whole area after the write.
type Event struct {
	Channel ChannelID
	Data    []byte
}

// Host is one connection to a channel host.
type Host interface {
	DeclareChannel(name string) (ChannelID, error)
	DeclareLayout(id ChannelID, size int) error
	Allocate(id ChannelID, size int) error
	RequestNotifications(id ChannelID, policy PeriodPolicy) error
	SetContents(ctx context.Context, id ChannelID, offset int, data []byte) error
	// Poll drains pending events without blocking.
	Poll() ([]Event, error)
	Close() error
}

// ChannelIDFromName derives a stable id from a channel name so that peers
// agree on ids without exchanging them.
func ChannelIDFromName(name string) ChannelID {
	h := fnv.New32a()
	h.Write([]byte(name))
	return ChannelID(h.Sum32())
}

// CheckWrite validates a write of n bytes at offset into an area of size
// bytes.
func CheckWrite(offset, n, size int) error {
	if n > MaxFrameSize {
		return ErrFrameTooLarge
	}
	if offset < 0 || offset+n > size {
		return ErrOutOfBounds
	}
	return nil
}

// Area is the fixed-size buffer behind one channel. Hosts embed it in
// their channel tables.
type Area struct {
	Name   string
	Layout int // 0 until DeclareLayout
	Data   []byte
	Policy PeriodPolicy
}

// Write copies data into the area at offset and returns a snapshot of the
// whole area.
func (a *Area) Write(offset int, data []byte) ([]byte, error) {
	if a.Data == nil {
		return nil, ErrNotAllocated
	}
	if err := CheckWrite(offset, len(data), len(a.Data)); err != nil {
		return nil, err
	}
	copy(a.Data[offset:], data)
	return append([]byte(nil), a.Data...), nil
}

// DeclareLayout fixes the area size. Redeclaring the same size is a no-op.
func (a *Area) DeclareLayout(size int) error {
	if size <= 0 || (a.Layout != 0 && a.Layout != size) {
		return ErrLayoutMismatch
	}
	a.Layout = size
	return nil
}

// Allocate sizes the area, checking it against a declared layout.
func (a *Area) Allocate(size int) error {
	if size <= 0 || (a.Layout != 0 && a.Layout != size) {
		return ErrLayoutMismatch
	}
	if a.Data == nil || len(a.Data) != size {
		a.Data = make([]byte, size)
	}
	return nil
}

// Writer binds a host channel to the transfer.ChannelWriter shape.
type Writer struct {
	Host    Host
	Channel ChannelID
}

// SetContents writes data at offset zero of the bound channel.
func (w Writer) SetContents(ctx context.Context, data []byte) error {
	return w.Host.SetContents(ctx, w.Channel, 0, data)
}
