package chanstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/TheusHen/ChanStream/chanstream/host"
	"github.com/TheusHen/ChanStream/chanstream/transfer"
	"github.com/TheusHen/ChanStream/internal/logging"
	"github.com/pterm/pterm"
)

// Default channel names. The sender side writes
// the RECEIVER channels and reads the SENDER ones; Mirror gives the peer's
// view.
const (
	DefaultOutboundMeta = "STREAM RECEIVER META DATA"
	DefaultOutboundData = "STREAM RECEIVER DATA"
	DefaultInboundMeta  = "STREAM SENDER META DATA"
	DefaultInboundData  = "STREAM SENDER DATA"
)

// ErrInvalidChannels reports an empty or repeated channel name.
var ErrInvalidChannels = errors.New("chanstream: invalid channel names")

// ChannelNames names the four channels an endpoint uses.
type ChannelNames struct {
	OutboundMeta string `toml:"outbound_meta"`
	OutboundData string `toml:"outbound_data"`
	InboundMeta  string `toml:"inbound_meta"`
	InboundData  string `toml:"inbound_data"`
}

// Mirror swaps the inbound and outbound pairs.
func (n ChannelNames) Mirror() ChannelNames {
	return ChannelNames{
		OutboundMeta: n.InboundMeta,
		OutboundData: n.InboundData,
		InboundMeta:  n.OutboundMeta,
		InboundData:  n.OutboundData,
	}
}

// Validate requires four distinct non-empty names.
func (n ChannelNames) Validate() error {
	names := []string{n.OutboundMeta, n.OutboundData, n.InboundMeta, n.InboundData}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("%w: empty name", ErrInvalidChannels)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %q used twice", ErrInvalidChannels, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// EndpointConfig sizes the data frames and names the channels.
type EndpointConfig struct {
	FrameSize int
	Channels  ChannelNames
}

// DefaultEndpointConfig returns host-sized frames and the default channel names.
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		FrameSize: transfer.DefaultFrameSize,
		Channels: ChannelNames{
			OutboundMeta: DefaultOutboundMeta,
			OutboundData: DefaultOutboundData,
			InboundMeta:  DefaultInboundMeta,
			InboundData:  DefaultInboundData,
		},
	}
}

// Option customizes an Endpoint.
type Option func(*Endpoint)

// WithLogger sets the logger for the endpoint and its state machines.
func WithLogger(l *pterm.Logger) Option {
	return func(e *Endpoint) { e.log = l }
}

// WithObserver registers fn for sender and receiver state changes.
func WithObserver(fn func(transfer.Transition)) Option {
	return func(e *Endpoint) { e.observer = fn }
}

// Endpoint is one side of a channel stream. Send and Poll must be called
// from the same goroutine.
type Endpoint struct {
	h        host.Host
	log      *pterm.Logger
	observer func(transfer.Transition)

	sender   *transfer.Sender
	receiver *transfer.Receiver

	outMeta, outData host.ChannelID
	inMeta, inData   host.ChannelID
}

// NewEndpoint declares and allocates the four channels on h and subscribes
// to the inbound pair.
func NewEndpoint(h host.Host, cfg EndpointConfig, opts ...Option) (*Endpoint, error) {
	if cfg.FrameSize <= 0 || cfg.FrameSize > host.MaxFrameSize {
		return nil, fmt.Errorf("%w: %d not in 1..%d", transfer.ErrInvalidFrameSize, cfg.FrameSize, host.MaxFrameSize)
	}
	if err := cfg.Channels.Validate(); err != nil {
		return nil, err
	}

	e := &Endpoint{h: h, log: logging.Logger()}
	for _, o := range opts {
		o(e)
	}

	var err error
	ch := cfg.Channels
	if e.outMeta, err = e.open(ch.OutboundMeta, transfer.MetaRecordSize, host.PeriodNever); err != nil {
		return nil, err
	}
	if e.outData, err = e.open(ch.OutboundData, cfg.FrameSize, host.PeriodNever); err != nil {
		return nil, err
	}
	if e.inMeta, err = e.open(ch.InboundMeta, transfer.MetaRecordSize, host.PeriodOnSet); err != nil {
		return nil, err
	}
	if e.inData, err = e.open(ch.InboundData, cfg.FrameSize, host.PeriodOnSet); err != nil {
		return nil, err
	}

	tcfg := transfer.Config{FrameSize: cfg.FrameSize, Logger: e.log, Observer: e.observer}
	e.sender, err = transfer.NewSender(
		host.Writer{Host: h, Channel: e.outMeta},
		host.Writer{Host: h, Channel: e.outData},
		tcfg,
	)
	if err != nil {
		return nil, err
	}
	e.receiver = transfer.NewReceiver(tcfg)

	e.log.Debug("endpoint ready", e.log.Args(
		"frame_size", cfg.FrameSize,
		"outbound", ch.OutboundData,
		"inbound", ch.InboundData,
	))
	return e, nil
}

func (e *Endpoint) open(name string, size int, policy host.PeriodPolicy) (host.ChannelID, error) {
	id, err := e.h.DeclareChannel(name)
	if err != nil {
		return 0, fmt.Errorf("chanstream: declare %q: %w", name, err)
	}
	if err := e.h.DeclareLayout(id, size); err != nil {
		return 0, fmt.Errorf("chanstream: layout %q: %w", name, err)
	}
	if err := e.h.Allocate(id, size); err != nil {
		return 0, fmt.Errorf("chanstream: allocate %q: %w", name, err)
	}
	if err := e.h.RequestNotifications(id, policy); err != nil {
		return 0, fmt.Errorf("chanstream: subscribe %q: %w", name, err)
	}
	return id, nil
}

// Send streams payload over the outbound pair.
func (e *Endpoint) Send(ctx context.Context, payload []byte) (transfer.SendReport, error) {
	return e.sender.Send(ctx, payload)
}

// Poll drains host events and returns the transfers they completed, in
// order. Dropped frames are logged by the receiver and skipped.
func (e *Endpoint) Poll() ([]transfer.Outcome, error) {
	evs, err := e.h.Poll()
	var done []transfer.Outcome
	for _, ev := range evs {
		switch ev.Channel {
		case e.inMeta:
			meta, derr := transfer.DecodeMeta(ev.Data)
			if derr != nil {
				e.log.Warn("bad meta record", e.log.Args("bytes", len(ev.Data), "error", derr))
				continue
			}
			if out := e.receiver.OnMeta(meta); out.Done {
				done = append(done, out)
			}
		case e.inData:
			out, ferr := e.receiver.OnFrame(ev.Data)
			if ferr == nil && out.Done {
				done = append(done, out)
			}
		default:
			e.log.Debug("ignoring event", e.log.Args("channel", uint32(ev.Channel)))
		}
	}
	return done, err
}

// Sender exposes the outbound state machine.
func (e *Endpoint) Sender() *transfer.Sender { return e.sender }

// Receiver exposes the inbound state machine.
func (e *Endpoint) Receiver() *transfer.Receiver { return e.receiver }

// Stats sums sender and receiver counters.
func (e *Endpoint) Stats() transfer.StatsSnapshot {
	return e.sender.Stats().Snapshot().Add(e.receiver.Stats().Snapshot())
}

// Close closes the host connection.
func (e *Endpoint) Close() error { return e.h.Close() }
