package chanstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/TheusHen/ChanStream/chanstream/host"
	"github.com/TheusHen/ChanStream/chanstream/host/link"
	"github.com/TheusHen/ChanStream/chanstream/host/memory"
	"github.com/TheusHen/ChanStream/chanstream/transfer"
	"github.com/TheusHen/ChanStream/internal/logging"
	"golang.org/x/sync/errgroup"
)

func testConfig(frameSize int) EndpointConfig {
	cfg := DefaultEndpointConfig()
	cfg.FrameSize = frameSize
	return cfg
}

func busPair(t *testing.T, frameSize int) (*Endpoint, *Endpoint, *memory.Host) {
	t.Helper()
	bus := memory.NewBus(memory.WithLogger(logging.Discard()))
	ha, err := bus.Connect("a")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	hb, err := bus.Connect("b")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	cfg := testConfig(frameSize)
	a, err := NewEndpoint(ha, cfg, WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("NewEndpoint a: %v", err)
	}
	cfg.Channels = cfg.Channels.Mirror()
	b, err := NewEndpoint(hb, cfg, WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("NewEndpoint b: %v", err)
	}
	t.Cleanup(func() { _ = bus.Close() })
	return a, b, ha
}

func randomPayload(n int, seed int64) []byte {
	p := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(p)
	return p
}

func TestEndpointRoundTripSizes(t *testing.T) {
	const fs = 64
	for _, n := range []int{0, 1, fs - 1, fs, fs + 1, 5 * fs, 5*fs + 7, 100_000} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			a, b, _ := busPair(t, fs)
			payload := randomPayload(n, int64(n))
			report, err := a.Send(context.Background(), payload)
			if err != nil {
				t.Fatalf("Send: %v", err)
			}
			if report.Size != uint64(n) || report.Frames != transfer.FrameCount(uint64(n), fs) {
				t.Fatalf("unexpected report %+v", report)
			}
			outs, err := b.Poll()
			if err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if len(outs) != 1 {
				t.Fatalf("expected one outcome, got %d", len(outs))
			}
			out := outs[0]
			if err := out.Err(); err != nil {
				t.Fatalf("outcome: %v", err)
			}
			if !bytes.Equal(out.Payload, payload) {
				t.Fatalf("payload mismatch")
			}
		})
	}
}

func TestEndpointBothDirections(t *testing.T) {
	a, b, _ := busPair(t, 32)
	ctx := context.Background()
	pa := randomPayload(100, 1)
	pb := randomPayload(77, 2)
	if _, err := a.Send(ctx, pa); err != nil {
		t.Fatalf("a.Send: %v", err)
	}
	if _, err := b.Send(ctx, pb); err != nil {
		t.Fatalf("b.Send: %v", err)
	}
	gotB, _ := b.Poll()
	gotA, _ := a.Poll()
	if len(gotB) != 1 || !bytes.Equal(gotB[0].Payload, pa) {
		t.Fatalf("b did not receive a's payload")
	}
	if len(gotA) != 1 || !bytes.Equal(gotA[0].Payload, pb) {
		t.Fatalf("a did not receive b's payload")
	}
}

func TestEndpointTransmitErrorThenRecovery(t *testing.T) {
	a, b, ha := busPair(t, 64)
	dataID := host.ChannelIDFromName(DefaultOutboundData)
	ha.FailWrites(func(id host.ChannelID, n int) error {
		if id == dataID && n == 3 {
			return errors.New("area busy")
		}
		return nil
	})

	ctx := context.Background()
	_, err := a.Send(ctx, randomPayload(640, 3))
	var te *transfer.TransmitError
	if !errors.As(err, &te) || !errors.Is(err, transfer.ErrTransmit) {
		t.Fatalf("expected TransmitError, got %v", err)
	}
	if te.Frame != 2 || te.Offset != 128 {
		t.Fatalf("unexpected failure position %+v", te)
	}
	if a.Sender().State() != transfer.StateIdle {
		t.Fatalf("sender not idle after abort: %v", a.Sender().State())
	}

	outs, err := b.Poll()
	if err != nil || len(outs) != 0 {
		t.Fatalf("expected stalled receiver, got %d outcomes (%v)", len(outs), err)
	}
	if b.Receiver().State() != transfer.StateStreaming {
		t.Fatalf("receiver state %v", b.Receiver().State())
	}

	ha.FailWrites(nil)
	next := randomPayload(200, 4)
	if _, err := a.Send(ctx, next); err != nil {
		t.Fatalf("Send: %v", err)
	}
	outs, _ = b.Poll()
	if len(outs) != 1 || !bytes.Equal(outs[0].Payload, next) {
		t.Fatalf("receiver did not recover with the next transfer")
	}
	if s := b.Stats(); s.Abandoned != 1 || s.TransfersReceived != 1 {
		t.Fatalf("unexpected receiver stats %+v", s)
	}
	if s := a.Stats(); s.TransmitErrors != 1 || s.TransfersSent != 1 {
		t.Fatalf("unexpected sender stats %+v", s)
	}
}

func TestEndpointDropsStrayFrames(t *testing.T) {
	a, b, ha := busPair(t, 16)
	dataID := host.ChannelIDFromName(DefaultOutboundData)
	if err := ha.SetContents(context.Background(), dataID, 0, bytes.Repeat([]byte{9}, 16)); err != nil {
		t.Fatalf("SetContents: %v", err)
	}
	outs, err := b.Poll()
	if err != nil || len(outs) != 0 {
		t.Fatalf("stray frame produced %d outcomes (%v)", len(outs), err)
	}
	if b.Stats().DroppedFrames != 1 {
		t.Fatalf("stray frame not counted")
	}

	payload := randomPayload(40, 5)
	if _, err := a.Send(context.Background(), payload); err != nil {
		t.Fatalf("Send: %v", err)
	}
	outs, _ = b.Poll()
	if len(outs) != 1 || !bytes.Equal(outs[0].Payload, payload) {
		t.Fatalf("transfer after stray frame failed")
	}
}

func TestNewEndpointValidation(t *testing.T) {
	bus := memory.NewBus(memory.WithLogger(logging.Discard()))
	defer bus.Close()
	h, _ := bus.Connect("a")

	for _, fs := range []int{0, -1, host.MaxFrameSize + 1} {
		if _, err := NewEndpoint(h, testConfig(fs)); !errors.Is(err, transfer.ErrInvalidFrameSize) {
			t.Fatalf("frame size %d: expected ErrInvalidFrameSize, got %v", fs, err)
		}
	}
	// Nothing was declared, so valid names are still free.
	if _, err := h.DeclareChannel(DefaultOutboundMeta); err != nil {
		t.Fatalf("invalid config touched the host: %v", err)
	}

	cfg := testConfig(64)
	cfg.Channels.InboundData = cfg.Channels.OutboundData
	if _, err := NewEndpoint(h, cfg); !errors.Is(err, ErrInvalidChannels) {
		t.Fatalf("expected ErrInvalidChannels, got %v", err)
	}
}

func TestNewEndpointFrameSizeDisagreement(t *testing.T) {
	bus := memory.NewBus(memory.WithLogger(logging.Discard()))
	defer bus.Close()
	ha, _ := bus.Connect("a")
	hb, _ := bus.Connect("b")
	if _, err := NewEndpoint(ha, testConfig(64), WithLogger(logging.Discard())); err != nil {
		t.Fatalf("NewEndpoint: %v", err)
	}
	cfg := testConfig(128)
	cfg.Channels = cfg.Channels.Mirror()
	if _, err := NewEndpoint(hb, cfg, WithLogger(logging.Discard())); !errors.Is(err, host.ErrLayoutMismatch) {
		t.Fatalf("expected ErrLayoutMismatch, got %v", err)
	}
}

func TestEndpointObserver(t *testing.T) {
	bus := memory.NewBus(memory.WithLogger(logging.Discard()))
	defer bus.Close()
	h, _ := bus.Connect("a")
	var seen []transfer.Transition
	e, err := NewEndpoint(h, testConfig(8), WithLogger(logging.Discard()), WithObserver(func(tr transfer.Transition) {
		seen = append(seen, tr)
	}))
	if err != nil {
		t.Fatalf("NewEndpoint: %v", err)
	}
	if _, err := e.Send(context.Background(), []byte("abc")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	want := []transfer.State{transfer.StateMetaSent, transfer.StateStreaming, transfer.StateCompleted, transfer.StateIdle}
	if len(seen) != len(want) {
		t.Fatalf("saw %d transitions, want %d", len(seen), len(want))
	}
	for i, tr := range seen {
		if tr.Role != transfer.RoleSender || tr.To != want[i] {
			t.Fatalf("transition %d = %+v", i, tr)
		}
	}
}

func TestChannelNamesMirror(t *testing.T) {
	n := DefaultEndpointConfig().Channels
	m := n.Mirror()
	if m.OutboundMeta != n.InboundMeta || m.InboundData != n.OutboundData {
		t.Fatalf("mirror did not swap: %+v", m)
	}
	if m.Mirror() != n {
		t.Fatalf("mirror is not an involution")
	}
}

func TestEndpointOverLink(t *testing.T) {
	ca, cb := link.Pipe()
	ha := link.New(ca, link.WithLogger(logging.Discard()))
	hb := link.New(cb, link.WithLogger(logging.Discard()))

	cfg := testConfig(1024)
	a, err := NewEndpoint(ha, cfg, WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("NewEndpoint a: %v", err)
	}
	cfg.Channels = cfg.Channels.Mirror()
	b, err := NewEndpoint(hb, cfg, WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("NewEndpoint b: %v", err)
	}
	defer b.Close()

	payload := randomPayload(300_000, 6)
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		_, err := a.Send(ctx, payload)
		return err
	})
	g.Go(func() error {
		deadline := time.Now().Add(10 * time.Second)
		for time.Now().Before(deadline) {
			outs, err := b.Poll()
			if err != nil {
				return err
			}
			if len(outs) > 0 {
				if !bytes.Equal(outs[0].Payload, payload) {
					return errors.New("payload mismatch")
				}
				return outs[0].Err()
			}
			time.Sleep(time.Millisecond)
		}
		return errors.New("timed out waiting for transfer")
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("transfer over link: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
