package transfer

import (
	"context"

	"github.com/pterm/pterm"
)

// SendReport summarizes one send. On a TransmitError it holds what was
// delivered before the failure.
type SendReport struct {
	Size        uint64
	Fingerprint uint64
	Frames      uint64
	BytesSent   uint64 // payload bytes, padding excluded
}

// Sender publishes a meta record and streams frames over a channel pair.
type Sender struct {
	meta   ChannelWriter
	data   ChannelWriter
	framer *Framer
	log    *pterm.Logger
	stats  Stats
	m      machine
}

// NewSender creates a sender writing to the given meta and data channels.
func NewSender(meta, data ChannelWriter, cfg Config) (*Sender, error) {
	framer, err := NewFramer(cfg.FrameSize)
	if err != nil {
		return nil, err
	}
	return &Sender{
		meta:   meta,
		data:   data,
		framer: framer,
		log:    cfg.logger(),
		m:      machine{role: RoleSender, observer: cfg.Observer},
	}, nil
}

// Send transmits payload synchronously. The first failed write aborts the
// rest of the payload and returns a *TransmitError; the receiver is not told
// and will wait for frames that never come.
func (s *Sender) Send(ctx context.Context, payload []byte) (SendReport, error) {
	if s.m.state != StateIdle {
		return SendReport{}, ErrSendInProgress
	}

	meta := MetaFor(payload)
	report := SendReport{Size: meta.Size, Fingerprint: meta.Fingerprint}

	if err := s.meta.SetContents(ctx, EncodeMeta(meta)); err != nil {
		s.stats.TransmitErrors.Add(1)
		s.log.Error("meta publish failed", s.log.Args("size", meta.Size, "error", err))
		return report, &TransmitError{Channel: channelMeta, Err: err}
	}
	s.m.to(StateMetaSent)
	s.log.Info("stream meta published", s.log.Args(
		"size", meta.Size,
		"fingerprint", meta.Fingerprint,
		"frames", s.framer.Count(len(payload)),
	))

	s.m.to(StateStreaming)
	for fr := range s.framer.Frames(payload) {
		if err := s.data.SetContents(ctx, fr.Data); err != nil {
			s.stats.TransmitErrors.Add(1)
			s.log.Error("frame transmit failed", s.log.Args(
				"frame", fr.Index,
				"offset", fr.Offset,
				"sent_bytes", report.BytesSent,
				"error", err,
			))
			s.m.to(StateIdle)
			return report, &TransmitError{Channel: channelData, Frame: fr.Index, Offset: fr.Offset, Err: err}
		}
		report.Frames++
		report.BytesSent += uint64(fr.Len)
		s.stats.FramesSent.Add(1)
		s.stats.BytesSent.Add(uint64(fr.Len))
		s.log.Trace("frame sent", s.log.Args("frame", fr.Index, "bytes", fr.Len))
	}

	s.m.to(StateCompleted)
	s.stats.TransfersSent.Add(1)
	s.log.Info("stream sent", s.log.Args("frames", report.Frames, "bytes", report.BytesSent))
	s.m.to(StateIdle)
	return report, nil
}

// State returns the sender's lifecycle state.
func (s *Sender) State() State { return s.m.state }

// FrameSize returns the data frame size.
func (s *Sender) FrameSize() int { return s.framer.FrameSize() }

// Stats returns the sender's counters.
func (s *Sender) Stats() *Stats { return &s.stats }
