package transfer

import (
	"github.com/pterm/pterm"
)

// Receiver consumes meta records and frames routed from the host's
// dispatch step. It is not safe for concurrent use.
type Receiver struct {
	buf   *ReassemblyBuffer
	log   *pterm.Logger
	stats Stats
	m     machine
}

// NewReceiver creates an idle receiver.
func NewReceiver(cfg Config) *Receiver {
	return &Receiver{
		buf: NewReassemblyBuffer(),
		log: cfg.logger(),
		m:   machine{role: RoleReceiver, observer: cfg.Observer},
	}
}

// OnMeta arms a new transfer, discarding any partial one. A zero-size
// record yields a terminal outcome immediately.
func (r *Receiver) OnMeta(meta MetaRecord) Outcome {
	if r.m.state == StateStreaming {
		r.stats.Abandoned.Add(1)
		r.log.Warn("partial stream abandoned by new meta record", r.log.Args(
			"received_bytes", r.buf.Received(),
			"expected_bytes", r.buf.Expected().Size,
			"frames", r.buf.Frames(),
		))
		r.m.to(StateIdle)
	}

	r.m.to(StateMetaReceived)
	r.log.Info("stream meta received", r.log.Args("size", meta.Size, "fingerprint", meta.Fingerprint))
	out := r.buf.Arm(meta)
	r.m.to(StateStreaming)
	if out.Done {
		r.finish(out)
	}
	return out
}

// OnFrame feeds one data frame. ErrUnarmedTransfer and ErrExtraFrame mean
// the frame was dropped; neither affects later transfers.
func (r *Receiver) OnFrame(frame []byte) (Outcome, error) {
	out, err := r.buf.Accept(frame)
	if err != nil {
		r.stats.DroppedFrames.Add(1)
		r.log.Warn("frame dropped", r.log.Args("bytes", len(frame), "reason", err))
		return out, err
	}
	r.stats.FramesReceived.Add(1)
	r.log.Trace("frame received", r.log.Args("frames", out.Frames, "bytes", out.Size))
	if out.Done {
		r.finish(out)
	}
	return out, nil
}

func (r *Receiver) finish(out Outcome) {
	r.m.to(StateCompleted)
	r.stats.TransfersReceived.Add(1)
	r.stats.BytesReceived.Add(out.Size)
	args := r.log.Args(
		"size", out.Size,
		"frames", out.Frames,
		"fingerprint", out.Fingerprint,
		"match", out.FingerprintMatched,
	)
	if out.FingerprintMatched {
		r.log.Info("stream received", args)
	} else {
		r.stats.Mismatches.Add(1)
		r.log.Warn("stream received with fingerprint mismatch", args)
	}
	r.m.to(StateIdle)
}

// State returns the receiver's lifecycle state.
func (r *Receiver) State() State { return r.m.state }

// Progress returns the fraction of the current transfer received.
func (r *Receiver) Progress() float64 { return r.buf.Progress() }

// Stats returns the receiver's counters.
func (r *Receiver) Stats() *Stats { return &r.stats }
