package transfer

import "fmt"

// maxReserve bounds the up-front allocation made on Arm. The declared size
// comes off the wire, so larger payloads grow the buffer as frames arrive.
const maxReserve = 64 << 20

// Outcome is the result of feeding a meta record or frame to the receiver.
type Outcome struct {
	Done               bool
	Size               uint64 // bytes accounted to the payload so far
	Frames             uint32 // frames accepted so far
	Expected           MetaRecord
	Fingerprint        uint64 // computed over Payload, set when Done
	FingerprintMatched bool
	Payload            []byte // assembled payload when Done, owned by the caller
}

// Err reports a completed transfer whose fingerprint did not match.
func (o Outcome) Err() error {
	if !o.Done || o.FingerprintMatched {
		return nil
	}
	return fmt.Errorf("%w: expected %016x, got %016x", ErrFingerprintMismatch, o.Expected.Fingerprint, o.Fingerprint)
}

type bufferState uint8

const (
	bufferUnarmed bufferState = iota
	bufferFilling
	bufferComplete
)

// ReassemblyBuffer accumulates data frames until the size announced by the
// last Arm is reached. Padding past the declared size is never appended.
type ReassemblyBuffer struct {
	expected MetaRecord
	received uint64
	frames   uint32
	buf      []byte
	state    bufferState
}

// NewReassemblyBuffer returns an unarmed buffer.
func NewReassemblyBuffer() *ReassemblyBuffer {
	return &ReassemblyBuffer{}
}

// Arm discards any partial transfer and prepares for meta. A zero-size
// transfer completes immediately.
func (r *ReassemblyBuffer) Arm(meta MetaRecord) Outcome {
	r.expected = meta
	r.received = 0
	r.frames = 0
	r.buf = make([]byte, 0, min(meta.Size, maxReserve))
	r.state = bufferFilling
	if meta.Size == 0 {
		return r.complete()
	}
	return r.progress()
}

// Accept appends the payload portion of frame.
func (r *ReassemblyBuffer) Accept(frame []byte) (Outcome, error) {
	switch r.state {
	case bufferUnarmed:
		return Outcome{}, ErrUnarmedTransfer
	case bufferComplete:
		return Outcome{}, ErrExtraFrame
	}

	remaining := r.expected.Size - r.received
	take := uint64(len(frame))
	if take > remaining {
		take = remaining
	}
	r.buf = append(r.buf, frame[:take]...)
	r.received += take
	r.frames++

	if r.received >= r.expected.Size {
		return r.complete(), nil
	}
	return r.progress(), nil
}

func (r *ReassemblyBuffer) progress() Outcome {
	return Outcome{Size: r.received, Frames: r.frames, Expected: r.expected}
}

func (r *ReassemblyBuffer) complete() Outcome {
	fp := Fingerprint(r.buf)
	out := Outcome{
		Done:               true,
		Size:               r.received,
		Frames:             r.frames,
		Expected:           r.expected,
		Fingerprint:        fp,
		FingerprintMatched: fp == r.expected.Fingerprint,
		Payload:            r.buf,
	}
	r.buf = nil
	r.state = bufferComplete
	return out
}

// Armed reports whether frames are currently being accepted.
func (r *ReassemblyBuffer) Armed() bool { return r.state == bufferFilling }

// Expected returns the meta record of the current or last transfer.
func (r *ReassemblyBuffer) Expected() MetaRecord { return r.expected }

// Received returns the payload bytes accepted so far.
func (r *ReassemblyBuffer) Received() uint64 { return r.received }

// Frames returns the frames accepted so far.
func (r *ReassemblyBuffer) Frames() uint32 { return r.frames }

// Progress returns the fraction of the declared size received (0.0 to 1.0).
func (r *ReassemblyBuffer) Progress() float64 {
	switch {
	case r.state == bufferComplete:
		return 1
	case r.state == bufferUnarmed || r.expected.Size == 0:
		return 0
	}
	return float64(r.received) / float64(r.expected.Size)
}
