package transfer

import "iter"

// Frame is one fixed-size write on the data channel.
type Frame struct {
	Index  uint64
	Offset uint64 // offset of Data[0] within the payload
	Data   []byte // always exactly the framer's size
	Len    int    // bytes of Data that are payload; the rest is padding
}

// Framer splits payloads into fixed-size, zero-padded frames.
type Framer struct {
	frameSize int
}

// NewFramer creates a framer producing frameSize-byte frames.
func NewFramer(frameSize int) (*Framer, error) {
	if frameSize <= 0 {
		return nil, ErrInvalidFrameSize
	}
	return &Framer{frameSize: frameSize}, nil
}

// FrameSize returns the configured frame size.
func (f *Framer) FrameSize() int { return f.frameSize }

// Count returns the number of frames a payload of n bytes produces.
func (f *Framer) Count(n int) uint64 { return FrameCount(uint64(n), f.frameSize) }

// Frames yields the frames of payload in increasing offset order. Full
// frames alias payload; only the padded tail is copied. Each call starts
// over from offset zero.
func (f *Framer) Frames(payload []byte) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		var index uint64
		for off := 0; off < len(payload); off += f.frameSize {
			end := off + f.frameSize
			fr := Frame{Index: index, Offset: uint64(off)}
			if end <= len(payload) {
				fr.Data = payload[off:end:end]
				fr.Len = f.frameSize
			} else {
				fr.Data = make([]byte, f.frameSize)
				fr.Len = copy(fr.Data, payload[off:])
			}
			if !yield(fr) {
				return
			}
			index++
		}
	}
}

// Split collects every frame of payload.
func (f *Framer) Split(payload []byte) []Frame {
	frames := make([]Frame, 0, f.Count(len(payload)))
	for fr := range f.Frames(payload) {
		frames = append(frames, fr)
	}
	return frames
}
