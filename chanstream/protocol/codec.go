// Package protocol is the wire format spoken between linked channel hosts.
package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// MaxFramePayload limits a single protocol frame payload.
	MaxFramePayload = 64 << 10

	headerSize    = 5
	setHeaderSize = 8
)

var (
	ErrFrameTooLarge = errors.New("protocol: frame payload too large")
	ErrInvalidType   = errors.New("protocol: invalid message type")
	ErrShortFrame    = errors.New("protocol: short frame")
)

// Frame is the basic wire container.
// Format:
//
//	1 byte: type
//	4 bytes: payload length (big endian)
//	N bytes: payload
type Frame struct {
	Type    MessageType
	Payload []byte
}

// Marshal encodes f into a single buffer, for message-oriented links.
func Marshal(f Frame) ([]byte, error) {
	if f.Type == 0 {
		return nil, ErrInvalidType
	}
	if len(f.Payload) > MaxFramePayload {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, headerSize+len(f.Payload))
	buf[0] = byte(f.Type)
	binary.BigEndian.PutUint32(buf[1:headerSize], uint32(len(f.Payload)))
	copy(buf[headerSize:], f.Payload)
	return buf, nil
}

// Unmarshal decodes one frame from buf. Trailing bytes are rejected.
func Unmarshal(buf []byte) (Frame, error) {
	if len(buf) < headerSize {
		return Frame{}, ErrShortFrame
	}
	mt := MessageType(buf[0])
	if mt == 0 {
		return Frame{}, ErrInvalidType
	}
	n := binary.BigEndian.Uint32(buf[1:headerSize])
	if n > MaxFramePayload {
		return Frame{}, fmt.Errorf("%w: %d", ErrFrameTooLarge, n)
	}
	if uint32(len(buf)-headerSize) != n {
		return Frame{}, fmt.Errorf("%w: header says %d, have %d", ErrShortFrame, n, len(buf)-headerSize)
	}
	return Frame{Type: mt, Payload: buf[headerSize:]}, nil
}

func WriteFrame(w io.Writer, f Frame) error {
	if f.Type == 0 {
		return ErrInvalidType
	}
	if len(f.Payload) > MaxFramePayload {
		return ErrFrameTooLarge
	}

	bw := bufio.NewWriterSize(w, headerSize+len(f.Payload))
	if err := bw.WriteByte(byte(f.Type)); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(f.Payload)))
	if _, err := bw.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(f.Payload) > 0 {
		if _, err := bw.Write(f.Payload); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadRaw reads exactly one encoded frame from r, header included, and
// nothing more, so it is safe to call repeatedly on a stream.
func ReadRaw(r io.Reader) ([]byte, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	payloadLen := binary.BigEndian.Uint32(hdr[1:])
	if payloadLen > MaxFramePayload {
		return nil, fmt.Errorf("%w: %d", ErrFrameTooLarge, payloadLen)
	}
	buf := make([]byte, headerSize+int(payloadLen))
	copy(buf, hdr[:])
	if _, err := io.ReadFull(r, buf[headerSize:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

func ReadFrame(r io.Reader) (Frame, error) {
	raw, err := ReadRaw(r)
	if err != nil {
		return Frame{}, err
	}
	return Unmarshal(raw)
}

// Set is a write of Data at Offset into a channel area.
type Set struct {
	Channel uint32
	Offset  uint32
	Data    []byte
}

// Frame wraps s in a SET frame.
func (s Set) Frame() Frame {
	p := make([]byte, setHeaderSize+len(s.Data))
	binary.BigEndian.PutUint32(p[0:4], s.Channel)
	binary.BigEndian.PutUint32(p[4:8], s.Offset)
	copy(p[setHeaderSize:], s.Data)
	return Frame{Type: MessageTypeSet, Payload: p}
}

// DecodeSet parses a SET payload. Data aliases payload.
func DecodeSet(payload []byte) (Set, error) {
	if len(payload) < setHeaderSize {
		return Set{}, fmt.Errorf("%w: set payload %d bytes", ErrShortFrame, len(payload))
	}
	return Set{
		Channel: binary.BigEndian.Uint32(payload[0:4]),
		Offset:  binary.BigEndian.Uint32(payload[4:8]),
		Data:    payload[setHeaderSize:],
	}, nil
}

// OpenFrame starts a stream-based link.
func OpenFrame() Frame { return Frame{Type: MessageTypeOpen} }

// CloseFrame tells the peer no more frames follow.
func CloseFrame() Frame { return Frame{Type: MessageTypeClose} }
