package transfer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pierrec/lz4/v4"
)

var (
	ErrCompressionFailed   = errors.New("transfer: compression failed")
	ErrDecompressionFailed = errors.New("transfer: decompression failed")
	ErrUnknownEnvelope     = errors.New("transfer: unknown payload envelope")
)

// CompressionLevel controls the speed/ratio tradeoff of EncodePayload.
type CompressionLevel int

const (
	CompressionNone CompressionLevel = iota
	CompressionFast
	CompressionDefault
	CompressionBest
)

// ParseCompressionLevel maps a config name to a level.
func ParseCompressionLevel(s string) (CompressionLevel, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "fast":
		return CompressionFast, nil
	case "default":
		return CompressionDefault, nil
	case "best":
		return CompressionBest, nil
	}
	return CompressionNone, fmt.Errorf("transfer: unknown compression level %q", s)
}

// Envelope flag bytes prefixed by EncodePayload.
const (
	envelopeRaw byte = 0x00
	envelopeLZ4 byte = 0x01
)

var compressorPool = sync.Pool{
	New: func() interface{} {
		return lz4.NewWriter(nil)
	},
}

var decompressorPool = sync.Pool{
	New: func() interface{} {
		return lz4.NewReader(nil)
	},
}

// Compress compresses data into an LZ4 frame.
func Compress(data []byte, level CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	w := compressorPool.Get().(*lz4.Writer)
	defer compressorPool.Put(w)

	w.Reset(&buf)

	switch level {
	case CompressionFast:
		_ = w.Apply(lz4.CompressionLevelOption(lz4.Fast))
	case CompressionBest:
		_ = w.Apply(lz4.CompressionLevelOption(lz4.Level9))
	default:
		_ = w.Apply(lz4.CompressionLevelOption(lz4.Level4))
	}

	if _, err := w.Write(data); err != nil {
		return nil, ErrCompressionFailed
	}
	if err := w.Close(); err != nil {
		return nil, ErrCompressionFailed
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	r := decompressorPool.Get().(*lz4.Reader)
	defer decompressorPool.Put(r)

	r.Reset(bytes.NewReader(data))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, ErrDecompressionFailed
	}
	return buf.Bytes(), nil
}

// EncodePayload wraps payload in a one-byte envelope, compressing the body
// when level asks for it and the result is smaller. The envelope is what
// gets fingerprinted and framed.
func EncodePayload(payload []byte, level CompressionLevel) ([]byte, error) {
	if level != CompressionNone && len(payload) > 0 {
		compressed, err := Compress(payload, level)
		if err != nil {
			return nil, err
		}
		if len(compressed) < len(payload) {
			return append([]byte{envelopeLZ4}, compressed...), nil
		}
	}
	return append([]byte{envelopeRaw}, payload...), nil
}

// DecodePayload unwraps an EncodePayload envelope.
func DecodePayload(envelope []byte) ([]byte, error) {
	if len(envelope) == 0 {
		return nil, ErrUnknownEnvelope
	}
	switch envelope[0] {
	case envelopeRaw:
		return envelope[1:], nil
	case envelopeLZ4:
		return Decompress(envelope[1:])
	}
	return nil, fmt.Errorf("%w: flag %#02x", ErrUnknownEnvelope, envelope[0])
}
