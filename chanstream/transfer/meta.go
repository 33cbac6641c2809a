package transfer

import (
	"encoding/binary"
	"fmt"
)

// MetaRecordSize is the wire size of a MetaRecord.
const MetaRecordSize = 16

// MetaRecord announces the payload about to be streamed.
// Wire layout (little endian, unpadded):
//
//	8 bytes: size
//	8 bytes: fingerprint
type MetaRecord struct {
	Size        uint64
	Fingerprint uint64
}

// MetaFor describes payload.
func MetaFor(payload []byte) MetaRecord {
	return MetaRecord{Size: uint64(len(payload)), Fingerprint: Fingerprint(payload)}
}

// EncodeMeta serializes m for the meta channel.
func EncodeMeta(m MetaRecord) []byte {
	buf := make([]byte, MetaRecordSize)
	binary.LittleEndian.PutUint64(buf[0:8], m.Size)
	binary.LittleEndian.PutUint64(buf[8:16], m.Fingerprint)
	return buf
}

// DecodeMeta parses a meta channel area. Bytes past the record are ignored
// since hosts may hand back a larger area than was written.
func DecodeMeta(b []byte) (MetaRecord, error) {
	if len(b) < MetaRecordSize {
		return MetaRecord{}, fmt.Errorf("%w: %d bytes", ErrShortMeta, len(b))
	}
	return MetaRecord{
		Size:        binary.LittleEndian.Uint64(b[0:8]),
		Fingerprint: binary.LittleEndian.Uint64(b[8:16]),
	}, nil
}

// FrameCount is ceil(size / frameSize), the number of frames a transfer of
// size bytes occupies. frameSize must be positive.
func FrameCount(size uint64, frameSize int) uint64 {
	fs := uint64(frameSize)
	return size/fs + boolToUint(size%fs != 0)
}

func boolToUint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
