package erasure

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/TheusHen/ChanStream/chanstream/transfer"
)

var (
	ErrBadEnvelope = errors.New("erasure: malformed envelope")
)

// envelopeMagic identifies a protected envelope ("CSRS").
const envelopeMagic = uint32(0x43535253)

// headerSize is the fixed envelope prefix before the shard fingerprints.
const headerSize = 4 + 8 + 1 + 1 + 4

// Protect encodes payload into a self-describing envelope.
// Format (big endian):
//
//	4 bytes: magic
//	8 bytes: payload size
//	1 byte:  data shards - 1
//	1 byte:  parity shards - 1
//	4 bytes: shard size
//	8 bytes per shard: shard fingerprint
//	shard bytes, data shards first
func Protect(payload []byte, dataShards, parityShards int) ([]byte, error) {
	codec, err := NewCodec(dataShards, parityShards)
	if err != nil {
		return nil, err
	}

	var shards [][]byte
	shardSize := 0
	if len(payload) > 0 {
		if shards, err = codec.EncodeData(payload); err != nil {
			return nil, err
		}
		shardSize = len(shards[0])
	}

	total := codec.TotalShards()
	out := make([]byte, headerSize+8*total, headerSize+8*total+shardSize*total)
	binary.BigEndian.PutUint32(out[0:4], envelopeMagic)
	binary.BigEndian.PutUint64(out[4:12], uint64(len(payload)))
	out[12] = byte(dataShards - 1)
	out[13] = byte(parityShards - 1)
	binary.BigEndian.PutUint32(out[14:18], uint32(shardSize))
	for i := 0; i < total; i++ {
		var fp uint64
		if shards != nil {
			fp = transfer.Fingerprint(shards[i])
		}
		binary.BigEndian.PutUint64(out[headerSize+8*i:], fp)
	}
	for _, s := range shards {
		out = append(out, s...)
	}
	return out, nil
}

// Repair recovers the payload from a possibly damaged envelope. It returns
// the number of shards that failed their fingerprint and were rebuilt.
func Repair(envelope []byte) ([]byte, int, error) {
	if len(envelope) < headerSize || binary.BigEndian.Uint32(envelope[0:4]) != envelopeMagic {
		return nil, 0, ErrBadEnvelope
	}
	size := binary.BigEndian.Uint64(envelope[4:12])
	dataShards := int(envelope[12]) + 1
	parityShards := int(envelope[13]) + 1
	shardSize := int(binary.BigEndian.Uint32(envelope[14:18]))

	codec, err := NewCodec(dataShards, parityShards)
	if err != nil {
		return nil, 0, err
	}
	total := codec.TotalShards()
	body := headerSize + 8*total
	if len(envelope) != body+shardSize*total {
		return nil, 0, fmt.Errorf("%w: length %d, want %d", ErrBadEnvelope, len(envelope), body+shardSize*total)
	}
	if size > uint64(shardSize*dataShards) {
		return nil, 0, fmt.Errorf("%w: size %d exceeds shard capacity", ErrBadEnvelope, size)
	}
	if size == 0 {
		return []byte{}, 0, nil
	}

	shards := make([][]byte, total)
	damaged := 0
	for i := range shards {
		off := body + i*shardSize
		shard := envelope[off : off+shardSize : off+shardSize]
		if transfer.Fingerprint(shard) != binary.BigEndian.Uint64(envelope[headerSize+8*i:]) {
			damaged++
			continue
		}
		shards[i] = append([]byte(nil), shard...)
	}
	if damaged > 0 {
		if err := codec.ReconstructData(shards); err != nil {
			return nil, damaged, err
		}
	}
	return codec.Join(shards, int(size)), damaged, nil
}
