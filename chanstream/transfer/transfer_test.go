package transfer

import (
	"bytes"
	"errors"
	"testing"
)

func TestFingerprintKnownValues(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint64
	}{
		{"empty", nil, 0},
		{"zero byte", []byte{0}, 0x08328807b4eb6fed},
		{"scenario", []byte{1, 2, 3, 4, 5, 6, 7}, 0xa2813e351257d367},
		{"hello", []byte("hello"), 0x80893c2d7b1e0981},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Fingerprint(tc.in); got != tc.want {
				t.Fatalf("Fingerprint = %016x, want %016x", got, tc.want)
			}
		})
	}
}

func TestFingerprintDeterministicAndSensitive(t *testing.T) {
	a := []byte{1, 2, 3, 4, 5, 6, 7}
	b := []byte{1, 2, 3, 4, 5, 6, 8}
	if Fingerprint(a) != Fingerprint(a) {
		t.Fatalf("fingerprint not deterministic")
	}
	// Different inputs are only expected to differ with overwhelming
	// likelihood; this pair is known not to collide.
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatalf("single differing byte produced equal fingerprints")
	}
	if Fingerprint(b) != 0xa22b2435131190a4 {
		t.Fatalf("unexpected fingerprint %016x", Fingerprint(b))
	}
}

func TestFingerprintStreamingMatches(t *testing.T) {
	data := make([]byte, 10_000)
	for i := range data {
		data[i] = byte(i * 7)
	}
	h := NewFingerprint()
	_, _ = h.Write(data[:123])
	_, _ = h.Write(data[123:4096])
	_, _ = h.Write(data[4096:])
	if h.Sum64() != Fingerprint(data) {
		t.Fatalf("streaming fingerprint %016x != %016x", h.Sum64(), Fingerprint(data))
	}
	if len(h.Sum(nil)) != h.Size() {
		t.Fatalf("Sum length mismatch")
	}
	h.Reset()
	if h.Sum64() != 0 {
		t.Fatalf("Reset did not clear state")
	}
}

func TestMetaEncodeLayout(t *testing.T) {
	m := MetaRecord{Size: 7, Fingerprint: 0x0102030405060708}
	b := EncodeMeta(m)
	want := []byte{7, 0, 0, 0, 0, 0, 0, 0, 8, 7, 6, 5, 4, 3, 2, 1}
	if !bytes.Equal(b, want) {
		t.Fatalf("EncodeMeta = %v, want %v", b, want)
	}
	got, err := DecodeMeta(append(b, 0xff, 0xff))
	if err != nil {
		t.Fatalf("DecodeMeta: %v", err)
	}
	if got != m {
		t.Fatalf("DecodeMeta = %+v, want %+v", got, m)
	}
	if _, err := DecodeMeta(b[:15]); !errors.Is(err, ErrShortMeta) {
		t.Fatalf("expected ErrShortMeta, got %v", err)
	}
}

func TestNewFramerRejectsZero(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := NewFramer(size); !errors.Is(err, ErrInvalidFrameSize) {
			t.Fatalf("NewFramer(%d): expected ErrInvalidFrameSize, got %v", size, err)
		}
	}
}

func TestFramerScenario(t *testing.T) {
	f, err := NewFramer(4)
	if err != nil {
		t.Fatalf("NewFramer: %v", err)
	}
	frames := f.Split([]byte{1, 2, 3, 4, 5, 6, 7})
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0].Data, []byte{1, 2, 3, 4}) || frames[0].Len != 4 {
		t.Fatalf("frame 0 = %v (len %d)", frames[0].Data, frames[0].Len)
	}
	if !bytes.Equal(frames[1].Data, []byte{5, 6, 7, 0}) || frames[1].Len != 3 {
		t.Fatalf("frame 1 = %v (len %d)", frames[1].Data, frames[1].Len)
	}
	if frames[1].Offset != 4 || frames[1].Index != 1 {
		t.Fatalf("frame 1 offset/index = %d/%d", frames[1].Offset, frames[1].Index)
	}
}

func TestFramerFrameCount(t *testing.T) {
	const c = 16
	f, _ := NewFramer(c)
	for n := 0; n <= 5*c+7; n++ {
		payload := make([]byte, n)
		frames := f.Split(payload)
		want := (n + c - 1) / c
		if len(frames) != want || f.Count(n) != uint64(want) {
			t.Fatalf("n=%d: got %d frames (Count %d), want %d", n, len(frames), f.Count(n), want)
		}
		for i, fr := range frames {
			if len(fr.Data) != c {
				t.Fatalf("n=%d frame %d has length %d", n, i, len(fr.Data))
			}
		}
	}
}

func TestFramerRestartableAndStoppable(t *testing.T) {
	f, _ := NewFramer(3)
	payload := []byte("abcdefgh")
	seq := f.Frames(payload)

	var first, second [][]byte
	for fr := range seq {
		first = append(first, fr.Data)
	}
	for fr := range seq {
		second = append(second, fr.Data)
	}
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 frames per pass, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if !bytes.Equal(first[i], second[i]) {
			t.Fatalf("pass mismatch at frame %d", i)
		}
	}

	n := 0
	for range seq {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("early break yielded %d frames", n)
	}
}

func BenchmarkFingerprint(b *testing.B) {
	data := make([]byte, 1024*1024)
	for i := range data {
		data[i] = byte(i % 251)
	}
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Fingerprint(data)
	}
}
