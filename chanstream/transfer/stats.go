package transfer

import "sync/atomic"

// Stats tracks transfer counters. Fields may be read from other goroutines
// while the owning session runs.
type Stats struct {
	TransfersSent     atomic.Uint64
	FramesSent        atomic.Uint64
	BytesSent         atomic.Uint64
	TransmitErrors    atomic.Uint64
	TransfersReceived atomic.Uint64
	FramesReceived    atomic.Uint64
	BytesReceived     atomic.Uint64
	Mismatches        atomic.Uint64
	DroppedFrames     atomic.Uint64
	Abandoned         atomic.Uint64 // partial transfers reset by a new meta record
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	TransfersSent     uint64
	FramesSent        uint64
	BytesSent         uint64
	TransmitErrors    uint64
	TransfersReceived uint64
	FramesReceived    uint64
	BytesReceived     uint64
	Mismatches        uint64
	DroppedFrames     uint64
	Abandoned         uint64
}

// Snapshot loads every counter.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TransfersSent:     s.TransfersSent.Load(),
		FramesSent:        s.FramesSent.Load(),
		BytesSent:         s.BytesSent.Load(),
		TransmitErrors:    s.TransmitErrors.Load(),
		TransfersReceived: s.TransfersReceived.Load(),
		FramesReceived:    s.FramesReceived.Load(),
		BytesReceived:     s.BytesReceived.Load(),
		Mismatches:        s.Mismatches.Load(),
		DroppedFrames:     s.DroppedFrames.Load(),
		Abandoned:         s.Abandoned.Load(),
	}
}

// Add returns the field-wise sum of two snapshots.
func (s StatsSnapshot) Add(o StatsSnapshot) StatsSnapshot {
	return StatsSnapshot{
		TransfersSent:     s.TransfersSent + o.TransfersSent,
		FramesSent:        s.FramesSent + o.FramesSent,
		BytesSent:         s.BytesSent + o.BytesSent,
		TransmitErrors:    s.TransmitErrors + o.TransmitErrors,
		TransfersReceived: s.TransfersReceived + o.TransfersReceived,
		FramesReceived:    s.FramesReceived + o.FramesReceived,
		BytesReceived:     s.BytesReceived + o.BytesReceived,
		Mismatches:        s.Mismatches + o.Mismatches,
		DroppedFrames:     s.DroppedFrames + o.DroppedFrames,
		Abandoned:         s.Abandoned + o.Abandoned,
	}
}
