package transfer

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFrameSize is the configuration error: frames must hold at
	// least one byte.
	ErrInvalidFrameSize    = errors.New("transfer: frame size must be positive")
	ErrShortMeta           = errors.New("transfer: meta record too short")
	ErrTransmit            = errors.New("transfer: transmit failed")
	ErrUnarmedTransfer     = errors.New("transfer: frame received with no active transfer")
	ErrExtraFrame          = errors.New("transfer: frame received after transfer completed")
	ErrFingerprintMismatch = errors.New("transfer: fingerprint mismatch")
	ErrSendInProgress      = errors.New("transfer: send already in progress")
)

// TransmitError reports the host rejecting a write. The payload is left
// partially delivered; nothing is retried.
type TransmitError struct {
	Channel string // "meta" or "data"
	Frame   uint64 // 0-based frame index, meaningful for the data channel
	Offset  uint64 // payload offset of the failed frame
	Err     error
}

func (e *TransmitError) Error() string {
	if e.Channel == channelMeta {
		return fmt.Sprintf("transfer: transmit failed on meta channel: %v", e.Err)
	}
	return fmt.Sprintf("transfer: transmit failed on data frame %d (offset %d): %v", e.Frame, e.Offset, e.Err)
}

func (e *TransmitError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransmit) match any TransmitError.
func (e *TransmitError) Is(target error) bool { return target == ErrTransmit }

const (
	channelMeta = "meta"
	channelData = "data"
)
