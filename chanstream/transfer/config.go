package transfer

import (
	"context"

	"github.com/TheusHen/ChanStream/internal/logging"
	"github.com/pterm/pterm"
)

// DefaultFrameSize matches the largest area a host hands out (8 KiB).
const DefaultFrameSize = 8192

// Config configures a Sender or Receiver.
type Config struct {
	FrameSize int              // bytes per data frame; the receiver ignores it
	Logger    *pterm.Logger    // nil uses the shared logger
	Observer  func(Transition) // called on every state change, may be nil
}

// DefaultConfig returns the host-sized defaults.
func DefaultConfig() Config {
	return Config{FrameSize: DefaultFrameSize}
}

func (c Config) logger() *pterm.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.Logger()
}

// ChannelWriter is the host's bounded set-contents primitive bound to one
// channel.
type ChannelWriter interface {
	SetContents(ctx context.Context, data []byte) error
}

// ChannelWriterFunc adapts a function to ChannelWriter.
type ChannelWriterFunc func(ctx context.Context, data []byte) error

func (f ChannelWriterFunc) SetContents(ctx context.Context, data []byte) error {
	return f(ctx, data)
}
