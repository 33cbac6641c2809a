// Package config loads ChanStream settings from TOML.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/TheusHen/ChanStream/chanstream"
	"github.com/TheusHen/ChanStream/chanstream/host"
	"github.com/TheusHen/ChanStream/chanstream/transfer"
	"github.com/TheusHen/ChanStream/chanstream/transfer/erasure"
	"github.com/TheusHen/ChanStream/internal/logging"
)

const (
	TransportQUIC = "quic"
	TransportWS   = "ws"

	DefaultAddr = "[::1]:4850"
	DefaultPath = "/chanstream"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Network selects the transport and where it listens or dials.
type Network struct {
	Transport string `toml:"transport"`
	Addr      string `toml:"addr"`
	Path      string `toml:"path"`
}

// Envelope configures the payload wrapping applied before streaming.
type Envelope struct {
	Compression   string `toml:"compression"`
	ErasureData   int    `toml:"erasure_data"`
	ErasureParity int    `toml:"erasure_parity"`
}

// Erasure reports whether Reed-Solomon protection is enabled.
func (e Envelope) Erasure() bool { return e.ErasureData > 0 || e.ErasureParity > 0 }

// Config is the TOML document.
type Config struct {
	FrameSize int                     `toml:"frame_size"`
	LogLevel  string                  `toml:"log_level"`
	Channels  chanstream.ChannelNames `toml:"channels"`
	Network   Network                 `toml:"network"`
	Envelope  Envelope                `toml:"envelope"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	ep := chanstream.DefaultEndpointConfig()
	return Config{
		FrameSize: ep.FrameSize,
		LogLevel:  "info",
		Channels:  ep.Channels,
		Network: Network{
			Transport: TransportQUIC,
			Addr:      DefaultAddr,
			Path:      DefaultPath,
		},
		Envelope: Envelope{Compression: "none"},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
	}
	cfg.Network.Transport = strings.ToLower(strings.TrimSpace(cfg.Network.Transport))
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges, names and enumerated values.
func Validate(cfg Config) error {
	if cfg.FrameSize < 1 || cfg.FrameSize > host.MaxFrameSize {
		return fmt.Errorf("%w: frame_size %d not in 1..%d", ErrInvalid, cfg.FrameSize, host.MaxFrameSize)
	}
	if err := cfg.Channels.Validate(); err != nil {
		return fmt.Errorf("%w: channels: %w", ErrInvalid, err)
	}
	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: log_level %q", ErrInvalid, cfg.LogLevel)
	}
	switch cfg.Network.Transport {
	case TransportQUIC, TransportWS:
	default:
		return fmt.Errorf("%w: transport %q", ErrInvalid, cfg.Network.Transport)
	}
	if cfg.Network.Addr == "" {
		return fmt.Errorf("%w: empty addr", ErrInvalid)
	}
	if _, err := transfer.ParseCompressionLevel(cfg.Envelope.Compression); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if cfg.Envelope.Erasure() {
		if _, err := erasure.NewCodec(cfg.Envelope.ErasureData, cfg.Envelope.ErasureParity); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	return nil
}

// Mirror returns the configuration the peer uses: same settings with the
// inbound and outbound channels swapped.
func (c Config) Mirror() Config {
	c.Channels = c.Channels.Mirror()
	return c
}

// Endpoint returns the endpoint settings.
func (c Config) Endpoint() chanstream.EndpointConfig {
	return chanstream.EndpointConfig{FrameSize: c.FrameSize, Channels: c.Channels}
}

// Compression returns the parsed compression level. Validate first.
func (c Config) Compression() transfer.CompressionLevel {
	lvl, _ := transfer.ParseCompressionLevel(c.Envelope.Compression)
	return lvl
}
