// Package chanstream streams arbitrarily large payloads between two peers
// that share only small, fixed-capacity host channels.
//
// Each direction uses a channel pair: a 16-byte meta channel announcing the
// size and fingerprint of the next payload, and a data channel carrying the
// payload as fixed-size frames. An Endpoint binds one host connection to an
// outbound pair (its transfer.Sender) and an inbound pair (its
// transfer.Receiver).
//
// Hosts are pluggable: host/memory connects endpoints inside one process,
// host/link connects them across a QUIC or WebSocket link from the
// transport packages.
package chanstream
