// Package transfer moves arbitrarily large payloads across fixed-capacity
// host channels.
//
// A transfer is announced on a meta channel with a 16-byte MetaRecord
// (total size and content fingerprint) and then streamed as fixed-size
// frames on a data channel, the last frame zero-padded. The receiver
// reassembles frames until the declared size is reached and verifies the
// fingerprint.
//
// Key pieces:
//   - Fingerprint: the 64-bit two-level FNV fold both sides agree on
//   - Framer: lazy, restartable frame sequence over a payload
//   - ReassemblyBuffer: bounded accumulation with padding isolation
//   - Sender / Receiver: the per-role state machines
//   - EncodePayload: optional LZ4 envelope applied before framing
//
// Nothing here blocks or spawns goroutines; Receiver state must only be
// touched from the caller's single dispatch loop.
package transfer
