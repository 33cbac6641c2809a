// Package erasure wraps payloads in a Reed-Solomon protected envelope before
// they are framed.
//
// Every shard in the envelope carries its own fingerprint, so a receiver
// whose whole-payload fingerprint check failed can locate the damaged shards,
// treat them as erasures and rebuild the payload without a resend. With 10
// data and 4 parity shards any 4 damaged shards are recoverable.
//
// This implementation uses the klauspost/reedsolomon library.
package erasure
