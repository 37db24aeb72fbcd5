// Package registry implements the trust-gated name registry.
//
// Owns:
//   - UpdateMessage construction and signature verification
//   - The identity store (username -> ed25519 public key bytes)
//   - The name store (name -> last accepted UpdateMessage)
//   - The authorization gate, ApplyUpdateIfValid
//
// Does not own:
//   - HTTP routing, status codes, body framing
//   - Logging
//
// Invariants:
//   - Untrusted writes reach the name store only through ApplyUpdateIfValid
//   - Validate-then-commit is one critical section per store instance
//   - A rejected update leaves the name exactly as it was
//   - UTC is not signed; there is no replay protection
//   - AddID, UpdateName and Provisioner are trusted-path only
package registry
