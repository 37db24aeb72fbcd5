// Package server implements the trustreg HTTP API surface over a
// registry.Registry.
//
// Owns:
//   - HTTP routing, handlers, and request/response contracts
//   - Mapping of registry validation errors to status codes
//   - The service-key wrapper for the trusted /admin routes
//   - The /watch websocket hub
//
// Does not own:
//   - Signature verification and commit (registry.ApplyUpdateIfValid)
//   - Storage internals (registry implementations)
//   - Key generation (registry.Provisioner, operator CLI only)
//
// Invariants:
//   - POST /name/{name} commits only through ApplyUpdateIfValid
//   - Every validation error is a 403; nothing is written
//   - Admin routes are absent unless a service key is configured
package server
