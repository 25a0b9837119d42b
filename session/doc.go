// Package session holds the client's authentication state and persists its
// credentials between runs.
//
// # State
//
// [Manager] is the single source of truth for who is logged in. Its [State] is
// one of three variants: [StatusUnknown] until the first check completes, then
// [StatusAuthenticated] with a [User] or [StatusUnauthenticated]. Only Login,
// Logout, Refresh, Clear and Init change it, and each change is published to
// subscribers as a whole.
//
// # Binary encoding
//
// Persisted [Credentials] use a compact versioned binary format (see [Encode]).
// Stores: [MemoryStore], [FileStore] and the Redis-backed [RedisStore].
//
// # Architecture boundaries
//
// This package does NOT speak HTTP. Network calls go through a caller-supplied
// [Backend]; the request pipeline drives Refresh and Clear through the Manager.
//
// # What this package must NOT do
//
//   - Import moodjournal, api or pipeline (no upward imports).
//   - Hold its mutex across a network or store call.
//   - Log access or refresh tokens.
package session
