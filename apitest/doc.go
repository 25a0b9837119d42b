// Package apitest runs an in-process mood journal API for tests and demos.
//
// The server issues HS256 access tokens and rotating refresh tokens, keeps
// users and entries in memory, counts calls per path and exposes knobs for
// forcing expired sessions, failed or slow refreshes and rejected retries.
package apitest
