// Package pipeline provides the authenticated request pipeline: an
// http.RoundTripper that attaches session credentials to API requests and
// recovers from expired sessions by coalescing concurrent 401 responses
// into a single refresh, then retrying each affected request once.
//
// A qualifying auth error is a 401 from a protected API path that is not the
// refresh or login endpoint nor an admin console path, returned either by the
// identity endpoint or while a session is present. Everything else passes
// through untouched.
package pipeline
