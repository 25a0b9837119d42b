// Package moodjournal is a client for the mood journal REST API that keeps a
// user session alive across expired access tokens.
//
// A [Client] owns one session state holder and one authenticated request
// pipeline. Every API call made through it carries the session credentials;
// when concurrent calls fail with 401 the pipeline runs a single refresh and
// retries each call once. A failed refresh clears the session and callers see
// their original 401.
//
// # Architecture boundaries
//
// The root package wires the pieces together and re-exports the types callers
// need. Session state lives in [session], request recovery in [pipeline],
// typed endpoints in [api] and navigation guards in [guard]. Counters and
// session events are collected under internal/ and exposed through
// [Client.MetricsSnapshot] and the event sink configured on the [Builder].
//
// # What this package must NOT do
//
//   - Keep hidden global state. Each Client is independent.
//   - Map errors to user-facing text inside the pipeline. [UserMessage] does
//     that for callers that want it.
//   - Decide guards while the session state is still unknown.
package moodjournal
