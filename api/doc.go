// Package api contains typed clients for the mood journal REST API.
//
// Every client issues its calls through one *http.Client, normally the one
// built by the root package whose transport is the authenticated request
// pipeline. Non-2xx responses become *StatusError values that match the
// package sentinels with errors.Is.
package api
