// Package guard turns session state into allow or redirect decisions.
//
// User guards wait for the session to resolve before deciding, so nothing is
// allowed or denied while the initial session check is still running. Admin
// guards read a local logged-in flag and decide immediately.
package guard
