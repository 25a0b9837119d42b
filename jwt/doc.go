// Package jwt issues and verifies the access tokens handed out by the mood
// journal API, and lets clients read expiry hints from tokens they hold.
package jwt
