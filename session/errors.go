package session

import (
	"context"
	"errors"
	"net"
	"net/http"
)

var (
	// ErrInvalidCredentials matches an AuthError from a 401 login response.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNetwork matches an AuthError raised when no response arrived.
	ErrNetwork = errors.New("network failure")
	// ErrServer matches an AuthError from a 5xx response or an unreadable
	// success response.
	ErrServer = errors.New("server error")
	// ErrRejected matches an AuthError from any other non-2xx response.
	ErrRejected = errors.New("request rejected")
	// ErrNoBackend is returned when a Manager has no Backend.
	ErrNoBackend = errors.New("session backend not configured")
)

// AuthErrorKind distinguishes login failures for message purposes.
type AuthErrorKind uint8

const (
	KindRejected AuthErrorKind = iota
	KindInvalidCredentials
	KindNetwork
	KindServer
)

func (k AuthErrorKind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	default:
		return "rejected"
	}
}

// AuthError is returned by Login. Err is the backend error it classifies.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "login failed: " + e.Kind.String()
	}
	return "login failed: " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool {
	switch target {
	case ErrInvalidCredentials:
		return e.Kind == KindInvalidCredentials
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrServer:
		return e.Kind == KindServer
	case ErrRejected:
		return e.Kind == KindRejected
	}
	return false
}

// statusCoder is implemented by backend errors that carry an HTTP status.
// A status of 0 means no response was received.
type statusCoder interface {
	HTTPStatus() int
}

func classify(err error) *AuthError {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}

	kind := KindServer
	var sc statusCoder
	if isTransport(err) {
		kind = KindNetwork
	} else if errors.As(err, &sc) {
		switch status := sc.HTTPStatus(); {
		case status == http.StatusUnauthorized:
			kind = KindInvalidCredentials
		case status >= 500:
			kind = KindServer
		default:
			kind = KindRejected
		}
	}
	return &AuthError{Kind: kind, Err: err}
}

// isTransport reports whether err means no response arrived. Errors with
// neither a status nor a transport cause came from a response the client
// could not use.
func isTransport(err error) bool {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus() == 0
	}
	var ne net.Error
	return errors.As(err, &ne) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
