package moodjournal

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/moodjournal/api"
	"github.com/MrEthical07/moodjournal/session"
)

var (
	// ErrInvalidCredentials matches a login rejected with 401.
	ErrInvalidCredentials = session.ErrInvalidCredentials
	// ErrUnauthorized matches any call that ended with 401.
	ErrUnauthorized = api.ErrUnauthorized
	ErrForbidden    = api.ErrForbidden
	ErrNotFound     = api.ErrNotFound
	ErrConflict     = api.ErrConflict
	ErrValidation   = api.ErrValidation
	ErrServer       = api.ErrServer
	// ErrNetwork matches calls that received no response.
	ErrNetwork = api.ErrNetwork
)

// Messages returned by UserMessage.
const (
	MessageInvalidCredentials = "Unauthorized: Incorrect login credentials."
	MessageSessionExpired     = "Your session has expired. Please log in again."
	MessageForbidden          = "You are not allowed to do that."
	MessageNotFound           = "The requested item was not found."
	MessageConflict           = "The item was changed or already exists."
	MessageValidation         = "Please check the form and try again."
	MessageServer             = "Server error. Please try again later."
	MessageNetwork            = "Network error. Please check your connection."
	MessageTimeout            = "The request timed out. Please try again."
	MessageUnknown            = "Something went wrong."
)

// UserMessage maps an error from this module to text fit for end users.
// It returns "" for nil.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return MessageTimeout
	case errors.Is(err, session.ErrInvalidCredentials):
		return MessageInvalidCredentials
	case errors.Is(err, session.ErrNetwork), errors.Is(err, api.ErrNetwork):
		return MessageNetwork
	case errors.Is(err, session.ErrServer), errors.Is(err, api.ErrServer):
		return MessageServer
	}

	switch api.StatusCode(err) {
	case http.StatusUnauthorized:
		return MessageSessionExpired
	case http.StatusForbidden:
		return MessageForbidden
	case http.StatusNotFound:
		return MessageNotFound
	case http.StatusConflict:
		return MessageConflict
	}
	if errors.Is(err, api.ErrValidation) {
		return MessageValidation
	}
	return MessageUnknown
}
