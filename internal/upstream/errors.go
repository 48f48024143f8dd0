package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an upstream failure.
type Kind string

const (
	// KindNotFound means the upstream explicitly confirmed the resource does
	// not exist (HTTP 404).
	KindNotFound Kind = "not_found"

	// KindUpstream means the upstream answered with any other non-2xx status.
	KindUpstream Kind = "upstream_error"

	// KindTransport covers connection failures, timeouts and undecodable
	// bodies.
	KindTransport Kind = "transport_error"

	// KindValidation means the caller's input was rejected before any request
	// was made.
	KindValidation Kind = "validation_error"
)

// Error is the error type returned by every upstream client.
type Error struct {
	Kind    Kind
	API     string // rate limiter key of the upstream, e.g. "scryfall"
	Message string
	Status  int    // HTTP status, zero for transport and validation errors
	URL     string // request URL, empty for validation errors
	Details string // upstream supplied detail text, if any
	Err     error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("upstream: %s: %s", e.API, e.Message)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the [Kind] of the first [*Error] in err's chain, or the
// empty string when there is none.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return ""
}

// IsNotFound reports whether err is a [KindNotFound] upstream error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// Validation builds a [KindValidation] error for api.
func Validation(api, msg string) *Error {
	return &Error{Kind: KindValidation, API: api, Message: msg}
}

// statusError maps a non-2xx response to a NotFound or Upstream error.
func statusError(api, url string, status int, details string) *Error {
	e := &Error{
		Kind:    KindUpstream,
		API:     api,
		Message: http.StatusText(status),
		Status:  status,
		URL:     url,
		Details: details,
	}
	if e.Message == "" {
		e.Message = "unexpected status"
	}
	if status == http.StatusNotFound {
		e.Kind = KindNotFound
		e.Message = "not found"
	}
	return e
}

func transportError(api, url, msg string, err error) *Error {
	return &Error{Kind: KindTransport, API: api, Message: msg, URL: url, Err: err}
}
