package hub

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the object, user or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means the version token was stale or the precondition failed.
	ErrConflict = errors.New("version conflict")

	// ErrUnauthorized means the credential is missing or insufficient.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the acting user does not own the record.
	ErrForbidden = errors.New("forbidden")

	ErrInvalidHandle        = errors.New("invalid handle")
	ErrDuplicateHandle      = errors.New("handle already exists")
	ErrRegistrationConflict = errors.New("registration conflict")

	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("transport error")

	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrEmptyMessage     = errors.New("empty message")
	ErrInvalidDocument  = errors.New("invalid document")
)

// maxErrorBody bounds the response body kept for diagnostics.
const maxErrorBody = 200

// TransportError is a network failure or an unexpected HTTP status.
type TransportError struct {
	Method string
	URL    string
	Status int
	Body   string
	Err    error
}

// NewTransportError builds a TransportError, truncating body.
func NewTransportError(method, url string, status int, body string, err error) *TransportError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &TransportError{Method: method, URL: url, Status: status, Body: body, Err: err}
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }
