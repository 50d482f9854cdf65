package embeddings

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptyInput is returned for empty text. It is a caller bug and
	// never reaches a backend.
	ErrEmptyInput = errors.New("empty input text")

	// ErrInvalidConfig indicates an unusable provider configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed matches every *Error.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Kind classifies an embedding failure.
type Kind int

const (
	// KindTransport covers network failures, timeouts and cancellation.
	KindTransport Kind = iota + 1
	// KindStatus is a non-2xx response from the backend.
	KindStatus
	// KindMalformed is a response that could not be decoded into a vector.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is the failure type returned by every provider.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	// Body holds the start of the backend response for status errors.
	Body string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s %s", ErrEmbeddingFailed, e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" %d", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrEmbeddingFailed}
	}
	return []error{ErrEmbeddingFailed, e.Err}
}

// Permanent reports failures that will not succeed on retry: client-side
// HTTP statuses such as an unknown model or a rejected key. These point
// at configuration rather than the backend's health.
func (e *Error) Permanent() bool {
	if e.Kind != KindStatus {
		return false
	}
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Transient reports failures worth retrying later.
func (e *Error) Transient() bool {
	return e.Kind == KindTransport || (e.Kind == KindStatus && !e.Permanent())
}

// IsPermanent reports whether err carries a permanent *Error.
func IsPermanent(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Permanent()
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
