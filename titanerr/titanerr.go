// Package titanerr defines the error taxonomy shared by every Titan-AAS
// component. No internal error type is ever allowed to reach the wire;
// component boundaries translate failures into one of these Kinds before
// they cross into the router.
package titanerr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies an error for HTTP status mapping and retry behavior.
type Kind string

const (
	ValidationError     Kind = "ValidationError"
	BadModifier         Kind = "BadModifier"
	NotFound            Kind = "NotFound"
	Conflict            Kind = "Conflict"
	PreconditionFailed  Kind = "PreconditionFailed"
	PayloadTooLarge     Kind = "PayloadTooLarge"
	TooManyRequests     Kind = "TooManyRequests"
	StoreUnavailable    Kind = "StoreUnavailable"
	EventLogUnavailable Kind = "EventLogUnavailable"
	CacheUnavailable    Kind = "CacheUnavailable"
	Internal            Kind = "Internal"
)

// httpStatus maps each Kind to the HTTP status code it surfaces as.
var httpStatus = map[Kind]int{
	ValidationError:     http.StatusBadRequest,
	BadModifier:         http.StatusBadRequest,
	NotFound:            http.StatusNotFound,
	Conflict:            http.StatusConflict,
	PreconditionFailed:  http.StatusPreconditionFailed,
	PayloadTooLarge:     http.StatusRequestEntityTooLarge,
	TooManyRequests:     http.StatusTooManyRequests,
	StoreUnavailable:    http.StatusServiceUnavailable,
	EventLogUnavailable: http.StatusServiceUnavailable,
	Internal:            http.StatusInternalServerError,
}

// HTTPStatus returns the status code a Kind maps to. CacheUnavailable has
// no wire representation; failures of that kind are handled by falling
// back to the Store and never surface to a caller.
func HTTPStatus(k Kind) int {
	if code, ok := httpStatus[k]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Error is the wire-facing error type. It carries enough to render the
// "messages" envelope and to correlate a failure back to its logs.
type Error struct {
	Kind          Kind
	Code          string
	Text          string
	Timestamp     time.Time
	CorrelationID string
	cause         error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Text, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Text)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates an Error of the given Kind with a human-readable message.
func New(kind Kind, text string) *Error {
	return &Error{
		Kind:      kind,
		Code:      string(kind),
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap attaches a Kind to an underlying error without losing it, so logs
// can still show the original cause via errors.Unwrap. If err already is
// or wraps a *Error, that *Error is returned as is and keeps its own Kind.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	return &Error{
		Kind:      kind,
		Code:      string(kind),
		Text:      err.Error(),
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// WithCorrelationID attaches a correlation id for log/response echoing.
func (e *Error) WithCorrelationID(id string) *Error {
	e.CorrelationID = id
	return e
}

// Is reports whether err is (or wraps) a titanerr.Error of the given Kind.
func Is(err error, kind Kind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// Message is one entry of the wire-level "messages" envelope from spec §6.
type Message struct {
	Code        string `json:"code"`
	MessageType string `json:"messageType"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
}

// Envelope is the JSON body rendered for every error response.
type Envelope struct {
	Messages []Message `json:"messages"`
}

// ToEnvelope renders an Error into the wire envelope shape.
func (e *Error) ToEnvelope() Envelope {
	return Envelope{Messages: []Message{{
		Code:        e.Code,
		MessageType: "Error",
		Text:        e.Text,
		Timestamp:   e.Timestamp.Format(time.RFC3339),
	}}}
}
