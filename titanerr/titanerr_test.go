package titanerr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{ValidationError, http.StatusBadRequest},
		{BadModifier, http.StatusBadRequest},
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{PreconditionFailed, http.StatusPreconditionFailed},
		{PayloadTooLarge, http.StatusRequestEntityTooLarge},
		{TooManyRequests, http.StatusTooManyRequests},
		{StoreUnavailable, http.StatusServiceUnavailable},
		{EventLogUnavailable, http.StatusServiceUnavailable},
		{Internal, http.StatusInternalServerError},
		{Kind("Unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.kind), tt.kind)
	}
}

func TestWrapPreservesExistingKind(t *testing.T) {
	original := New(NotFound, "shell missing")
	wrapped := Wrap(Internal, original)
	assert.Equal(t, NotFound, wrapped.Kind)
	assert.Same(t, original, wrapped)
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(Internal, nil))
}

func TestWrapUnwrapsToCause(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(StoreUnavailable, cause)
	require.Error(t, wrapped)
	assert.Equal(t, cause, errors.Unwrap(wrapped))
	assert.Equal(t, StoreUnavailable, wrapped.Kind)
}

func TestIs(t *testing.T) {
	err := New(Conflict, "duplicate id")
	assert.True(t, Is(err, Conflict))
	assert.False(t, Is(err, NotFound))
	assert.False(t, Is(errors.New("plain"), Conflict))
}

func TestToEnvelope(t *testing.T) {
	err := New(ValidationError, "missing idShort").WithCorrelationID("req-1")
	env := err.ToEnvelope()
	require.Len(t, env.Messages, 1)
	msg := env.Messages[0]
	assert.Equal(t, "ValidationError", msg.Code)
	assert.Equal(t, "Error", msg.MessageType)
	assert.Equal(t, "missing idShort", msg.Text)
	assert.NotEmpty(t, msg.Timestamp)
}
