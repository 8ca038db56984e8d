package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	c := &Cursor{UpdatedAt: time.Now().UTC().Truncate(time.Microsecond), ID: "urn:ex:aas:1"}
	token := EncodeCursor(c)
	assert.NotEmpty(t, token)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, c.ID, decoded.ID)
	assert.True(t, c.UpdatedAt.Equal(decoded.UpdatedAt))
}

func TestDecodeCursorEmptyIsNil(t *testing.T) {
	decoded, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodeCursorRejectsMalformedToken(t *testing.T) {
	_, err := DecodeCursor("not-a-valid-cursor-token")
	require.Error(t, err)
}
