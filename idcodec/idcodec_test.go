package idcodec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ids := []string{
		"urn:ex:aas:1",
		"https://example.com/ids/1234",
		"a",
	}
	for _, id := range ids {
		token := Encode(id)
		assert.NotContains(t, token, "=")
		assert.NotContains(t, token, "+")
		assert.NotContains(t, token, "/")

		decoded, err := Decode(token)
		require.NoError(t, err)
		assert.Equal(t, id, decoded)
	}
}

func TestDecodeAcceptsPaddedInput(t *testing.T) {
	id := "urn:ex:aas:12"
	unpadded := Encode(id)
	padded := unpadded
	if m := len(unpadded) % 4; m != 0 {
		padded += strings.Repeat("=", 4-m)
	}

	decoded, err := Decode(padded)
	require.NoError(t, err)
	assert.Equal(t, id, decoded)
}

func TestDecodeRejectsOversizedIdentifier(t *testing.T) {
	huge := strings.Repeat("a", MaxIdentifierBytes+1)
	token := Encode(huge)
	_, err := Decode(token)
	require.Error(t, err)
}

func TestDecodeRejectsInvalidToken(t *testing.T) {
	_, err := Decode("not base64!!!")
	require.Error(t, err)
}

func TestDecodeRejectsEmptyIdentifier(t *testing.T) {
	_, err := Decode(Encode(""))
	require.Error(t, err)
}
