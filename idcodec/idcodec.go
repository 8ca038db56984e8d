// Package idcodec turns opaque entity identifiers into URL-safe path
// segments and back. Identifiers are arbitrary strings (typically URIs)
// that cannot be placed directly into a URL path, so every HTTP route
// that addresses a single entity works with the encoded token instead.
package idcodec

import (
	"encoding/base64"
	"unicode/utf8"

	"github.com/hadijannat/titan-aas/titanerr"
)

// MaxIdentifierBytes mirrors canon.MaxIdentifierBytes; kept independent
// so this package has no dependency on canon.
const MaxIdentifierBytes = 2048

// Encode returns the URL-safe, unpadded base64 token for id.
func Encode(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// Decode reverses Encode. It accepts tokens with or without padding,
// rejects tokens that decode to invalid UTF-8, and rejects identifiers
// over MaxIdentifierBytes.
func Decode(token string) (string, error) {
	decoded, err := decodeAnyPadding(token)
	if err != nil {
		return "", titanerr.Wrap(titanerr.ValidationError, err)
	}
	if !utf8.Valid(decoded) {
		return "", titanerr.New(titanerr.ValidationError, "identifier token decodes to invalid UTF-8")
	}
	if len(decoded) > MaxIdentifierBytes {
		return "", titanerr.Newf(titanerr.ValidationError, "identifier exceeds %d bytes", MaxIdentifierBytes)
	}
	if len(decoded) == 0 {
		return "", titanerr.New(titanerr.ValidationError, "identifier token decodes to empty string")
	}
	return string(decoded), nil
}

func decodeAnyPadding(token string) ([]byte, error) {
	if decoded, err := base64.RawURLEncoding.DecodeString(token); err == nil {
		return decoded, nil
	}
	return base64.URLEncoding.DecodeString(token)
}
