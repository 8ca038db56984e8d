package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestQuoteUnquoteETag(t *testing.T) {
	assert.Equal(t, "", quoteETag(""))
	assert.Equal(t, `"abc123"`, quoteETag("abc123"))
	assert.Equal(t, "abc123", unquoteETag(`"abc123"`))
	assert.Equal(t, "abc123", unquoteETag(" abc123 "))
}

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		header    string
		candidate string
		want      bool
	}{
		{"", "abc", false},
		{"*", "abc", true},
		{`"abc"`, "abc", true},
		{`"abc", "def"`, "def", true},
		{`"abc"`, "zzz", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesAny(tt.header, tt.candidate), tt.header)
	}
}

func newTestContext(method, target string, headers map[string]string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestCheckIfNoneMatch(t *testing.T) {
	c := newTestContext(http.MethodGet, "/shells/abc", map[string]string{"If-None-Match": `"etag1"`})
	assert.True(t, checkIfNoneMatch(c, "etag1"))

	c = newTestContext(http.MethodGet, "/shells/abc", map[string]string{"If-None-Match": `"etag2"`})
	assert.False(t, checkIfNoneMatch(c, "etag1"))
}

func TestCheckIfMatchForWrite(t *testing.T) {
	c := newTestContext(http.MethodPut, "/shells/abc", map[string]string{"If-Match": `"etag1"`})
	assert.NoError(t, checkIfMatchForWrite(c, true, "etag1"))

	c = newTestContext(http.MethodPut, "/shells/abc", map[string]string{"If-Match": `"stale"`})
	assert.Error(t, checkIfMatchForWrite(c, true, "etag1"))

	c = newTestContext(http.MethodPost, "/shells", map[string]string{"If-None-Match": "*"})
	assert.Error(t, checkIfMatchForWrite(c, true, "etag1"))

	c = newTestContext(http.MethodPost, "/shells", map[string]string{"If-None-Match": "*"})
	assert.NoError(t, checkIfMatchForWrite(c, false, ""))
}
