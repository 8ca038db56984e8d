package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestIsFastPath(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name   string
		method string
		target string
		want   bool
	}{
		{"plain get", http.MethodGet, "/shells/abc123", true},
		{"plain head", http.MethodHead, "/shells/abc123", true},
		{"post is never fast", http.MethodPost, "/shells", false},
		{"level modifier", http.MethodGet, "/submodels/abc?level=deep", false},
		{"extent modifier", http.MethodGet, "/submodels/abc?extent=withBlobValue", false},
		{"content modifier", http.MethodGet, "/submodels/abc?content=metadata", false},
		{"dollar value suffix", http.MethodGet, "/submodels/abc/$value", false},
		{"dollar metadata suffix", http.MethodGet, "/submodels/abc/$metadata", false},
		{"dollar path suffix", http.MethodGet, "/submodels/abc/$path", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			c := e.NewContext(req, httptest.NewRecorder())
			assert.Equal(t, tt.want, isFastPath(c), tt.name)
		})
	}
}
