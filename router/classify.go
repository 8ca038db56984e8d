package router

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// isFastPath implements spec.md §4.5's classification: GET/HEAD against
// a single stored entity, with none of the modifier query parameters
// and no $value/$metadata/$path suffix.
func isFastPath(c echo.Context) bool {
	method := c.Request().Method
	if method != http.MethodGet && method != http.MethodHead {
		return false
	}
	q := c.Request().URL.RawQuery
	if strings.Contains(q, "level=") || strings.Contains(q, "extent=") || strings.Contains(q, "content=") {
		return false
	}
	path := c.Request().URL.Path
	if strings.HasSuffix(path, "$value") || strings.HasSuffix(path, "$metadata") || strings.HasSuffix(path, "$path") {
		return false
	}
	return true
}
