package router

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
)

// quoteETag renders a raw hex digest as the quoted form HTTP headers use.
func quoteETag(etag string) string {
	if etag == "" {
		return ""
	}
	return fmt.Sprintf("%q", etag)
}

// unquoteETag strips the quotes a client may have sent back; a W/
// weak-validator prefix is left in place, so weak values never match
// (the spec never asks for weak comparison).
func unquoteETag(raw string) string {
	return strings.Trim(strings.TrimSpace(raw), `"`)
}

// matchesAny reports whether candidate equals any entry in a
// comma-separated If-Match/If-None-Match header value, honoring `*`.
func matchesAny(header, candidate string) bool {
	if header == "" {
		return false
	}
	if strings.TrimSpace(header) == "*" {
		return true
	}
	for _, part := range strings.Split(header, ",") {
		if unquoteETag(part) == candidate {
			return true
		}
	}
	return false
}

// checkIfNoneMatch returns true (and the caller should respond 304) when
// the request's If-None-Match matches the current ETag.
func checkIfNoneMatch(c echo.Context, currentETag string) bool {
	header := c.Request().Header.Get("If-None-Match")
	return matchesAny(header, currentETag)
}

// checkIfMatchForWrite enforces spec §4.11's write-side conditional
// rules: If-Match present and mismatched -> 412; If-None-Match: * on a
// create -> 412 if the entity already exists. exists and currentETag
// describe the entity's state before this write is applied.
func checkIfMatchForWrite(c echo.Context, exists bool, currentETag string) error {
	ifMatch := c.Request().Header.Get("If-Match")
	if ifMatch != "" && !matchesAny(ifMatch, currentETag) {
		return preconditionFailed("If-Match does not match the current ETag")
	}
	ifNoneMatch := c.Request().Header.Get("If-None-Match")
	if strings.TrimSpace(ifNoneMatch) == "*" && exists {
		return preconditionFailed("entity already exists")
	}
	return nil
}

func setEntityHeaders(c echo.Context, etag string, lastModified string) {
	if etag != "" {
		c.Response().Header().Set(echo.HeaderETag, quoteETag(etag))
	}
	if lastModified != "" {
		c.Response().Header().Set("Last-Modified", lastModified)
	}
}
