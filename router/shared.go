package router

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hadijannat/titan-aas/cache"
	"github.com/hadijannat/titan-aas/canon"
	"github.com/hadijannat/titan-aas/model"
	"github.com/hadijannat/titan-aas/projection"
	"github.com/hadijannat/titan-aas/store"
	"github.com/hadijannat/titan-aas/titanerr"
)

// readBody reads and returns the full request body, rejecting an empty
// body up front rather than letting the canonicalizer produce a
// confusing "unexpected EOF" error.
func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, titanerr.Wrap(titanerr.ValidationError, err)
	}
	if len(body) == 0 {
		return nil, badRequest("request body is required")
	}
	return body, nil
}

// unmarshalDocument renders a parsed Document back to canonical bytes
// and decodes them into v. Used by the slow path, where the Projection
// Engine needs a typed model value rather than the generic Document
// tree.
func unmarshalDocument(doc *canon.Document, v interface{}) error {
	canonical, _, err := canon.Recanonicalize(doc)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(canonical, v); err != nil {
		return titanerr.Wrap(titanerr.Internal, err)
	}
	return nil
}

// decodeCursorParam decodes the `cursor` query parameter.
func decodeCursorParam(c echo.Context) (*store.Cursor, error) {
	return store.DecodeCursor(c.QueryParam("cursor"))
}

// entityFilter builds a store.Filter from the request's query
// parameters understood across list endpoints.
func entityFilter(c echo.Context) store.Filter {
	return store.Filter{
		IDShort:    c.QueryParam("idShort"),
		SemanticID: c.QueryParam("semanticId"),
		AssetID:    c.QueryParam("assetIds"),
	}
}

// parseModifiersFromRequest reads level/extent/content off the query
// string.
func parseModifiersFromRequest(c echo.Context) (projection.Modifiers, error) {
	content := c.QueryParam("content")
	if content == "" {
		path := c.Request().URL.Path
		switch {
		case strings.HasSuffix(path, "$value"):
			content = "value"
		case strings.HasSuffix(path, "$metadata"):
			content = "metadata"
		case strings.HasSuffix(path, "$path"):
			content = "path"
		}
	}
	return projection.ParseModifiers(c.QueryParam("level"), c.QueryParam("extent"), content)
}

// fastGet serves the fast path: cache hit streams bytes directly; a
// miss falls through to the Store and repopulates the cache.
func (s *Server) fastGet(c echo.Context, kind model.Kind, id string) error {
	ctx := c.Request().Context()
	idToken := c.Param("id_token")
	cacheKey := cache.EntityKey(string(kind), idToken)

	if s.Cache != nil {
		if cached, err := s.Cache.Get(ctx, cacheKey); err == nil && cached != nil {
			return s.streamCachedEntity(c, kind, cached)
		}
	}

	docBytes, etag, err := s.Store.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	if checkIfNoneMatch(c, etag) {
		setEntityHeaders(c, etag, "")
		return c.NoContent(http.StatusNotModified)
	}

	if s.Cache != nil {
		envelope := append([]byte(etag+"\x00"), docBytes...)
		_ = s.Cache.Set(ctx, cacheKey, envelope, cache.DefaultEntityTTL)
	}

	setEntityHeaders(c, etag, "")
	return c.JSONBlob(http.StatusOK, docBytes)
}

// streamCachedEntity splits the cache envelope (etag + NUL + bytes)
// built by fastGet back apart and writes the response.
func (s *Server) streamCachedEntity(c echo.Context, kind model.Kind, cached []byte) error {
	for i, b := range cached {
		if b == 0 {
			etag := string(cached[:i])
			if checkIfNoneMatch(c, etag) {
				setEntityHeaders(c, etag, "")
				return c.NoContent(http.StatusNotModified)
			}
			setEntityHeaders(c, etag, "")
			return c.JSONBlob(http.StatusOK, cached[i+1:])
		}
	}
	return c.JSONBlob(http.StatusOK, cached)
}

// respondList renders a Page as the spec §6 result+paging_metadata
// envelope. Each result entry is an {"id": ...} object: List returns
// identifiers only, and no entity documents are fetched here.
func (s *Server) respondList(c echo.Context, page *store.Page) error {
	result := make([]interface{}, 0, len(page.IDs))
	for _, id := range page.IDs {
		result = append(result, map[string]string{"id": id})
	}
	resp := listResult{Result: result}
	if page.NextCursor != nil {
		resp.PagingMetadata.Cursor = store.EncodeCursor(page.NextCursor)
	}
	return c.JSON(http.StatusOK, resp)
}
