package router

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hadijannat/titan-aas/idcodec"
	"github.com/hadijannat/titan-aas/titanerr"
)

func preconditionFailed(text string) error {
	return titanerr.New(titanerr.PreconditionFailed, text)
}

func notFound(kind, id string) error {
	return titanerr.Newf(titanerr.NotFound, "%s %q not found", kind, id)
}

func badRequest(text string) error {
	return titanerr.New(titanerr.ValidationError, text)
}

// listResult is the wire shape every list endpoint responds with.
type listResult struct {
	Result         []interface{}  `json:"result"`
	PagingMetadata pagingMetadata `json:"paging_metadata"`
}

type pagingMetadata struct {
	Cursor string `json:"cursor,omitempty"`
}

// pageLimit parses and bounds the `limit` query parameter.
func (s *Server) pageLimit(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 100, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, badRequest("limit must be a positive integer")
	}
	max := s.cfg.MaxPageLimit
	if max <= 0 {
		max = 1000
	}
	if limit > max {
		limit = max
	}
	return limit, nil
}

// idTokenParam decodes the {id_token} path parameter into a raw identifier.
func idTokenParam(c echo.Context, name string) (string, error) {
	token := c.Param(name)
	if token == "" {
		return "", badRequest(name + " is required")
	}
	return idcodec.Decode(token)
}
