package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hadijannat/titan-aas/idcodec"
)

// lookupShellsByAssetID handles GET /lookup/shells?assetIds={token},
// returning the ids of shells whose assetInformation.globalAssetId
// matches the decoded token.
func (s *Server) lookupShellsByAssetID(c echo.Context) error {
	token := c.QueryParam("assetIds")
	if token == "" {
		return badRequest("assetIds query parameter is required")
	}
	assetID, err := idcodec.Decode(token)
	if err != nil {
		return err
	}

	ids, err := s.Store.LookupShellsByAssetID(c.Request().Context(), assetID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ids)
}
