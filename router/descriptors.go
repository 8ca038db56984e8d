package router

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hadijannat/titan-aas/store"
	"github.com/hadijannat/titan-aas/titanerr"
)

// decodeJSON unmarshals raw into v, translating a decode failure into
// the spec's ValidationError kind.
func decodeJSON(raw []byte, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return titanerr.Wrap(titanerr.ValidationError, err)
	}
	return nil
}

// descriptorDTO is the wire shape for both shell and submodel
// descriptors; Endpoints is the only structured field either carries.
type descriptorDTO struct {
	ID            string              `json:"id"`
	IDShort       string              `json:"idShort,omitempty"`
	GlobalAssetID string              `json:"globalAssetId,omitempty"`
	Endpoints     []store.EndpointDTO `json:"endpoints"`
}

// listShellDescriptors handles GET /shell-descriptors.
func (s *Server) listShellDescriptors(c echo.Context) error {
	return s.listDescriptors(c, "ShellDescriptor")
}

// createShellDescriptor handles POST /shell-descriptors.
func (s *Server) createShellDescriptor(c echo.Context) error {
	return s.upsertDescriptor(c, "ShellDescriptor", true)
}

// getShellDescriptor handles GET /shell-descriptors/{id_token}.
func (s *Server) getShellDescriptor(c echo.Context) error {
	return s.getDescriptor(c, "ShellDescriptor")
}

// putShellDescriptor handles PUT /shell-descriptors/{id_token}.
func (s *Server) putShellDescriptor(c echo.Context) error {
	return s.upsertDescriptor(c, "ShellDescriptor", false)
}

// deleteShellDescriptor handles DELETE /shell-descriptors/{id_token}.
func (s *Server) deleteShellDescriptor(c echo.Context) error {
	return s.deleteDescriptor(c, "ShellDescriptor")
}

// patchShellDescriptorEndpoints handles PATCH
// /shell-descriptors/{id_token}/endpoints, a supplemented operation for
// updating a descriptor's registered endpoints without resubmitting the
// whole descriptor body.
func (s *Server) patchShellDescriptorEndpoints(c echo.Context) error {
	id, err := idTokenParam(c, "id_token")
	if err != nil {
		return err
	}
	var body struct {
		Endpoints []store.EndpointDTO `json:"endpoints"`
	}
	raw, err := readBody(c)
	if err != nil {
		return err
	}
	if err := decodeJSON(raw, &body); err != nil {
		return err
	}
	if err := s.Descriptors.Patch(c.Request().Context(), "ShellDescriptor", id, "", body.Endpoints); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// listSubmodelDescriptors handles GET /submodel-descriptors.
func (s *Server) listSubmodelDescriptors(c echo.Context) error {
	return s.listDescriptors(c, "SubmodelDescriptor")
}

// createSubmodelDescriptor handles POST /submodel-descriptors.
func (s *Server) createSubmodelDescriptor(c echo.Context) error {
	return s.upsertDescriptor(c, "SubmodelDescriptor", true)
}

// getSubmodelDescriptor handles GET /submodel-descriptors/{id_token}.
func (s *Server) getSubmodelDescriptor(c echo.Context) error {
	return s.getDescriptor(c, "SubmodelDescriptor")
}

// putSubmodelDescriptor handles PUT /submodel-descriptors/{id_token}.
func (s *Server) putSubmodelDescriptor(c echo.Context) error {
	return s.upsertDescriptor(c, "SubmodelDescriptor", false)
}

// deleteSubmodelDescriptor handles DELETE /submodel-descriptors/{id_token}.
func (s *Server) deleteSubmodelDescriptor(c echo.Context) error {
	return s.deleteDescriptor(c, "SubmodelDescriptor")
}

func (s *Server) listDescriptors(c echo.Context, kind string) error {
	limit, err := s.pageLimit(c)
	if err != nil {
		return err
	}
	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		if n, convErr := parsePositiveInt(raw); convErr == nil {
			offset = n
		}
	}
	rows, err := s.Descriptors.List(c.Request().Context(), kind, limit, offset)
	if err != nil {
		return err
	}
	result := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		result = append(result, map[string]string{"id": row.ID, "idShort": row.IDShort})
	}
	return c.JSON(http.StatusOK, listResult{Result: result})
}

// upsertDescriptor backs both the POST (always-create) and PUT
// (create-or-replace) descriptor endpoints. PUT against a previously
// absent id reports 201 Created rather than 204, matching the boundary
// case every other upsert handler observes.
func (s *Server) upsertDescriptor(c echo.Context, kind string, alwaysCreated bool) error {
	raw, err := readBody(c)
	if err != nil {
		return err
	}
	var dto descriptorDTO
	if err := decodeJSON(raw, &dto); err != nil {
		return err
	}
	if dto.ID == "" {
		return badRequest(kind + " is missing required field \"id\"")
	}

	exists := false
	if !alwaysCreated {
		_, getErr := s.Descriptors.Get(c.Request().Context(), kind, dto.ID)
		exists = getErr == nil
		if getErr != nil && !titanerr.Is(getErr, titanerr.NotFound) {
			return getErr
		}
	}

	if err := s.Descriptors.Upsert(c.Request().Context(), kind, dto.ID, dto.IDShort, dto.GlobalAssetID, dto.Endpoints); err != nil {
		return err
	}
	if alwaysCreated || !exists {
		return c.JSON(http.StatusCreated, dto)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getDescriptor(c echo.Context, kind string) error {
	id, err := idTokenParam(c, "id_token")
	if err != nil {
		return err
	}
	row, err := s.Descriptors.Get(c.Request().Context(), kind, id)
	if err != nil {
		return err
	}
	var endpoints []store.EndpointDTO
	if err := decodeJSON([]byte(row.Endpoints), &endpoints); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, descriptorDTO{
		ID:            row.ID,
		IDShort:       row.IDShort,
		GlobalAssetID: row.GlobalAssetID,
		Endpoints:     endpoints,
	})
}

func (s *Server) deleteDescriptor(c echo.Context, kind string) error {
	id, err := idTokenParam(c, "id_token")
	if err != nil {
		return err
	}
	if _, err := s.Descriptors.Delete(c.Request().Context(), kind, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest("offset must be a non-negative integer")
	}
	return n, nil
}
