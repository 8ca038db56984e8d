package router

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hadijannat/titan-aas/canon"
	"github.com/hadijannat/titan-aas/eventlog"
	"github.com/hadijannat/titan-aas/model"
	"github.com/hadijannat/titan-aas/projection"
	"github.com/hadijannat/titan-aas/titanerr"
)

// getSubmodelElement handles GET .../submodel-elements/{path} and its
// $value/$metadata/$path variants. Always slow path: resolving a path
// through the tree requires the parsed document regardless of modifiers.
func (s *Server) getSubmodelElement(c echo.Context) error {
	id, err := idTokenParam(c, "id_token")
	if err != nil {
		return err
	}
	sm, err := s.slowGetSubmodel(c, id)
	if err != nil {
		return err
	}

	path := c.Param("*")
	for _, suffix := range []string{"/$value", "/$metadata", "/$path"} {
		path = strings.TrimSuffix(path, suffix)
	}
	el, err := projection.Resolve(sm.Elements, path)
	if err != nil {
		return err
	}

	modifiers, err := parseModifiersFromRequest(c)
	if err != nil {
		return err
	}

	sub := &model.Submodel{ID: sm.ID, IDShort: sm.IDShort, Kind: sm.Kind, Elements: []model.Element{*el}}
	result, err := projection.ApplyToSubmodel(sub, modifiers)
	if err != nil {
		return err
	}

	// $value/$metadata render a map keyed by idShort across all
	// top-level elements; since we project a single-element subtree,
	// unwrap to that element's own value for a path GET.
	switch modifiers.Content {
	case projection.ContentValue, projection.ContentMetadata:
		if m, ok := result.(map[string]interface{}); ok {
			if v, ok := m[el.IDShort]; ok {
				return c.JSON(http.StatusOK, v)
			}
		}
	}
	return c.JSON(http.StatusOK, result)
}

// putSubmodelElement handles PUT .../submodel-elements/{path}: replaces
// the addressed element and appends an updated event for the whole
// submodel, since the Store's unit of mutation is the entity row, not
// the element.
func (s *Server) putSubmodelElement(c echo.Context) error {
	id, err := idTokenParam(c, "id_token")
	if err != nil {
		return err
	}
	sm, err := s.slowGetSubmodel(c, id)
	if err != nil {
		return err
	}

	body, err := readBody(c)
	if err != nil {
		return err
	}
	var newElement model.Element
	if err := json.Unmarshal(body, &newElement); err != nil {
		return titanerr.Wrap(titanerr.ValidationError, err)
	}

	path := c.Param("*")
	updated, err := projection.Replace(sm.Elements, path, newElement)
	if err != nil {
		return err
	}
	sm.Elements = updated

	return s.writeSubmodelElements(c, id, sm)
}

// deleteSubmodelElement handles DELETE .../submodel-elements/{path}.
func (s *Server) deleteSubmodelElement(c echo.Context) error {
	id, err := idTokenParam(c, "id_token")
	if err != nil {
		return err
	}
	sm, err := s.slowGetSubmodel(c, id)
	if err != nil {
		return err
	}

	path := c.Param("*")
	updated, err := projection.Remove(sm.Elements, path)
	if err != nil {
		return err
	}
	sm.Elements = updated

	return s.writeSubmodelElements(c, id, sm)
}

// writeSubmodelElements re-marshals the whole submodel after an element
// mutation and appends it as a single updated event.
func (s *Server) writeSubmodelElements(c echo.Context, id string, sm *model.Submodel) error {
	raw, err := json.Marshal(sm)
	if err != nil {
		return titanerr.Wrap(titanerr.Internal, err)
	}
	_, canonical, _, err := canon.ParseAndValidate(raw, model.KindSubmodel)
	if err != nil {
		return err
	}
	if err := s.appendWrite(c.Request().Context(), model.KindSubmodel, id, eventlog.EventUpdated, canonical); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
