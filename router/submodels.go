package router

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hadijannat/titan-aas/canon"
	"github.com/hadijannat/titan-aas/eventlog"
	"github.com/hadijannat/titan-aas/model"
	"github.com/hadijannat/titan-aas/projection"
	"github.com/hadijannat/titan-aas/titanerr"
)

// listSubmodels handles GET /submodels.
func (s *Server) listSubmodels(c echo.Context) error {
	limit, err := s.pageLimit(c)
	if err != nil {
		return err
	}
	cursor, err := decodeCursorParam(c)
	if err != nil {
		return err
	}
	page, err := s.Store.List(c.Request().Context(), model.KindSubmodel, entityFilter(c), cursor, limit)
	if err != nil {
		return err
	}
	return s.respondList(c, page)
}

// createSubmodel handles POST /submodels.
func (s *Server) createSubmodel(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	doc, canonical, etag, err := canon.ParseAndValidate(body, model.KindSubmodel)
	if err != nil {
		return err
	}
	id := doc.StringField("id")
	if id == "" {
		return badRequest("submodel is missing required field \"id\"")
	}
	if err := s.appendWrite(c.Request().Context(), model.KindSubmodel, id, eventlog.EventCreated, canonical); err != nil {
		return err
	}
	setEntityHeaders(c, etag, "")
	return c.JSON(http.StatusCreated, json.RawMessage(canonical))
}

// getSubmodel handles GET /submodels/{id_token}, fast or slow per modifiers.
func (s *Server) getSubmodel(c echo.Context) error {
	id, err := idTokenParam(c, "id_token")
	if err != nil {
		return err
	}
	if isFastPath(c) {
		return s.fastGet(c, model.KindSubmodel, id)
	}
	return s.getSubmodelProjected(c, id)
}

func (s *Server) slowGetSubmodel(c echo.Context, id string) (*model.Submodel, error) {
	doc, _, err := s.Store.GetParsed(c.Request().Context(), model.KindSubmodel, id)
	if err != nil {
		return nil, err
	}
	var sm model.Submodel
	if err := unmarshalDocument(doc, &sm); err != nil {
		return nil, err
	}
	return &sm, nil
}

// getSubmodelProjected handles the non-fast-path GET /submodels/{id_token}
// response: apply modifiers and render.
func (s *Server) getSubmodelProjected(c echo.Context, id string) error {
	sm, err := s.slowGetSubmodel(c, id)
	if err != nil {
		return err
	}
	modifiers, err := parseModifiersFromRequest(c)
	if err != nil {
		return err
	}
	result, err := projection.ApplyToSubmodel(sm, modifiers)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// putSubmodel handles PUT /submodels/{id_token}.
func (s *Server) putSubmodel(c echo.Context) error {
	id, err := idTokenParam(c, "id_token")
	if err != nil {
		return err
	}
	_, existingETag, getErr := s.Store.Get(c.Request().Context(), model.KindSubmodel, id)
	exists := getErr == nil
	if getErr != nil && !titanerr.Is(getErr, titanerr.NotFound) {
		return getErr
	}
	if err := checkIfMatchForWrite(c, exists, existingETag); err != nil {
		return err
	}

	body, err := readBody(c)
	if err != nil {
		return err
	}
	doc, canonical, etag, err := canon.ParseAndValidate(body, model.KindSubmodel)
	if err != nil {
		return err
	}
	if doc.StringField("id") != id {
		return badRequest("body id does not match path id_token")
	}

	kind := eventlog.EventUpdated
	if !exists {
		kind = eventlog.EventCreated
	}
	if err := s.appendWrite(c.Request().Context(), model.KindSubmodel, id, kind, canonical); err != nil {
		return err
	}
	setEntityHeaders(c, etag, "")
	if !exists {
		return c.JSON(http.StatusCreated, json.RawMessage(canonical))
	}
	return c.NoContent(http.StatusNoContent)
}

// deleteSubmodel handles DELETE /submodels/{id_token}.
func (s *Server) deleteSubmodel(c echo.Context) error {
	id, err := idTokenParam(c, "id_token")
	if err != nil {
		return err
	}
	if err := s.appendWrite(c.Request().Context(), model.KindSubmodel, id, eventlog.EventDeleted, nil); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
