package router

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hadijannat/titan-aas/canon"
	"github.com/hadijannat/titan-aas/eventlog"
	"github.com/hadijannat/titan-aas/model"
	"github.com/hadijannat/titan-aas/titanerr"
)

// listConceptDescriptions handles GET /concept-descriptions.
func (s *Server) listConceptDescriptions(c echo.Context) error {
	limit, err := s.pageLimit(c)
	if err != nil {
		return err
	}
	cursor, err := decodeCursorParam(c)
	if err != nil {
		return err
	}
	page, err := s.Store.List(c.Request().Context(), model.KindConceptDescription, entityFilter(c), cursor, limit)
	if err != nil {
		return err
	}
	return s.respondList(c, page)
}

// createConceptDescription handles POST /concept-descriptions.
func (s *Server) createConceptDescription(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	doc, canonical, etag, err := canon.ParseAndValidate(body, model.KindConceptDescription)
	if err != nil {
		return err
	}
	id := doc.StringField("id")
	if id == "" {
		return badRequest("concept description is missing required field \"id\"")
	}
	if err := s.appendWrite(c.Request().Context(), model.KindConceptDescription, id, eventlog.EventCreated, canonical); err != nil {
		return err
	}
	setEntityHeaders(c, etag, "")
	return c.JSON(http.StatusCreated, json.RawMessage(canonical))
}

// getConceptDescription handles GET /concept-descriptions/{id_token}.
// Concept descriptions carry no submodel-element tree, so the
// Projection Engine's modifiers don't apply to them: every GET is a
// fast-path entity fetch.
func (s *Server) getConceptDescription(c echo.Context) error {
	id, err := idTokenParam(c, "id_token")
	if err != nil {
		return err
	}
	return s.fastGet(c, model.KindConceptDescription, id)
}

// putConceptDescription handles PUT /concept-descriptions/{id_token}.
func (s *Server) putConceptDescription(c echo.Context) error {
	id, err := idTokenParam(c, "id_token")
	if err != nil {
		return err
	}
	_, existingETag, getErr := s.Store.Get(c.Request().Context(), model.KindConceptDescription, id)
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
	doc, canonical, etag, err := canon.ParseAndValidate(body, model.KindConceptDescription)
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
	if err := s.appendWrite(c.Request().Context(), model.KindConceptDescription, id, kind, canonical); err != nil {
		return err
	}
	setEntityHeaders(c, etag, "")
	if !exists {
		return c.JSON(http.StatusCreated, json.RawMessage(canonical))
	}
	return c.NoContent(http.StatusNoContent)
}

// deleteConceptDescription handles DELETE /concept-descriptions/{id_token}.
func (s *Server) deleteConceptDescription(c echo.Context) error {
	id, err := idTokenParam(c, "id_token")
	if err != nil {
		return err
	}
	if err := s.appendWrite(c.Request().Context(), model.KindConceptDescription, id, eventlog.EventDeleted, nil); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
