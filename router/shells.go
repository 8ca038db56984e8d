package router

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hadijannat/titan-aas/canon"
	"github.com/hadijannat/titan-aas/eventlog"
	"github.com/hadijannat/titan-aas/idcodec"
	"github.com/hadijannat/titan-aas/model"
	"github.com/hadijannat/titan-aas/projection"
	"github.com/hadijannat/titan-aas/titanerr"
)

// listShells handles GET /shells.
func (s *Server) listShells(c echo.Context) error {
	limit, err := s.pageLimit(c)
	if err != nil {
		return err
	}
	cursor, err := decodeCursorParam(c)
	if err != nil {
		return err
	}

	filter := entityFilter(c)
	page, err := s.Store.List(c.Request().Context(), model.KindShell, filter, cursor, limit)
	if err != nil {
		return err
	}
	return s.respondList(c, page)
}

// createShell handles POST /shells.
func (s *Server) createShell(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	doc, canonical, etag, err := canon.ParseAndValidate(body, model.KindShell)
	if err != nil {
		return err
	}
	id := doc.StringField("id")
	if id == "" {
		return badRequest("shell is missing required field \"id\"")
	}

	if err := s.appendWrite(c.Request().Context(), model.KindShell, id, eventlog.EventCreated, canonical); err != nil {
		return err
	}
	setEntityHeaders(c, etag, "")
	return c.JSON(http.StatusCreated, json.RawMessage(canonical))
}

// getShell handles GET /shells/{id_token}, dispatching fast or slow path.
func (s *Server) getShell(c echo.Context) error {
	id, err := idTokenParam(c, "id_token")
	if err != nil {
		return err
	}

	if isFastPath(c) {
		return s.fastGet(c, model.KindShell, id)
	}

	doc, _, err := s.Store.GetParsed(c.Request().Context(), model.KindShell, id)
	if err != nil {
		return err
	}
	modifiers, err := parseModifiersFromRequest(c)
	if err != nil {
		return err
	}

	var shell model.Shell
	if err := unmarshalDocument(doc, &shell); err != nil {
		return err
	}
	result, err := projection.ApplyToShell(&shell, modifiers)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// putShell handles PUT /shells/{id_token}.
func (s *Server) putShell(c echo.Context) error {
	id, err := idTokenParam(c, "id_token")
	if err != nil {
		return err
	}
	existingBytes, existingETag, getErr := s.Store.Get(c.Request().Context(), model.KindShell, id)
	exists := getErr == nil
	if getErr != nil && !titanerr.Is(getErr, titanerr.NotFound) {
		return getErr
	}
	_ = existingBytes
	if err := checkIfMatchForWrite(c, exists, existingETag); err != nil {
		return err
	}

	body, err := readBody(c)
	if err != nil {
		return err
	}
	doc, canonical, etag, err := canon.ParseAndValidate(body, model.KindShell)
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
	if err := s.appendWrite(c.Request().Context(), model.KindShell, id, kind, canonical); err != nil {
		return err
	}
	setEntityHeaders(c, etag, "")
	if !exists {
		return c.JSON(http.StatusCreated, json.RawMessage(canonical))
	}
	return c.NoContent(http.StatusNoContent)
}

// deleteShell handles DELETE /shells/{id_token}.
func (s *Server) deleteShell(c echo.Context) error {
	id, err := idTokenParam(c, "id_token")
	if err != nil {
		return err
	}
	if err := s.appendWrite(c.Request().Context(), model.KindShell, id, eventlog.EventDeleted, nil); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// appendWrite appends a mutation event; write endpoints never touch the
// Store directly (spec §4.8 — the Single-Writer is the only mutator).
func (s *Server) appendWrite(ctx context.Context, kind model.Kind, id string, eventKind eventlog.EventKind, payload []byte) error {
	correlationID := idcodec.Encode(id)
	if _, err := s.Events.Append(ctx, string(kind), id, eventKind, payload, correlationID); err != nil {
		return err
	}
	return nil
}
