package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// subscriptionRequest is the initial frame a WebSocket client sends to
// declare its filter.
type subscriptionRequest struct {
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	EventKind  string `json:"event_kind"`
}

// ServeWS upgrades the connection and streams matching events as JSON
// text frames until a write to the client fails. Events dropped because
// the subscriber's buffer was full do not end the stream.
func (h *Hub) ServeWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	var req subscriptionRequest
	if err := conn.ReadJSON(&req); err != nil {
		return nil
	}
	filter := Filter{EntityKind: req.EntityKind, EntityID: req.EntityID, EventKind: req.EventKind}

	subID := fmt.Sprintf("ws-%s-%d", c.Request().RemoteAddr, time.Now().UnixNano())
	events, unsubscribe := h.Subscribe(subID, filter)
	defer unsubscribe()

	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(toWireEvent(event)); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return nil
			}
		}
	}
}

// ServeSSE streams matching events as Server-Sent Events until the
// client disconnects.
func (h *Hub) ServeSSE(c echo.Context) error {
	filter := Filter{
		EntityKind: c.QueryParam("entity_kind"),
		EntityID:   c.QueryParam("entity_id"),
		EventKind:  c.QueryParam("event_kind"),
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(200)
	resp.Flush()

	subID := fmt.Sprintf("sse-%s-%d", c.Request().RemoteAddr, time.Now().UnixNano())
	events, unsubscribe := h.Subscribe(subID, filter)
	defer unsubscribe()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			encoded, err := json.Marshal(toWireEvent(event))
			if err != nil {
				continue
			}
			fmt.Fprintf(resp, "data: %s\n\n", encoded)
			resp.Flush()
		}
	}
}
