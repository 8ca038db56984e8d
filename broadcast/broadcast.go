// Package broadcast fans mutation events out to subscribed web and IoT
// consumers over WebSocket and Server-Sent Events. It sits downstream of
// the Single-Writer and must never block it: every subscriber gets a
// bounded channel, and events for a subscriber whose channel is full are
// dropped rather than allowed to apply backpressure to the write path.
//
// The send-channel / read-loop / ping-loop goroutine shape is grounded on
// the teacher's WebSocket coordinator (coordinator/coordinator.go),
// adapted from a single outbound client connection into a server-side
// subscriber registry using gorilla/websocket's Upgrader.
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hadijannat/titan-aas/eventlog"
)

// DefaultSubscriberBuffer is the bounded per-subscriber channel size.
const DefaultSubscriberBuffer = 1024

// PingInterval matches the teacher's coordinator keepalive cadence.
const PingInterval = 30 * time.Second

// Filter narrows which events a subscriber receives. Empty fields match
// anything.
type Filter struct {
	EntityKind string
	EntityID   string
	EventKind  string
}

func (f Filter) matches(e eventlog.Event) bool {
	if f.EntityKind != "" && f.EntityKind != e.EntityKind {
		return false
	}
	if f.EntityID != "" && f.EntityID != e.EntityID {
		return false
	}
	if f.EventKind != "" && f.EventKind != string(e.EventKind) {
		return false
	}
	return true
}

// subscriber is one connected consumer.
type subscriber struct {
	id     string
	filter Filter
	out    chan eventlog.Event
	dropped uint64
}

// Hub holds the subscriber registry and fans events out to it. It is
// safe for concurrent use.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	logger      *logrus.Entry
	upgrader    websocket.Upgrader
}

// NewHub builds an empty Hub.
func NewHub(logger *logrus.Entry) *Hub {
	return &Hub{
		subscribers: make(map[string]*subscriber),
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Publish delivers an event to every matching subscriber without
// blocking; a subscriber whose buffer is full has the event dropped and
// its drop counter incremented instead of stalling the caller.
func (h *Hub) Publish(e eventlog.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		if !sub.filter.matches(e) {
			continue
		}
		select {
		case sub.out <- e:
		default:
			atomic.AddUint64(&sub.dropped, 1)
			if h.logger != nil {
				h.logger.WithField("subscriber", sub.id).Warn("broadcast buffer full, dropping event")
			}
		}
	}
}

// Subscribe registers a new subscriber and returns its event channel and
// an unsubscribe function the caller must invoke when done.
func (h *Hub) Subscribe(id string, filter Filter) (<-chan eventlog.Event, func()) {
	sub := &subscriber{
		id:     id,
		filter: filter,
		out:    make(chan eventlog.Event, DefaultSubscriberBuffer),
	}

	h.mu.Lock()
	h.subscribers[id] = sub
	h.mu.Unlock()

	return sub.out, func() {
		h.mu.Lock()
		delete(h.subscribers, id)
		h.mu.Unlock()
		close(sub.out)
	}
}

// Count returns the current subscriber count, for /health/ready.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// wireEntityType maps the internal model.Kind vocabulary stored on an
// Event to the public entityType vocabulary subscribers see.
var wireEntityType = map[string]string{
	"Shell":              "aas",
	"Submodel":           "submodel",
	"ConceptDescription": "concept_description",
}

// WireEvent is the public wire shape for a broadcast frame: field names
// and the entityType vocabulary subscribers are documented to receive,
// decoupled from eventlog.Event's internal Redis Streams encoding.
type WireEvent struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	EventType  string    `json:"eventType"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	ETag       string    `json:"etag,omitempty"`
}

// toWireEvent translates an internal event into its public wire shape.
func toWireEvent(e eventlog.Event) WireEvent {
	entityType := wireEntityType[e.EntityKind]
	if entityType == "" {
		entityType = e.EntityKind
	}
	return WireEvent{
		ID:         e.ID,
		Timestamp:  e.CreatedAt,
		EventType:  string(e.EventKind),
		EntityType: entityType,
		EntityID:   e.EntityID,
		ETag:       e.ETag,
	}
}

// EncodeEvent renders an event as the JSON frame sent to WebSocket/SSE
// consumers, in the public wire format (spec §6), not eventlog.Event's
// internal shape.
func EncodeEvent(e eventlog.Event) ([]byte, error) {
	return json.Marshal(toWireEvent(e))
}
