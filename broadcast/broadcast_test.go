package broadcast

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hadijannat/titan-aas/eventlog"
)

func TestSubscribeReceivesMatchingEvent(t *testing.T) {
	hub := NewHub(nil)
	events, unsubscribe := hub.Subscribe("sub-1", Filter{EntityKind: "Shell"})
	defer unsubscribe()

	hub.Publish(eventlog.Event{EntityKind: "Shell", EntityID: "urn:ex:1", EventKind: eventlog.EventCreated})

	select {
	case e := <-events:
		assert.Equal(t, "urn:ex:1", e.EntityID)
	case <-time.After(time.Second):
		t.Fatal("expected event not received")
	}
}

func TestSubscribeFiltersNonMatchingEvent(t *testing.T) {
	hub := NewHub(nil)
	events, unsubscribe := hub.Subscribe("sub-1", Filter{EntityKind: "Submodel"})
	defer unsubscribe()

	hub.Publish(eventlog.Event{EntityKind: "Shell", EntityID: "urn:ex:1", EventKind: eventlog.EventCreated})

	select {
	case e := <-events:
		t.Fatalf("unexpected event delivered: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(nil)
	events, unsubscribe := hub.Subscribe("sub-1", Filter{})
	unsubscribe()

	_, ok := <-events
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Count())
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil)
	hub.mu.Lock()
	sub := &subscriber{id: "sub-1", filter: Filter{}, out: make(chan eventlog.Event, 1)}
	hub.subscribers["sub-1"] = sub
	hub.mu.Unlock()

	hub.Publish(eventlog.Event{EntityKind: "Shell"})
	hub.Publish(eventlog.Event{EntityKind: "Shell"})

	hub.mu.RLock()
	dropped := hub.subscribers["sub-1"].dropped
	hub.mu.RUnlock()
	require.Equal(t, uint64(1), dropped)
}

func TestEncodeEventUsesPublicWireFormat(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := eventlog.Event{
		ID:         "evt-1",
		EntityKind: "Shell",
		EntityID:   "urn:ex:shell:1",
		EventKind:  eventlog.EventCreated,
		CreatedAt:  created,
		ETag:       "deadbeef",
	}

	raw, err := EncodeEvent(e)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "evt-1", decoded["id"])
	assert.Equal(t, "created", decoded["eventType"])
	assert.Equal(t, "aas", decoded["entityType"])
	assert.Equal(t, "urn:ex:shell:1", decoded["entityId"])
	assert.Equal(t, "deadbeef", decoded["etag"])
	assert.Contains(t, decoded, "timestamp")

	for _, internalField := range []string{"entity_kind", "entity_id", "event_kind", "created_at"} {
		assert.NotContains(t, decoded, internalField)
	}
}

func TestToWireEventMapsEntityKindVocabulary(t *testing.T) {
	cases := map[string]string{
		"Shell":              "aas",
		"Submodel":           "submodel",
		"ConceptDescription": "concept_description",
	}
	for internal, want := range cases {
		we := toWireEvent(eventlog.Event{EntityKind: internal})
		assert.Equal(t, want, we.EntityType)
	}
}
