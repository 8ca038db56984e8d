package singlewriter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hadijannat/titan-aas/eventlog"
	"github.com/hadijannat/titan-aas/model"
	"github.com/hadijannat/titan-aas/store"
)

type fakeStore struct {
	mu      sync.Mutex
	puts    []store.Record
	deletes []string
	failN   int
}

func (f *fakeStore) Put(ctx context.Context, rec store.Record, ifMatch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return assert.AnError
	}
	f.puts = append(f.puts, rec)
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, kind model.Kind, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return true, nil
}

type fakeCache struct {
	mu             sync.Mutex
	deletedKeys    []string
	deletedPrefixes []string
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedKeys = append(f.deletedKeys, key)
	return nil
}

func (f *fakeCache) DeletePrefix(ctx context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedPrefixes = append(f.deletedPrefixes, prefix)
	return nil
}

type fakeHub struct {
	mu        sync.Mutex
	published []eventlog.Event
}

func (f *fakeHub) Publish(e eventlog.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, e)
}

func newTestEventLog(t *testing.T) *eventlog.Log {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return eventlog.NewWithClient(client, eventlog.Config{Partitions: 1, ConsumerGroup: "single-writer"})
}

func TestApplyWritesCreatedEventToStore(t *testing.T) {
	st := &fakeStore{}
	c := &fakeCache{}
	hub := &fakeHub{}
	w := New(nil, st, c, hub, nil, nil, Config{EntityKind: model.KindShell})

	d := eventlog.Delivery{
		Event: eventlog.Event{
			EntityKind: "Shell",
			EntityID:   "urn:ex:shell:1",
			EventKind:  eventlog.EventCreated,
			Payload:    []byte(`{"id":"urn:ex:shell:1","idShort":"Shell1"}`),
		},
		StreamKey: "titan:events:Shell:0",
		MessageID: "1-0",
	}

	etag, err := w.apply(context.Background(), d)
	require.NoError(t, err)
	assert.NotEmpty(t, etag)
	require.Len(t, st.puts, 1)
	assert.Equal(t, "urn:ex:shell:1", st.puts[0].ID)
	assert.Equal(t, "Shell1", st.puts[0].IDShort)
}

func TestApplyPopulatesAssetIDsFromGlobalAssetID(t *testing.T) {
	st := &fakeStore{}
	w := New(nil, st, nil, nil, nil, nil, Config{EntityKind: model.KindShell})

	d := eventlog.Delivery{
		Event: eventlog.Event{
			EntityKind: "Shell",
			EntityID:   "urn:ex:shell:1",
			EventKind:  eventlog.EventCreated,
			Payload:    []byte(`{"id":"urn:ex:shell:1","assetInformation":{"assetKind":"Instance","globalAssetId":"urn:ex:asset:1"}}`),
		},
	}

	_, err := w.apply(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, st.puts, 1)
	assert.Equal(t, []string{"urn:ex:asset:1"}, st.puts[0].AssetIDs)
}

func TestApplyDeletesFromStore(t *testing.T) {
	st := &fakeStore{}
	w := New(nil, st, nil, nil, nil, nil, Config{EntityKind: model.KindShell})

	d := eventlog.Delivery{
		Event: eventlog.Event{EntityKind: "Shell", EntityID: "urn:ex:shell:1", EventKind: eventlog.EventDeleted},
	}
	etag, err := w.apply(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, etag)
	assert.Equal(t, []string{"urn:ex:shell:1"}, st.deletes)
}

func TestInvalidateCacheClearsEntityAndListPages(t *testing.T) {
	c := &fakeCache{}
	w := New(nil, &fakeStore{}, c, nil, nil, nil, Config{EntityKind: model.KindShell})

	w.invalidateCache(context.Background(), eventlog.Event{EntityKind: "Shell", EntityID: "urn:ex:shell:1"})
	require.Len(t, c.deletedKeys, 1)
	require.Len(t, c.deletedPrefixes, 1)
	assert.Equal(t, "titan:list:Shell:", c.deletedPrefixes[0])
}

func TestProcessPublishesToHubOnSuccess(t *testing.T) {
	st := &fakeStore{}
	hub := &fakeHub{}
	l := newTestEventLog(t)
	w := New(l, st, &fakeCache{}, hub, nil, nil, Config{EntityKind: model.KindShell})

	ctx := context.Background()
	_, err := l.Append(ctx, "Shell", "urn:ex:shell:2", eventlog.EventCreated, []byte(`{"id":"urn:ex:shell:2"}`), "corr-1")
	require.NoError(t, err)

	streamKey := l.StreamKey("Shell", "urn:ex:shell:2")
	deliveries, err := l.Read(ctx, streamKey, "worker-0", 10, 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)

	w.process(ctx, deliveries[0])

	require.Len(t, hub.published, 1)
	assert.Equal(t, "urn:ex:shell:2", hub.published[0].EntityID)

	pending, err := l.Pending(ctx, streamKey)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending)
}

func TestProcessMovesToDLQAfterExhaustingRetries(t *testing.T) {
	st := &fakeStore{failN: maxAttempts}
	l := newTestEventLog(t)
	w := New(l, st, &fakeCache{}, nil, nil, nil, Config{EntityKind: model.KindShell})
	w.sleep = func(time.Duration) {}

	ctx := context.Background()
	_, err := l.Append(ctx, "Shell", "urn:ex:shell:3", eventlog.EventCreated, []byte(`{"id":"urn:ex:shell:3"}`), "corr-2")
	require.NoError(t, err)

	streamKey := l.StreamKey("Shell", "urn:ex:shell:3")
	deliveries, err := l.Read(ctx, streamKey, "worker-0", 10, 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)

	w.process(ctx, deliveries[0])

	pending, err := l.Pending(ctx, streamKey)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending)

	dlq, err := l.Read(ctx, eventlog.DLQKey(streamKey), "worker-0", 10, 0)
	require.NoError(t, err)
	require.Len(t, dlq, 1)
}

func TestBackoffIsCappedAtThirtySeconds(t *testing.T) {
	assert.Equal(t, initialBackoff, backoff(1))
	assert.Equal(t, maxBackoff, backoff(20))
}
