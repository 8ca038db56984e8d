// Package singlewriter is the only path by which a mutation event
// reaches the Store. One goroutine runs per Event Log partition
// (grounded on the teacher's worker/pool.go Worker-per-queue shape,
// generalized from a polling Dequeue loop onto a blocking XReadGroup
// loop) and drives the state machine required by spec.md §4.8:
// Received -> Validate -> Apply-to-Store -> Invalidate-Cache ->
// Publish-to-Broadcaster -> Ack. Because every event for a given
// entity id hashes to the same partition and each partition has exactly
// one worker goroutine, per-entity ordering is preserved without any
// additional locking.
package singlewriter

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hadijannat/titan-aas/cache"
	"github.com/hadijannat/titan-aas/canon"
	"github.com/hadijannat/titan-aas/eventlog"
	"github.com/hadijannat/titan-aas/idcodec"
	"github.com/hadijannat/titan-aas/model"
	"github.com/hadijannat/titan-aas/store"
)

// EntityStore is the subset of *store.Store the single-writer needs.
// Narrowed to an interface so tests can exercise the state machine with
// a fake instead of a live Postgres connection.
type EntityStore interface {
	Put(ctx context.Context, rec store.Record, ifMatch string) error
	Delete(ctx context.Context, kind model.Kind, id string) (bool, error)
}

// EntityCache is the subset of *cache.Cache the single-writer needs for
// invalidation.
type EntityCache interface {
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Publisher is the subset of *broadcast.Hub the single-writer needs.
type Publisher interface {
	Publish(e eventlog.Event)
}

// DefaultBatchSize matches spec.md §4.8's default XREADGROUP COUNT.
const DefaultBatchSize = 64

// initialBackoff and maxBackoff bound the teacher's retry shape
// (100ms * 2^n), capped at 30s before a delivery is moved to the DLQ.
const (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 30 * time.Second
	maxAttempts    = 9 // the last retry waits backoff(8) = 100ms*2^7 = 12.8s before the DLQ
)

// PayloadLoader resolves a delivery's document bytes when the event
// carries a PayloadRefKey rather than an inline payload (spec §4.7).
type PayloadLoader func(ctx context.Context, refKey string) ([]byte, error)

// Config controls worker construction.
type Config struct {
	EntityKind model.Kind
	Partitions int
	BatchSize  int
	ConsumerID string
	BlockFor   time.Duration
}

// Worker drives one partition's state machine to completion.
type Worker struct {
	log         *eventlog.Log
	store       EntityStore
	cache       EntityCache
	hub         Publisher
	loadPayload PayloadLoader
	logger      *logrus.Entry
	cfg         Config
	sleep       func(time.Duration)
}

// New builds a Worker. cache and hub may be nil (invalidation/publish
// become no-ops), which is useful for tests that only exercise Store
// wiring.
func New(log *eventlog.Log, st EntityStore, c EntityCache, hub Publisher, loadPayload PayloadLoader, logger *logrus.Entry, cfg Config) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ConsumerID == "" {
		cfg.ConsumerID = "single-writer-0"
	}
	if cfg.BlockFor <= 0 {
		cfg.BlockFor = 5 * time.Second
	}
	return &Worker{log: log, store: st, cache: c, hub: hub, loadPayload: loadPayload, logger: logger, cfg: cfg, sleep: time.Sleep}
}

// Run starts one dispatcher goroutine per partition and blocks until ctx
// is cancelled.
func (w *Worker) Run(ctx context.Context) {
	partitions := w.cfg.Partitions
	if partitions <= 0 {
		partitions = 1
	}
	done := make(chan struct{}, partitions)
	for p := 0; p < partitions; p++ {
		go func(partition int) {
			w.runPartition(ctx, partition)
			done <- struct{}{}
		}(p)
	}
	for i := 0; i < partitions; i++ {
		<-done
	}
}

func (w *Worker) runPartition(ctx context.Context, partition int) {
	streamKey := w.log.StreamKeyForPartition(string(w.cfg.EntityKind), partition)
	consumer := fmt.Sprintf("%s-%d", w.cfg.ConsumerID, partition)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		deliveries, err := w.log.Read(ctx, streamKey, consumer, int64(w.cfg.BatchSize), w.cfg.BlockFor)
		if err != nil {
			w.logf(logrus.ErrorLevel, "", "read partition %d: %v", partition, err)
			time.Sleep(time.Second)
			continue
		}
		for _, d := range deliveries {
			w.process(ctx, d)
		}
	}
}

// process runs one delivery through Received -> Validate ->
// Apply-to-Store -> Invalidate-Cache -> Publish-to-Broadcaster -> Ack,
// retrying transient Store failures with capped exponential backoff
// before giving up and moving the delivery to the DLQ.
func (w *Worker) process(ctx context.Context, d eventlog.Delivery) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			w.sleep(backoff(attempt))
		}
		etag, err := w.apply(ctx, d)
		if err != nil {
			lastErr = err
			w.logf(logrus.WarnLevel, d.Event.EntityID, "attempt %d failed: %v", attempt+1, err)
			continue
		}
		d.Event.ETag = etag
		w.invalidateCache(ctx, d.Event)
		w.publish(d.Event)
		if err := w.log.Ack(ctx, d.StreamKey, d.MessageID); err != nil {
			w.logf(logrus.ErrorLevel, d.Event.EntityID, "ack failed: %v", err)
		}
		return
	}

	w.logf(logrus.ErrorLevel, d.Event.EntityID, "moving to DLQ after %d attempts: %v", maxAttempts, lastErr)
	if err := w.log.MoveToDLQ(ctx, d); err != nil {
		w.logf(logrus.ErrorLevel, d.Event.EntityID, "move to dlq failed: %v", err)
	}
}

// apply validates the event's payload and writes it to the Store,
// returning the resulting ETag (empty for a deletion) for the caller to
// attach to the event it publishes downstream.
func (w *Worker) apply(ctx context.Context, d eventlog.Delivery) (string, error) {
	if d.Event.EventKind == eventlog.EventDeleted {
		_, err := w.store.Delete(ctx, w.cfg.EntityKind, d.Event.EntityID)
		return "", err
	}

	payload := d.Event.Payload
	if len(payload) == 0 && d.Event.PayloadRefKey != "" {
		if w.loadPayload == nil {
			return "", fmt.Errorf("event %s carries a payload ref but no loader is configured", d.Event.ID)
		}
		loaded, err := w.loadPayload(ctx, d.Event.PayloadRefKey)
		if err != nil {
			return "", err
		}
		payload = loaded
	}

	doc, canonical, etag, err := canon.ParseAndValidate(payload, w.cfg.EntityKind)
	if err != nil {
		return "", err
	}

	rec := store.Record{
		ID:         d.Event.EntityID,
		IDToken:    idcodec.Encode(d.Event.EntityID),
		DocBytes:   canonical,
		ETag:       etag,
		Kind:       w.cfg.EntityKind,
		IDShort:    stringField(doc, "idShort"),
		SemanticID: stringField(doc, "semanticId"),
		AssetIDs:   assetIDsFor(w.cfg.EntityKind, doc),
	}
	if err := w.store.Put(ctx, rec, ""); err != nil {
		return "", err
	}
	return etag, nil
}

// assetIDsFor extracts the identifiers that populate the Store's
// asset_ids column, the index behind /lookup/shells (spec §4.3). Only
// Shells carry an assetInformation.globalAssetId to index.
func assetIDsFor(kind model.Kind, doc *canon.Document) []string {
	if kind != model.KindShell {
		return nil
	}
	assetID := doc.NestedField("assetInformation", "globalAssetId")
	if assetID == "" {
		return nil
	}
	return []string{assetID}
}

func stringField(doc *canon.Document, field string) string {
	if doc == nil {
		return ""
	}
	return doc.StringField(field)
}

// invalidateCache drops the entity's cached entry and every list page
// for its kind; failures are logged but never block the Ack (spec §4.8).
func (w *Worker) invalidateCache(ctx context.Context, e eventlog.Event) {
	if w.cache == nil {
		return
	}
	idToken := idcodec.Encode(e.EntityID)
	if err := w.cache.Delete(ctx, cache.EntityKey(e.EntityKind, idToken)); err != nil {
		w.logf(logrus.WarnLevel, e.EntityID, "cache invalidate entity: %v", err)
	}
	if err := w.cache.DeletePrefix(ctx, fmt.Sprintf("titan:list:%s:", e.EntityKind)); err != nil {
		w.logf(logrus.WarnLevel, e.EntityID, "cache invalidate list pages: %v", err)
	}
}

func (w *Worker) publish(e eventlog.Event) {
	if w.hub == nil {
		return
	}
	w.hub.Publish(e)
}

func (w *Worker) logf(level logrus.Level, entityID, format string, args ...interface{}) {
	if w.logger == nil {
		return
	}
	entry := w.logger
	if entityID != "" {
		entry = entry.WithField("entity_id", entityID)
	}
	entry.Logf(level, format, args...)
}

// backoff implements 100ms * 2^n capped at 30s.
func backoff(attempt int) time.Duration {
	d := initialBackoff << uint(attempt-1)
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}
