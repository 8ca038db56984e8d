// Package store is the durable system of record for Titan-AAS entities.
// It owns the only tables that matter for correctness — every other
// component (cache, event log) holds a derived or transient copy. Reads
// are lock-free; writes arrive pre-serialized from the single-writer so
// the Store itself performs no per-row locking, only atomic column
// updates.
//
// Grounded on the teacher's pgx wrapper (db/postgres_pgx.go) generalized
// from a generic Exec/Query/QueryRow helper into the fixed entities
// schema this domain needs.
package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hadijannat/titan-aas/canon"
	"github.com/hadijannat/titan-aas/idcodec"
	"github.com/hadijannat/titan-aas/model"
	"github.com/hadijannat/titan-aas/titanerr"
)

// Record is one stored entity row, matching the shape spec §3 requires:
// the parsed document is not reconstructed here, only carried as bytes,
// since the Store never needs to interpret it.
type Record struct {
	ID         string
	IDToken    string
	DocBytes   []byte
	ETag       string
	Kind       model.Kind
	IDShort    string
	SemanticID string
	AssetIDs   []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Filter narrows a List call. Zero-value fields are not applied.
type Filter struct {
	IDShort    string
	SemanticID string
	AssetID    string
}

// Cursor is an opaque, monotone pagination token derived from
// (updated_at, id) per spec §4.3.
type Cursor struct {
	UpdatedAt time.Time
	ID        string
}

// EncodeCursor renders a Cursor as an opaque string safe for query params.
func EncodeCursor(c *Cursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%d:%s", c.UpdatedAt.UnixNano(), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor reverses EncodeCursor.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, titanerr.Wrap(titanerr.ValidationError, err)
	}
	var nanos int64
	var id string
	if _, err := fmt.Sscanf(string(raw), "%d:%s", &nanos, &id); err != nil {
		return nil, titanerr.New(titanerr.ValidationError, "malformed cursor")
	}
	return &Cursor{UpdatedAt: time.Unix(0, nanos), ID: id}, nil
}

// Store wraps a pgxpool.Pool with the entity-table operations every
// other component needs. It is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a pool against connString and verifies connectivity.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, titanerr.Wrap(titanerr.StoreUnavailable, fmt.Errorf("create pool: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, titanerr.Wrap(titanerr.StoreUnavailable, fmt.Errorf("ping: %w", err))
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool returns the underlying pool for migrations or advanced callers.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Get is the fast read path: it returns the canonical bytes directly
// without touching the parsed document.
func (s *Store) Get(ctx context.Context, kind model.Kind, id string) ([]byte, string, error) {
	var docBytes []byte
	var etag string
	err := s.pool.QueryRow(ctx,
		`SELECT doc_bytes, etag FROM entities WHERE kind = $1 AND id = $2`,
		string(kind), id,
	).Scan(&docBytes, &etag)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", titanerr.Newf(titanerr.NotFound, "%s %q not found", kind, id)
	}
	if err != nil {
		return nil, "", titanerr.Wrap(titanerr.StoreUnavailable, err)
	}
	return docBytes, etag, nil
}

// GetParsed is the slow read path, used when a caller needs the
// structured document rather than raw bytes (e.g. for projection).
func (s *Store) GetParsed(ctx context.Context, kind model.Kind, id string) (*canon.Document, string, error) {
	docBytes, etag, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, "", err
	}
	doc, _, _, err := canon.ParseAndValidate(docBytes, kind)
	if err != nil {
		return nil, "", titanerr.Wrap(titanerr.Internal, err)
	}
	return doc, etag, nil
}

// Put performs an idempotent upsert. If ifMatch is non-empty, the write
// fails with Conflict when the stored ETag does not equal it.
func (s *Store) Put(ctx context.Context, rec Record, ifMatch string) error {
	if ifMatch != "" {
		var currentEtag string
		err := s.pool.QueryRow(ctx,
			`SELECT etag FROM entities WHERE kind = $1 AND id = $2`,
			string(rec.Kind), rec.ID,
		).Scan(&currentEtag)
		if err == nil && currentEtag != ifMatch {
			return titanerr.New(titanerr.Conflict, "etag mismatch on write")
		}
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return titanerr.Wrap(titanerr.StoreUnavailable, err)
		}
	}

	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO entities (kind, id, id_token, doc, doc_bytes, etag, id_short, semantic_id, asset_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (kind, id) DO UPDATE SET
			doc = EXCLUDED.doc,
			doc_bytes = EXCLUDED.doc_bytes,
			etag = EXCLUDED.etag,
			id_short = EXCLUDED.id_short,
			semantic_id = EXCLUDED.semantic_id,
			asset_ids = EXCLUDED.asset_ids,
			updated_at = GREATEST(entities.updated_at + interval '1 microsecond', EXCLUDED.updated_at)
	`,
		string(rec.Kind), rec.ID, idcodec.Encode(rec.ID), rec.DocBytes, rec.DocBytes, rec.ETag,
		rec.IDShort, rec.SemanticID, rec.AssetIDs, now,
	)
	if err != nil {
		return titanerr.Wrap(titanerr.StoreUnavailable, err)
	}
	return nil
}

// Delete removes a row and reports whether one was actually present.
func (s *Store) Delete(ctx context.Context, kind model.Kind, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM entities WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return false, titanerr.Wrap(titanerr.StoreUnavailable, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Page is one page of a List call: identifiers plus the cursor to
// continue from. NextCursor is nil when the page holds fewer than limit
// rows; a full final page still carries one, and the call after it
// returns an empty page.
type Page struct {
	IDs        []string
	NextCursor *Cursor
}

// List returns a page of identifiers matching filter, ordered by
// (updated_at, id) ascending, which makes the cursor stable under
// concurrent inserts and updates (spec §4.3).
func (s *Store) List(ctx context.Context, kind model.Kind, filter Filter, cursor *Cursor, limit int) (*Page, error) {
	query := `SELECT id, updated_at FROM entities WHERE kind = $1`
	args := []interface{}{string(kind)}

	if filter.IDShort != "" {
		args = append(args, filter.IDShort)
		query += fmt.Sprintf(" AND id_short = $%d", len(args))
	}
	if filter.SemanticID != "" {
		args = append(args, filter.SemanticID)
		query += fmt.Sprintf(" AND semantic_id = $%d", len(args))
	}
	if filter.AssetID != "" {
		args = append(args, filter.AssetID)
		query += fmt.Sprintf(" AND $%d = ANY(asset_ids)", len(args))
	}
	if cursor != nil {
		args = append(args, cursor.UpdatedAt, cursor.ID)
		query += fmt.Sprintf(" AND (updated_at, id) > ($%d, $%d)", len(args)-1, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY updated_at ASC, id ASC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, titanerr.Wrap(titanerr.StoreUnavailable, err)
	}
	defer rows.Close()

	page := &Page{}
	var lastUpdatedAt time.Time
	var lastID string
	for rows.Next() {
		var id string
		var updatedAt time.Time
		if err := rows.Scan(&id, &updatedAt); err != nil {
			return nil, titanerr.Wrap(titanerr.StoreUnavailable, err)
		}
		page.IDs = append(page.IDs, id)
		lastID, lastUpdatedAt = id, updatedAt
	}
	if err := rows.Err(); err != nil {
		return nil, titanerr.Wrap(titanerr.StoreUnavailable, err)
	}
	if len(page.IDs) == limit {
		page.NextCursor = &Cursor{UpdatedAt: lastUpdatedAt, ID: lastID}
	}
	return page, nil
}

// LookupShellsByAssetID is the discovery index behind /lookup/shells.
func (s *Store) LookupShellsByAssetID(ctx context.Context, assetID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM entities WHERE kind = $1 AND $2 = ANY(asset_ids)`,
		string(model.KindShell), assetID,
	)
	if err != nil {
		return nil, titanerr.Wrap(titanerr.StoreUnavailable, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, titanerr.Wrap(titanerr.StoreUnavailable, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
