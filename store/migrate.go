package store

import "context"

// schemaStatements creates the entities table and its supporting indexes.
// The doc column carries the parsed jsonb form for query predicates that
// need to reach inside the document; doc_bytes is the canonical byte
// form the fast read path serves directly.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS entities (
		kind          text NOT NULL,
		id            text NOT NULL,
		id_token      text NOT NULL,
		doc           jsonb NOT NULL,
		doc_bytes     bytea NOT NULL,
		etag          text NOT NULL,
		id_short      text,
		semantic_id   text,
		submodel_kind text,
		asset_ids     text[] NOT NULL DEFAULT '{}',
		created_at    timestamptz NOT NULL,
		updated_at    timestamptz NOT NULL,
		PRIMARY KEY (kind, id)
	)`,
	`CREATE INDEX IF NOT EXISTS entities_id_token_idx ON entities (kind, id_token)`,
	`CREATE INDEX IF NOT EXISTS entities_id_short_idx ON entities (kind, id_short)`,
	`CREATE INDEX IF NOT EXISTS entities_semantic_id_idx ON entities (kind, semantic_id)`,
	`CREATE INDEX IF NOT EXISTS entities_asset_ids_gin_idx ON entities USING GIN (asset_ids)`,
	`CREATE INDEX IF NOT EXISTS entities_page_idx ON entities (kind, updated_at, id)`,
}

// Migrate applies the entities schema. It is idempotent and safe to run
// on every process start.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
