package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore over the snapshot_docs table.
// Each collection is one set of (collection, id) rows holding JSONB documents.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a SnapshotStore backed by pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Load returns every document of collection keyed by id.
func (s *SnapshotStore) Load(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	const query = `SELECT id, doc FROM snapshot_docs WHERE collection = $1`

	rows, err := s.pool.Query(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("postgres: load %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make(map[string]json.RawMessage)
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("postgres: scan %s doc: %w", collection, err)
		}
		docs[id] = json.RawMessage(doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load %s rows: %w", collection, err)
	}
	return docs, nil
}

// Save replaces collection with docs in one transaction: documents are
// upserted in a batch and rows whose id is absent from docs are deleted.
func (s *SnapshotStore) Save(ctx context.Context, collection string, docs map[string]json.RawMessage) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: save %s: begin: %w", collection, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const upsert = `
		INSERT INTO snapshot_docs (collection, id, doc, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (collection, id) DO UPDATE SET
			doc        = EXCLUDED.doc,
			updated_at = NOW()
		WHERE snapshot_docs.doc IS DISTINCT FROM EXCLUDED.doc`

	ids := make([]string, 0, len(docs))
	batch := &pgx.Batch{}
	for id, doc := range docs {
		ids = append(ids, id)
		batch.Queue(upsert, collection, id, []byte(doc))
	}
	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: save %s: upsert doc %d: %w", collection, i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: save %s: close batch: %w", collection, err)
		}
	}

	const prune = `DELETE FROM snapshot_docs WHERE collection = $1 AND NOT (id = ANY($2))`
	if _, err := tx.Exec(ctx, prune, collection, ids); err != nil {
		return fmt.Errorf("postgres: save %s: prune: %w", collection, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: save %s: commit: %w", collection, err)
	}
	return nil
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
