package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore on the snapshot_docs table.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a SnapshotStore on db.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Load returns every document of collection keyed by id.
func (s *SnapshotStore) Load(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	rows, err := s.db.db.QueryContext(ctx, `SELECT id, doc FROM snapshot_docs WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make(map[string]json.RawMessage)
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s doc: %w", collection, err)
		}
		docs[id] = json.RawMessage(doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: load %s rows: %w", collection, err)
	}
	return docs, nil
}

// Save replaces collection with docs in one transaction.
func (s *SnapshotStore) Save(ctx context.Context, collection string, docs map[string]json.RawMessage) error {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: save %s: begin: %w", collection, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_docs WHERE collection = ?`, collection); err != nil {
		return fmt.Errorf("sqlite: save %s: clear: %w", collection, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO snapshot_docs (collection, id, doc) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: save %s: prepare: %w", collection, err)
	}
	defer stmt.Close()
	for id, doc := range docs {
		if _, err := stmt.ExecContext(ctx, collection, id, string(doc)); err != nil {
			return fmt.Errorf("sqlite: save %s: insert %s: %w", collection, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: save %s: commit: %w", collection, err)
	}
	return nil
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
