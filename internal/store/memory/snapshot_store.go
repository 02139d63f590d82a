// Package memory provides in-process snapshot and audit stores.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore in memory.
type SnapshotStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
	saves       int
}

// NewSnapshotStore creates an empty SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{collections: make(map[string]map[string]json.RawMessage)}
}

func (s *SnapshotStore) Load(_ context.Context, collection string) (map[string]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneDocs(s.collections[collection]), nil
}

func (s *SnapshotStore) Save(_ context.Context, collection string, docs map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = cloneDocs(docs)
	s.saves++
	return nil
}

// Saves returns how many Save calls have been applied.
func (s *SnapshotStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func cloneDocs(docs map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(docs))
	for k, v := range docs {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
