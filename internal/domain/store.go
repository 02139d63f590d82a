package domain

import (
	"context"
	"encoding/json"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// Snapshot collections.
const (
	CollectionAuctions   = "auctions"
	CollectionBids       = "bids"
	CollectionResults    = "results"
	CollectionUsers      = "users"
	CollectionStrategies = "strategies"
)

// SnapshotStore persists whole collections of JSON documents keyed by id.
// Save replaces the stored collection with docs.
type SnapshotStore interface {
	Load(ctx context.Context, collection string) (map[string]json.RawMessage, error)
	Save(ctx context.Context, collection string, docs map[string]json.RawMessage) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
