// Package store holds helpers shared by the snapshot backends and by the
// components that persist through them.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// EncodeDocs marshals items into a collection keyed by id.
func EncodeDocs[T any](items []T, id func(T) string) (map[string]json.RawMessage, error) {
	docs := make(map[string]json.RawMessage, len(items))
	for _, it := range items {
		b, err := json.Marshal(it)
		if err != nil {
			return nil, fmt.Errorf("store: encode %s: %w", id(it), err)
		}
		docs[id(it)] = b
	}
	return docs, nil
}

// DecodeDocs unmarshals a collection in key order. Documents that fail to
// decode are skipped and reported through bad.
func DecodeDocs[T any](docs map[string]json.RawMessage, bad func(key string, err error)) []T {
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]T, 0, len(docs))
	for _, k := range keys {
		var v T
		if err := json.Unmarshal(docs[k], &v); err != nil {
			if bad != nil {
				bad(k, err)
			}
			continue
		}
		out = append(out, v)
	}
	return out
}

// SaveCollection encodes items and writes them as one collection. A nil store
// is a no-op.
func SaveCollection[T any](ctx context.Context, s domain.SnapshotStore, collection string, items []T, id func(T) string) error {
	if s == nil {
		return nil
	}
	docs, err := EncodeDocs(items, id)
	if err != nil {
		return err
	}
	return s.Save(ctx, collection, docs)
}

// LoadCollection reads and decodes one collection. A nil store yields an
// empty result.
func LoadCollection[T any](ctx context.Context, s domain.SnapshotStore, collection string, bad func(key string, err error)) ([]T, error) {
	if s == nil {
		return nil, nil
	}
	docs, err := s.Load(ctx, collection)
	if err != nil {
		return nil, err
	}
	return DecodeDocs[T](docs, bad), nil
}
