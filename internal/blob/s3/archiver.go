package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

const (
	contentTypeJSON  = "application/json"
	contentTypeJSONL = "application/x-ndjson"

	// batches above this size go through the multipart uploader.
	multipartThreshold = 8 * 1024 * 1024

	maxBatchParts = 100
)

// Archiver implements domain.Archiver. Single auctions are stored as JSON
// documents partitioned by completion day; daily batches as JSONL.
//
//	<prefix>/2024/06/01/<auction-id>.json
//	<prefix>/daily/2024-06-01.jsonl
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	audit  domain.AuditStore
	prefix string
}

// NewArchiver creates an Archiver. reader and audit may be nil. Without a
// reader a second batch for the same day replaces the first.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, audit domain.AuditStore, prefix string) *Archiver {
	if prefix == "" {
		prefix = "auctions"
	}
	return &Archiver{writer: writer, reader: reader, audit: audit, prefix: prefix}
}

// AuctionPath returns the key for a single archived auction.
func (a *Archiver) AuctionPath(rec domain.AuctionRecord) string {
	day := rec.Auction.CreatedAt
	if rec.Auction.CompletedAt != nil {
		day = *rec.Auction.CompletedAt
	}
	return path.Join(a.prefix, day.UTC().Format("2006/01/02"), rec.Auction.ID+".json")
}

// BatchPath returns the key for a day's JSONL batch.
func (a *Archiver) BatchPath(day time.Time) string {
	return a.batchPath(day, 0)
}

func (a *Archiver) batchPath(day time.Time, part int) string {
	name := day.UTC().Format("2006-01-02")
	if part > 0 {
		name += "." + strconv.Itoa(part)
	}
	return path.Join(a.prefix, "daily", name+".jsonl")
}

// freeBatchPath returns the first batch key for day that is not stored yet.
// A restart or a second ingest node flushing the same day then adds
// 2024-06-01.1.jsonl instead of overwriting 2024-06-01.jsonl.
func (a *Archiver) freeBatchPath(ctx context.Context, day time.Time) (string, error) {
	if a.reader == nil {
		return a.BatchPath(day), nil
	}
	for part := 0; part < maxBatchParts; part++ {
		key := a.batchPath(day, part)
		ok, err := a.reader.Exists(ctx, key)
		if err != nil {
			return "", err
		}
		if !ok {
			return key, nil
		}
	}
	return "", fmt.Errorf("%d batches already stored for %s", maxBatchParts, day.UTC().Format("2006-01-02"))
}

// ArchiveAuction uploads one auction record and returns its key.
func (a *Archiver) ArchiveAuction(ctx context.Context, rec domain.AuctionRecord) (string, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal auction %s: %w", rec.Auction.ID, err)
	}
	key := a.AuctionPath(rec)
	if err := a.writer.Put(ctx, key, bytes.NewReader(body), contentTypeJSON); err != nil {
		return "", fmt.Errorf("s3blob: archive auction %s: %w", rec.Auction.ID, err)
	}
	return key, nil
}

// ArchiveBatch uploads recs as one JSONL object for day, logs the upload to
// the audit store and returns the key. An empty batch uploads nothing.
func (a *Archiver) ArchiveBatch(ctx context.Context, day time.Time, recs []domain.AuctionRecord) (string, error) {
	if len(recs) == 0 {
		return "", nil
	}
	buf, err := marshalJSONL(recs)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive batch marshal: %w", err)
	}

	key, err := a.freeBatchPath(ctx, day)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive batch key: %w", err)
	}
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, key, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, key, bytes.NewReader(buf), contentTypeJSONL)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive batch upload: %w", err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.batch", map[string]any{
			"path":  key,
			"count": len(recs),
			"day":   day.UTC().Format("2006-01-02"),
		}); err != nil {
			return key, fmt.Errorf("s3blob: archive batch audit log: %w", err)
		}
	}
	return key, nil
}

// marshalJSONL writes one compact JSON document per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
