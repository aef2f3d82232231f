package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mintbay/marketd/internal/domain"
)

// ArchiveImpl implements domain.Archiver by querying the stores for rows
// older than a cutoff, serializing them to JSONL, uploading the result to S3,
// and pruning the archived rows from the primary store.
//
// The upload is verified before anything is deleted: a batch that cannot be
// read back stays in the database.
type ArchiveImpl struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	events domain.EventStore
	audit  domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	events domain.EventStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		reader: reader,
		events: events,
		audit:  audit,
	}
}

// ArchiveEvents uploads all marketplace events older than the cutoff to a
// per-pass object under archive/events/, verifies the upload, prunes the
// archived rows, and records the run in the audit log. It returns the count
// of archived events.
func (a *ArchiveImpl) ArchiveEvents(ctx context.Context, before time.Time) (int64, error) {
	events, err := a.events.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events query: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(events)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events marshal: %w", err)
	}

	path := archivePath("events", before)
	if err := a.uploadVerified(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive events: %w", err)
	}

	deleted, err := a.events.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events prune: %w", err)
	}

	if err := a.audit.Log(ctx, "archive.events", map[string]any{
		"path":    path,
		"count":   len(events),
		"deleted": deleted,
		"before":  before.Format(time.RFC3339),
	}); err != nil {
		return deleted, fmt.Errorf("s3blob: archive events audit log: %w", err)
	}

	return deleted, nil
}

// ArchiveAudit uploads all audit entries older than the cutoff to a per-pass
// object under archive/audit/, verifies the upload, prunes the archived rows,
// and records the run. The run record itself is written after the prune, so
// it survives until the next archive pass.
func (a *ArchiveImpl) ArchiveAudit(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit marshal: %w", err)
	}

	path := archivePath("audit", before)
	if err := a.uploadVerified(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive audit: %w", err)
	}

	deleted, err := a.audit.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit prune: %w", err)
	}

	if err := a.audit.Log(ctx, "archive.audit", map[string]any{
		"path":    path,
		"count":   len(entries),
		"deleted": deleted,
		"before":  before.Format(time.RFC3339),
	}); err != nil {
		return deleted, fmt.Errorf("s3blob: archive audit log: %w", err)
	}

	return deleted, nil
}

// uploadVerified puts the payload and confirms the object is readable before
// the caller prunes anything.
func (a *ArchiveImpl) uploadVerified(ctx context.Context, path string, buf []byte) error {
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}

	ok, err := a.reader.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("verify %s: object missing after upload", path)
	}
	return nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff and keyed by the full cutoff timestamp. The full
// timestamp keeps every pass's batch as its own object; a month-level key
// would be overwritten by the next pass and lose already-pruned rows.
//
//	archive/events/2026-08/20260829T120000Z.jsonl
//	archive/audit/2026-08/20260829T120000Z.jsonl
func archivePath(kind string, before time.Time) string {
	b := before.UTC()
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, b.Format("2006-01"), b.Format("20060102T150405Z"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
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

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
