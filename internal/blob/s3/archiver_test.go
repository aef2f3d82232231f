package s3blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mintbay/marketd/internal/domain"
)

// fakeBlobStore implements BlobWriter and BlobReader over a map.
type fakeBlobStore struct {
	objects map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(_ context.Context, path string, data io.Reader, _ string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[path] = buf
	return nil
}

func (f *fakeBlobStore) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return f.Put(ctx, path, data, "")
}

func (f *fakeBlobStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	buf, ok := f.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (f *fakeBlobStore) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	for path, buf := range f.objects {
		if strings.HasPrefix(path, prefix) {
			infos = append(infos, domain.BlobInfo{Path: path, Size: int64(len(buf))})
		}
	}
	return infos, nil
}

func (f *fakeBlobStore) Exists(_ context.Context, path string) (bool, error) {
	_, ok := f.objects[path]
	return ok, nil
}

// fakeEventStore holds events in memory; only the archiving surface matters.
type fakeEventStore struct {
	events []domain.MarketEvent
}

func (f *fakeEventStore) Append(_ context.Context, ev domain.MarketEvent) (domain.MarketEvent, error) {
	ev.Seq = int64(len(f.events) + 1)
	f.events = append(f.events, ev)
	return ev, nil
}

func (f *fakeEventStore) ListByToken(_ context.Context, _ uint64, _ domain.ListOpts) ([]domain.MarketEvent, error) {
	return nil, nil
}

func (f *fakeEventStore) ListByKind(_ context.Context, _ domain.EventKind, _ domain.ListOpts) ([]domain.MarketEvent, error) {
	return nil, nil
}

func (f *fakeEventStore) List(_ context.Context, _ domain.ListOpts) ([]domain.MarketEvent, error) {
	return f.events, nil
}

func (f *fakeEventStore) ListBefore(_ context.Context, before time.Time) ([]domain.MarketEvent, error) {
	var out []domain.MarketEvent
	for _, ev := range f.events {
		if ev.At.Before(before) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeEventStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	var kept []domain.MarketEvent
	var deleted int64
	for _, ev := range f.events {
		if ev.At.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	f.events = kept
	return deleted, nil
}

type fakeAuditStore struct {
	entries []domain.AuditEntry
}

func (f *fakeAuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	f.entries = append(f.entries, domain.AuditEntry{
		ID:        int64(len(f.entries) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (f *fakeAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return f.entries, nil
}

func (f *fakeAuditStore) ListBefore(_ context.Context, before time.Time) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, e := range f.entries {
		if e.CreatedAt.Before(before) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAuditStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	var kept []domain.AuditEntry
	var deleted int64
	for _, e := range f.entries {
		if e.CreatedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return deleted, nil
}

// Two passes in the same month must land in distinct objects; the first
// pass's rows are already pruned from the store, so overwriting its object
// would destroy them.
func TestArchiveEvents_TwoPassesKeepBothBatches(t *testing.T) {
	ctx := context.Background()
	blobs := newFakeBlobStore()
	events := &fakeEventStore{}
	audit := &fakeAuditStore{}
	arch := NewArchiver(blobs, blobs, events, audit)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if _, err := events.Append(ctx, domain.MarketEvent{ID: "ev-1", TokenID: 1, At: base}); err != nil {
		t.Fatal(err)
	}

	moved, err := arch.ArchiveEvents(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("first ArchiveEvents() error = %v", err)
	}
	if moved != 1 {
		t.Fatalf("first pass moved = %d, want 1", moved)
	}

	if _, err := events.Append(ctx, domain.MarketEvent{ID: "ev-2", TokenID: 2, At: base.Add(48 * time.Hour)}); err != nil {
		t.Fatal(err)
	}

	moved, err = arch.ArchiveEvents(ctx, base.Add(72*time.Hour))
	if err != nil {
		t.Fatalf("second ArchiveEvents() error = %v", err)
	}
	if moved != 1 {
		t.Fatalf("second pass moved = %d, want 1", moved)
	}

	infos, err := blobs.List(ctx, "archive/events/")
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("archive objects = %d, want one per pass", len(infos))
	}

	// Every archived event is still readable from some object.
	var all []byte
	for _, buf := range blobs.objects {
		all = append(all, buf...)
	}
	for _, id := range []string{"ev-1", "ev-2"} {
		if !bytes.Contains(all, []byte(id)) {
			t.Errorf("event %s missing from the archive", id)
		}
	}
	if len(events.events) != 0 {
		t.Errorf("store still holds %d events after both passes", len(events.events))
	}
}

func TestArchiveEvents_EmptyPassIsNoOp(t *testing.T) {
	ctx := context.Background()
	blobs := newFakeBlobStore()
	arch := NewArchiver(blobs, blobs, &fakeEventStore{}, &fakeAuditStore{})

	moved, err := arch.ArchiveEvents(ctx, time.Now())
	if err != nil {
		t.Fatalf("ArchiveEvents() error = %v", err)
	}
	if moved != 0 {
		t.Errorf("moved = %d, want 0", moved)
	}
	if len(blobs.objects) != 0 {
		t.Errorf("empty pass wrote %d objects", len(blobs.objects))
	}
}

func TestArchivePath_UniquePerCutoff(t *testing.T) {
	a := time.Date(2026, 8, 10, 3, 0, 0, 0, time.UTC)
	b := a.Add(24 * time.Hour)

	pa := archivePath("events", a)
	pb := archivePath("events", b)
	if pa == pb {
		t.Fatalf("archivePath collides across passes: %s", pa)
	}
	if !strings.HasPrefix(pa, "archive/events/2026-08/") {
		t.Errorf("archivePath = %s, want month partition", pa)
	}
}
