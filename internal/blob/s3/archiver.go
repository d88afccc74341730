package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// multipartThreshold is the payload size above which uploads switch to the
// multipart path.
const multipartThreshold = 32 * 1024 * 1024

// SnapshotArchiveStore is the slice of the snapshot store the archiver
// needs: time-ranged reads and the matching delete. The Postgres snapshot
// store satisfies it.
type SnapshotArchiveStore interface {
	// ListBefore returns all snapshots captured strictly before the cutoff,
	// oldest first.
	ListBefore(ctx context.Context, before time.Time) ([]domain.PriceSnapshot, error)

	// DeleteBefore removes all snapshots captured strictly before the cutoff
	// and returns the number of rows deleted.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiveImpl implements domain.Archiver: it serialises aged snapshots to
// JSONL, uploads the file, reads the upload back to verify it, and only
// then deletes the rows from the primary store. A failed verification
// leaves the rows in place; the next run re-uploads under a fresh key.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	reader    domain.BlobReader
	snapshots SnapshotArchiveStore
	audit     domain.AuditStore

	// now is swappable for tests.
	now func() time.Time
}

// NewArchiver creates an ArchiveImpl over the given blob backends and
// snapshot store.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, snapshots SnapshotArchiveStore, audit domain.AuditStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		reader:    reader,
		snapshots: snapshots,
		audit:     audit,
		now:       time.Now,
	}
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// ArchiveSnapshots uploads every snapshot captured before the cutoff and
// deletes the uploaded rows. Returns the number of archived rows.
func (a *ArchiveImpl) ArchiveSnapshots(ctx context.Context, before time.Time) (int64, error) {
	snaps, err := a.snapshots.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots query: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	buf, err := encodeJSONL(snaps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots marshal: %w", err)
	}

	path := archivePath("snapshots", before, a.now().UTC())
	if int64(len(buf)) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots upload: %w", err)
	}

	if err := a.verify(ctx, path, len(snaps)); err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots verify %s: %w", path, err)
	}

	deleted, err := a.snapshots.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots delete: %w", err)
	}

	if err := a.audit.Log(ctx, "archive.snapshots", map[string]any{
		"path":    path,
		"count":   len(snaps),
		"deleted": deleted,
		"before":  before.Format(time.RFC3339),
	}); err != nil {
		return int64(len(snaps)), fmt.Errorf("s3blob: archive snapshots audit log: %w", err)
	}

	return int64(len(snaps)), nil
}

// verify reads the uploaded object back and checks that it holds exactly
// wantLines JSONL records.
func (a *ArchiveImpl) verify(ctx context.Context, path string, wantLines int) error {
	body, err := a.reader.Get(ctx, path)
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read back: %w", err)
	}

	if got := bytes.Count(data, []byte{'\n'}); got != wantLines {
		return fmt.Errorf("line count mismatch: got %d, want %d", got, wantLines)
	}
	return nil
}

// archivePath builds the object key. Keys are partitioned by the cutoff's
// year-month and stamped with the run time, so re-running within the same
// month never overwrites an earlier archive:
//
//	archive/snapshots/2026-08/20260822T031504Z.jsonl
func archivePath(kind string, before, runAt time.Time) string {
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, before.Format("2006-01"), runAt.Format("20060102T150405Z"))
}

// encodeJSONL serialises snapshots as newline-delimited JSON, one compact
// record per line.
func encodeJSONL(snaps []domain.PriceSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, s := range snaps {
		if err := enc.Encode(s); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
