package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flarexfi/flarestake/internal/domain"
)

// RewardArchiveStore provides read access to reward ledgers for archival.
// The archiver only needs the listing method, not the full store.
type RewardArchiveStore interface {
	List(ctx context.Context) ([]domain.RewardLedgerEntry, error)
}

// UnstakeArchiveStore provides read access to settled unstake requests for
// archival.
type UnstakeArchiveStore interface {
	ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.UnstakeRequest, error)
}

// ArchiveImpl implements domain.Archiver by querying the bookkeeping stores,
// serializing the records to JSONL, and uploading the result to object
// storage. Records are never deleted from the primary store here; pruning
// is a separate, explicit step after the archive is verified.
type ArchiveImpl struct {
	writer   domain.BlobWriter
	rewards  RewardArchiveStore
	unstakes UnstakeArchiveStore
	audit    domain.AuditStore
}

// NewArchiver creates an ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	rewards RewardArchiveStore,
	unstakes UnstakeArchiveStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:   writer,
		rewards:  rewards,
		unstakes: unstakes,
		audit:    audit,
	}
}

// ArchiveRewardLedgers snapshots every reward ledger to
// archive/reward_ledgers/YYYY-MM.jsonl. The archival event is recorded in
// the audit log and the count of archived records is returned.
func (a *ArchiveImpl) ArchiveRewardLedgers(ctx context.Context, at time.Time) (int64, error) {
	entries, err := a.rewards.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive reward ledgers query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive reward ledgers marshal: %w", err)
	}

	path := archivePath("reward_ledgers", at)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive reward ledgers upload: %w", err)
	}

	count := int64(len(entries))

	if err := a.audit.Log(ctx, "archive.reward_ledgers", map[string]any{
		"path":  path,
		"count": count,
		"at":    at.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive reward ledgers audit log: %w", err)
	}

	return count, nil
}

// ArchiveUnstakeRequests snapshots settled unstake requests older than the
// cutoff to archive/unstake_requests/YYYY-MM.jsonl.
func (a *ArchiveImpl) ArchiveUnstakeRequests(ctx context.Context, before time.Time) (int64, error) {
	requests, err := a.unstakes.ListTerminalBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive unstake requests query: %w", err)
	}
	if len(requests) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(requests)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive unstake requests marshal: %w", err)
	}

	path := archivePath("unstake_requests", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive unstake requests upload: %w", err)
	}

	count := int64(len(requests))

	if err := a.audit.Log(ctx, "archive.unstake_requests", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive unstake requests audit log: %w", err)
	}

	return count, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
func archivePath(kind string, t time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, t.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
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
