package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver snapshots bookkeeping history to cold storage.
type Archiver interface {
	ArchiveRewardLedgers(ctx context.Context, at time.Time) (int64, error)
	ArchiveUnstakeRequests(ctx context.Context, before time.Time) (int64, error)
}
