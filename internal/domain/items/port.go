package items

import (
	"context"
	"time"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Create(ctx context.Context, it *Item) error
	Get(ctx context.Context, id ID) (*Item, error)
	Latest(ctx context.Context, owner string, status Status, limit int) ([]*Item, error)

	// transisi state machine
	MarkProcessing(ctx context.Context, id ID) (*Item, error)
	Complete(ctx context.Context, id ID, locations []string, fields AnalysisFields) error
	Fail(ctx context.Context, id ID, reason string) error

	ReplicationSource
}

// ReplicationSource is the slice of the store the replicator needs.
type ReplicationSource interface {
	PendingReplication(ctx context.Context, since time.Time, limit int) ([]*Item, error)
	MarkReplicated(ctx context.Context, ids []ID) error
}

// BlobStore port (interface untuk penyimpanan artefak)
type BlobStore interface {
	Put(ctx context.Context, bucket, key string, data []byte) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// Queue port for work tokens.
// Pop never blocks; ok is false when the queue is empty.
type Queue interface {
	Push(ctx context.Context, id ID) error
	Pop(ctx context.Context) (id ID, ok bool, err error)
}

// Transformer produces derived artifacts from a raw artifact.
type Transformer interface {
	Transform(ctx context.Context, it *Item, raw []byte) ([]Artifact, error)
}

// AnalyticsSink is the append-only analytical store.
type AnalyticsSink interface {
	AppendStats(ctx context.Context, rows []FileStat) error
}
