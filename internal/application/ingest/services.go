package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bryanwahyu/automaton-ingest/internal/application"
	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
)

// ErrInvalidInput is returned for an upload the producer refuses to accept.
var ErrInvalidInput = errors.New("invalid input")

var ingestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_items_total",
	Help: "Items accepted by the producer, by result.",
}, []string{"result"})

// Service is the producer side of the pipeline.
// Service is safe for concurrent use.
type Service struct {
	Repo      items.Repository
	Blobs     items.BlobStore
	Queue     items.Queue
	Clock     application.Clock
	Retry     application.RetryPolicy
	RawBucket string
	Logger    *slog.Logger
}

// IngestCommand untuk upload satu file
type IngestCommand struct {
	Owner    string
	FileName string
	Data     []byte
}

// Ingest stores the raw bytes, records the item as uploaded and enqueues its
// id. The steps run in that order so a token never points at a missing blob.
func (s *Service) Ingest(ctx context.Context, cmd IngestCommand) (*items.Item, error) {
	name, err := CleanFileName(cmd.FileName)
	if err != nil {
		ingestedTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	owner := strings.TrimSpace(cmd.Owner)
	if owner == "" {
		ingestedTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}

	id := items.ID(uuid.New().String())
	key := items.RawKey(id, name)
	logger := s.logger().With("item_id", string(id))

	err = s.Retry.Do(ctx, func(ctx context.Context) error {
		return s.Blobs.Put(ctx, s.RawBucket, key, cmd.Data)
	})
	if err != nil {
		ingestedTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("upload raw artifact: %w", err)
	}

	now := s.Clock.Now()
	it := &items.Item{
		ID:          id,
		Owner:       owner,
		DisplayName: name,
		RawLocation: key,
		SizeBytes:   int64(len(cmd.Data)),
		Status:      items.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Repo.Create(ctx, it); err != nil {
		ingestedTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("create item: %w", err)
	}

	if err := s.Queue.Push(ctx, id); err != nil {
		// item tetap "uploaded" tanpa token; operator bisa enqueue ulang
		logger.Error("enqueue failed, item left without token", "error", err)
		ingestedTotal.WithLabelValues("error").Inc()
		return it, fmt.Errorf("enqueue item: %w", err)
	}

	logger.Info("item ingested",
		"owner", owner,
		"file_name", name,
		"size", humanize.Bytes(uint64(it.SizeBytes)),
	)
	ingestedTotal.WithLabelValues("ok").Inc()
	return it, nil
}

// Get returns an item only when it belongs to owner.
func (s *Service) Get(ctx context.Context, owner string, id items.ID) (*items.Item, error) {
	it, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Owner != owner {
		return nil, items.ErrNotFound
	}
	return it, nil
}

// List returns the newest items of owner, optionally filtered by status.
func (s *Service) List(ctx context.Context, owner string, status items.Status, limit int) ([]*items.Item, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.Repo.Latest(ctx, owner, status, limit)
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// CleanFileName keeps the base name of an uploaded file and rejects names that
// cannot be used as an object key segment.
func CleanFileName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	switch {
	case name == "" || name == "." || name == "/" || name == "..":
		return "", fmt.Errorf("%w: file name is required", ErrInvalidInput)
	case len(name) > 255:
		return "", fmt.Errorf("%w: file name too long", ErrInvalidInput)
	case strings.ContainsAny(name, "\x00\r\n"):
		return "", fmt.Errorf("%w: file name has control characters", ErrInvalidInput)
	}
	return name, nil
}
