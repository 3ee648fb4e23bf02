package testsupport

import (
	"context"
	"fmt"
	"sync"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
)

// Queue is a FIFO in-memory work queue.
type Queue struct {
	mu     sync.Mutex
	tokens []items.ID
	// FailPop makes Pop return the error.
	FailPop error
}

func (q *Queue) Push(_ context.Context, id items.ID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tokens = append(q.tokens, id)
	return nil
}

func (q *Queue) Pop(_ context.Context) (items.ID, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.FailPop != nil {
		return "", false, q.FailPop
	}
	if len(q.tokens) == 0 {
		return "", false, nil
	}
	id := q.tokens[0]
	q.tokens = q.tokens[1:]
	return id, true, nil
}

func (q *Queue) Len(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.tokens)), nil
}

// Tokens returns a copy of the queued ids in pop order.
func (q *Queue) Tokens() []items.ID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]items.ID(nil), q.tokens...)
}

// Blobs is an in-memory blob store keyed by bucket and key.
type Blobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	// FailPuts makes the next n Put calls fail.
	FailPuts int
	Puts     int
}

func NewBlobs() *Blobs {
	return &Blobs{objects: map[string][]byte{}}
}

func (b *Blobs) Put(_ context.Context, bucket, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Puts++
	if b.FailPuts > 0 {
		b.FailPuts--
		return fmt.Errorf("put %s/%s: %w", bucket, key, ErrInjected)
	}
	b.objects[bucket+"/"+key] = append([]byte(nil), data...)
	return nil
}

func (b *Blobs) Get(_ context.Context, bucket, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("get %s/%s: object not found", bucket, key)
	}
	return append([]byte(nil), data...), nil
}

// Object returns a stored object and whether it exists.
func (b *Blobs) Object(bucket, key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[bucket+"/"+key]
	return data, ok
}

// Sink is an in-memory analytics sink.
type Sink struct {
	mu   sync.Mutex
	rows []items.FileStat
	// Err makes AppendStats fail without storing anything.
	Err error
}

func (s *Sink) AppendStats(_ context.Context, rows []items.FileStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.rows = append(s.rows, rows...)
	return nil
}

// Rows returns everything appended so far.
func (s *Sink) Rows() []items.FileStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]items.FileStat(nil), s.rows...)
}
