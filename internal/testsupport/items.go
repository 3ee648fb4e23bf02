// Package testsupport holds in-memory fakes of the item ports for tests.
package testsupport

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
)

// ErrInjected is the default failure returned by the fakes when asked to fail.
var ErrInjected = errors.New("injected failure")

// Repo is an in-memory items.Repository following the same rules as the SQL
// repositories.
type Repo struct {
	mu    sync.Mutex
	rows  map[items.ID]*items.Item
	Now   func() time.Time
	Calls map[string]int

	// FailMarkReplicated makes MarkReplicated return the error.
	FailMarkReplicated error
	// FailPending makes PendingReplication return the error.
	FailPending error
}

func NewRepo() *Repo {
	return &Repo{
		rows:  map[items.ID]*items.Item{},
		Now:   func() time.Time { return time.Now().UTC() },
		Calls: map[string]int{},
	}
}

func (r *Repo) Create(_ context.Context, it *items.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["Create"]++
	if _, ok := r.rows[it.ID]; ok {
		return errors.New("duplicate item id " + string(it.ID))
	}
	r.rows[it.ID] = cloneItem(it)
	return nil
}

func (r *Repo) Get(_ context.Context, id items.ID) (*items.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.rows[id]
	if !ok {
		return nil, items.ErrNotFound
	}
	return cloneItem(it), nil
}

func (r *Repo) Latest(_ context.Context, owner string, status items.Status, limit int) ([]*items.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*items.Item
	for _, it := range r.rows {
		if owner != "" && it.Owner != owner {
			continue
		}
		if status != "" && it.Status != status {
			continue
		}
		out = append(out, cloneItem(it))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repo) MarkProcessing(_ context.Context, id items.ID) (*items.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["MarkProcessing"]++
	it, ok := r.rows[id]
	if !ok {
		return nil, items.ErrNotFound
	}
	it.Status = items.StatusProcessing
	it.DerivedLocations = nil
	it.Analysis = nil
	it.FailureReason = ""
	it.UpdatedAt = r.Now()
	return cloneItem(it), nil
}

func (r *Repo) Complete(_ context.Context, id items.ID, locations []string, fields items.AnalysisFields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["Complete"]++
	it, ok := r.rows[id]
	if !ok {
		return items.ErrNotFound
	}
	it.Status = items.StatusCompleted
	it.DerivedLocations = append([]string(nil), locations...)
	f := cloneFields(fields)
	it.Analysis = &f
	it.FailureReason = ""
	it.UpdatedAt = r.Now()
	return nil
}

func (r *Repo) Fail(_ context.Context, id items.ID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["Fail"]++
	it, ok := r.rows[id]
	if !ok {
		return items.ErrNotFound
	}
	it.Status = items.StatusFailed
	it.DerivedLocations = nil
	it.Analysis = nil
	it.FailureReason = reason
	it.UpdatedAt = r.Now()
	return nil
}

func (r *Repo) PendingReplication(_ context.Context, since time.Time, limit int) ([]*items.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["PendingReplication"]++
	if r.FailPending != nil {
		return nil, r.FailPending
	}
	var out []*items.Item
	for _, it := range r.rows {
		if it.Replicated || !it.Status.Terminal() || !it.CreatedAt.After(since) {
			continue
		}
		out = append(out, cloneItem(it))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repo) MarkReplicated(_ context.Context, ids []items.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["MarkReplicated"]++
	if r.FailMarkReplicated != nil {
		return r.FailMarkReplicated
	}
	for _, id := range ids {
		if it, ok := r.rows[id]; ok && it.Status.Terminal() {
			it.Replicated = true
		}
	}
	return nil
}

// Put stores an item directly, bypassing Create. For arranging test state.
func (r *Repo) Put(it *items.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[it.ID] = cloneItem(it)
}

// Len returns the number of stored items.
func (r *Repo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func cloneItem(it *items.Item) *items.Item {
	c := *it
	c.DerivedLocations = append([]string(nil), it.DerivedLocations...)
	if it.Analysis != nil {
		f := cloneFields(*it.Analysis)
		c.Analysis = &f
	}
	return &c
}

func cloneFields(f items.AnalysisFields) items.AnalysisFields {
	f.Themes = append([]string(nil), f.Themes...)
	f.Artifacts = append([]string(nil), f.Artifacts...)
	if f.Sentiment != nil {
		s := *f.Sentiment
		f.Sentiment = &s
	}
	return f
}

// CallCount is a locked read of Calls, for use while loops are running.
func (r *Repo) CallCount(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Calls[method]
}
