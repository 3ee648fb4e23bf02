// Package repotest is a behaviour suite every items.Repository must pass.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
)

// Run executes the suite. newRepo must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) items.Repository) {
	base := time.Now().UTC().Truncate(time.Microsecond)

	newItem := func(id, owner string, age time.Duration) *items.Item {
		return &items.Item{
			ID:          items.ID(id),
			Owner:       owner,
			DisplayName: id + ".mp3",
			RawLocation: items.RawKey(items.ID(id), id+".mp3"),
			SizeBytes:   42,
			Status:      items.StatusUploaded,
			CreatedAt:   base.Add(-age),
			UpdatedAt:   base.Add(-age),
		}
	}

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		in := newItem("a", "alice", time.Minute)
		require.NoError(t, repo.Create(ctx, in))

		got, err := repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, in.ID, got.ID)
		assert.Equal(t, "alice", got.Owner)
		assert.Equal(t, "a.mp3", got.DisplayName)
		assert.Equal(t, "a/a.mp3", got.RawLocation)
		assert.Equal(t, int64(42), got.SizeBytes)
		assert.Equal(t, items.StatusUploaded, got.Status)
		assert.False(t, got.Replicated)
		assert.Nil(t, got.Analysis)
		assert.Empty(t, got.DerivedLocations)
		assert.True(t, in.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", got.CreatedAt, in.CreatedAt)

		_, err = repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, items.ErrNotFound)

		assert.Error(t, repo.Create(ctx, in), "duplicate id must be rejected")
	})

	t.Run("blank owner and name are stored as dash", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		in := newItem("blank", " ", time.Minute)
		in.DisplayName = ""
		require.NoError(t, repo.Create(ctx, in))

		got, err := repo.Get(ctx, "blank")
		require.NoError(t, err)
		assert.Equal(t, "-", got.Owner)
		assert.Equal(t, "-", got.DisplayName)
	})

	t.Run("state transitions", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, newItem("a", "alice", time.Minute)))

		it, err := repo.MarkProcessing(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, items.StatusProcessing, it.Status)
		assert.Equal(t, "alice", it.Owner)

		fields := items.AnalysisFields{
			Text:      "hello world",
			Genre:     "Pop/Romance",
			Themes:    []string{"Love"},
			Sentiment: &items.Sentiment{Label: "positive", Score: 1},
			Artifacts: []string{"a.mp3"},
		}
		require.NoError(t, repo.Complete(ctx, "a", []string{"a/processed/a.mp3"}, fields))

		got, err := repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, items.StatusCompleted, got.Status)
		assert.Equal(t, []string{"a/processed/a.mp3"}, got.DerivedLocations)
		require.NotNil(t, got.Analysis)
		assert.Equal(t, fields, *got.Analysis)

		// redelivery: processing lagi menghapus hasil lama
		it, err = repo.MarkProcessing(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, it.DerivedLocations)
		assert.Nil(t, it.Analysis)
		got, err = repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, items.StatusProcessing, got.Status)
		assert.Empty(t, got.DerivedLocations)
		assert.Nil(t, got.Analysis)

		require.NoError(t, repo.Fail(ctx, "a", "stage transform: boom"))
		got, err = repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, items.StatusFailed, got.Status)
		assert.Equal(t, "stage transform: boom", got.FailureReason)
		assert.Empty(t, got.DerivedLocations)
		assert.Nil(t, got.Analysis)

		_, err = repo.MarkProcessing(ctx, "a")
		require.NoError(t, err)
		got, err = repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, got.FailureReason)
	})

	t.Run("missing item", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		_, err := repo.MarkProcessing(ctx, "ghost")
		assert.ErrorIs(t, err, items.ErrNotFound)
		assert.ErrorIs(t, repo.Complete(ctx, "ghost", []string{"x"}, items.AnalysisFields{}), items.ErrNotFound)
		assert.ErrorIs(t, repo.Fail(ctx, "ghost", "x"), items.ErrNotFound)
	})

	t.Run("complete twice is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, newItem("a", "alice", time.Minute)))
		fields := items.AnalysisFields{Artifacts: []string{"a.mp3"}}
		require.NoError(t, repo.Complete(ctx, "a", []string{"a/processed/a.mp3"}, fields))
		require.NoError(t, repo.Complete(ctx, "a", []string{"a/processed/a.mp3"}, fields))

		got, err := repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, items.StatusCompleted, got.Status)
		assert.Equal(t, []string{"a/processed/a.mp3"}, got.DerivedLocations)
	})

	t.Run("latest", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, newItem("old", "alice", 3*time.Minute)))
		require.NoError(t, repo.Create(ctx, newItem("mid", "alice", 2*time.Minute)))
		require.NoError(t, repo.Create(ctx, newItem("new", "alice", time.Minute)))
		require.NoError(t, repo.Create(ctx, newItem("bob1", "bob", time.Minute)))
		require.NoError(t, repo.Fail(ctx, "mid", "x"))

		got, err := repo.Latest(ctx, "alice", "", 10)
		require.NoError(t, err)
		assert.Equal(t, []items.ID{"new", "mid", "old"}, ids(got))

		got, err = repo.Latest(ctx, "alice", items.StatusUploaded, 1)
		require.NoError(t, err)
		assert.Equal(t, []items.ID{"new"}, ids(got))

		got, err = repo.Latest(ctx, "", items.StatusFailed, 10)
		require.NoError(t, err)
		assert.Equal(t, []items.ID{"mid"}, ids(got))
	})

	t.Run("replication", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		for _, c := range []struct {
			id  string
			age time.Duration
		}{
			{"c1", 30 * time.Minute}, {"c2", 20 * time.Minute}, {"f1", 10 * time.Minute},
			{"stale", 2 * time.Hour}, {"busy", 5 * time.Minute}, {"fresh", time.Minute},
		} {
			require.NoError(t, repo.Create(ctx, newItem(c.id, "alice", c.age)))
		}
		for _, id := range []items.ID{"c1", "c2", "stale"} {
			require.NoError(t, repo.Complete(ctx, id, []string{string(id) + "/processed/x"}, items.AnalysisFields{Artifacts: []string{"x"}}))
		}
		require.NoError(t, repo.Fail(ctx, "f1", "boom"))
		_, err := repo.MarkProcessing(ctx, "busy")
		require.NoError(t, err)

		since := base.Add(-time.Hour)
		got, err := repo.PendingReplication(ctx, since, 2)
		require.NoError(t, err)
		assert.Equal(t, []items.ID{"c1", "c2"}, ids(got))

		got, err = repo.PendingReplication(ctx, since, 100)
		require.NoError(t, err)
		assert.Equal(t, []items.ID{"c1", "c2", "f1"}, ids(got))

		require.NoError(t, repo.MarkReplicated(ctx, []items.ID{"c1", "c2", "busy"}))
		require.NoError(t, repo.MarkReplicated(ctx, nil))

		got, err = repo.PendingReplication(ctx, since, 100)
		require.NoError(t, err)
		assert.Equal(t, []items.ID{"f1"}, ids(got))

		c1, err := repo.Get(ctx, "c1")
		require.NoError(t, err)
		assert.True(t, c1.Replicated)
		busy, err := repo.Get(ctx, "busy")
		require.NoError(t, err)
		assert.False(t, busy.Replicated, "non-terminal items are never flagged")
	})
}

func ids(list []*items.Item) []items.ID {
	out := make([]items.ID, 0, len(list))
	for _, it := range list {
		out = append(out, it.ID)
	}
	return out
}
