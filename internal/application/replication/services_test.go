package replication

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-ingest/internal/application"
	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
	"github.com/bryanwahyu/automaton-ingest/internal/testsupport"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newService(repo *testsupport.Repo, sink *testsupport.Sink) *Service {
	return &Service{
		Source:    repo,
		Sink:      sink,
		Clock:     application.FixedClock{T: now},
		Window:    time.Hour,
		BatchSize: 100,
		Interval:  time.Millisecond,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func seed(repo *testsupport.Repo, id string, status items.Status, age time.Duration) {
	it := &items.Item{
		ID:          items.ID(id),
		Owner:       "alice",
		DisplayName: id + ".mp3",
		SizeBytes:   10,
		Status:      status,
		CreatedAt:   now.Add(-age),
	}
	if status == items.StatusCompleted {
		it.DerivedLocations = []string{id + "/processed/" + id + ".mp3"}
		it.Analysis = &items.AnalysisFields{Genre: "Ballad", Sentiment: &items.Sentiment{Label: "negative", Score: -0.5}, Artifacts: []string{id + ".mp3"}}
	}
	repo.Put(it)
}

func replicated(t *testing.T, repo *testsupport.Repo, id string) bool {
	t.Helper()
	it, err := repo.Get(context.Background(), items.ID(id))
	require.NoError(t, err)
	return it.Replicated
}

func TestSyncOnce_ReplicatesTerminalItemsInWindow(t *testing.T) {
	repo := testsupport.NewRepo()
	sink := &testsupport.Sink{}
	seed(repo, "a", items.StatusCompleted, 10*time.Minute)
	seed(repo, "b", items.StatusFailed, 5*time.Minute)
	seed(repo, "old", items.StatusCompleted, 2*time.Hour)
	seed(repo, "busy", items.StatusProcessing, time.Minute)
	seed(repo, "new", items.StatusUploaded, time.Minute)

	n, err := newService(repo, sink).SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows := sink.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].FileID)
	assert.Equal(t, "Ballad", rows[0].Genre)
	assert.Equal(t, -0.5, rows[0].Sentiment)
	assert.Equal(t, "completed", rows[0].Status)
	assert.Equal(t, "b", rows[1].FileID)
	assert.Equal(t, "failed", rows[1].Status)

	assert.True(t, replicated(t, repo, "a"))
	assert.True(t, replicated(t, repo, "b"))
	assert.False(t, replicated(t, repo, "old"))
	assert.False(t, replicated(t, repo, "busy"))
	assert.False(t, replicated(t, repo, "new"))
}

func TestSyncOnce_NothingPendingIsNoop(t *testing.T) {
	repo := testsupport.NewRepo()
	sink := &testsupport.Sink{}
	svc := newService(repo, sink)

	n, err := svc.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, repo.Calls["MarkReplicated"])
}

func TestSyncOnce_SecondCycleSendsNothing(t *testing.T) {
	repo := testsupport.NewRepo()
	sink := &testsupport.Sink{}
	seed(repo, "a", items.StatusCompleted, time.Minute)
	svc := newService(repo, sink)

	_, err := svc.SyncOnce(context.Background())
	require.NoError(t, err)
	n, err := svc.SyncOnce(context.Background())
	require.NoError(t, err)

	assert.Zero(t, n)
	assert.Len(t, sink.Rows(), 1)
}

func TestSyncOnce_SinkUnreachableThenRecovers(t *testing.T) {
	repo := testsupport.NewRepo()
	sink := &testsupport.Sink{Err: errors.New("dial tcp: connection refused")}
	seed(repo, "a", items.StatusCompleted, time.Minute)
	seed(repo, "b", items.StatusFailed, time.Minute)
	svc := newService(repo, sink)

	_, err := svc.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, sink.Rows())
	assert.False(t, replicated(t, repo, "a"))
	assert.False(t, replicated(t, repo, "b"))
	assert.Zero(t, repo.Calls["MarkReplicated"])

	sink.Err = nil
	n, err := svc.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, sink.Rows(), 2)
	assert.True(t, replicated(t, repo, "a"))
	assert.True(t, replicated(t, repo, "b"))
}

func TestSyncOnce_FlagUpdateFailureResendsBatch(t *testing.T) {
	repo := testsupport.NewRepo()
	sink := &testsupport.Sink{}
	seed(repo, "a", items.StatusCompleted, time.Minute)
	repo.FailMarkReplicated = errors.New("deadlock")
	svc := newService(repo, sink)

	_, err := svc.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Len(t, sink.Rows(), 1)
	assert.False(t, replicated(t, repo, "a"))

	repo.FailMarkReplicated = nil
	_, err = svc.SyncOnce(context.Background())
	require.NoError(t, err)

	rows := sink.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, rows[0].FileID, rows[1].FileID)
	assert.True(t, replicated(t, repo, "a"))
}

func TestSyncOnce_SourceUnreachable(t *testing.T) {
	repo := testsupport.NewRepo()
	repo.FailPending = errors.New("db down")
	sink := &testsupport.Sink{}

	_, err := newService(repo, sink).SyncOnce(context.Background())
	assert.ErrorContains(t, err, "db down")
	assert.Empty(t, sink.Rows())
}

func TestSyncOnce_RespectsBatchSize(t *testing.T) {
	repo := testsupport.NewRepo()
	sink := &testsupport.Sink{}
	seed(repo, "a", items.StatusCompleted, 3*time.Minute)
	seed(repo, "b", items.StatusCompleted, 2*time.Minute)
	seed(repo, "c", items.StatusCompleted, time.Minute)
	svc := newService(repo, sink)
	svc.BatchSize = 2

	n, err := svc.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, replicated(t, repo, "c"))

	n, err = svc.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, replicated(t, repo, "c"))
}

func TestRun_RetriesUntilSinkRecovers(t *testing.T) {
	repo := testsupport.NewRepo()
	sink := &testsupport.Sink{Err: errors.New("unreachable")}
	seed(repo, "a", items.StatusCompleted, time.Minute)
	svc := newService(repo, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	require.Eventually(t, func() bool { return repo.CallCount("PendingReplication") >= 2 }, 5*time.Second, time.Millisecond)
	assert.False(t, replicated(t, repo, "a"))
}
