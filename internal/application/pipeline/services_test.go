package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-ingest/internal/application"
	"github.com/bryanwahyu/automaton-ingest/internal/application/analysis"
	"github.com/bryanwahyu/automaton-ingest/internal/application/ingest"
	"github.com/bryanwahyu/automaton-ingest/internal/domain/ai"
	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
	"github.com/bryanwahyu/automaton-ingest/internal/testsupport"
)

type upperTransformer struct{}

func (upperTransformer) Transform(_ context.Context, it *items.Item, raw []byte) ([]items.Artifact, error) {
	return []items.Artifact{{Name: it.DisplayName, Data: bytes.ToUpper(raw)}}, nil
}

type stemTransformer struct{}

func (stemTransformer) Transform(_ context.Context, _ *items.Item, raw []byte) ([]items.Artifact, error) {
	return []items.Artifact{
		{Name: "vocals.wav", Data: append([]byte("v:"), raw...)},
		{Name: "accompaniment.wav", Data: append([]byte("a:"), raw...)},
	}, nil
}

type errTransformer struct{ err error }

func (t errTransformer) Transform(context.Context, *items.Item, []byte) ([]items.Artifact, error) {
	return nil, t.err
}

type fakeTranscriber struct {
	mu     sync.Mutex
	result ai.Transcript
	err    error
	names  []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, name string, _ []byte) (ai.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	return f.result, f.err
}

type fixture struct {
	repo   *testsupport.Repo
	blobs  *testsupport.Blobs
	queue  *testsupport.Queue
	ingest *ingest.Service
	worker *Service
	logs   *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := testsupport.NewRepo()
	blobs := testsupport.NewBlobs()
	queue := &testsupport.Queue{}
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	retry := application.RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

	return &fixture{
		repo:  repo,
		blobs: blobs,
		queue: queue,
		logs:  logs,
		ingest: &ingest.Service{
			Repo:      repo,
			Blobs:     blobs,
			Queue:     queue,
			Clock:     application.SystemClock{},
			Retry:     retry,
			RawBucket: "raw",
			Logger:    logger,
		},
		worker: &Service{
			Repo:            repo,
			Blobs:           blobs,
			Queue:           queue,
			Transformer:     upperTransformer{},
			Retry:           retry,
			RawBucket:       "raw",
			ProcessedBucket: "processed",
			PollInterval:    time.Millisecond,
			ErrorPause:      time.Millisecond,
			Logger:          logger,
		},
	}
}

func (f *fixture) upload(t *testing.T, name, data string) *items.Item {
	t.Helper()
	it, err := f.ingest.Ingest(context.Background(), ingest.IngestCommand{Owner: "alice", FileName: name, Data: []byte(data)})
	require.NoError(t, err)
	return it
}

func (f *fixture) get(t *testing.T, id items.ID) *items.Item {
	t.Helper()
	it, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return it
}

func TestProcess_CompletesWithAnalysis(t *testing.T) {
	f := newFixture(t)
	f.worker.Transcriber = &fakeTranscriber{result: ai.Transcript{Status: ai.TranscriptCompleted, Text: "hello world"}}
	a := f.upload(t, "hello.mp3", "hello")

	processed, err := f.worker.ProcessNext(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	got := f.get(t, a.ID)
	assert.Equal(t, items.StatusCompleted, got.Status)
	assert.Equal(t, []string{string(a.ID) + "/processed/hello.mp3"}, got.DerivedLocations)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, "hello world", got.Analysis.Text)
	assert.Equal(t, []string{"hello.mp3"}, got.Analysis.Artifacts)
	assert.Empty(t, got.FailureReason)

	data, ok := f.blobs.Object("processed", got.DerivedLocations[0])
	require.True(t, ok)
	assert.Equal(t, "HELLO", string(data))
}

func TestProcess_AnalysisFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	f.worker.Transcriber = &fakeTranscriber{result: ai.Transcript{Status: ai.TranscriptFailed, Error: "unsupported audio"}}
	b := f.upload(t, "b.mp3", "noise")

	outcome, err := f.worker.Process(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnalysisFailed, outcome)

	got := f.get(t, b.ID)
	assert.Equal(t, items.StatusFailed, got.Status)
	assert.Empty(t, got.DerivedLocations)
	assert.Nil(t, got.Analysis)
	assert.Contains(t, got.FailureReason, "unsupported audio")
	assert.Contains(t, got.FailureReason, "stage analyze")
}

func TestProcess_MissingItemIsDiscarded(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.queue.Push(context.Background(), "C"))

	processed, err := f.worker.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	assert.Equal(t, 0, f.repo.Len())
	assert.Zero(t, f.repo.Calls["Complete"])
	assert.Zero(t, f.repo.Calls["Fail"])
	assert.Contains(t, f.logs.String(), "item not found, token discarded")
	assert.Contains(t, f.logs.String(), "item_id=C")
	assert.Empty(t, f.queue.Tokens())
}

func TestProcess_EmptyQueue(t *testing.T) {
	f := newFixture(t)
	processed, err := f.worker.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestProcess_PopErrorIsReturned(t *testing.T) {
	f := newFixture(t)
	f.queue.FailPop = errors.New("connection refused")

	_, err := f.worker.ProcessNext(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestProcess_RedeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.worker.Transcriber = &fakeTranscriber{result: ai.Transcript{Status: ai.TranscriptCompleted, Text: "hello world"}}
	a := f.upload(t, "hello.mp3", "hello")
	require.NoError(t, f.queue.Push(context.Background(), a.ID))

	_, err := f.worker.ProcessNext(context.Background())
	require.NoError(t, err)
	first := f.get(t, a.ID)
	firstData, _ := f.blobs.Object("processed", first.DerivedLocations[0])

	_, err = f.worker.ProcessNext(context.Background())
	require.NoError(t, err)
	second := f.get(t, a.ID)
	secondData, _ := f.blobs.Object("processed", second.DerivedLocations[0])

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.DerivedLocations, second.DerivedLocations)
	assert.Equal(t, first.Analysis, second.Analysis)
	assert.Equal(t, firstData, secondData)
	assert.Equal(t, 2, f.repo.Calls["Complete"])
}

func TestProcess_ConcurrentDuplicateTokens(t *testing.T) {
	f := newFixture(t)
	a := f.upload(t, "hello.mp3", "hello")
	for i := 0; i < 3; i++ {
		require.NoError(t, f.queue.Push(context.Background(), a.ID))
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.worker.ProcessNext(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got := f.get(t, a.ID)
	assert.Equal(t, items.StatusCompleted, got.Status)
	assert.Len(t, got.DerivedLocations, 1)
	require.NotNil(t, got.Analysis)
}

func TestProcess_TransformError(t *testing.T) {
	f := newFixture(t)
	f.worker.Transformer = errTransformer{err: errors.New("separator crashed")}
	a := f.upload(t, "a.mp3", "x")

	outcome, err := f.worker.Process(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	got := f.get(t, a.ID)
	assert.Equal(t, items.StatusFailed, got.Status)
	assert.Contains(t, got.FailureReason, "stage transform")
}

func TestProcess_NoArtifactsIsMissingArtifact(t *testing.T) {
	f := newFixture(t)
	f.worker.Transformer = errTransformer{}
	a := f.upload(t, "a.mp3", "x")

	_, err := f.worker.Process(context.Background(), a.ID)
	require.NoError(t, err)
	got := f.get(t, a.ID)
	assert.Equal(t, items.StatusFailed, got.Status)
	assert.Contains(t, got.FailureReason, items.ErrArtifactMissing.Error())
}

func TestProcess_FetchError(t *testing.T) {
	f := newFixture(t)
	f.repo.Put(&items.Item{ID: "orphan", Owner: "a", DisplayName: "x.mp3", RawLocation: "orphan/x.mp3", Status: items.StatusUploaded})

	outcome, err := f.worker.Process(context.Background(), "orphan")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Contains(t, f.get(t, "orphan").FailureReason, "stage fetch")
}

func TestProcess_AnalyzeSelectsConfiguredArtifact(t *testing.T) {
	f := newFixture(t)
	tr := &fakeTranscriber{result: ai.Transcript{Status: ai.TranscriptCompleted, Text: "I love you with all my heart."}}
	f.worker.Transformer = stemTransformer{}
	f.worker.Transcriber = tr
	f.worker.AnalyzeArtifact = "vocals.wav"
	f.worker.Deriver = analysis.NewDeriver(2, nil)
	a := f.upload(t, "song.mp3", "pcm")

	outcome, err := f.worker.Process(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, []string{"vocals.wav"}, tr.names)

	got := f.get(t, a.ID)
	assert.Equal(t, []string{
		string(a.ID) + "/processed/vocals.wav",
		string(a.ID) + "/processed/accompaniment.wav",
	}, got.DerivedLocations)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, "Pop/Romance", got.Analysis.Genre)
	assert.Equal(t, []string{"Love"}, got.Analysis.Themes)
	require.NotNil(t, got.Analysis.Sentiment)
	assert.Equal(t, analysis.SentimentPositive, got.Analysis.Sentiment.Label)
}

func TestProcess_AnalyzeArtifactMissing(t *testing.T) {
	f := newFixture(t)
	f.worker.Transcriber = &fakeTranscriber{result: ai.Transcript{Status: ai.TranscriptCompleted}}
	f.worker.AnalyzeArtifact = "vocals.wav"
	a := f.upload(t, "a.mp3", "x")

	outcome, err := f.worker.Process(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Contains(t, f.get(t, a.ID).FailureReason, "vocals.wav")
}

func TestProcess_UploadRetriesThenSucceeds(t *testing.T) {
	f := newFixture(t)
	a := f.upload(t, "a.mp3", "x")
	f.blobs.FailPuts = 2

	outcome, err := f.worker.Process(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, items.StatusCompleted, f.get(t, a.ID).Status)
}

func TestProcess_UploadExhaustedMarksFailed(t *testing.T) {
	f := newFixture(t)
	a := f.upload(t, "a.mp3", "x")
	f.blobs.FailPuts = 3

	outcome, err := f.worker.Process(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	got := f.get(t, a.ID)
	assert.Equal(t, items.StatusFailed, got.Status)
	assert.Empty(t, got.DerivedLocations)
	assert.Nil(t, got.Analysis)
	assert.Contains(t, got.FailureReason, "gave up after 3 attempt(s)")
}

func TestProcess_ReprocessingFailedItemClearsReason(t *testing.T) {
	f := newFixture(t)
	a := f.upload(t, "a.mp3", "x")
	f.worker.Transformer = errTransformer{err: errors.New("boom")}
	_, err := f.worker.Process(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, items.StatusFailed, f.get(t, a.ID).Status)

	f.worker.Transformer = upperTransformer{}
	_, err = f.worker.Process(context.Background(), a.ID)
	require.NoError(t, err)

	got := f.get(t, a.ID)
	assert.Equal(t, items.StatusCompleted, got.Status)
	assert.Empty(t, got.FailureReason)
}

func TestRun_DrainsQueueAndStops(t *testing.T) {
	f := newFixture(t)
	a := f.upload(t, "a.mp3", "x")
	b := f.upload(t, "b.mp3", "y")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.worker.Run(ctx)
		close(done)
	}()

	completed := func(id items.ID) bool {
		it, err := f.repo.Get(context.Background(), id)
		return err == nil && it.Status == items.StatusCompleted
	}
	require.Eventually(t, func() bool {
		return completed(a.ID) && completed(b.ID)
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestPassthrough(t *testing.T) {
	arts, err := Passthrough{}.Transform(context.Background(), &items.Item{DisplayName: "f.txt"}, []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, []items.Artifact{{Name: "f.txt", Data: []byte("data")}}, arts)
}

func TestStageError(t *testing.T) {
	err := stageErr(StageUpload, items.ErrArtifactMissing)
	assert.ErrorIs(t, err, items.ErrArtifactMissing)
	assert.Equal(t, StageUpload, stageOf(err))
	assert.Equal(t, "unknown", stageOf(errors.New("plain")))
	assert.NoError(t, stageErr(StageFetch, nil))
}
