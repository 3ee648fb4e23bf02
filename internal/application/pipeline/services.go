// Package pipeline is the queue consumer. It pops one token at a time and
// drives the item through fetch, transform, analyze, derive and upload.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bryanwahyu/automaton-ingest/internal/application"
	"github.com/bryanwahyu/automaton-ingest/internal/application/schedule"
	"github.com/bryanwahyu/automaton-ingest/internal/domain/ai"
	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
)

// Deriver fills summary, genre, themes and sentiment from fields.Text.
type Deriver interface {
	Derive(ctx context.Context, fields *items.AnalysisFields) error
}

// backlogReporter is implemented by queues that can report their length.
type backlogReporter interface {
	Len(ctx context.Context) (int64, error)
}

// Service is one worker. Several workers may share the same queue and store.
type Service struct {
	Repo        items.Repository
	Blobs       items.BlobStore
	Queue       items.Queue
	Transformer items.Transformer

	// Transcriber nil mematikan stage analyze
	Transcriber ai.Transcriber
	// Deriver nil mematikan stage derive
	Deriver Deriver

	Retry           application.RetryPolicy
	RawBucket       string
	ProcessedBucket string
	// AnalyzeArtifact names the derived artifact to transcribe; empty means
	// the first one.
	AnalyzeArtifact string

	PollInterval time.Duration
	ErrorPause   time.Duration
	Logger       *slog.Logger
}

// Run pops and processes tokens until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	logger := s.logger()
	logger.Info("worker started", "poll_interval", s.PollInterval.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopped")
			return
		default:
		}

		processed, err := s.ProcessNext(ctx)
		if err != nil {
			logger.Error("worker iteration failed", "error", err)
			if !schedule.Sleep(ctx, s.ErrorPause) {
				logger.Info("worker stopped")
				return
			}
			continue
		}
		if !processed {
			s.sampleBacklog(ctx)
			if !schedule.Sleep(ctx, s.PollInterval) {
				logger.Info("worker stopped")
				return
			}
		}
	}
}

// ProcessNext pops one token. It reports false when the queue was empty.
func (s *Service) ProcessNext(ctx context.Context) (bool, error) {
	id, ok, err := s.Queue.Pop(ctx)
	if err != nil {
		return false, fmt.Errorf("pop token: %w", err)
	}
	if !ok {
		return false, nil
	}
	_, err = s.Process(ctx, id)
	return true, err
}

// Process runs the full pipeline for id. Item failures are recorded on the
// item and are not returned; the error is reserved for store and transport
// problems the loop should log and back off on.
func (s *Service) Process(ctx context.Context, id items.ID) (Outcome, error) {
	logger := s.logger().With("item_id", string(id))

	it, err := s.Repo.MarkProcessing(ctx, id)
	if errors.Is(err, items.ErrNotFound) {
		logger.Warn("item not found, token discarded")
		processedTotal.WithLabelValues(string(OutcomeSkipped)).Inc()
		return OutcomeSkipped, nil
	}
	if err != nil {
		// token sudah di-pop; tanpa ack token ini hilang
		return "", fmt.Errorf("mark %s processing: %w", id, err)
	}
	logger.Info("processing item", "file_name", it.DisplayName)

	locations, fields, err := s.run(ctx, it)
	if err != nil {
		if ctx.Err() != nil {
			// shutdown di tengah item: biarkan status processing
			return "", fmt.Errorf("item %s interrupted: %w", id, err)
		}
		outcome := OutcomeFailed
		if errors.Is(err, items.ErrAnalysisFailed) {
			outcome = OutcomeAnalysisFailed
		}
		logger.Warn("item failed", "stage", stageOf(err), "error", err)
		if ferr := s.Repo.Fail(ctx, id, err.Error()); ferr != nil {
			return outcome, fmt.Errorf("record failure for %s: %w", id, ferr)
		}
		processedTotal.WithLabelValues(string(outcome)).Inc()
		return outcome, nil
	}

	if err := s.Repo.Complete(ctx, id, locations, fields); err != nil {
		return "", fmt.Errorf("complete %s: %w", id, err)
	}
	logger.Info("item completed", "artifacts", len(locations))
	processedTotal.WithLabelValues(string(OutcomeCompleted)).Inc()
	return OutcomeCompleted, nil
}

func (s *Service) run(ctx context.Context, it *items.Item) ([]string, items.AnalysisFields, error) {
	var fields items.AnalysisFields

	var raw []byte
	err := s.timed(StageFetch, func() (err error) {
		raw, err = s.Blobs.Get(ctx, s.RawBucket, it.RawLocation)
		return err
	})
	if err != nil {
		return nil, fields, stageErr(StageFetch, err)
	}

	var artifacts []items.Artifact
	err = s.timed(StageTransform, func() (err error) {
		artifacts, err = s.Transformer.Transform(ctx, it, raw)
		if err == nil && len(artifacts) == 0 {
			err = items.ErrArtifactMissing
		}
		return err
	})
	if err != nil {
		return nil, fields, stageErr(StageTransform, err)
	}

	if s.Transcriber != nil {
		if err := s.timed(StageAnalyze, func() error { return s.analyze(ctx, artifacts, &fields) }); err != nil {
			return nil, fields, stageErr(StageAnalyze, err)
		}
	}

	if s.Deriver != nil {
		if err := s.timed(StageDerive, func() error { return s.Deriver.Derive(ctx, &fields) }); err != nil {
			return nil, fields, stageErr(StageDerive, err)
		}
	}

	locations := make([]string, 0, len(artifacts))
	err = s.timed(StageUpload, func() error {
		for _, a := range artifacts {
			key := items.ProcessedKey(it.ID, a.Name)
			err := s.Retry.Do(ctx, func(ctx context.Context) error {
				return s.Blobs.Put(ctx, s.ProcessedBucket, key, a.Data)
			})
			if err != nil {
				return fmt.Errorf("upload %s: %w", key, err)
			}
			locations = append(locations, key)
			fields.Artifacts = append(fields.Artifacts, a.Name)
		}
		return nil
	})
	if err != nil {
		return nil, items.AnalysisFields{}, stageErr(StageUpload, err)
	}
	return locations, fields, nil
}

func (s *Service) analyze(ctx context.Context, artifacts []items.Artifact, fields *items.AnalysisFields) error {
	target := artifacts[0]
	if s.AnalyzeArtifact != "" {
		found := false
		for _, a := range artifacts {
			if a.Name == s.AnalyzeArtifact {
				target, found = a, true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", items.ErrArtifactMissing, s.AnalyzeArtifact)
		}
	}

	tr, err := s.Transcriber.Transcribe(ctx, target.Name, target.Data)
	if err != nil {
		return fmt.Errorf("transcribe %s: %w", target.Name, err)
	}
	if tr.Status != ai.TranscriptCompleted {
		return fmt.Errorf("%w: %s", items.ErrAnalysisFailed, tr.Error)
	}
	fields.Text = tr.Text
	return nil
}

func (s *Service) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return err
}

func (s *Service) sampleBacklog(ctx context.Context) {
	r, ok := s.Queue.(backlogReporter)
	if !ok {
		return
	}
	n, err := r.Len(ctx)
	if err != nil {
		s.logger().Debug("queue length unavailable", "error", err)
		return
	}
	queueBacklog.Set(float64(n))
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func stageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.StageName()
	}
	return "unknown"
}
