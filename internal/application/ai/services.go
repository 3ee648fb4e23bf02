package ai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/ai"
)

// Service classifies with a remote model and falls back to a local policy
// when the provider is out of quota or answers with nothing.
type Service struct {
	client   ai.Classifier
	fallback ai.Classifier
	logger   *slog.Logger
}

var _ ai.Classifier = (*Service)(nil)

func NewService(client, fallback ai.Classifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, fallback: fallback, logger: logger}
}

func (s *Service) Classify(ctx context.Context, text string) (ai.Classification, error) {
	c, err := s.client.Classify(ctx, text)
	if err == nil {
		return c, nil
	}
	if s.fallback != nil && (errors.Is(err, ai.ErrQuotaExceeded) || errors.Is(err, ai.ErrEmptyResponse)) {
		s.logger.Warn("classifier unavailable, using fallback", "error", err)
		return s.fallback.Classify(ctx, text)
	}
	return ai.Classification{}, err
}
