package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/ai"
)

type stubClassifier struct {
	out ai.Classification
	err error
}

func (s stubClassifier) Classify(context.Context, string) (ai.Classification, error) {
	return s.out, s.err
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestService_PrimaryWins(t *testing.T) {
	svc := NewService(stubClassifier{out: ai.Classification{Genre: "Hip-Hop"}}, stubClassifier{out: ai.Classification{Genre: "Unknown"}}, quiet)
	got, err := svc.Classify(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "Hip-Hop", got.Genre)
}

func TestService_FallbackOnQuota(t *testing.T) {
	primary := stubClassifier{err: fmt.Errorf("%w: 429", ai.ErrQuotaExceeded)}
	svc := NewService(primary, stubClassifier{out: ai.Classification{Genre: "Ballad"}}, quiet)

	got, err := svc.Classify(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "Ballad", got.Genre)
}

func TestService_OtherErrorsPropagate(t *testing.T) {
	boom := errors.New("connection reset")
	svc := NewService(stubClassifier{err: boom}, stubClassifier{out: ai.Classification{Genre: "Ballad"}}, quiet)

	_, err := svc.Classify(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestService_NoFallback(t *testing.T) {
	svc := NewService(stubClassifier{err: ai.ErrEmptyResponse}, nil, quiet)
	_, err := svc.Classify(context.Background(), "x")
	assert.ErrorIs(t, err, ai.ErrEmptyResponse)
}
