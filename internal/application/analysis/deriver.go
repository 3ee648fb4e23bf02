// Package analysis derives summary, genre, themes and sentiment from text.
package analysis

import (
	"context"
	"fmt"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/ai"
	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
)

// Deriver combines the local summarizer and sentiment scorer with a
// pluggable classifier.
type Deriver struct {
	Summarizer Summarizer
	Classifier ai.Classifier
}

// NewDeriver uses the keyword classifier when c is nil.
func NewDeriver(sentences int, c ai.Classifier) *Deriver {
	if c == nil {
		c = KeywordClassifier{}
	}
	return &Deriver{Summarizer: Summarizer{Sentences: sentences}, Classifier: c}
}

// Derive fills the derived parts of fields from fields.Text.
func (d *Deriver) Derive(ctx context.Context, fields *items.AnalysisFields) error {
	if fields.Text == "" {
		return nil
	}
	cls, err := d.Classifier.Classify(ctx, fields.Text)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	sent := ScoreSentiment(fields.Text)

	fields.Summary = d.Summarizer.Summarize(fields.Text)
	fields.Genre = cls.Genre
	fields.Themes = cls.Themes
	fields.Sentiment = &sent
	return nil
}
