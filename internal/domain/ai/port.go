package ai

import "context"

// TranscriptStatus is the outcome reported by the transcription service.
type TranscriptStatus string

const (
	TranscriptCompleted TranscriptStatus = "completed"
	TranscriptFailed    TranscriptStatus = "failed"
)

// Transcript is the result of one transcription request.
type Transcript struct {
	Status TranscriptStatus
	Text   string
	Error  string
}

// Transcriber turns an audio artifact into text.
// A returned error means the service could not be reached or misbehaved;
// a Transcript with TranscriptFailed means it answered and rejected the input.
type Transcriber interface {
	Transcribe(ctx context.Context, name string, audio []byte) (Transcript, error)
}

// Classification is the structured category derived from text.
type Classification struct {
	Genre  string   `json:"genre"`
	Themes []string `json:"themes"`
}

// Classifier is a swappable categorization policy.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}
