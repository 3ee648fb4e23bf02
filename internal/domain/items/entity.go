package items

import (
	"time"
)

// ID tipe untuk Item
type ID string

// Status enum
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the pipeline is done with an item in this state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Sentiment value object
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// AnalysisFields holds the structured output attached to a completed item.
type AnalysisFields struct {
	Text      string     `json:"text,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	Genre     string     `json:"genre,omitempty"`
	Themes    []string   `json:"themes,omitempty"`
	Sentiment *Sentiment `json:"sentiment,omitempty"`
	Artifacts []string   `json:"artifacts"`
}

// IsEmpty is true when nothing was produced at all.
func (a *AnalysisFields) IsEmpty() bool {
	if a == nil {
		return true
	}
	return len(a.Artifacts) == 0 && a.Text == "" && a.Summary == "" && a.Genre == "" && len(a.Themes) == 0 && a.Sentiment == nil
}

// Aggregate Root: Item
type Item struct {
	ID               ID              `json:"id"`
	Owner            string          `json:"owner"`
	DisplayName      string          `json:"display_name"`
	RawLocation      string          `json:"raw_location"`
	DerivedLocations []string        `json:"derived_locations,omitempty"`
	SizeBytes        int64           `json:"size_bytes"`
	Status           Status          `json:"status"`
	Analysis         *AnalysisFields `json:"analysis_fields,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	Replicated       bool            `json:"replicated"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Artifact is one derived blob produced by the transform stage.
type Artifact struct {
	Name string
	Data []byte
}

// FileStat is the flattened projection written to the analytical store.
type FileStat struct {
	FileID    string
	Owner     string
	FileName  string
	CreatedAt time.Time
	SizeBytes int64
	Status    string
	Genre     string
	Sentiment float64
}

// StatFromItem projects an item into its analytics row.
func StatFromItem(it *Item) FileStat {
	st := FileStat{
		FileID:    string(it.ID),
		Owner:     it.Owner,
		FileName:  it.DisplayName,
		CreatedAt: it.CreatedAt,
		SizeBytes: it.SizeBytes,
		Status:    string(it.Status),
	}
	if it.Analysis != nil {
		st.Genre = it.Analysis.Genre
		if it.Analysis.Sentiment != nil {
			st.Sentiment = it.Analysis.Sentiment.Score
		}
	}
	return st
}

// RawKey builds the raw-bucket key for an uploaded file.
func RawKey(id ID, name string) string {
	return string(id) + "/" + name
}

// ProcessedKey builds the processed-bucket key for a derived artifact.
func ProcessedKey(id ID, name string) string {
	return string(id) + "/processed/" + name
}
