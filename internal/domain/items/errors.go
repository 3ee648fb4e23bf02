package items

import "errors"

var (
	// ErrNotFound is returned when no record exists for an item id.
	ErrNotFound = errors.New("item not found")
	// ErrArtifactMissing marks a transform that did not produce an expected file.
	ErrArtifactMissing = errors.New("expected artifact missing")
	// ErrAnalysisFailed is a domain outcome reported by the analysis service.
	ErrAnalysisFailed = errors.New("analysis failed")
)
