package pipeline

import "fmt"

// Stage names, also used as metric labels.
const (
	StageFetch     = "fetch"
	StageTransform = "transform"
	StageAnalyze   = "analyze"
	StageDerive    = "derive"
	StageUpload    = "upload"
)

// StageError records which stage an item failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageName returns the failing stage.
func (e *StageError) StageName() string { return e.Stage }

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
