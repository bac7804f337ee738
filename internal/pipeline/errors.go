package pipeline

import "fmt"

// Stage names a step of a run.
type Stage string

// Run stages, in execution order.
const (
	StageFetch         Stage = "fetch"
	StageRawSink       Stage = "raw_sink"
	StageNormalize     Stage = "normalize"
	StageProcessedSink Stage = "processed_sink"
)

// RunError reports the stage that aborted a run and how many fetched records
// were salvaged before it did.
type RunError struct {
	Stage    Stage
	Salvaged int
	Err      error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s stage failed (%d records salvaged): %v", e.Stage, e.Salvaged, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
