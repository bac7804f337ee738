package catalog

import "time"

// Run statuses.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// RunSummary is the durable record of one pipeline run. It is written to the
// ledger and published on completion.
type RunSummary struct {
	RunID           string     `json:"run_id"`
	Category        string     `json:"category"`
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	FailedStage     string     `json:"failed_stage,omitempty"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      time.Time  `json:"finished_at"`
	Pages           int        `json:"pages"`
	StopReason      StopReason `json:"stop_reason,omitempty"`
	RecordsFetched  int        `json:"records_fetched"`
	RecordsCleaned  int        `json:"records_cleaned"`
	RawPath         string     `json:"raw_path,omitempty"`
	RawSHA256       string     `json:"raw_sha256,omitempty"`
	ProcessedPath   string     `json:"processed_path,omitempty"`
	ProcessedSHA256 string     `json:"processed_sha256,omitempty"`
	MirrorURIs      []string   `json:"mirror_uris,omitempty"`
}

// Duration is the wall time of the run.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// MessageAttributes exposes routing attributes for published summaries.
func (s RunSummary) MessageAttributes() map[string]string {
	attrs := map[string]string{
		"run_id":   s.RunID,
		"category": s.Category,
		"status":   s.Status,
	}
	if s.FailedStage != "" {
		attrs["failed_stage"] = s.FailedStage
	}
	return attrs
}
