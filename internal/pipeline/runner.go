// Package pipeline orchestrates one catalog run: paginate the API, persist the
// raw dataset, normalize it, persist the cleaned table, then record and
// announce the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
	"github.com/JakeFAU/catalog-pipeline/internal/metrics"
	"github.com/JakeFAU/catalog-pipeline/internal/normalize"
	"github.com/JakeFAU/catalog-pipeline/internal/sink"
)

const bookkeepingTimeout = 15 * time.Second

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Suggester produces advisory cleaning notes for a dataset profile.
type Suggester interface {
	Suggest(ctx context.Context, profile normalize.Profile) (string, error)
}

// Ledger durably records run outcomes.
type Ledger interface {
	RecordRun(ctx context.Context, run catalog.RunSummary) error
}

// Dependencies wires the collaborators of a Runner. Fetcher, Normalizer and
// both sinks are required; the rest are optional.
type Dependencies struct {
	Fetcher       catalog.Fetcher
	Normalizer    *normalize.Normalizer
	RawSink       *sink.RawJSONSink
	ProcessedSink *sink.ParquetSink
	Clock         catalog.Clock
	IDs           catalog.IDGenerator
	Hasher        catalog.Hasher

	Suggester Suggester
	Mirror    catalog.BlobStore
	Ledger    Ledger
	Publisher catalog.Publisher
}

// Settings bound a run.
type Settings struct {
	PageSize    int
	MaxPages    int
	KeepPartial bool
}

// Request selects what to fetch and how to name the artifacts.
type Request struct {
	Category string
	// Name prefixes artifact file names; it defaults to Category.
	Name string
	// Assist asks the Suggester for advisory cleaning notes.
	Assist bool
}

// Report describes a finished run, successful or not.
type Report struct {
	catalog.RunSummary
	Stats       normalize.Stats `json:"stats"`
	Artifacts   []sink.Artifact `json:"artifacts"`
	Suggestions string          `json:"-"`
	MessageID   string          `json:"message_id,omitempty"`
	Warnings    []string        `json:"warnings,omitempty"`
}

func (r *Report) warn(logger *zap.Logger, msg string, err error) {
	logger.Warn(msg, zap.Error(err))
	r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %v", msg, err))
}

// Runner executes pipeline runs. Runs are sequential; a Runner must not be
// shared by concurrent Run calls because the rate limiter behind the fetcher
// is sized for one caller.
type Runner struct {
	deps      Dependencies
	settings  Settings
	paginator *catalog.Paginator
	logger    *zap.Logger
}

// NewRunner validates deps and builds a Runner.
func NewRunner(deps Dependencies, settings Settings, logger *zap.Logger) (*Runner, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case deps.Normalizer == nil:
		return nil, errors.New("pipeline: normalizer is required")
	case deps.RawSink == nil || deps.ProcessedSink == nil:
		return nil, errors.New("pipeline: raw and processed sinks are required")
	case deps.Clock == nil || deps.IDs == nil:
		return nil, errors.New("pipeline: clock and id generator are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		deps:      deps,
		settings:  settings,
		paginator: catalog.NewPaginator(deps.Fetcher, settings.MaxPages, logger.Named("paginator")),
		logger:    logger,
	}, nil
}

// Run executes one run. The returned Report is always populated; on failure
// the error is a *RunError unless the request itself was invalid.
func (r *Runner) Run(ctx context.Context, req Request) (Report, error) {
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		return Report{}, errors.New("category is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		req.Name = req.Category
	}
	if !validName.MatchString(req.Name) {
		return Report{}, fmt.Errorf("invalid run name %q", req.Name)
	}

	runID, err := r.deps.IDs.NewID()
	if err != nil {
		return Report{}, fmt.Errorf("new run id: %w", err)
	}
	report := Report{RunSummary: catalog.RunSummary{
		RunID:     runID,
		Category:  req.Category,
		Name:      req.Name,
		StartedAt: r.deps.Clock.Now().UTC(),
	}}
	logger := r.logger.With(
		zap.String("run_id", runID),
		zap.String("category", req.Category),
		zap.String("name", req.Name),
	)
	logger.Info("run started")

	runErr := r.execute(ctx, req, &report, logger)

	report.FinishedAt = r.deps.Clock.Now().UTC()
	report.Status = catalog.RunSucceeded
	if runErr != nil {
		report.Status = catalog.RunFailed
		report.Error = runErr.Error()
		var stageErr *RunError
		if errors.As(runErr, &stageErr) {
			report.FailedStage = string(stageErr.Stage)
		}
	}
	metrics.ObserveRun(report.Status, report.Duration())

	r.finish(ctx, &report, logger)

	if runErr != nil {
		logger.Error("run failed",
			zap.String("stage", report.FailedStage),
			zap.Int("records_fetched", report.RecordsFetched),
			zap.Error(runErr),
		)
		return report, runErr
	}
	logger.Info("run finished",
		zap.Int("pages", report.Pages),
		zap.Int("records_fetched", report.RecordsFetched),
		zap.Int("records_cleaned", report.RecordsCleaned),
		zap.Duration("elapsed", report.Duration()),
	)
	return report, nil
}

func (r *Runner) execute(ctx context.Context, req Request, report *Report, logger *zap.Logger) error {
	ts := report.StartedAt

	result, err := r.paginator.FetchAll(ctx, req.Category, r.settings.PageSize)
	report.Pages = result.Pages
	report.StopReason = result.Stop
	report.RecordsFetched = len(result.Records)
	metrics.AddRecords("fetched", len(result.Records))
	if err != nil {
		if r.settings.KeepPartial && len(result.Records) > 0 {
			artifact, werr := r.deps.RawSink.WritePartial(req.Name, ts, result.Records)
			if werr != nil {
				report.warn(logger, "partial dataset not written", werr)
			} else {
				r.addArtifact(report, artifact)
			}
		}
		return &RunError{Stage: StageFetch, Salvaged: len(result.Records), Err: err}
	}
	if len(result.Records) == 0 {
		return &RunError{Stage: StageFetch, Err: catalog.ErrNoRecords}
	}
	raw := result.Records

	rawArtifact, err := r.deps.RawSink.Write(req.Name, ts, raw)
	if err != nil {
		return &RunError{Stage: StageRawSink, Salvaged: len(raw), Err: err}
	}
	r.addArtifact(report, rawArtifact)
	report.RawPath = rawArtifact.Path
	report.RawSHA256 = rawArtifact.SHA256

	if req.Assist {
		r.suggest(ctx, req, raw, report, logger)
	}

	cleaned, stats := r.deps.Normalizer.Normalize(raw)
	report.Stats = stats
	report.RecordsCleaned = len(cleaned)
	metrics.AddRecords("cleaned", len(cleaned))
	metrics.AddRecords("duplicates", stats.Duplicates)
	metrics.AddRecords("dropped", stats.Dropped())
	for column, n := range stats.Outliers {
		metrics.AddOutliers(column, n)
	}
	for column, n := range stats.Nulls {
		metrics.AddNullCells(column, n)
	}
	if len(cleaned) == 0 {
		return &RunError{Stage: StageNormalize, Salvaged: len(raw), Err: catalog.ErrEmptyDataset}
	}

	processed, err := r.deps.ProcessedSink.Write(req.Name, ts, cleaned)
	if err != nil {
		return &RunError{Stage: StageProcessedSink, Salvaged: len(raw), Err: err}
	}
	r.addArtifact(report, processed)
	report.ProcessedPath = processed.Path
	report.ProcessedSHA256 = processed.SHA256
	return nil
}

func (r *Runner) suggest(ctx context.Context, req Request, raw catalog.RawDataset, report *Report, logger *zap.Logger) {
	if r.deps.Suggester == nil {
		report.warn(logger, "cleaning suggestions skipped", errors.New("assist is not configured (missing api key?)"))
		return
	}
	text, err := r.deps.Suggester.Suggest(ctx, normalize.BuildProfile(raw, normalize.DefaultSampleSize))
	if err != nil {
		report.warn(logger, "cleaning suggestions unavailable", err)
		return
	}
	report.Suggestions = text
	logger.Info("cleaning suggestions (advisory, not applied)", zap.String("suggestions", text))

	artifact, err := sink.WriteSuggestions(r.deps.ProcessedSink.Dir(), req.Name, report.StartedAt, text, r.deps.Hasher)
	if err != nil {
		report.warn(logger, "cleaning suggestions not written", err)
		return
	}
	r.addArtifact(report, artifact)
}

func (r *Runner) addArtifact(report *Report, artifact sink.Artifact) {
	report.Artifacts = append(report.Artifacts, artifact)
	metrics.AddArtifactBytes(artifact.Kind, artifact.Bytes)
}

// finish mirrors artifacts, writes the ledger row and publishes the summary.
// Failures here only produce warnings. The steps still run after the caller's
// context is canceled so interrupted runs are recorded.
func (r *Runner) finish(ctx context.Context, report *Report, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	if r.deps.Mirror != nil {
		for _, artifact := range report.Artifacts {
			uri, err := r.mirror(ctx, report.RunID, artifact)
			if err != nil {
				report.warn(logger, "artifact mirror failed", err)
				continue
			}
			report.MirrorURIs = append(report.MirrorURIs, uri)
		}
	}

	if r.deps.Ledger != nil {
		if err := r.deps.Ledger.RecordRun(ctx, report.RunSummary); err != nil {
			report.warn(logger, "run ledger write failed", err)
		}
	}

	if r.deps.Publisher != nil {
		id, err := r.deps.Publisher.Publish(ctx, report.RunSummary)
		if err != nil {
			report.warn(logger, "run notification failed", err)
			return
		}
		report.MessageID = id
	}
}

func (r *Runner) mirror(ctx context.Context, runID string, artifact sink.Artifact) (string, error) {
	f, err := os.Open(artifact.Path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", artifact.Path, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	key := path.Join(runID, filepath.Base(artifact.Path))
	uri, err := r.deps.Mirror.PutObject(ctx, key, contentType(artifact.Kind), f)
	if err != nil {
		return "", fmt.Errorf("mirror %s: %w", artifact.Path, err)
	}
	return uri, nil
}

func contentType(kind string) string {
	switch kind {
	case sink.KindProcessed:
		return "application/vnd.apache.parquet"
	case sink.KindSuggestions:
		return "text/markdown; charset=utf-8"
	default:
		return "application/json"
	}
}
