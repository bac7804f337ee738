package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-pipeline/internal/assist"
	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
	"github.com/JakeFAU/catalog-pipeline/internal/clock/system"
	"github.com/JakeFAU/catalog-pipeline/internal/config"
	"github.com/JakeFAU/catalog-pipeline/internal/fetcher/openfoodfacts"
	"github.com/JakeFAU/catalog-pipeline/internal/hash/sha256"
	"github.com/JakeFAU/catalog-pipeline/internal/id/uuid"
	"github.com/JakeFAU/catalog-pipeline/internal/metrics"
	"github.com/JakeFAU/catalog-pipeline/internal/normalize"
	"github.com/JakeFAU/catalog-pipeline/internal/pipeline"
	"github.com/JakeFAU/catalog-pipeline/internal/policy/ratelimit"
	"github.com/JakeFAU/catalog-pipeline/internal/publisher/pubsub"
	"github.com/JakeFAU/catalog-pipeline/internal/sink"
	"github.com/JakeFAU/catalog-pipeline/internal/storage/gcs"
	"github.com/JakeFAU/catalog-pipeline/internal/storage/local"
	"github.com/JakeFAU/catalog-pipeline/internal/storage/postgres"
)

type runFlags struct {
	category    string
	name        string
	aiCleaning  bool
	metricsAddr string
}

func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch one category and write raw and processed artifacts",
		Example: `  catalog-pipeline run --category chocolats --name chocolats_fr
  catalog-pipeline run --category biscuits --ai-cleaning -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.category, "category", "c", "", "category tag to fetch (see the categories command)")
	cmd.Flags().StringVarP(&flags.name, "name", "n", "", "artifact name prefix (defaults to the category)")
	cmd.Flags().BoolVar(&flags.aiCleaning, "ai-cleaning", false, "request advisory cleaning suggestions")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func runPipeline(cmd *cobra.Command, flags runFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg, logger := appInstance.Config, appInstance.Logger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	addr := cfg.Metrics.Addr
	if flags.metricsAddr != "" {
		addr = flags.metricsAddr
	}
	if addr != "" {
		srv := metrics.NewServer(addr)
		go func() {
			logger.Info("metrics server listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	deps, closeDeps, err := buildDependencies(ctx, cfg, flags.aiCleaning, logger)
	if err != nil {
		return err
	}
	defer closeDeps()

	runner, err := pipeline.NewRunner(deps, pipeline.Settings{
		PageSize:    cfg.Pagination.PageSize,
		MaxPages:    cfg.Pagination.MaxPages,
		KeepPartial: cfg.Output.KeepPartial,
	}, logger.Named("pipeline"))
	if err != nil {
		return err
	}

	report, runErr := runner.Run(ctx, pipeline.Request{
		Category: flags.category,
		Name:     flags.name,
		Assist:   flags.aiCleaning || cfg.Assist.Enabled,
	})
	printReport(cmd.OutOrStdout(), report)
	return runErr
}

// buildDependencies wires the fetch stack, sinks and every optional backend
// the configuration enables. The returned func releases them.
func buildDependencies(ctx context.Context, cfg config.Config, aiCleaning bool, logger *zap.Logger) (pipeline.Dependencies, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	hasher := sha256.New()
	limiter := ratelimit.New(cfg.Limiter())
	fetcher, err := openfoodfacts.New(cfg.Fetcher(), limiter, logger.Named("fetcher"))
	if err != nil {
		return pipeline.Dependencies{}, closeAll, fmt.Errorf("init fetcher: %w", err)
	}

	deps := pipeline.Dependencies{
		Fetcher:       fetcher,
		Normalizer:    normalize.New(cfg.Policy(), logger.Named("normalize")),
		RawSink:       sink.NewRawJSONSink(cfg.Output.RawDir, hasher, logger.Named("sink")),
		ProcessedSink: sink.NewParquetSink(cfg.Output.ProcessedDir, hasher, logger.Named("sink")),
		Clock:         system.New(),
		IDs:           uuid.New(),
		Hasher:        hasher,
	}

	switch {
	case cfg.Storage.GCSBucket != "":
		store, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.Prefix})
		if err != nil {
			closeAll()
			return pipeline.Dependencies{}, func() {}, fmt.Errorf("init gcs mirror: %w", err)
		}
		closers = append(closers, func() { _ = store.Close() })
		deps.Mirror = store
	case cfg.Storage.LocalDir != "":
		store, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			closeAll()
			return pipeline.Dependencies{}, func() {}, fmt.Errorf("init local mirror: %w", err)
		}
		deps.Mirror = store
	}

	if cfg.DB.DSN != "" {
		ledger, err := postgres.NewRunLedger(ctx, cfg.DB)
		if err != nil {
			closeAll()
			return pipeline.Dependencies{}, func() {}, fmt.Errorf("init run ledger: %w", err)
		}
		closers = append(closers, ledger.Close)
		if err := ledger.EnsureSchema(ctx); err != nil {
			closeAll()
			return pipeline.Dependencies{}, func() {}, err
		}
		deps.Ledger = ledger
	}

	if cfg.PubSub.Topic != "" {
		pub, err := pubsub.Open(ctx, cfg.PubSub)
		if err != nil {
			closeAll()
			return pipeline.Dependencies{}, func() {}, fmt.Errorf("init publisher: %w", err)
		}
		closers = append(closers, func() { _ = pub.Close() })
		deps.Publisher = pub
	}

	if aiCleaning || cfg.Assist.Enabled {
		client, err := assist.New(cfg.Assist, logger.Named("assist"))
		switch {
		case errors.Is(err, assist.ErrNoAPIKey):
			logger.Warn("cleaning suggestions requested but no API key is configured; set CATALOG_ASSIST_API_KEY or ANTHROPIC_API_KEY")
		case err != nil:
			closeAll()
			return pipeline.Dependencies{}, func() {}, fmt.Errorf("init assist: %w", err)
		default:
			deps.Suggester = client
		}
	}

	return deps, closeAll, nil
}

func printReport(w io.Writer, report pipeline.Report) {
	if report.RunID == "" {
		return
	}
	fmt.Fprintf(w, "run %s: %s\n", report.RunID, report.Status)
	if report.FailedStage != "" {
		fmt.Fprintf(w, "  failed stage:  %s\n", report.FailedStage)
	}
	fmt.Fprintf(w, "  pages:         %d (%s)\n", report.Pages, report.StopReason)
	fmt.Fprintf(w, "  fetched:       %d\n", report.RecordsFetched)
	if report.Status == catalog.RunSucceeded {
		fmt.Fprintf(w, "  cleaned:       %d (duplicates %d, dropped %d)\n",
			report.RecordsCleaned, report.Stats.Duplicates, report.Stats.Dropped())
	}
	for _, a := range report.Artifacts {
		fmt.Fprintf(w, "  %-14s %s\n", a.Kind+":", a.Path)
	}
	for _, uri := range report.MirrorURIs {
		fmt.Fprintf(w, "  mirrored:      %s\n", uri)
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "  warning:       %s\n", warning)
	}
}
