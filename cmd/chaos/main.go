// Command chaos drives gameplay recordings through the highlight pipeline:
// ingest, triage, analyze, correlate, summarize. Stages run individually or
// end to end; gen seeds synthetic detector artifacts for offline runs.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/strayfire/chaos/internal/adapters/detectors"
	"github.com/strayfire/chaos/internal/adapters/manifest"
	"github.com/strayfire/chaos/internal/config"
	"github.com/strayfire/chaos/internal/pipeline"
	"github.com/strayfire/chaos/internal/synth"
	"github.com/strayfire/chaos/pkg/logger"
	"github.com/strayfire/chaos/pkg/metrics"
)

// Metrics listener timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// env holds everything the commands share once setup succeeds.
type env struct {
	cfg    *config.Config
	store  *manifest.Store
	driver *pipeline.Driver
}

// setup loads configuration, applies the log level, opens the manifest, and
// wires the stage driver.
func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := manifest.Open(ctx, filepath.Join(cfg.DataDir, "manifest.json"))
	if err != nil {
		return nil, err
	}

	client := detectors.NewClient(detectors.URLs{
		Killfeed: cfg.Detectors.KillfeedURL,
		Chat:     cfg.Detectors.ChatURL,
		Speech:   cfg.Detectors.SpeechURL,
		Audio:    cfg.Detectors.AudioURL,
	})

	return &env{
		cfg:    cfg,
		store:  store,
		driver: pipeline.New(cfg, store, client),
	}, nil
}

// serveMetrics exposes the Prometheus endpoint when configured, shutting
// down with the root context.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Get().Info(ctx, "metrics listener starting", logger.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Get().Error(ctx, "metrics listener failed", logger.Error(err))
	}
}

// stageCommand builds a subcommand running exactly one pipeline stage.
func stageCommand(use, short string, stage manifest.Stage) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.store.Close()
			if e.cfg.MetricsAddr != "" {
				go serveMetrics(ctx, e.cfg.MetricsAddr)
			}
			return e.driver.RunStage(ctx, stage)
		},
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "chaos",
		Short:         "Correlates detector event streams into ranked gameplay highlights",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run every pipeline stage in order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.store.Close()
			if e.cfg.MetricsAddr != "" {
				go serveMetrics(ctx, e.cfg.MetricsAddr)
			}
			return e.driver.RunAll(ctx)
		},
	})

	root.AddCommand(
		stageCommand("ingest", "Register new recordings from the captures directory", manifest.StageIngested),
		stageCommand("triage", "Shortlist recordings with a cheap audio pass", manifest.StageTriaged),
		stageCommand("analyze", "Run the deep detectors on shortlisted recordings", manifest.StageAnalyzed),
		stageCommand("correlate", "Fuse detector artifacts into ranked highlights", manifest.StageCorrelated),
		stageCommand("summarize", "Aggregate highlight manifests into the run summary", manifest.StageSummarized),
	)

	var genCount, genFights int
	genCmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate synthetic detector artifacts for offline runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.store.Close()
			g := synth.New(e.cfg.DataDir, synth.WithFights(genFights))
			return g.Generate(ctx, e.store, genCount)
		},
	}
	genCmd.Flags().IntVar(&genCount, "videos", 2, "number of synthetic videos")
	genCmd.Flags().IntVar(&genFights, "fights", 3, "fight scenes per video")
	root.AddCommand(genCmd)

	root.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Clear all pipeline state from the manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.store.Close()
			return e.store.Reset(ctx)
		},
	})

	return root
}

func main() {
	// A missing .env is fine; explicit config still comes from env or file.
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		logger.Get().Error(ctx, "command failed", logger.Error(err))
		os.Exit(1)
	}
}
