package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"clipdex/internal/checkpoint"
	"clipdex/internal/clip"
	"clipdex/internal/config"
	"clipdex/internal/deps"
	"clipdex/internal/logging"
	"clipdex/internal/notifications"
	"clipdex/internal/pipeline"
	"clipdex/internal/ratelimit"
	"clipdex/internal/scoring"
	"clipdex/internal/search"
	"clipdex/internal/services"
	"clipdex/internal/services/clipsearch"
	"clipdex/internal/services/contentstore"
	"clipdex/internal/services/llm"
	"clipdex/internal/services/transcribe"
	"clipdex/internal/upload"
	"clipdex/internal/verify"
	"clipdex/internal/wordlist"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		csvPath               string
		bundleName            string
		maxVideos             int
		candidateThreshold    float64
		verificationThreshold float64
		downloadOnly          bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process a word list through the clip pipeline",
		Long: "Run drives every word through clip search, snippet scoring, audio\n" +
			"verification, and upload. Completed units are checkpointed, so an\n" +
			"interrupted run resumes where it stopped. Individual word and clip\n" +
			"failures are recorded and skipped; only configuration problems abort.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("max-videos") {
				cfg.Pipeline.MaxVideos = maxVideos
			}
			if cmd.Flags().Changed("candidate-threshold") {
				cfg.Pipeline.CandidateThreshold = candidateThreshold
			}
			if cmd.Flags().Changed("verification-threshold") {
				cfg.Pipeline.VerificationThreshold = verificationThreshold
			}
			if downloadOnly {
				cfg.Pipeline.DownloadOnly = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			words, err := loadWords(cfg, csvPath, bundleName)
			if err != nil {
				return err
			}
			if err := deps.Verify(cfg); err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !locked {
				return services.Wrap(services.ErrConfiguration, "", "run lock",
					fmt.Sprintf("another clipdex run holds %s", cfg.LockPath()), nil)
			}
			defer lock.Unlock()

			store, err := checkpoint.Open(cfg)
			if err != nil {
				return fmt.Errorf("open checkpoint store: %w", err)
			}
			defer store.Close()

			pipe, err := buildPipeline(cfg, store, logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			summary, runErr := pipe.Run(runCtx, words)

			out := cmd.OutOrStdout()
			if summary != nil {
				printSummary(out, summary, runErr)
				if summary.FailuresRecorded > 0 {
					fmt.Fprintln(out, "Some units failed; inspect them with `clipdex failures`.")
				}
			}
			if errors.Is(runErr, context.Canceled) {
				fmt.Fprintln(out, "Interrupted; rerun the same command to resume from the last checkpoint.")
			}
			// Unit failures never fail the command; runErr is set only for
			// configuration errors and interruption.
			return runErr
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to a CSV word list (word[,language] per row)")
	cmd.Flags().StringVar(&bundleName, "bundle", "", "Named vocabulary bundle under <data_dir>/bundles")
	cmd.Flags().IntVar(&maxVideos, "max-videos", 0, "Override the candidate cap per word")
	cmd.Flags().Float64Var(&candidateThreshold, "candidate-threshold", 0, "Override the snippet score gate")
	cmd.Flags().Float64Var(&verificationThreshold, "verification-threshold", 0, "Override the audio score gate")
	cmd.Flags().BoolVar(&downloadOnly, "download-only", false, "Verify and keep artifacts locally without uploading")

	return cmd
}

func loadWords(cfg *config.Config, csvPath, bundleName string) ([]clip.Word, error) {
	csvPath = strings.TrimSpace(csvPath)
	bundleName = strings.TrimSpace(bundleName)
	switch {
	case csvPath != "" && bundleName != "":
		return nil, services.Wrap(services.ErrConfiguration, "", "word source",
			"--csv and --bundle are mutually exclusive", nil)
	case csvPath != "":
		return wordlist.Load(csvPath, cfg.Pipeline.DefaultLanguage)
	case bundleName != "":
		return wordlist.LoadBundle(cfg.Paths.DataDir, bundleName, cfg.Pipeline.DefaultLanguage)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "", "word source",
			"provide --csv <path> or --bundle <name>", nil)
	}
}

func buildPipeline(cfg *config.Config, store *checkpoint.Store, logger *slog.Logger) (*pipeline.Pipeline, error) {
	retrier := ratelimit.New(ratelimit.Policy{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		BaseDelay:         time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:          time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
		RequestsPerSecond: cfg.Retry.RequestsPerSecond,
	}, ratelimit.WithLogger(logger))

	searchClient, err := clipsearch.New(clipsearch.Config{
		BaseURL:        cfg.ClipSearch.BaseURL,
		APIKey:         cfg.ClipSearch.APIKey,
		Source:         cfg.ClipSearch.Source,
		PageSize:       cfg.ClipSearch.PageSize,
		TimeoutSeconds: cfg.ClipSearch.TimeoutSeconds,
	}, retrier)
	if err != nil {
		return nil, err
	}
	judge := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}, retrier)
	transcriber, err := transcribe.New(transcribe.Config{
		APIKey:         cfg.Transcribe.APIKey,
		BaseURL:        cfg.Transcribe.BaseURL,
		Model:          cfg.Transcribe.Model,
		TimeoutSeconds: cfg.Transcribe.TimeoutSeconds,
	}, retrier)
	if err != nil {
		return nil, err
	}

	searchStage := search.New(cfg, store, searchClient, logger)
	scoreStage := scoring.New(cfg, store, judge, logger)
	verifyStage := verify.New(cfg, store, retrier, transcriber, judge, searchStage, logger)

	// Download-only runs may omit the content store section entirely; the
	// uploader is never invoked in that mode.
	var uploader pipeline.Uploader
	if strings.TrimSpace(cfg.ContentStore.BaseURL) != "" {
		ingestor, err := contentstore.New(contentstore.Config{
			BaseURL:        cfg.ContentStore.BaseURL,
			APIKey:         cfg.ContentStore.APIKey,
			Source:         cfg.ClipSearch.Source,
			TimeoutSeconds: cfg.ContentStore.TimeoutSeconds,
		}, retrier)
		if err != nil {
			return nil, err
		}
		uploader = upload.New(cfg, store, ingestor, logger)
	}

	return pipeline.New(cfg, store, searchStage, scoreStage, verifyStage, uploader, notifications.NewService(cfg), logger), nil
}

func printSummary(w io.Writer, summary *pipeline.Summary, runErr error) {
	status := checkpoint.RunStatusCompleted
	if runErr != nil {
		status = checkpoint.RunStatusFailed
	}

	fmt.Fprintf(w, "Run %s: %s\n", summary.RunID, titleCase(status))
	lines := []struct {
		label string
		value string
	}{
		{"Words", fmt.Sprintf("%d of %d", summary.WordsProcessed, summary.WordsTotal)},
		{"Candidates", fmt.Sprintf("%d found, %d passing", summary.CandidatesFound, summary.CandidatesPassing)},
		{"Verified", fmt.Sprintf("%d", summary.ClipsVerified)},
		{"Uploaded", fmt.Sprintf("%d (%d new, %d merged)", summary.Uploaded(), summary.UploadsCreated, summary.UploadsExisted)},
		{"Failures", fmt.Sprintf("%d", summary.FailuresRecorded)},
		{"Duration", summary.Duration.Round(time.Second).String()},
	}
	for _, line := range lines {
		fmt.Fprintf(w, "  %-12s %s\n", line.label+":", line.value)
	}
}
