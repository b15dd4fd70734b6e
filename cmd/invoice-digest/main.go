package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"invoicedigest/internal/common"
	"invoicedigest/internal/convert"
	"invoicedigest/internal/export"
	"invoicedigest/internal/extract"
	anthropicx "invoicedigest/internal/extract/anthropic"
	geminix "invoicedigest/internal/extract/gemini"
	openaix "invoicedigest/internal/extract/openai"
	"invoicedigest/internal/ingest"
	"invoicedigest/internal/output"
	"invoicedigest/internal/pipeline"
	"invoicedigest/internal/repository"
	"invoicedigest/internal/resilience"
	"invoicedigest/internal/schema"
)

func main() {
	// .env is a local convenience; absence is not an error.
	_ = godotenv.Load()

	fs := ff.NewFlagSet("invoice-digest")
	var (
		inputDir    = fs.StringLong("input", "", "Directory of invoice documents to digest")
		outputDir   = fs.StringLong("output", "", "Directory for extracted JSON (default: <input>/digested)")
		configPath  = fs.StringLong("config", "config.yaml", "Settings file path")
		schemaPath  = fs.StringLong("schema", "", "Extraction schema file, JSON or YAML (default: built-in invoice schema)")
		provider    = fs.StringLong("provider", "", "Extraction provider: 'openai', 'anthropic' or 'gemini'")
		model       = fs.StringLong("model", "", "Provider model name")
		dbPath      = fs.StringLong("db", "", "Run store database file path")
		summaryPath = fs.StringLong("summary-xlsx", "", "Write an XLSX summary of all digested invoices to this path")
		force       = fs.BoolLong("force", "Re-extract documents already digested in an earlier run")
		logLevel    = fs.StringLong("log-level", "", "Log level: debug, info, warn, error")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("DIGEST"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *inputDir, *outputDir, *schemaPath, *provider, *model, *dbPath, *logLevel, *force)
	if cfg.Pipeline.OutputDir == "" && cfg.Pipeline.InputDir != "" {
		cfg.Pipeline.OutputDir = filepath.Join(cfg.Pipeline.InputDir, "digested")
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("config.invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *summaryPath); err != nil {
		logger.Error("digest.failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger, summaryPath string) error {
	def, err := schema.Load(cfg.Schema.Path)
	if err != nil {
		return err
	}

	db, err := repository.Open(ctx, cfg.Store.Path, logger)
	if err != nil {
		return err
	}
	defer repository.Close(db, logger)

	docsRepo := repository.NewDocumentRepository(db, logger)
	jobsRepo := repository.NewJobRepository(db, logger)

	extractor, cleanup, err := newExtractor(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	writer, err := output.NewWriter(cfg.Pipeline.OutputDir, logger)
	if err != nil {
		return err
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg.Resilience), logger)
	enumerator := ingest.NewEnumerator(logger, cfg.Pipeline.SkipHidden)
	converter := convert.NewConverter(logger)

	proc := pipeline.NewProcessor(
		logger,
		enumerator,
		converter,
		extractor,
		executor,
		docsRepo,
		jobsRepo,
		writer,
		def,
		cfg.Provider.Model,
		cfg.Pipeline.Force,
	)

	summary, err := proc.Run(ctx, cfg.Pipeline.InputDir)
	if err != nil {
		return err
	}

	fmt.Printf("digested %d document(s): %d succeeded, %d skipped, %d failed\n",
		summary.Enumerated, summary.Succeeded, summary.Skipped, summary.Failed)

	if summaryPath != "" {
		svc := export.NewService(jobsRepo, logger)
		workbook, err := svc.SummaryXLSX(ctx)
		if err != nil {
			return err
		}
		if err := os.WriteFile(summaryPath, workbook, 0o644); err != nil {
			return common.NewIOError("write summary workbook", err)
		}
		fmt.Printf("summary written to %s\n", summaryPath)
	}
	return nil
}

// newExtractor builds the provider client selected by configuration. The
// returned cleanup releases provider resources and is safe to call always.
func newExtractor(ctx context.Context, cfg *common.Config, logger *slog.Logger) (extract.FieldExtractor, func(), error) {
	noop := func() {}
	switch cfg.Provider.Name {
	case common.ProviderOpenAI:
		client := openaix.NewClient(openaix.Config{
			APIKey:      cfg.Provider.APIKey,
			BaseURL:     cfg.Provider.BaseURL,
			Model:       cfg.Provider.Model,
			Temperature: cfg.Provider.Temperature,
			Timeout:     cfg.Provider.Timeout(),
		}, logger)
		return client, noop, nil
	case common.ProviderAnthropic:
		client := anthropicx.NewClient(anthropicx.Config{
			APIKey:      cfg.Provider.APIKey,
			Model:       cfg.Provider.Model,
			Temperature: cfg.Provider.Temperature,
			Timeout:     cfg.Provider.Timeout(),
		}, logger)
		return client, noop, nil
	case common.ProviderGemini:
		client, err := geminix.NewClient(ctx, geminix.Config{
			APIKey:      cfg.Provider.APIKey,
			Model:       cfg.Provider.Model,
			Temperature: cfg.Provider.Temperature,
			Timeout:     cfg.Provider.Timeout(),
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return client, func() { _ = client.Close() }, nil
	default:
		return nil, noop, common.NewConfigError(fmt.Sprintf("unknown provider %q", cfg.Provider.Name), nil)
	}
}

func applyFlags(cfg *common.Config, inputDir, outputDir, schemaPath, provider, model, dbPath, logLevel string, force bool) {
	if inputDir != "" {
		cfg.Pipeline.InputDir = inputDir
	}
	if outputDir != "" {
		cfg.Pipeline.OutputDir = outputDir
	}
	if schemaPath != "" {
		cfg.Schema.Path = schemaPath
	}
	if provider != "" {
		cfg.Provider.Name = strings.ToLower(provider)
		cfg.Provider.APIKey = "" // re-resolve below for the new provider
	}
	if model != "" {
		cfg.Provider.Model = model
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	cfg.Pipeline.Force = force
	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = common.APIKeyFromEnv(cfg.Provider.Name)
	}
}

func resilienceConfig(rc common.ResilienceConfig) resilience.Config {
	cfg := resilience.DefaultConfig()
	cfg.RetryMaxAttempts = rc.MaxAttempts
	cfg.RetryInitialBackoff = msDuration(rc.InitialBackoffMS)
	cfg.RetryMaxBackoff = msDuration(rc.MaxBackoffMS)
	cfg.RetryMultiplier = rc.BackoffMultiplier
	cfg.RequestsPerSecond = rc.RequestsPerSecond
	cfg.BreakerEnabled = rc.BreakerEnabled
	cfg.BreakerMinRequests = rc.BreakerMinRequests
	return cfg
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
