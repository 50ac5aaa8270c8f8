// Command medscribe post-processes Persian/English medical speech-to-text
// transcripts: lexicon term correction, numeral normalization, and text
// cleanup.
//
// With no arguments it reads one transcript from stdin and writes the
// processed text to stdout. With file arguments it processes each file
// concurrently and writes the result next to the input as <name>.out.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parsavox/medscribe/internal/cleanup"
	"github.com/parsavox/medscribe/internal/config"
	"github.com/parsavox/medscribe/internal/lexicon"
	"github.com/parsavox/medscribe/internal/lexicon/postgres"
	"github.com/parsavox/medscribe/internal/numeral"
	"github.com/parsavox/medscribe/internal/observe"
	"github.com/parsavox/medscribe/internal/pipeline"
)

// maxConcurrentFiles caps the batch-mode worker count.
const maxConcurrentFiles = 4

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	lexiconID := flag.String("lexicon", "", "lexicon ID to correct with (overrides nothing when empty)")
	strategy := flag.String("numerals", "", "numeral strategy: english, persian, preserve, context_aware (default from config)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "medscribe: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "medscribe: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Lexicon store (optional) ──────────────────────────────────────────────
	var store lexicon.Store
	if cfg.Storage.PostgresDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect lexicon store", "err", err)
			return 1
		}
		defer pg.Close()

		if err := ensureLexicons(ctx, pg, cfg.Lexicons); err != nil {
			slog.Error("failed to ensure configured lexicons", "err", err)
			return 1
		}

		cacheOpts := []lexicon.CacheOption{lexicon.WithMetrics(metrics)}
		if ttl := cfg.Storage.CacheTTL.Std(); ttl > 0 {
			cacheOpts = append(cacheOpts, lexicon.WithTTL(ttl))
		}
		store = lexicon.NewCachedStore(pg, cacheOpts...)
	} else if *lexiconID != "" {
		slog.Error("a lexicon was requested but storage.postgres_dsn is not configured",
			"lexicon", *lexiconID)
		return 1
	}

	// ── Cleaner ───────────────────────────────────────────────────────────────
	cleaner, err := buildCleaner(cfg.Cleanup, logger)
	if err != nil {
		slog.Error("failed to build cleaner", "err", err)
		return 1
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	opts := []pipeline.Option{
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(logger),
		pipeline.WithDefaultNumeralStrategy(cfg.Numerals.Strategy),
	}
	if cleaner != nil {
		opts = append(opts, pipeline.WithCleaner(cleaner))
	}
	proc := pipeline.New(store, opts...)

	procCfg := pipeline.Config{
		LexiconID:           *lexiconID,
		EnableFuzzyMatching: cfg.Correction.EnableFuzzyMatching,
		FuzzyMatchThreshold: cfg.Correction.FuzzyMatchThreshold,
		NumeralStrategy:     numeral.Strategy(*strategy),
	}

	// ── Process ───────────────────────────────────────────────────────────────
	files := flag.Args()
	if len(files) == 0 {
		if err := processStdin(ctx, proc, procCfg); err != nil {
			slog.Error("processing failed", "err", err)
			return 1
		}
		return 0
	}
	if err := processFiles(ctx, proc, procCfg, files); err != nil {
		slog.Error("batch processing failed", "err", err)
		return 1
	}
	return 0
}

// ensureLexicons upserts the lexicons declared in the config so operators
// can bootstrap a deployment from the config file alone.
func ensureLexicons(ctx context.Context, store *postgres.Store, lexicons []config.LexiconConfig) error {
	for _, lex := range lexicons {
		err := store.SaveLexicon(ctx, lexicon.Lexicon{
			ID:              lex.ID,
			Name:            lex.Name,
			NumeralStrategy: lex.NumeralStrategy,
		})
		if err != nil {
			return fmt.Errorf("ensure lexicon %q: %w", lex.ID, err)
		}
	}
	return nil
}

// buildCleaner constructs the configured cleanup stage, or nil when
// cleanup is off.
func buildCleaner(cfg config.CleanupConfig, logger *slog.Logger) (pipeline.Cleaner, error) {
	switch cfg.Mode {
	case "", config.CleanupOff:
		return nil, nil
	case config.CleanupRules:
		return cleanup.Rules{}, nil
	case config.CleanupLLM:
		opts := []cleanup.LLMOption{cleanup.WithLogger(logger)}
		if cfg.OpenAI.Model != "" {
			opts = append(opts, cleanup.WithModel(cfg.OpenAI.Model))
		}
		if cfg.OpenAI.Temperature != 0 {
			opts = append(opts, cleanup.WithTemperature(cfg.OpenAI.Temperature))
		}
		llm, err := cleanup.NewLLM(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, opts...)
		if err != nil {
			return nil, err
		}
		// A down model endpoint falls back to rule-based cleanup.
		return cleanup.NewFailover(
			cleanup.NamedCleaner{Name: "llm", Cleaner: llm},
			[]cleanup.NamedCleaner{{Name: "rules", Cleaner: cleanup.Rules{}}},
			cleanup.WithFailoverLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown cleanup mode %q", cfg.Mode)
	}
}

// processStdin reads one transcript from stdin and writes the processed
// text to stdout.
func processStdin(ctx context.Context, proc *pipeline.Pipeline, cfg pipeline.Config) error {
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	res, err := proc.Process(ctx, string(raw), cfg)
	if err != nil {
		return err
	}
	logResult(ctx, "stdin", res)

	if _, err := fmt.Fprintln(os.Stdout, res.Text); err != nil {
		return fmt.Errorf("write stdout: %w", err)
	}
	return nil
}

// processFiles processes each input file concurrently, writing results to
// <name>.out next to the inputs. The first hard failure cancels the batch.
func processFiles(ctx context.Context, proc *pipeline.Pipeline, cfg pipeline.Config, files []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFiles)

	for _, path := range files {
		g.Go(func() error {
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %q: %w", path, err)
			}

			res, err := proc.Process(ctx, string(raw), cfg)
			if err != nil {
				return fmt.Errorf("process %q: %w", path, err)
			}
			logResult(ctx, path, res)

			out := outputPath(path)
			if err := os.WriteFile(out, []byte(res.Text), 0o644); err != nil {
				return fmt.Errorf("write %q: %w", out, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func logResult(ctx context.Context, source string, res pipeline.Result) {
	logger := observe.Logger(ctx)
	if res.Failed() {
		for _, sr := range res.Stages {
			if sr.Err != nil {
				logger.WarnContext(ctx, "stage degraded", "source", source,
					"stage", string(sr.Stage), "err", sr.Err)
			}
		}
	}
	logger.InfoContext(ctx, "transcript processed", "source", source,
		"replacements", len(res.Replacements), "stages", len(res.Stages))
}

func outputPath(path string) string {
	dir, name := filepath.Split(path)
	return filepath.Join(dir, name+".out")
}
