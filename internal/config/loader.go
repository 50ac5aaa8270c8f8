package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/parsavox/medscribe/internal/numeral"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Storage.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("storage.cache_ttl %s must not be negative", cfg.Storage.CacheTTL))
	}

	if th := cfg.Correction.FuzzyMatchThreshold; th < 0 || th > 100 {
		errs = append(errs, fmt.Errorf("correction.fuzzy_match_threshold %d is out of range [0, 100]", th))
	}

	if s := cfg.Numerals.Strategy; s != "" && !s.IsValid() {
		errs = append(errs, fmt.Errorf("numerals.strategy %q is invalid; valid values: english, persian, preserve, context_aware", s))
	}

	if m := cfg.Cleanup.Mode; m != "" && !m.IsValid() {
		errs = append(errs, fmt.Errorf("cleanup.mode %q is invalid; valid values: off, rules, llm", m))
	}
	if cfg.Cleanup.Mode == CleanupLLM {
		if cfg.Cleanup.OpenAI.APIKey == "" {
			errs = append(errs, fmt.Errorf("cleanup.openai.api_key is required when cleanup.mode is llm"))
		}
		if t := cfg.Cleanup.OpenAI.Temperature; t < 0 || t > 2 {
			errs = append(errs, fmt.Errorf("cleanup.openai.temperature %.2f is out of range [0, 2]", t))
		}
	}

	// Lexicon declarations need the store to land in.
	if len(cfg.Lexicons) > 0 && cfg.Storage.PostgresDSN == "" {
		slog.Warn("lexicons are declared but storage.postgres_dsn is empty; declarations will be ignored")
	}
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; term correction will not be available")
	}

	lexiconIDsSeen := make(map[string]int, len(cfg.Lexicons))
	for i, lex := range cfg.Lexicons {
		prefix := fmt.Sprintf("lexicons[%d]", i)
		if lex.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
		} else {
			if prev, ok := lexiconIDsSeen[lex.ID]; ok {
				errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of lexicons[%d]", prefix, lex.ID, prev))
			}
			lexiconIDsSeen[lex.ID] = i
		}
		if lex.NumeralStrategy != "" && !numeral.Strategy(lex.NumeralStrategy).IsValid() {
			errs = append(errs, fmt.Errorf("%s.numeral_strategy %q is invalid; valid values: english, persian, preserve, context_aware", prefix, lex.NumeralStrategy))
		}
	}

	return errors.Join(errs...)
}

// SlogLevel maps the configured log level onto a [slog.Level].
// Unset or unknown levels map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
