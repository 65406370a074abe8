package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"rockguard/internal/artifact"
	"rockguard/internal/config"
	"rockguard/internal/logging"
	"rockguard/internal/risk"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(rootFlags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if rootFlags.logLevel != "" {
		cfg.LogLevel = rootFlags.logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logging.New(w, cfg.LogLevel, cfg.LogFormat).With("service", "rockguard")
}

// loadModel returns the stored artifact. Any failure is an *artifact.LoadError
// or a store construction error; both are fatal for scoring commands.
func loadModel(ctx context.Context, cfg *config.Config) (*artifact.Artifact, artifact.Store, error) {
	store, err := artifact.NewStore(cfg.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("model store: %w", err)
	}
	a, err := store.Load(ctx)
	if err != nil {
		return nil, store, err
	}
	return a, store, nil
}

func newAssembler(cfg *config.Config, model risk.Predictor, src risk.Source, logger *slog.Logger) (*risk.Assembler, error) {
	mode, err := risk.ParseMode(cfg.Model.Normalization)
	if err != nil {
		return nil, err
	}
	return risk.New(model,
		risk.WithSource(src),
		risk.WithNormalization(mode),
		risk.WithTimeout(cfg.Model.InferenceTimeout),
		risk.WithLogger(logger),
	), nil
}
