package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rockguard/internal/api"
	"rockguard/internal/engine"
	"rockguard/internal/history"
	"rockguard/internal/ingest"
	"rockguard/internal/metrics"
	"rockguard/internal/model"
	"rockguard/internal/publish"
	"rockguard/internal/risk"
	"rockguard/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the model and serve risk reports",
	Long: `Loads the trained artifact, then starts the HTTP API and any enabled
ingest sources (Kafka, TCP stream, file tail, simulator). Reports are kept in
memory, optionally persisted to SQL storage and published to Kafka.

A missing or unreadable artifact is fatal; run "rockguard train" first.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, modelStore, err := loadModel(ctx, cfg)
	if err != nil {
		logger.Error("model load failed", "err", err)
		return err
	}
	logger.Info("model loaded",
		"location", modelStore.Location(),
		"trained_at", a.TrainedAt,
		"trees", len(a.Model.Trees),
		"normalization", cfg.Model.Normalization,
	)

	src := risk.NewSeededSource(cfg.Simulation.Seed)
	asm, err := newAssembler(cfg, a, src, logger)
	if err != nil {
		return err
	}

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if store != nil {
		if err := store.Init(ctx); err != nil {
			_ = store.Close()
			return fmt.Errorf("storage init: %w", err)
		}
		defer store.Close()
		logger.Info("report storage enabled", "driver", cfg.Storage.Driver)
	}

	var publisher engine.Publisher
	if p := publish.NewKafka(cfg.Publish.Kafka); p != nil {
		defer p.Close()
		publisher = p
		logger.Info("report publishing enabled", "brokers", cfg.Publish.Kafka.Brokers, "topic", cfg.Publish.Kafka.Topic)
	}

	recorder := metrics.NewRecorder()
	eng := engine.NewEngine(cfg.Engine, logger, asm, history.NewStore(cfg.History.StoreLimit), store, publisher, recorder)

	samples := make(chan model.Sample, cfg.Ingest.ChannelBuffer)
	eng.Start(ctx, samples)
	sim := ingest.NewSimulator(src)
	ingest.StartKafka(ctx, cfg.Ingest.Kafka, samples, logger)
	ingest.StartTCPStream(ctx, cfg.Ingest.TCPStream, samples, logger)
	ingest.StartFileTail(ctx, cfg.Ingest.FileTail, samples, logger)
	ingest.StartSimulator(ctx, cfg.Simulation, sim, samples, logger)

	api.Start(ctx, api.Deps{
		Config:    cfg,
		Engine:    eng,
		Simulator: sim,
		Store:     store,
		Model:     a,
		Metrics:   recorder,
		Logger:    logger,
		Version:   version,
	})

	<-ctx.Done()
	logger.Info("shutting down", "cause", context.Cause(ctx))
	return nil
}
