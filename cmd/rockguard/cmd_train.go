package main

import (
	"os"

	"github.com/spf13/cobra"

	"rockguard/internal/artifact"
	"rockguard/internal/trainer"
)

var trainFlags struct {
	dataset string
	trees   int
	seed    uint64
	workers int
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the risk model from a labelled CSV and overwrite the stored artifact",
	Long: `Reads a CSV with the seven reading columns and a risk_probability label,
fits a regression forest, and writes the artifact to the configured model store.

Training is deterministic for a given dataset, seed and tree count.`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.StringVar(&trainFlags.dataset, "dataset", "", "Training CSV (default: training.dataset from config)")
	f.IntVar(&trainFlags.trees, "trees", 0, "Number of trees (default: training.trees)")
	f.Uint64Var(&trainFlags.seed, "seed", 0, "Random seed (default: training.seed)")
	f.IntVar(&trainFlags.workers, "workers", 0, "Parallel tree builders (default: training.workers)")
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	if trainFlags.dataset != "" {
		cfg.Training.Dataset = trainFlags.dataset
	}
	if trainFlags.trees > 0 {
		cfg.Training.Trees = trainFlags.trees
	}
	if cmd.Flags().Changed("seed") {
		cfg.Training.Seed = trainFlags.seed
	}
	if trainFlags.workers > 0 {
		cfg.Training.Workers = trainFlags.workers
	}

	store, err := artifact.NewStore(cfg.Model)
	if err != nil {
		return err
	}
	_, err = trainer.Run(cmd.Context(), cfg.Training.Dataset, store, trainer.ForestConfig(cfg.Training), logger)
	return err
}
