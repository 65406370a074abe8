// Package trainer fits the rockfall risk model from historical records and
// persists it for the scoring service.
package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"rockguard/internal/artifact"
	"rockguard/internal/config"
	"rockguard/internal/forest"
)

func ForestConfig(cfg config.TrainingConfig) forest.Config {
	return forest.Config{
		Trees:          cfg.Trees,
		Seed:           cfg.Seed,
		MaxDepth:       cfg.MaxDepth,
		MinSamplesLeaf: cfg.MinSamplesLeaf,
		MaxFeatures:    cfg.MaxFeatures,
		Workers:        cfg.Workers,
	}
}

// Train fits a fresh forest; there is no incremental mode.
func Train(ctx context.Context, ds *Dataset, cfg forest.Config, now time.Time) (*artifact.Artifact, error) {
	f, err := forest.Fit(ctx, ds.X, ds.Y, cfg)
	if err != nil {
		return nil, err
	}
	a := artifact.New(f, cfg, ds.Len(), now)
	a.Metrics, err = evaluate(f, ds)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// evaluate reports in-sample fit quality.
func evaluate(f *forest.Forest, ds *Dataset) (artifact.TrainingMetrics, error) {
	var mean float64
	for _, y := range ds.Y {
		mean += y
	}
	mean /= float64(ds.Len())
	var absErr, ssRes, ssTot float64
	for i, x := range ds.X {
		p, err := f.Predict(x)
		if err != nil {
			return artifact.TrainingMetrics{}, err
		}
		d := ds.Y[i] - p
		absErr += math.Abs(d)
		ssRes += d * d
		ssTot += (ds.Y[i] - mean) * (ds.Y[i] - mean)
	}
	m := artifact.TrainingMetrics{MAE: absErr / float64(ds.Len()), R2: 1}
	if ssTot > 0 {
		m.R2 = 1 - ssRes/ssTot
	}
	return m, nil
}

// Run loads the dataset, trains, and overwrites the stored artifact.
func Run(ctx context.Context, datasetPath string, store artifact.Store, cfg forest.Config, logger *slog.Logger) (*artifact.Artifact, error) {
	ds, err := LoadDatasetFile(datasetPath)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("dataset loaded", "path", datasetPath, "records", ds.Len())
	}
	started := time.Now()
	a, err := Train(ctx, ds, cfg, started)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	if err := store.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	if logger != nil {
		logger.Info("model trained",
			"location", store.Location(),
			"trees", len(a.Model.Trees),
			"seed", cfg.Seed,
			"mae", a.Metrics.MAE,
			"r2", a.Metrics.R2,
			"duration", time.Since(started).String(),
		)
	}
	return a, nil
}
