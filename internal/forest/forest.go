// Package forest implements a bagged ensemble of regression trees.
package forest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	Trees          int    `json:"trees" yaml:"trees"`
	Seed           uint64 `json:"seed" yaml:"seed"`
	MaxDepth       int    `json:"max_depth" yaml:"max_depth"`
	MinSamplesLeaf int    `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	MaxFeatures    int    `json:"max_features" yaml:"max_features"`
	Workers        int    `json:"workers" yaml:"workers"`
}

func DefaultConfig() Config {
	return Config{
		Trees:          100,
		Seed:           42,
		MinSamplesLeaf: 1,
	}
}

type Forest struct {
	Features int     `json:"features"`
	Trees    []*Tree `json:"trees"`
}

// Fit grows cfg.Trees trees on bootstrap resamples of (x, y). Tree i draws
// from its own stream seeded by (cfg.Seed, i), so the result does not depend
// on how the work is scheduled across workers.
func Fit(ctx context.Context, x [][]float64, y []float64, cfg Config) (*Forest, error) {
	if len(x) == 0 {
		return nil, errors.New("forest: empty training set")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("forest: %d rows but %d labels", len(x), len(y))
	}
	width := len(x[0])
	if width == 0 {
		return nil, errors.New("forest: rows have no features")
	}
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("forest: row %d has %d features, want %d", i, len(row), width)
		}
	}
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.MinSamplesLeaf <= 0 {
		cfg.MinSamplesLeaf = 1
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*Tree, cfg.Trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)))
			sample := make([]int, len(x))
			for k := range sample {
				sample[k] = rng.IntN(len(x))
			}
			trees[i] = growTree(x, y, sample, cfg, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Forest{Features: width, Trees: trees}, nil
}

// Predict averages the tree outputs for one feature vector.
func (f *Forest) Predict(x []float64) (float64, error) {
	if f == nil || len(f.Trees) == 0 {
		return 0, errors.New("forest: model has no trees")
	}
	if len(x) != f.Features {
		return 0, fmt.Errorf("forest: got %d features, want %d", len(x), f.Features)
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("forest: feature %d is not finite", i)
		}
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.Trees)), nil
}

// Validate checks structural integrity of a decoded forest.
func (f *Forest) Validate() error {
	if f == nil || len(f.Trees) == 0 {
		return errors.New("forest: no trees")
	}
	if f.Features <= 0 {
		return errors.New("forest: feature count must be > 0")
	}
	for ti, t := range f.Trees {
		if t == nil || len(t.Nodes) == 0 {
			return fmt.Errorf("forest: tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Left < 0 {
				continue
			}
			if n.Feature < 0 || n.Feature >= f.Features {
				return fmt.Errorf("forest: tree %d node %d splits on feature %d", ti, ni, n.Feature)
			}
			if n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("forest: tree %d node %d has invalid children", ti, ni)
			}
		}
	}
	return nil
}
