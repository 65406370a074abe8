// Package artifact persists trained risk models.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/klauspost/compress/zstd"

	"rockguard/internal/features"
	"rockguard/internal/forest"
)

const FormatVersion = 1

type TrainingMetrics struct {
	MAE float64 `json:"mae"`
	R2  float64 `json:"r2"`
}

type Artifact struct {
	Version   int             `json:"version"`
	Features  []string        `json:"features"`
	TrainedAt time.Time       `json:"trained_at"`
	Samples   int             `json:"samples"`
	Config    forest.Config   `json:"config"`
	Metrics   TrainingMetrics `json:"metrics"`
	Model     *forest.Forest  `json:"model"`
}

func New(model *forest.Forest, cfg forest.Config, samples int, trainedAt time.Time) *Artifact {
	return &Artifact{
		Version:   FormatVersion,
		Features:  features.Names(),
		TrainedAt: trainedAt.UTC(),
		Samples:   samples,
		Config:    cfg,
		Model:     model,
	}
}

func (a *Artifact) Predict(x []float64) (float64, error) {
	if a == nil || a.Model == nil {
		return 0, errors.New("artifact has no model")
	}
	return a.Model.Predict(x)
}

// LoadError means the artifact could not be read or is unusable. It is fatal
// at startup: nothing can be scored without a model.
type LoadError struct {
	Location string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model artifact %s: %v", e.Location, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func Encode(w io.Writer, a *Artifact) error {
	if a == nil || a.Model == nil {
		return errors.New("artifact has no model")
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(zw).Encode(a); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	return zw.Close()
}

// Decode reads an artifact and checks it was trained on the current feature schema.
func Decode(r io.Reader) (*Artifact, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	var a Artifact
	if err := json.NewDecoder(zr).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported artifact version %d", a.Version)
	}
	if want := features.Names(); !slices.Equal(a.Features, want) {
		return nil, fmt.Errorf("feature schema mismatch: artifact %v, expected %v", a.Features, want)
	}
	if err := a.Model.Validate(); err != nil {
		return nil, err
	}
	if a.Model.Features != features.Count {
		return nil, fmt.Errorf("model expects %d features, schema has %d", a.Model.Features, features.Count)
	}
	return &a, nil
}
