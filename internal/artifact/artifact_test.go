package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"rockguard/internal/config"
	"rockguard/internal/features"
	"rockguard/internal/forest"
)

func trainedArtifact(t *testing.T) *Artifact {
	t.Helper()
	x := make([][]float64, 0, 40)
	y := make([]float64, 0, 40)
	for i := 0; i < 40; i++ {
		v := float64(i)
		x = append(x, []float64{15 + v/4, 40 + v, v / 4, 100 + 10*v, v * 2, 5 + v/2, v / 2})
		y = append(y, v/40)
	}
	cfg := forest.Config{Trees: 8, Seed: 42}
	f, err := forest.Fit(context.Background(), x, y, cfg)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	return New(f, cfg, len(x), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestFileStoreRoundTrip(t *testing.T) {
	a := trainedArtifact(t)
	path := filepath.Join(t.TempDir(), "models", "rockfall_model.json.zst")
	store := NewFileStore(path)
	if err := store.Save(context.Background(), a); err != nil {
		t.Fatalf("save: %v", err)
	}
	sample := []float64{20, 50, 2, 200, 10, 15, 5}
	want, _ := a.Predict(sample)
	for cycle := 0; cycle < 2; cycle++ {
		loaded, err := store.Load(context.Background())
		if err != nil {
			t.Fatalf("load cycle %d: %v", cycle, err)
		}
		got, err := loaded.Predict(sample)
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		if got != want {
			t.Fatalf("cycle %d prediction %v, want %v", cycle, got, want)
		}
		if loaded.Samples != 40 || !loaded.TrainedAt.Equal(a.TrainedAt) {
			t.Fatalf("metadata not preserved: %+v", loaded)
		}
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected only the artifact in dir, got %d entries", len(entries))
	}
}

func TestFileStoreMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.zst"))
	_, err := store.Load(context.Background())
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped ErrNotExist, got %v", err)
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.zst")
	if err := os.WriteFile(path, []byte("definitely not a model"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := NewFileStore(path).Load(context.Background())
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
}

func TestDecodeRejectsSchemaMismatch(t *testing.T) {
	a := trainedArtifact(t)
	a.Features = []string{"humidity", "temperature", "vibration", "air_quality", "rainfall", "soil_moisture", "wind_speed"}
	var buf bytes.Buffer
	if err := Encode(&buf, a); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(&buf); err == nil {
		t.Fatalf("expected schema mismatch error")
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	a := trainedArtifact(t)
	a.Version = 99
	var buf bytes.Buffer
	if err := Encode(&buf, a); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(&buf); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestEncodedPayloadIsCompressedJSON(t *testing.T) {
	a := trainedArtifact(t)
	var buf bytes.Buffer
	if err := Encode(&buf, a); err != nil {
		t.Fatalf("encode: %v", err)
	}
	zr, err := zstd.NewReader(&buf)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer zr.Close()
	var raw map[string]any
	if err := json.NewDecoder(zr).Decode(&raw); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(raw["features"].([]any)) != features.Count {
		t.Fatalf("features: %v", raw["features"])
	}
}

func TestNewStoreSelectsBackend(t *testing.T) {
	s, err := NewStore(config.ModelConfig{Storage: "file", Path: "m.zst"})
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	if s.Location() != "m.zst" {
		t.Fatalf("location: %s", s.Location())
	}
	if _, err := NewStore(config.ModelConfig{Storage: "s3"}); err == nil {
		t.Fatalf("expected error for incomplete s3 config")
	}
	if _, err := NewStore(config.ModelConfig{Storage: "ftp"}); err == nil {
		t.Fatalf("expected error for unknown storage")
	}
}
