package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rockguard/internal/artifact"
	"rockguard/internal/config"
	"rockguard/internal/features"
	"rockguard/internal/forest"
	"rockguard/internal/model"
	"rockguard/internal/risk"
)

// syntheticCSV builds a seeded dataset whose label rises with vibration and
// rainfall and falls with soil moisture.
func syntheticCSV(n int, seed uint64) string {
	rng := rand.New(rand.NewPCG(seed, seed))
	var b strings.Builder
	b.WriteString("timestamp,temperature,humidity,vibration,air_quality,rainfall,soil_moisture,wind_speed,risk_probability\n")
	for i := 0; i < n; i++ {
		temp := 15 + rng.Float64()*15
		hum := 40 + rng.Float64()*50
		vib := rng.Float64() * 10
		aq := 100 + rng.Float64()*400
		rain := rng.Float64() * 100
		soil := 5 + rng.Float64()*35
		wind := rng.Float64() * 20
		label := 0.05*vib + 0.004*rain + 0.006*(40-soil)
		label = math.Max(0, math.Min(1, label))
		fmt.Fprintf(&b, "2026-01-01T00:%02d:00,%.3f,%.3f,%.3f,%.3f,%.3f,%.3f,%.3f,%.4f\n",
			i%60, temp, hum, vib, aq, rain, soil, wind, label)
	}
	return b.String()
}

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rockfall_training_data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDatasetSelectsSchemaColumns(t *testing.T) {
	csv := "wind_speed,station,rainfall,soil_moisture,air_quality,vibration,humidity,temperature,risk_probability\n" +
		"5,north,10,15,200,2,50,20,0.25\n"
	ds, err := LoadDataset(strings.NewReader(csv))
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, []float64{20, 50, 2, 200, 10, 15, 5}, ds.X[0])
	assert.Equal(t, 0.25, ds.Y[0])
}

func TestLoadDatasetMissingColumns(t *testing.T) {
	csv := "temperature,humidity,vibration,rainfall,risk_probability\n20,50,2,10,0.1\n"
	_, err := LoadDataset(strings.NewReader(csv))
	var schemaErr *DatasetSchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"air_quality", "soil_moisture", "wind_speed"}, schemaErr.Missing)
}

func TestLoadDatasetMissingLabel(t *testing.T) {
	csv := strings.Join(features.Names(), ",") + "\n20,50,2,200,10,15,5\n"
	_, err := LoadDataset(strings.NewReader(csv))
	var schemaErr *DatasetSchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{LabelColumn}, schemaErr.Missing)
}

func TestLoadDatasetMalformedCell(t *testing.T) {
	csv := strings.Join(append(features.Names(), LabelColumn), ",") + "\n" +
		"20,50,2,200,10,15,5,0.1\n" +
		"20,fifty,2,200,10,15,5,0.1\n"
	_, err := LoadDataset(strings.NewReader(csv))
	var schemaErr *DatasetSchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, 3, schemaErr.Row)
	assert.Equal(t, "humidity", schemaErr.Column)
}

func TestLoadDatasetRaggedAndEmpty(t *testing.T) {
	header := strings.Join(append(features.Names(), LabelColumn), ",") + "\n"
	var schemaErr *DatasetSchemaError
	_, err := LoadDataset(strings.NewReader(header + "20,50,2\n"))
	require.ErrorAs(t, err, &schemaErr)
	_, err = LoadDataset(strings.NewReader(header))
	require.ErrorAs(t, err, &schemaErr)
	_, err = LoadDataset(strings.NewReader(""))
	require.ErrorAs(t, err, &schemaErr)
}

func TestTrainReproducible(t *testing.T) {
	ds, err := LoadDataset(strings.NewReader(syntheticCSV(150, 11)))
	require.NoError(t, err)
	cfg := forest.Config{Trees: 20, Seed: 42, Workers: 4}
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	a, err := Train(context.Background(), ds, cfg, now)
	require.NoError(t, err)
	b, err := Train(context.Background(), ds, cfg, now)
	require.NoError(t, err)
	sample := []float64{22, 60, 8, 300, 80, 10, 12}
	pa, _ := a.Predict(sample)
	pb, _ := b.Predict(sample)
	assert.Equal(t, pa, pb)
	assert.Greater(t, a.Metrics.R2, 0.5)
	assert.Equal(t, 150, a.Samples)
	assert.Equal(t, features.Names(), a.Features)
}

func TestRunPersistsAndReloads(t *testing.T) {
	path := writeDataset(t, syntheticCSV(120, 5))
	store := artifact.NewFileStore(filepath.Join(t.TempDir(), "rockfall_model.json.zst"))
	cfg := forest.Config{Trees: 15, Seed: 42}
	trained, err := Run(context.Background(), path, store, cfg, nil)
	require.NoError(t, err)

	sample := []float64{25, 70, 6, 350, 60, 12, 9}
	want, err := trained.Predict(sample)
	require.NoError(t, err)
	for cycle := 0; cycle < 2; cycle++ {
		loaded, err := store.Load(context.Background())
		require.NoError(t, err)
		got, err := loaded.Predict(sample)
		require.NoError(t, err)
		assert.Equal(t, want, got, "load cycle %d", cycle)
	}

	retrained, err := Run(context.Background(), path, store, cfg, nil)
	require.NoError(t, err)
	again, _ := retrained.Predict(sample)
	assert.Equal(t, want, again)
}

func TestRunFailsOnSchemaError(t *testing.T) {
	path := writeDataset(t, "temperature,risk_probability\n20,0.1\n")
	store := artifact.NewFileStore(filepath.Join(t.TempDir(), "model.zst"))
	_, err := Run(context.Background(), path, store, forest.DefaultConfig(), nil)
	var schemaErr *DatasetSchemaError
	require.ErrorAs(t, err, &schemaErr)
	_, err = store.Load(context.Background())
	require.Error(t, err, "no artifact should be written")
}

func TestEndToEndReport(t *testing.T) {
	path := writeDataset(t, syntheticCSV(200, 99))
	store := artifact.NewFileStore(filepath.Join(t.TempDir(), "rockfall_model.json.zst"))
	_, err := Run(context.Background(), path, store, forest.Config{Trees: 25, Seed: 42}, nil)
	require.NoError(t, err)
	loaded, err := store.Load(context.Background())
	require.NoError(t, err)

	reading := model.Reading{Temperature: 20, Humidity: 50, Vibration: 2, AirQuality: 200, Rainfall: 10, SoilMoisture: 15, WindSpeed: 5}
	assembler := risk.New(loaded, risk.WithSource(rand.New(rand.NewPCG(1, 2))))
	report, err := assembler.Assemble(context.Background(), reading)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, report.RiskProbability, 0.0)
	assert.LessOrEqual(t, report.RiskProbability, 1.0)

	metrics := report.Metrics()
	require.Len(t, metrics, 7)
	thresholds := map[string]float64{}
	for _, th := range risk.Thresholds() {
		thresholds[th.Metric] = th.Threshold
	}
	for name, m := range metrics {
		require.Contains(t, thresholds, name)
		assert.Equal(t, thresholds[name], m.Threshold, name)
		assert.NotEmpty(t, m.Unit, name)
		assert.Equal(t, metrics[model.MetricRainfall].LastUpdated, m.LastUpdated, name)
	}
	assert.Equal(t, model.StatusNormal, report.Rainfall.Status)
	assert.Equal(t, model.StatusNormal, report.Temperature.Status)
	assert.Equal(t, model.StatusNormal, report.Vibration.Status)
	assert.Equal(t, model.StatusNormal, report.Humidity.Status)
	assert.Equal(t, model.StatusNormal, report.CumulativeRainfall.Status, "rainfall 10 plus at most 50")
	if report.PorePressure.Value != 80 {
		assert.Equal(t, model.Classify(report.PorePressure.Value, 80), report.PorePressure.Status)
	}
}

func configForTest() config.TrainingConfig {
	return config.TrainingConfig{Trees: 30, Seed: 9, MaxDepth: 6, MinSamplesLeaf: 2, Workers: 2}
}

func TestForestConfigFromTraining(t *testing.T) {
	got := ForestConfig(configForTest())
	assert.Equal(t, forest.Config{Trees: 30, Seed: 9, MaxDepth: 6, MinSamplesLeaf: 2, Workers: 2}, got)
}

func TestErrorMessages(t *testing.T) {
	err := &DatasetSchemaError{Missing: []string{"wind_speed"}}
	assert.Contains(t, err.Error(), "wind_speed")
	err = &DatasetSchemaError{Row: 4, Column: "rainfall", Err: errors.New("bad")}
	assert.Contains(t, err.Error(), "row 4 column rainfall")
}
