package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rockguard/internal/config"
	"rockguard/internal/features"
	"rockguard/internal/history"
	"rockguard/internal/metrics"
	"rockguard/internal/model"
	"rockguard/internal/risk"
	"rockguard/internal/storage"
)

type constModel float64

func (c constModel) Predict([]float64) (float64, error) { return float64(c), nil }

type failingModel struct{}

func (failingModel) Predict([]float64) (float64, error) { return 0, errors.New("tree missing") }

type halfSource struct{}

func (halfSource) Float64() float64 { return 0.5 }

type capturePublisher struct {
	recs []model.ReportRecord
	err  error
}

func (c *capturePublisher) Publish(_ context.Context, rec model.ReportRecord) error {
	if c.err != nil {
		return c.err
	}
	c.recs = append(c.recs, rec)
	return nil
}

func reading() model.Reading {
	return model.Reading{Temperature: 29, Humidity: 60, Vibration: 2, AirQuality: 200, Rainfall: 10, SoilMoisture: 15, WindSpeed: 5}
}

func newEngineForTest(t *testing.T, p risk.Predictor, cfg config.EngineConfig, store storage.Store, pub Publisher) (*Engine, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	asm := risk.New(p, risk.WithSource(halfSource{}))
	return NewEngine(cfg, logger, asm, history.NewStore(10), store, pub, metrics.NewRecorder()), &buf
}

func TestProcessRecordsReport(t *testing.T) {
	pub := &capturePublisher{}
	eng, _ := newEngineForTest(t, constModel(0.3), config.EngineConfig{}, nil, pub)
	rec, err := eng.Process(context.Background(), reading(), "api")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if rec.ID == "" || rec.Source != "api" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Report.RiskProbability != 0.3 {
		t.Fatalf("risk probability: %v", rec.Report.RiskProbability)
	}
	if rec.Report.Temperature.Status != model.StatusHigh {
		t.Fatalf("temperature 29 should be High")
	}
	latest, ok := eng.History().Latest()
	if !ok || latest.ID != rec.ID {
		t.Fatalf("history not updated")
	}
	if len(pub.recs) != 1 || pub.recs[0].ID != rec.ID {
		t.Fatalf("publish not called")
	}
	if s := eng.Stats(); s.Processed != 1 || s.Failed != 0 {
		t.Fatalf("stats: %+v", s)
	}
}

func TestProcessPersistsToStorage(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLite("file:" + filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	eng, _ := newEngineForTest(t, constModel(0.6), config.EngineConfig{}, store, nil)
	rec, err := eng.Process(ctx, reading(), "kafka")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	list, err := store.ListReports(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != rec.ID {
		t.Fatalf("stored records: %+v", list)
	}
}

func TestProcessFailuresAreNotRecorded(t *testing.T) {
	eng, _ := newEngineForTest(t, failingModel{}, config.EngineConfig{}, nil, nil)
	_, err := eng.Process(context.Background(), reading(), "api")
	var inf *risk.ModelInferenceError
	if !errors.As(err, &inf) {
		t.Fatalf("expected ModelInferenceError, got %v", err)
	}
	if eng.History().Len() != 0 {
		t.Fatalf("failed report must not reach history")
	}
	if s := eng.Stats(); s.Failed != 1 {
		t.Fatalf("stats: %+v", s)
	}
	if got := errorKind(err); got != "model_inference" {
		t.Fatalf("kind: %s", got)
	}
	if got := errorKind(&features.InvalidInputError{Field: "rainfall", Reason: "missing"}); got != "invalid_input" {
		t.Fatalf("kind: %s", got)
	}
}

func TestPublishErrorDoesNotFailProcess(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	eng, logs := newEngineForTest(t, constModel(0.1), config.EngineConfig{}, nil, pub)
	if _, err := eng.Process(context.Background(), reading(), "api"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.Contains(logs.String(), "report publish failed") {
		t.Fatalf("expected publish failure log")
	}
}

func TestProcessSampleDropsDuplicates(t *testing.T) {
	eng, _ := newEngineForTest(t, constModel(0.2), config.EngineConfig{DedupeWindow: time.Minute}, nil, nil)
	ctx := context.Background()
	s := model.Sample{Reading: reading(), Source: "kafka"}
	if _, err := eng.ProcessSample(ctx, s); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := eng.ProcessSample(ctx, s); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	s.Source = "tcp_stream"
	if _, err := eng.ProcessSample(ctx, s); err != nil {
		t.Fatalf("other source should pass: %v", err)
	}
	if st := eng.Stats(); st.Processed != 2 || st.Duplicates != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestHighMetricWarningRespectsCooldown(t *testing.T) {
	eng, logs := newEngineForTest(t, constModel(0.2), config.EngineConfig{AlertCooldown: time.Hour}, nil, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := eng.Process(ctx, reading(), "api"); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if n := strings.Count(logs.String(), "metrics above threshold"); n != 1 {
		t.Fatalf("expected one warning, got %d", n)
	}
}

func TestStartDrainsChannel(t *testing.T) {
	eng, _ := newEngineForTest(t, constModel(0.2), config.EngineConfig{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := make(chan model.Sample, 2)
	eng.Start(ctx, in)
	in <- model.Sample{Reading: reading(), Source: "simulator"}
	deadline := time.Now().Add(3 * time.Second)
	for eng.History().Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("sample not processed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCooldownAllowKey(t *testing.T) {
	c := NewCooldown()
	now := time.Now()
	if !c.AllowKey("k", now, time.Second) {
		t.Fatalf("first call should pass")
	}
	if c.AllowKey("k", now.Add(500*time.Millisecond), time.Second) {
		t.Fatalf("within cooldown should block")
	}
	if !c.AllowKey("k", now.Add(2*time.Second), time.Second) {
		t.Fatalf("after cooldown should pass")
	}
}
