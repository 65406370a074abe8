// Package engine turns ingested readings into stored, published risk reports.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"rockguard/internal/config"
	"rockguard/internal/features"
	"rockguard/internal/history"
	"rockguard/internal/metrics"
	"rockguard/internal/model"
	"rockguard/internal/risk"
	"rockguard/internal/storage"
)

type Assembler interface {
	Assemble(ctx context.Context, reading model.Reading) (model.RiskReport, error)
}

type Publisher interface {
	Publish(ctx context.Context, rec model.ReportRecord) error
}

type Stats struct {
	Processed  uint64    `json:"processed"`
	Failed     uint64    `json:"failed"`
	Duplicates uint64    `json:"duplicates"`
	Started    time.Time `json:"started"`
}

type Engine struct {
	logger    *slog.Logger
	assembler Assembler
	history   *history.Store
	store     storage.Store
	publisher Publisher
	metrics   *metrics.Recorder
	cfg       config.EngineConfig
	now       func() time.Time
	started   time.Time
	cooldown  *Cooldown
	deDupe    *DedupeCache

	processed  atomic.Uint64
	failed     atomic.Uint64
	duplicates atomic.Uint64
}

// NewEngine wires the pipeline. store, publisher and rec may be nil.
func NewEngine(cfg config.EngineConfig, logger *slog.Logger, assembler Assembler, historyStore *history.Store, store storage.Store, publisher Publisher, rec *metrics.Recorder) *Engine {
	if historyStore == nil {
		historyStore = history.NewStore(0)
	}
	return &Engine{
		logger:    logger,
		assembler: assembler,
		history:   historyStore,
		store:     store,
		publisher: publisher,
		metrics:   rec,
		cfg:       cfg,
		now:       time.Now,
		started:   time.Now().UTC(),
		cooldown:  NewCooldown(),
		deDupe:    NewDedupeCache(),
	}
}

func (e *Engine) Start(ctx context.Context, in <-chan model.Sample) {
	go func() {
		for {
			select {
			case s := <-in:
				_, _ = e.ProcessSample(ctx, s)
			case <-ctx.Done():
				return
			}
		}
	}()
}

var ErrDuplicate = errors.New("duplicate reading")

// ProcessSample drops repeats of the same reading from the same source within
// the dedupe window, then processes it.
func (e *Engine) ProcessSample(ctx context.Context, s model.Sample) (model.ReportRecord, error) {
	if e.cfg.DedupeWindow > 0 {
		if key := hashSample(s); key != "" && e.deDupe.Seen(key, e.now().UTC(), e.cfg.DedupeWindow) {
			e.duplicates.Add(1)
			if e.logger != nil {
				e.logger.Debug("duplicate reading dropped", "source", s.Source)
			}
			return model.ReportRecord{}, ErrDuplicate
		}
	}
	return e.Process(ctx, s.Reading, s.Source)
}

// Process assembles a report for reading and records it. Storage and publish
// failures are logged; only assembly failures are returned.
func (e *Engine) Process(ctx context.Context, reading model.Reading, source string) (model.ReportRecord, error) {
	begin := time.Now()
	report, err := e.assembler.Assemble(ctx, reading)
	if err != nil {
		e.failed.Add(1)
		e.metrics.ObserveError(errorKind(err))
		if e.logger != nil {
			e.logger.Warn("report assembly failed", "source", source, "err", err)
		}
		return model.ReportRecord{}, err
	}
	e.metrics.ObserveReport(report, time.Since(begin))
	e.processed.Add(1)

	rec := model.ReportRecord{
		ID:          uuid.NewString(),
		GeneratedAt: e.now().UTC(),
		Source:      source,
		Reading:     reading,
		Report:      report,
	}
	e.history.Add(rec)
	e.warnIfHigh(rec)

	if e.store != nil {
		if err := e.store.SaveReport(ctx, rec); err != nil && e.logger != nil {
			e.logger.Error("report store failed", "id", rec.ID, "err", err)
		}
	}
	if e.publisher != nil {
		if err := e.publisher.Publish(ctx, rec); err != nil && e.logger != nil {
			e.logger.Error("report publish failed", "id", rec.ID, "err", err)
		}
	}
	return rec, nil
}

func (e *Engine) warnIfHigh(rec model.ReportRecord) {
	if e.logger == nil {
		return
	}
	high := highMetrics(rec.Report)
	if len(high) == 0 {
		return
	}
	if !e.cooldown.AllowKey(rec.Source+"|"+strings.Join(high, ","), e.now().UTC(), e.cfg.AlertCooldown) {
		return
	}
	e.logger.Warn("metrics above threshold",
		"id", rec.ID,
		"source", rec.Source,
		"metrics", high,
		"risk_probability", rec.Report.RiskProbability,
	)
}

func highMetrics(r model.RiskReport) []string {
	var out []string
	byName := r.Metrics()
	for _, t := range risk.Thresholds() {
		if byName[t.Metric].Status == model.StatusHigh {
			out = append(out, t.Metric)
		}
	}
	return out
}

func errorKind(err error) string {
	var inv *features.InvalidInputError
	var inf *risk.ModelInferenceError
	switch {
	case errors.As(err, &inv):
		return "invalid_input"
	case errors.As(err, &inf):
		return "model_inference"
	default:
		return "other"
	}
}

func (e *Engine) History() *history.Store {
	return e.history
}

func (e *Engine) Stats() Stats {
	return Stats{
		Processed:  e.processed.Load(),
		Failed:     e.failed.Load(),
		Duplicates: e.duplicates.Load(),
		Started:    e.started,
	}
}

// Reset clears in-memory state. Persisted reports are kept.
func (e *Engine) Reset() {
	e.history.Clear()
	e.cooldown.Reset()
	e.deDupe.Reset()
}
