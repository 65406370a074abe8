// Package risk scores a Reading with a trained model and assembles the
// dashboard report around the resulting probability.
package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"rockguard/internal/features"
	"rockguard/internal/model"
)

// TimestampLayout is the lastUpdated format shared by every metric in a report.
const TimestampLayout = "2006-01-02T15:04:05"

type Predictor interface {
	Predict(x []float64) (float64, error)
}

// Source supplies uniform values in [0, 1) for the derived metrics. It must
// be safe for concurrent use when the Assembler is shared.
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// NewSeededSource returns a reproducible Source. Seed 0 selects the
// process-wide generator.
func NewSeededSource(seed uint64) Source {
	if seed == 0 {
		return globalSource{}
	}
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// ModelInferenceError wraps any failure to get a usable score from the model.
type ModelInferenceError struct {
	Err error
}

func (e *ModelInferenceError) Error() string {
	return "model inference failed: " + e.Err.Error()
}

func (e *ModelInferenceError) Unwrap() error { return e.Err }

type Assembler struct {
	predictor Predictor
	source    Source
	now       func() time.Time
	timeout   time.Duration
	mode      Mode
	logger    *slog.Logger
}

type Option func(*Assembler)

func WithSource(src Source) Option {
	return func(a *Assembler) {
		if src != nil {
			a.source = src
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// WithTimeout bounds each model call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(a *Assembler) { a.timeout = d }
}

func WithNormalization(m Mode) Option {
	return func(a *Assembler) { a.mode = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) { a.logger = logger }
}

func New(predictor Predictor, opts ...Option) *Assembler {
	a := &Assembler{
		predictor: predictor,
		source:    globalSource{},
		now:       time.Now,
		mode:      ModeLegacy,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Score runs the model and normalizes its output.
func (a *Assembler) Score(ctx context.Context, reading model.Reading) (float64, error) {
	vec, err := features.Vector(reading)
	if err != nil {
		return 0, err
	}
	raw, err := a.predict(ctx, vec)
	if err != nil {
		return 0, err
	}
	p := Normalize(raw, a.mode)
	if a.logger != nil {
		a.logger.Debug("risk scored", "raw", raw, "probability", p, "normalization", a.mode.String())
	}
	return p, nil
}

// Assemble produces a complete report or an error, never a partial report.
func (a *Assembler) Assemble(ctx context.Context, reading model.Reading) (model.RiskReport, error) {
	p, err := a.Score(ctx, reading)
	if err != nil {
		return model.RiskReport{}, err
	}
	ts := a.now().UTC().Format(TimestampLayout)

	cumulative := reading.Rainfall + a.uniform(0, cumulativeExtraMax)
	tempRange := a.uniform(temperatureRangeMin, temperatureRangeMax)
	pore := a.uniform(0, porePressureMax)

	return model.RiskReport{
		Rainfall:           metric(model.MetricRainfall, reading.Rainfall, ts),
		CumulativeRainfall: metric(model.MetricCumulativeRainfall, cumulative, ts),
		Temperature:        metric(model.MetricTemperature, reading.Temperature, ts),
		TemperatureRange:   metric(model.MetricTemperatureRange, tempRange, ts),
		Vibration:          metric(model.MetricVibration, reading.Vibration, ts),
		PorePressure:       metric(model.MetricPorePressure, pore, ts),
		Humidity:           metric(model.MetricHumidity, reading.Humidity, ts),
		RiskProbability:    p,
	}, nil
}

func (a *Assembler) uniform(lo, hi float64) float64 {
	return lo + a.source.Float64()*(hi-lo)
}

// metric classifies the unrounded value and rounds only for presentation.
func metric(name string, value float64, ts string) model.MetricReport {
	t := lookup(name)
	return model.MetricReport{
		Value:       Round2(value),
		Unit:        t.Unit,
		Threshold:   t.Threshold,
		Status:      model.Classify(value, t.Threshold),
		LastUpdated: ts,
	}
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (a *Assembler) predict(ctx context.Context, vec []float64) (float64, error) {
	if a.predictor == nil {
		return 0, &ModelInferenceError{Err: errors.New("no model loaded")}
	}
	if a.timeout <= 0 {
		return a.call(vec)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	type result struct {
		v   float64
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := a.call(vec)
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		// The model call is not interrupted; it finishes in the background
		// and its result is dropped into the buffered channel.
		return 0, &ModelInferenceError{Err: ctx.Err()}
	}
}

func (a *Assembler) call(vec []float64) (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ModelInferenceError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	v, err = a.predictor.Predict(vec)
	if err != nil {
		return 0, &ModelInferenceError{Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ModelInferenceError{Err: fmt.Errorf("non-finite score %v", v)}
	}
	return v, nil
}
