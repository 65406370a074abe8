package ingest

import (
	"context"
	"log/slog"
	"time"

	"rockguard/internal/config"
	"rockguard/internal/model"
	"rockguard/internal/risk"
)

type span struct{ lo, hi float64 }

// Ranges of the bench sensor rig used for demos.
var (
	temperatureSpan  = span{15, 30}
	humiditySpan     = span{40, 90}
	vibrationSpan    = span{0, 10}
	airQualitySpan   = span{100, 500}
	rainfallSpan     = span{0, 100}
	soilMoistureSpan = span{5, 40}
	windSpeedSpan    = span{0, 20}
)

// Simulator draws uniformly distributed readings.
type Simulator struct {
	src risk.Source
}

func NewSimulator(src risk.Source) *Simulator {
	if src == nil {
		src = risk.NewSeededSource(0)
	}
	return &Simulator{src: src}
}

func (s *Simulator) draw(sp span) float64 {
	return sp.lo + s.src.Float64()*(sp.hi-sp.lo)
}

func (s *Simulator) Next() model.Reading {
	return model.Reading{
		Temperature:  s.draw(temperatureSpan),
		Humidity:     s.draw(humiditySpan),
		Vibration:    s.draw(vibrationSpan),
		AirQuality:   s.draw(airQualitySpan),
		Rainfall:     s.draw(rainfallSpan),
		SoilMoisture: s.draw(soilMoistureSpan),
		WindSpeed:    s.draw(windSpeedSpan),
	}
}

// StartSimulator feeds a simulated reading every interval until ctx ends.
func StartSimulator(ctx context.Context, cfg config.SimulationConfig, sim *Simulator, out chan<- model.Sample, logger *slog.Logger) {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("simulator disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("simulator enabled", "interval", cfg.Interval.String())
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				SendNonBlocking(ctx, out, model.Sample{Reading: sim.Next(), Source: SourceSimulator}, logger)
			case <-ctx.Done():
				return
			}
		}
	}()
}
