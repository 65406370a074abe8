package model

import "time"

type Status string

const (
	StatusNormal Status = "Normal"
	StatusHigh   Status = "High"
)

// Classify reports High only when value strictly exceeds threshold.
func Classify(value, threshold float64) Status {
	if value > threshold {
		return StatusHigh
	}
	return StatusNormal
}

// Reading is one set of calibrated environmental measurements.
type Reading struct {
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
	Vibration    float64 `json:"vibration"`
	AirQuality   float64 `json:"air_quality"`
	Rainfall     float64 `json:"rainfall"`
	SoilMoisture float64 `json:"soil_moisture"`
	WindSpeed    float64 `json:"wind_speed"`
}

type MetricReport struct {
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	Threshold   float64 `json:"threshold"`
	Status      Status  `json:"status"`
	LastUpdated string  `json:"lastUpdated"`
}

const (
	MetricRainfall           = "rainfall"
	MetricCumulativeRainfall = "cumulativeRainfall"
	MetricTemperature        = "temperature"
	MetricTemperatureRange   = "temperatureRange"
	MetricVibration          = "vibration"
	MetricPorePressure       = "porePressure"
	MetricHumidity           = "humidity"
)

// RiskReport is the dashboard payload. Field names are a fixed contract.
type RiskReport struct {
	Rainfall           MetricReport `json:"rainfall"`
	CumulativeRainfall MetricReport `json:"cumulativeRainfall"`
	Temperature        MetricReport `json:"temperature"`
	TemperatureRange   MetricReport `json:"temperatureRange"`
	Vibration          MetricReport `json:"vibration"`
	PorePressure       MetricReport `json:"porePressure"`
	Humidity           MetricReport `json:"humidity"`
	RiskProbability    float64      `json:"riskProbability"`
}

func (r RiskReport) Metrics() map[string]MetricReport {
	return map[string]MetricReport{
		MetricRainfall:           r.Rainfall,
		MetricCumulativeRainfall: r.CumulativeRainfall,
		MetricTemperature:        r.Temperature,
		MetricTemperatureRange:   r.TemperatureRange,
		MetricVibration:          r.Vibration,
		MetricPorePressure:       r.PorePressure,
		MetricHumidity:           r.Humidity,
	}
}

type ReportRecord struct {
	ID          string     `json:"id"`
	GeneratedAt time.Time  `json:"generated_at"`
	Source      string     `json:"source"`
	Reading     Reading    `json:"reading"`
	Report      RiskReport `json:"report"`
}

// Sample is a Reading tagged with the ingest source that produced it.
type Sample struct {
	Reading Reading
	Source  string
}
