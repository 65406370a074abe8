package risk

import "rockguard/internal/model"

type Threshold struct {
	Metric    string  `json:"metric"`
	Unit      string  `json:"unit"`
	Threshold float64 `json:"threshold"`
	Derived   bool    `json:"derived"`
}

var thresholds = []Threshold{
	{Metric: model.MetricRainfall, Unit: "mm", Threshold: 50},
	{Metric: model.MetricCumulativeRainfall, Unit: "mm", Threshold: 100, Derived: true},
	{Metric: model.MetricTemperature, Unit: "°C", Threshold: 28},
	{Metric: model.MetricTemperatureRange, Unit: "°C", Threshold: 10, Derived: true},
	{Metric: model.MetricVibration, Unit: "mm/s", Threshold: 7},
	{Metric: model.MetricPorePressure, Unit: "kPa", Threshold: 80, Derived: true},
	{Metric: model.MetricHumidity, Unit: "%", Threshold: 70},
}

// Thresholds returns a copy of the fixed report table in report order.
func Thresholds() []Threshold {
	out := make([]Threshold, len(thresholds))
	copy(out, thresholds)
	return out
}

func lookup(metric string) Threshold {
	for _, t := range thresholds {
		if t.Metric == metric {
			return t
		}
	}
	panic("risk: no threshold for " + metric)
}

// Ranges of the simulated derived inputs.
const (
	cumulativeExtraMax  = 50.0
	temperatureRangeMin = 5.0
	temperatureRangeMax = 15.0
	porePressureMax     = 100.0
)
