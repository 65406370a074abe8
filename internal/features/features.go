// Package features turns a Reading into the ordered vector the risk model
// consumes. Schema is the only place the column order is written down; the
// trainer selects dataset columns through Names, so inference and training
// cannot drift apart.
package features

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"rockguard/internal/model"
)

type Feature int

const (
	Temperature Feature = iota
	Humidity
	Vibration
	AirQuality
	Rainfall
	SoilMoisture
	WindSpeed
)

// Schema is the canonical model input order.
var Schema = [...]Feature{
	Temperature,
	Humidity,
	Vibration,
	AirQuality,
	Rainfall,
	SoilMoisture,
	WindSpeed,
}

// Count is the length of every feature vector.
const Count = len(Schema)

var names = [...]string{
	Temperature:  "temperature",
	Humidity:     "humidity",
	Vibration:    "vibration",
	AirQuality:   "air_quality",
	Rainfall:     "rainfall",
	SoilMoisture: "soil_moisture",
	WindSpeed:    "wind_speed",
}

func (f Feature) String() string {
	if f < 0 || int(f) >= len(names) {
		return "feature(" + strconv.Itoa(int(f)) + ")"
	}
	return names[f]
}

// Names returns the column names in Schema order.
func Names() []string {
	out := make([]string, 0, Count)
	for _, f := range Schema {
		out = append(out, f.String())
	}
	return out
}

// InvalidInputError reports a missing or unusable measurement.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func value(r model.Reading, f Feature) float64 {
	switch f {
	case Temperature:
		return r.Temperature
	case Humidity:
		return r.Humidity
	case Vibration:
		return r.Vibration
	case AirQuality:
		return r.AirQuality
	case Rainfall:
		return r.Rainfall
	case SoilMoisture:
		return r.SoilMoisture
	case WindSpeed:
		return r.WindSpeed
	}
	return math.NaN()
}

func set(r *model.Reading, f Feature, v float64) {
	switch f {
	case Temperature:
		r.Temperature = v
	case Humidity:
		r.Humidity = v
	case Vibration:
		r.Vibration = v
	case AirQuality:
		r.AirQuality = v
	case Rainfall:
		r.Rainfall = v
	case SoilMoisture:
		r.SoilMoisture = v
	case WindSpeed:
		r.WindSpeed = v
	}
}

// Vector lays the reading out in Schema order.
func Vector(r model.Reading) ([]float64, error) {
	out := make([]float64, 0, Count)
	for _, f := range Schema {
		v := value(r, f)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &InvalidInputError{Field: f.String(), Reason: "not a finite number"}
		}
		out = append(out, v)
	}
	return out, nil
}

func FromVector(vec []float64) (model.Reading, error) {
	if len(vec) != Count {
		return model.Reading{}, &InvalidInputError{Field: "vector", Reason: fmt.Sprintf("expected %d values, got %d", Count, len(vec))}
	}
	var r model.Reading
	for i, f := range Schema {
		if math.IsNaN(vec[i]) || math.IsInf(vec[i], 0) {
			return model.Reading{}, &InvalidInputError{Field: f.String(), Reason: "not a finite number"}
		}
		set(&r, f, vec[i])
	}
	return r, nil
}

// FromMap builds a Reading from loosely typed input such as decoded JSON.
// Keys are matched case-insensitively; unknown keys are ignored.
func FromMap(obj map[string]any) (model.Reading, error) {
	lowered := make(map[string]any, len(obj))
	for k, v := range obj {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}
	var r model.Reading
	for _, f := range Schema {
		raw, ok := lowered[f.String()]
		if !ok || raw == nil {
			return model.Reading{}, &InvalidInputError{Field: f.String(), Reason: "missing"}
		}
		v, err := toFloat(raw)
		if err != nil {
			return model.Reading{}, &InvalidInputError{Field: f.String(), Reason: err.Error()}
		}
		set(&r, f, v)
	}
	return r, nil
}

func ParseJSON(data []byte) (model.Reading, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return model.Reading{}, &InvalidInputError{Field: "body", Reason: err.Error()}
	}
	return FromMap(obj)
}

func toFloat(raw any) (float64, error) {
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case int32:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", n.String())
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", n)
		}
		v = f
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return v, nil
}
