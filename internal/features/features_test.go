package features

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rockguard/internal/model"
)

func sampleReading() model.Reading {
	return model.Reading{
		Temperature:  20,
		Humidity:     50,
		Vibration:    2,
		AirQuality:   200,
		Rainfall:     10,
		SoilMoisture: 15,
		WindSpeed:    5,
	}
}

func TestVectorCanonicalOrder(t *testing.T) {
	got, err := Vector(sampleReading())
	if err != nil {
		t.Fatalf("vector: %v", err)
	}
	want := []float64{20, 50, 2, 200, 10, 15, 5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("vector mismatch (-want +got):\n%s", diff)
	}
}

func TestNamesMatchSchema(t *testing.T) {
	want := []string{"temperature", "humidity", "vibration", "air_quality", "rainfall", "soil_moisture", "wind_speed"}
	if diff := cmp.Diff(want, Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestSwappingFieldsChangesVector(t *testing.T) {
	base := sampleReading()
	swapped := base
	swapped.Temperature, swapped.Humidity = base.Humidity, base.Temperature
	a, _ := Vector(base)
	b, _ := Vector(swapped)
	if cmp.Equal(a, b) {
		t.Fatalf("expected swapped reading to produce a different vector")
	}
}

func TestVectorRejectsNonFinite(t *testing.T) {
	r := sampleReading()
	r.Rainfall = math.NaN()
	_, err := Vector(r)
	var invalid *InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if invalid.Field != "rainfall" {
		t.Fatalf("field: %s", invalid.Field)
	}
}

func TestFromVectorRoundTrip(t *testing.T) {
	vec, _ := Vector(sampleReading())
	r, err := FromVector(vec)
	if err != nil {
		t.Fatalf("from vector: %v", err)
	}
	if diff := cmp.Diff(sampleReading(), r); diff != "" {
		t.Fatalf("reading mismatch (-want +got):\n%s", diff)
	}
	if _, err := FromVector(vec[:6]); err == nil {
		t.Fatalf("expected error for short vector")
	}
}

func TestFromMapCoercesTypes(t *testing.T) {
	obj := map[string]any{
		"temperature":   20,
		"Humidity":      "50",
		"vibration":     2.0,
		"air_quality":   int64(200),
		"rainfall":      "10.0",
		"soil_moisture": float32(15),
		"wind_speed":    5,
		"station":       "north-ridge",
	}
	r, err := FromMap(obj)
	if err != nil {
		t.Fatalf("from map: %v", err)
	}
	if diff := cmp.Diff(sampleReading(), r); diff != "" {
		t.Fatalf("reading mismatch (-want +got):\n%s", diff)
	}
}

func TestFromMapMissingField(t *testing.T) {
	obj := map[string]any{"temperature": 20}
	_, err := FromMap(obj)
	var invalid *InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if invalid.Field != "humidity" || invalid.Reason != "missing" {
		t.Fatalf("unexpected error: %v", invalid)
	}
}

func TestParseJSONRejectsNonNumeric(t *testing.T) {
	body := `{"temperature":20,"humidity":"wet","vibration":2,"air_quality":200,"rainfall":10,"soil_moisture":15,"wind_speed":5}`
	_, err := ParseJSON([]byte(body))
	var invalid *InvalidInputError
	if !errors.As(err, &invalid) || invalid.Field != "humidity" {
		t.Fatalf("expected humidity InvalidInputError, got %v", err)
	}
	if _, err := ParseJSON([]byte("not json")); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError for bad json, got %v", err)
	}
}
