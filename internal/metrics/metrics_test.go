package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"rockguard/internal/model"
)

func TestRecorderCountsReports(t *testing.T) {
	r := NewRecorder()
	report := model.RiskReport{
		Rainfall:        model.MetricReport{Status: model.StatusHigh},
		Temperature:     model.MetricReport{Status: model.StatusNormal},
		RiskProbability: 0.4,
	}
	r.ObserveReport(report, 2*time.Millisecond)
	r.ObserveReport(report, 3*time.Millisecond)
	r.ObserveError("model_inference")

	if got := testutil.ToFloat64(r.reports); got != 2 {
		t.Fatalf("reports_total = %v", got)
	}
	if got := testutil.ToFloat64(r.metricStatus.WithLabelValues(model.MetricRainfall, "High")); got != 2 {
		t.Fatalf("rainfall High = %v", got)
	}
	if got := testutil.ToFloat64(r.inferenceErrors.WithLabelValues("model_inference")); got != 1 {
		t.Fatalf("inference errors = %v", got)
	}
}

func TestRecorderHandler(t *testing.T) {
	r := NewRecorder()
	r.ObserveReport(model.RiskReport{RiskProbability: 0.2}, time.Millisecond)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rockguard_reports_total 1") {
		t.Fatalf("missing counter in output")
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveReport(model.RiskReport{}, time.Millisecond)
	r.ObserveError("x")
	if r.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
}
