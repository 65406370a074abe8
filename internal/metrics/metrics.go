package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rockguard/internal/model"
)

// Recorder exposes pipeline counters on its own registry. A nil Recorder is a no-op.
type Recorder struct {
	registry          *prometheus.Registry
	reports           prometheus.Counter
	inferenceErrors   *prometheus.CounterVec
	metricStatus      *prometheus.CounterVec
	riskProbability   prometheus.Histogram
	inferenceDuration prometheus.Histogram
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		reports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rockguard",
			Name:      "reports_total",
			Help:      "Risk reports assembled.",
		}),
		inferenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rockguard",
			Name:      "inference_errors_total",
			Help:      "Failed report assemblies by kind.",
		}, []string{"kind"}),
		metricStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rockguard",
			Name:      "metric_status_total",
			Help:      "Metric classifications by metric and status.",
		}, []string{"metric", "status"}),
		riskProbability: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rockguard",
			Name:      "risk_probability",
			Help:      "Normalized risk probability of assembled reports.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		inferenceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rockguard",
			Name:      "inference_duration_seconds",
			Help:      "Time spent assembling a report.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	r.registry.MustRegister(
		r.reports,
		r.inferenceErrors,
		r.metricStatus,
		r.riskProbability,
		r.inferenceDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveReport(report model.RiskReport, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.reports.Inc()
	r.riskProbability.Observe(report.RiskProbability)
	r.inferenceDuration.Observe(elapsed.Seconds())
	for name, m := range report.Metrics() {
		r.metricStatus.WithLabelValues(name, string(m.Status)).Inc()
	}
}

func (r *Recorder) ObserveError(kind string) {
	if r == nil {
		return
	}
	r.inferenceErrors.WithLabelValues(kind).Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
