package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solvency/internal/domain"
)

// Recorder implements usecase.StageObserver on a private registry.
type Recorder struct {
	registry      *prometheus.Registry
	stageRuns     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	publishes     *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solvency",
			Name:      "stage_runs_total",
			Help:      "Pipeline stage executions by stage and status.",
		}, []string{"stage", "status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "solvency",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage wall time.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"stage"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solvency",
			Name:      "publish_outcomes_total",
			Help:      "Registry publish outcomes.",
		}, []string{"status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solvency",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
	r.registry.MustRegister(r.stageRuns, r.stageDuration, r.publishes, r.httpRequests)
	return r
}

func (r *Recorder) ObserveStage(stage domain.Stage, status domain.StepStatus, elapsed time.Duration) {
	r.stageRuns.WithLabelValues(string(stage), string(status)).Inc()
	if status != domain.StepSkipped {
		r.stageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
	}
}

func (r *Recorder) ObservePublish(status string) {
	r.publishes.WithLabelValues(status).Inc()
}

func (r *Recorder) ObserveRequest(route string, code string) {
	r.httpRequests.WithLabelValues(route, code).Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
