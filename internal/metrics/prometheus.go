package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "document_exporter"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once         sync.Once
	jobsCreated  *prom.CounterVec
	jobOutcomes  *prom.CounterVec
	jobDuration  *prom.HistogramVec
	documents    *prom.CounterVec
	syncs        *prom.CounterVec
	jobsInFlight prom.Gauge
}

// NewPrometheusRecorder constructs and registers the metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.jobsCreated = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_created_total",
			Help:      "Export jobs accepted, by format",
		}, []string{"format"})
		pr.jobOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "job_outcomes_total",
			Help:      "Terminal export jobs by integration type and outcome",
		}, []string{"integration_type", "outcome"})
		pr.jobDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time from dispatch to terminal state",
			Buckets:   prom.DefBuckets,
		}, []string{"integration_type"})
		pr.documents = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "document_transfers_total",
			Help:      "Document transfers by integration type and result",
		}, []string{"integration_type", "result"})
		pr.syncs = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "integration_syncs_total",
			Help:      "Integration sync cycles by result",
		}, []string{"integration_type", "result"})
		pr.jobsInFlight = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Export jobs currently being dispatched",
		})
		reg.MustRegister(pr.jobsCreated, pr.jobOutcomes, pr.jobDuration, pr.documents, pr.syncs, pr.jobsInFlight)
	})
	return pr
}

func (p *PrometheusRecorder) IncJobCreated(format string) {
	if p == nil || p.jobsCreated == nil {
		return
	}
	p.jobsCreated.WithLabelValues(format).Inc()
}

func (p *PrometheusRecorder) IncJobOutcome(integrationType, outcome string) {
	if p == nil || p.jobOutcomes == nil {
		return
	}
	p.jobOutcomes.WithLabelValues(integrationType, outcome).Inc()
}

func (p *PrometheusRecorder) ObserveJobDuration(integrationType string, d time.Duration) {
	if p == nil || p.jobDuration == nil {
		return
	}
	p.jobDuration.WithLabelValues(integrationType).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncDocumentResult(integrationType, result string) {
	if p == nil || p.documents == nil {
		return
	}
	p.documents.WithLabelValues(integrationType, result).Inc()
}

func (p *PrometheusRecorder) IncIntegrationSync(integrationType, result string) {
	if p == nil || p.syncs == nil {
		return
	}
	p.syncs.WithLabelValues(integrationType, result).Inc()
}

func (p *PrometheusRecorder) SetJobsInFlight(n int) {
	if p == nil || p.jobsInFlight == nil {
		return
	}
	p.jobsInFlight.Set(float64(n))
}

// HTTPHandler serves the metrics of reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
