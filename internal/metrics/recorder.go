// Package metrics exposes observability hooks for the export pipeline.
package metrics

import "time"

// Result labels shared by the counters.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultPartial = "partial"
	ResultSkipped = "skipped"
)

// Recorder receives pipeline events. Implementations forward them to
// Prometheus; NoopRecorder is used when metrics are not configured.
type Recorder interface {
	IncJobCreated(format string)
	// IncJobOutcome counts terminal jobs: success|partial|failed.
	IncJobOutcome(integrationType, outcome string)
	ObserveJobDuration(integrationType string, d time.Duration)
	IncDocumentResult(integrationType, result string)
	IncIntegrationSync(integrationType, result string)
	SetJobsInFlight(n int)
}

type NoopRecorder struct{}

func (NoopRecorder) IncJobCreated(string) {}
func (NoopRecorder) IncJobOutcome(string, string) {}
func (NoopRecorder) ObserveJobDuration(string, time.Duration) {}
func (NoopRecorder) IncDocumentResult(string, string) {}
func (NoopRecorder) IncIntegrationSync(string, string) {}
func (NoopRecorder) SetJobsInFlight(int) {}
