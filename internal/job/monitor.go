package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/model"
)

const DefaultPollInterval = 2 * time.Second

// JobReader is what the Monitor polls.
type JobReader interface {
	GetJob(ctx context.Context, id string) (model.ExportJob, error)
}

// Monitor observes jobs by polling their record.
type Monitor struct {
	jobs     JobReader
	interval time.Duration
	log      *slog.Logger
}

func NewMonitor(jobs JobReader, interval time.Duration, log *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{jobs: jobs, interval: interval, log: log}
}

// Watch is the handle of one observation.
type Watch struct {
	cancel context.CancelFunc
	done   chan struct{}

	// mu is held while a callback runs.
	mu        sync.Mutex
	cancelled bool
}

// Cancel stops the observation. It waits for a callback in progress to return,
// and no callback starts after Cancel returns, so it must not be called from
// inside the callback. The job itself keeps running.
func (w *Watch) Cancel() {
	w.cancel()
	w.mu.Lock()
	w.cancelled = true
	w.mu.Unlock()
}

func (w *Watch) deliver(onUpdate func(model.ExportJob), job model.ExportJob) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled {
		return false
	}
	onUpdate(job)
	return true
}

// Done is closed once polling has stopped.
func (w *Watch) Done() <-chan struct{} { return w.done }

// Watch polls the job every interval and calls onUpdate whenever the record
// changed, starting with the current state. Polling ends when the job is
// terminal, when the job disappears, on Cancel, or when ctx is done.
func (m *Monitor) Watch(ctx context.Context, jobID string, onUpdate func(model.ExportJob)) *Watch {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watch{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(w.done)
		defer cancel()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		var last *model.ExportJob
		for {
			job, err := m.jobs.GetJob(ctx, jobID)
			switch {
			case err == nil:
				if last == nil || changed(*last, job) {
					if !w.deliver(onUpdate, job.Clone()) {
						return
					}
					last = &job
				}
				if job.Status.Terminal() {
					return
				}
			case errors.IsNotFound(err):
				m.log.WarnContext(ctx, "watched export job not found", slog.String("job_id", jobID))
				return
			case ctx.Err() != nil:
				return
			default:
				m.log.WarnContext(ctx, "failed to poll export job",
					slog.String("job_id", jobID),
					slog.Any("error", err))
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return w
}

func changed(a, b model.ExportJob) bool {
	return a.Status != b.Status ||
		a.Progress != b.Progress ||
		a.ProcessedDocuments != b.ProcessedDocuments ||
		len(a.ExportResults) != len(b.ExportResults) ||
		!a.UpdatedAt.Equal(b.UpdatedAt)
}
