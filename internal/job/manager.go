// Package job runs export jobs: creation and validation (Manager), the
// per-document transfer loop (Dispatcher) and progress observation (Monitor).
package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/webitel/document-exporter/internal/cache"
	"github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/format"
	"github.com/webitel/document-exporter/internal/metrics"
	"github.com/webitel/document-exporter/internal/model"
	"github.com/webitel/document-exporter/internal/model/options"
	"github.com/webitel/document-exporter/internal/store"
)

type Manager struct {
	jobs         store.JobStore
	integrations store.IntegrationStore
	queue        cache.Queue
	cache        cache.JobCache
	metrics      metrics.Recorder
	log          *slog.Logger
	now          func() time.Time
	newID        func() string
}

type ManagerOption func(*Manager)

func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func WithManagerIDGenerator(f func() string) ManagerOption {
	return func(m *Manager) { m.newID = f }
}

func WithManagerMetrics(r metrics.Recorder) ManagerOption {
	return func(m *Manager) { m.metrics = r }
}

func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

func NewManager(jobs store.JobStore, integrations store.IntegrationStore, queue cache.Queue, jobCache cache.JobCache, opts ...ManagerOption) *Manager {
	m := &Manager{
		jobs:         jobs,
		integrations: integrations,
		queue:        queue,
		cache:        jobCache,
		metrics:      metrics.NoopRecorder{},
		log:          slog.Default(),
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateJob validates the request, stores a pending job and queues it for
// dispatch. It returns as soon as the job is queued.
//
// Checks run in order and the first failure wins: empty selection,
// integration not connected, format not supported by the integration type.
// A rejected request never creates a job.
func (m *Manager) CreateJob(ctx context.Context, req model.CreateJobRequest) (model.ExportJob, error) {
	return m.create(ctx, req, "")
}

// RetryJob starts a new job with the parameters of a finished one. With
// failedOnly only the documents that failed or were skipped are sent again.
func (m *Manager) RetryJob(ctx context.Context, jobID string, failedOnly bool) (model.ExportJob, error) {
	prev, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return model.ExportJob{}, err
	}
	if !prev.Status.Terminal() {
		return model.ExportJob{}, errors.FailedPrecondition("export job " + jobID + " is still " + string(prev.Status))
	}
	ids := prev.DocumentIDs
	if failedOnly {
		ids = prev.UnfinishedDocumentIDs()
	}
	return m.create(ctx, model.CreateJobRequest{
		ProjectID:     prev.ProjectID,
		DocumentIDs:   ids,
		IntegrationID: prev.IntegrationID,
		Format:        prev.ExportFormat,
		Options:       prev.Options,
	}, prev.ID)
}

func (m *Manager) create(ctx context.Context, req model.CreateJobRequest, retryOf string) (model.ExportJob, error) {
	ids := uniqueIDs(req.DocumentIDs)
	if len(ids) == 0 {
		return model.ExportJob{}, errors.NewEmptySelectionError()
	}

	integ, err := m.integrations.GetIntegration(ctx, req.IntegrationID)
	if err != nil {
		if errors.IsNotFound(err) {
			return model.ExportJob{}, errors.NewIntegrationUnavailableError(req.IntegrationID, "missing")
		}
		return model.ExportJob{}, err
	}
	if integ.Status != model.IntegrationConnected {
		return model.ExportJob{}, errors.NewIntegrationUnavailableError(integ.ID, string(integ.Status))
	}
	if !format.Supports(integ.Type, req.Format) {
		return model.ExportJob{}, errors.NewUnsupportedFormatError(string(integ.Type), string(req.Format))
	}

	now := m.now()
	job := model.ExportJob{
		ID:             m.newID(),
		ProjectID:      req.ProjectID,
		IntegrationID:  integ.ID,
		Status:         model.JobPending,
		TotalDocuments: len(ids),
		ExportFormat:   req.Format,
		DocumentIDs:    ids,
		Options:        req.Options,
		StartedAt:      now,
		UpdatedAt:      now,
		RetryOf:        retryOf,
	}
	if err := m.jobs.InsertJob(ctx, &job); err != nil {
		return model.ExportJob{}, err
	}
	if err := m.cache.SetJob(ctx, job); err != nil {
		m.log.WarnContext(ctx, "failed to cache export job snapshot", slog.String("job_id", job.ID), slog.Any("error", err))
	}

	task := model.ExportTask{
		TaskID:        job.ID,
		ProjectID:     job.ProjectID,
		IntegrationID: job.IntegrationID,
		Format:        job.ExportFormat,
		EnqueuedAt:    now.UnixMilli(),
	}
	if err := m.queue.PushExportTask(ctx, task); err != nil {
		m.abandon(ctx, job, err)
		return model.ExportJob{}, errors.Internal("failed to queue export job", errors.WithCause(err))
	}

	m.metrics.IncJobCreated(string(job.ExportFormat))
	m.log.InfoContext(ctx, "export job created",
		slog.String("job_id", job.ID),
		slog.String("project_id", job.ProjectID),
		slog.String("integration_id", job.IntegrationID),
		slog.String("format", string(job.ExportFormat)),
		slog.Int("documents", job.TotalDocuments),
	)
	return job, nil
}

// abandon moves a job that could not be queued to failed along the regular edges.
func (m *Manager) abandon(ctx context.Context, job model.ExportJob, cause error) {
	t := newTracker(job, m.jobs, m.cache, m.now, m.log)
	if err := t.start(ctx); err != nil {
		m.log.ErrorContext(ctx, "failed to abandon export job", slog.String("job_id", job.ID), slog.Any("error", err))
		return
	}
	if err := t.fail(ctx, "export could not be queued: "+cause.Error(), ""); err != nil {
		m.log.ErrorContext(ctx, "failed to abandon export job", slog.String("job_id", job.ID), slog.Any("error", err))
	}
}

// GetJob returns the cached snapshot of a finished job without touching the
// store. A snapshot of an unfinished job is only trusted while the stored
// record is not newer.
func (m *Manager) GetJob(ctx context.Context, id string) (model.ExportJob, error) {
	snap, err := m.cache.GetJob(ctx, id)
	if err != nil {
		snap = nil
	}
	if snap != nil && snap.Status.Terminal() {
		return *snap, nil
	}
	job, err := m.jobs.GetJob(ctx, id)
	if err != nil {
		if snap != nil && !errors.IsNotFound(err) {
			return *snap, nil
		}
		return model.ExportJob{}, err
	}
	if snap != nil && !job.Status.Terminal() && !job.UpdatedAt.After(snap.UpdatedAt) {
		return *snap, nil
	}
	return *job, nil
}

// GetJobs lists the job history of a project, newest first.
func (m *Manager) GetJobs(ctx context.Context, projectID string, page, size int) (*model.JobPage, error) {
	return m.jobs.SearchJobs(options.NewSearchOptions(ctx, page, size), projectID)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
