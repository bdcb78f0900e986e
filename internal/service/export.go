package service

import (
	"context"
	"log/slog"

	"github.com/webitel/document-exporter/internal/documents"
	"github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/format"
	"github.com/webitel/document-exporter/internal/integration"
	"github.com/webitel/document-exporter/internal/job"
	"github.com/webitel/document-exporter/internal/model"
	"github.com/webitel/document-exporter/internal/selection"
)

type ExportService interface {
	CreateJob(ctx context.Context, req model.CreateJobRequest) (model.ExportJob, error)
	RetryJob(ctx context.Context, jobID string, failedOnly bool) (model.ExportJob, error)
	GetJob(ctx context.Context, jobID string) (model.ExportJob, error)
	GetJobs(ctx context.Context, projectID string, page, size int) (*model.JobPage, error)
	WatchJob(ctx context.Context, jobID string, onUpdate func(model.ExportJob)) (*job.Watch, error)

	ListDocuments(ctx context.Context, projectID string) ([]model.Document, error)
	SelectAll(ctx context.Context, projectID string) (*selection.Selector, error)
	SupportedFormats(t model.IntegrationType) []model.Format

	ListIntegrations(ctx context.Context) ([]model.Integration, error)
	GetIntegration(ctx context.Context, id string) (model.Integration, error)
	RegisterIntegration(ctx context.Context, input model.NewIntegration) (model.Integration, error)
	RemoveIntegration(ctx context.Context, id string) error
	SyncIntegration(ctx context.Context, id string) (model.Integration, error)
	ReconnectIntegration(ctx context.Context, id string) (model.Integration, error)
}

type ExportServiceImpl struct {
	jobs         *job.Manager
	monitor      *job.Monitor
	integrations *integration.Registry
	documents    documents.Source
	log          *slog.Logger
}

func NewExportService(
	jobs *job.Manager,
	monitor *job.Monitor,
	integrations *integration.Registry,
	docs documents.Source,
	log *slog.Logger,
) (ExportService, error) {
	if jobs == nil || monitor == nil || integrations == nil || docs == nil {
		return nil, errors.Internal("export service dependencies are not set")
	}
	if log == nil {
		log = slog.Default()
	}
	return &ExportServiceImpl{
		jobs:         jobs,
		monitor:      monitor,
		integrations: integrations,
		documents:    docs,
		log:          log,
	}, nil
}

func (s *ExportServiceImpl) CreateJob(ctx context.Context, req model.CreateJobRequest) (model.ExportJob, error) {
	return s.jobs.CreateJob(ctx, req)
}

func (s *ExportServiceImpl) RetryJob(ctx context.Context, jobID string, failedOnly bool) (model.ExportJob, error) {
	return s.jobs.RetryJob(ctx, jobID, failedOnly)
}

func (s *ExportServiceImpl) GetJob(ctx context.Context, jobID string) (model.ExportJob, error) {
	return s.jobs.GetJob(ctx, jobID)
}

func (s *ExportServiceImpl) GetJobs(ctx context.Context, projectID string, page, size int) (*model.JobPage, error) {
	if projectID == "" {
		return nil, errors.InvalidArgument("project id is required")
	}
	return s.jobs.GetJobs(ctx, projectID, page, size)
}

// WatchJob fails fast for unknown jobs; otherwise the first callback carries
// the current state.
func (s *ExportServiceImpl) WatchJob(ctx context.Context, jobID string, onUpdate func(model.ExportJob)) (*job.Watch, error) {
	if _, err := s.jobs.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.monitor.Watch(ctx, jobID, onUpdate), nil
}

func (s *ExportServiceImpl) ListDocuments(ctx context.Context, projectID string) ([]model.Document, error) {
	docs, err := s.documents.ListDocuments(ctx, projectID)
	if err != nil {
		return nil, errors.New("failed to list project documents", errors.WithCause(err), errors.WithID("documents.list.failed"))
	}
	return docs, nil
}

// SelectAll builds a selection holding every document of the project.
func (s *ExportServiceImpl) SelectAll(ctx context.Context, projectID string) (*selection.Selector, error) {
	docs, err := s.ListDocuments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	sel := selection.New(projectID)
	sel.SelectAll(ids)
	return sel, nil
}

func (s *ExportServiceImpl) SupportedFormats(t model.IntegrationType) []model.Format {
	return format.SupportedFormats(t)
}

func (s *ExportServiceImpl) ListIntegrations(ctx context.Context) ([]model.Integration, error) {
	list, err := s.integrations.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i] = list[i].Redacted()
	}
	return list, nil
}

func (s *ExportServiceImpl) GetIntegration(ctx context.Context, id string) (model.Integration, error) {
	integ, err := s.integrations.Get(ctx, id)
	return integ.Redacted(), err
}

func (s *ExportServiceImpl) RegisterIntegration(ctx context.Context, input model.NewIntegration) (model.Integration, error) {
	integ, err := s.integrations.Register(ctx, input)
	return integ.Redacted(), err
}

func (s *ExportServiceImpl) RemoveIntegration(ctx context.Context, id string) error {
	return s.integrations.Remove(ctx, id)
}

func (s *ExportServiceImpl) SyncIntegration(ctx context.Context, id string) (model.Integration, error) {
	integ, err := s.integrations.Sync(ctx, id)
	return integ.Redacted(), err
}

func (s *ExportServiceImpl) ReconnectIntegration(ctx context.Context, id string) (model.Integration, error) {
	integ, err := s.integrations.Reconnect(ctx, id)
	return integ.Redacted(), err
}
