package store

import (
	"context"
	"time"

	"github.com/webitel/document-exporter/internal/model"
	"github.com/webitel/document-exporter/internal/model/options"
)

type Store interface {
	Integrations() IntegrationStore
	Jobs() JobStore

	// ------------ Database Management ------------ //
	Open() error
	Close() error
}

type IntegrationStore interface {
	InsertIntegration(ctx context.Context, input *model.Integration) error
	UpdateIntegration(ctx context.Context, input *model.Integration) error
	DeleteIntegration(ctx context.Context, id string) error
	GetIntegration(ctx context.Context, id string) (*model.Integration, error)
	ListIntegrations(ctx context.Context) ([]model.Integration, error)
}

// JobStore is the append-only job history. UpdateJob must reject updates to a
// record that is already terminal.
type JobStore interface {
	InsertJob(ctx context.Context, input *model.ExportJob) error
	UpdateJob(ctx context.Context, input *model.ExportJob) error
	GetJob(ctx context.Context, id string) (*model.ExportJob, error)
	SearchJobs(opts *options.SearchOptions, projectID string) (*model.JobPage, error)
	// ListUnfinishedJobs returns pending and processing jobs last written
	// before updatedBefore, oldest first.
	ListUnfinishedJobs(ctx context.Context, updatedBefore time.Time) ([]model.ExportJob, error)
}
