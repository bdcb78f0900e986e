package cache

import (
	"context"
	"errors"

	"github.com/webitel/document-exporter/internal/model"
)

var (
	ErrQueueEmpty = errors.New("queue empty (timeout)")
	ErrCacheMiss  = errors.New("cache miss")
)

// Queue carries export tasks from the job manager to the dispatch workers.
type Queue interface {
	PushExportTask(ctx context.Context, task model.ExportTask) error
	// PopExportTask blocks for a bounded time and returns ErrQueueEmpty when nothing arrived.
	PopExportTask(ctx context.Context) (model.ExportTask, error)
}

// JobCache holds the live snapshot of running jobs so pollers do not hit the database.
type JobCache interface {
	SetJob(ctx context.Context, job model.ExportJob) error
	GetJob(ctx context.Context, id string) (*model.ExportJob, error)
	ClearJob(ctx context.Context, id string) error
}

type Cache interface {
	Queue
	JobCache
	Close() error
}
