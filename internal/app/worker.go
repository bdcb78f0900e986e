package app

import (
	"context"
	stderrors "errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/webitel/document-exporter/internal/cache"
)

const popRetryDelay = time.Second

// StartExportWorker launches background workers that pop queued export jobs
// and drive them to a terminal state. If too many workers are configured, the
// number is limited based on available CPU cores.
//
// Cancelling ctx stops the workers from taking new jobs; a job already being
// dispatched runs to its end under the job timeout.
func (app *App) StartExportWorker(ctx context.Context) {
	numWorkers := app.Config.Export.Workers
	if numWorkers <= 0 {
		numWorkers = 4
	}

	maxWorkers := runtime.NumCPU() * 2
	if numWorkers > maxWorkers {
		numWorkers = maxWorkers
	}

	slog.InfoContext(ctx, "starting export workers", "count", numWorkers)

	for i := 0; i < numWorkers; i++ {
		app.workers.Add(1)
		go func(workerID int) {
			defer app.workers.Done()
			runWorker(ctx, workerID, app.Cache, app.Dispatcher)
		}(i + 1)
	}
}

type dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

func runWorker(ctx context.Context, workerID int, queue cache.Queue, d dispatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := queue.PopExportTask(ctx)
		if err != nil {
			if stderrors.Is(err, cache.ErrQueueEmpty) || ctx.Err() != nil {
				continue
			}
			slog.WarnContext(ctx, "failed to pop export task", "workerID", workerID, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(popRetryDelay):
			}
			continue
		}

		slog.DebugContext(ctx, "export task taken",
			"workerID", workerID,
			"taskID", task.TaskID,
			"waited", time.Since(time.UnixMilli(task.EnqueuedAt)).String())
		if err := d.Dispatch(context.WithoutCancel(ctx), task.TaskID); err != nil {
			slog.ErrorContext(ctx, "export job dispatch failed", "workerID", workerID, "taskID", task.TaskID, "error", err)
		}
	}
}
