package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/webitel/document-exporter/internal/cache"
	"github.com/webitel/document-exporter/internal/model"
	"github.com/webitel/document-exporter/internal/store"
)

const persistTimeout = 5 * time.Second

var transitions = map[model.JobStatus][]model.JobStatus{
	model.JobPending:    {model.JobProcessing},
	model.JobProcessing: {model.JobCompleted, model.JobFailed},
}

func CanTransition(from, to model.JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// tracker owns the live record of one job while it is dispatched. Every
// change is written through to the store and the cache under the tracker lock,
// so observers never see progress go backwards.
type tracker struct {
	mu    sync.Mutex
	job   model.ExportJob
	jobs  store.JobStore
	cache cache.JobCache
	now   func() time.Time
	log   *slog.Logger
}

func newTracker(job model.ExportJob, jobs store.JobStore, c cache.JobCache, now func() time.Time, log *slog.Logger) *tracker {
	return &tracker{job: job.Clone(), jobs: jobs, cache: c, now: now, log: log}
}

func (t *tracker) snapshot() model.ExportJob {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job.Clone()
}

func (t *tracker) start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transition(ctx, model.JobProcessing)
}

// advance records a finished document.
func (t *tracker) advance(ctx context.Context, res model.ExportResult) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job.Status != model.JobProcessing {
		return nil
	}
	t.job.ExportResults = append(t.job.ExportResults, res)
	if t.job.ProcessedDocuments < t.job.TotalDocuments {
		t.job.ProcessedDocuments++
	}
	if p := ProgressFor(t.job.ProcessedDocuments, t.job.TotalDocuments); p > t.job.Progress {
		t.job.Progress = p
	}
	return t.persist(ctx)
}

// nudge moves progress forward by step without crossing the next document boundary.
func (t *tracker) nudge(ctx context.Context, step int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job.Status != model.JobProcessing || step <= 0 {
		return nil
	}
	ceiling := nudgeCeiling(t.job.ProcessedDocuments, t.job.TotalDocuments)
	next := t.job.Progress + step
	if next > ceiling {
		next = ceiling
	}
	if next <= t.job.Progress {
		return nil
	}
	t.job.Progress = next
	return t.persist(ctx)
}

// complete finishes a job whose documents were all attempted. The job fails
// only when not a single document made it.
func (t *tracker) complete(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	urls := make([]string, 0, len(t.job.ExportResults))
	failed := 0
	for _, r := range t.job.ExportResults {
		if r.Status == model.DocumentExported {
			urls = append(urls, r.URL)
		} else {
			failed++
		}
	}
	if len(urls) == 0 && failed > 0 {
		t.job.ErrorMessage = fmt.Sprintf("all %d documents failed to export", failed)
		return t.transition(ctx, model.JobFailed)
	}
	t.job.ExportedURLs = urls
	t.job.Progress = 100
	return t.transition(ctx, model.JobCompleted)
}

// fail aborts the job. failedDoc, when set, is the document whose transfer
// raised the fatal error; documents that were never finished are recorded as skipped.
func (t *tracker) fail(ctx context.Context, message, failedDoc string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]bool, len(t.job.ExportResults))
	for _, r := range t.job.ExportResults {
		seen[r.DocumentID] = true
	}
	for _, id := range t.job.DocumentIDs {
		if seen[id] {
			continue
		}
		res := model.ExportResult{DocumentID: id, Status: model.DocumentSkipped}
		if id == failedDoc {
			res.Status = model.DocumentFailed
			res.Error = message
		}
		t.job.ExportResults = append(t.job.ExportResults, res)
	}
	t.job.ErrorMessage = message
	return t.transition(ctx, model.JobFailed)
}

func (t *tracker) transition(ctx context.Context, to model.JobStatus) error {
	from := t.job.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("export job %s: illegal transition %s -> %s", t.job.ID, from, to)
	}
	t.job.Status = to
	if to.Terminal() {
		now := t.now()
		t.job.CompletedAt = &now
	}
	if err := t.persist(ctx); err != nil {
		t.job.Status = from
		t.job.CompletedAt = nil
		return err
	}
	t.log.InfoContext(ctx, "export job state changed",
		slog.String("job_id", t.job.ID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	return nil
}

// persist must be called with t.mu held.
func (t *tracker) persist(ctx context.Context) error {
	t.job.UpdatedAt = t.now()
	// terminal writes must land even when the job context timed out
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := t.jobs.UpdateJob(wctx, &t.job); err != nil {
		return err
	}
	if t.cache != nil {
		if err := t.cache.SetJob(wctx, t.job); err != nil {
			t.log.WarnContext(ctx, "failed to cache export job snapshot",
				slog.String("job_id", t.job.ID),
				slog.Any("error", err))
			// a stale snapshot would hide this write from readers
			if err := t.cache.ClearJob(wctx, t.job.ID); err != nil {
				t.log.WarnContext(ctx, "failed to drop stale export job snapshot",
					slog.String("job_id", t.job.ID),
					slog.Any("error", err))
			}
		}
	}
	return nil
}
