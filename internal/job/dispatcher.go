package job

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	goi18n "github.com/nicksnyder/go-i18n/i18n"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/webitel/document-exporter/internal/adapter"
	"github.com/webitel/document-exporter/internal/cache"
	"github.com/webitel/document-exporter/internal/documents"
	"github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/metrics"
	"github.com/webitel/document-exporter/internal/model"
	"github.com/webitel/document-exporter/internal/notify"
	"github.com/webitel/document-exporter/internal/render"
	"github.com/webitel/document-exporter/internal/store"
)

const (
	DefaultJobTimeout = 45 * time.Second
	tracerName        = "github.com/webitel/document-exporter/internal/job"
)

type DispatcherConfig struct {
	// Timeout is the hard ceiling of one job, from dispatch to terminal state.
	Timeout time.Duration
	// Parallelism is the size of a transfer batch; 1 sends documents one by one.
	Parallelism int
	// Progress builds the intermediate tick source of one job.
	Progress func() ProgressSource
}

type Dispatcher struct {
	jobs         store.JobStore
	integrations store.IntegrationStore
	cache        cache.JobCache
	documents    documents.Source
	adapters     *adapter.Registry
	notifier     notify.Notifier
	metrics      metrics.Recorder
	T            goi18n.TranslateFunc
	tracer       trace.Tracer
	log          *slog.Logger
	now          func() time.Time
	cfg          DispatcherConfig

	inFlight atomic.Int64
}

type DispatcherOption func(*Dispatcher)

func WithNotifier(n notify.Notifier) DispatcherOption {
	return func(d *Dispatcher) { d.notifier = n }
}

func WithMetrics(r metrics.Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = r }
}

func WithTranslator(T goi18n.TranslateFunc) DispatcherOption {
	return func(d *Dispatcher) { d.T = T }
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

func NewDispatcher(
	jobs store.JobStore,
	integrations store.IntegrationStore,
	jobCache cache.JobCache,
	docs documents.Source,
	adapters *adapter.Registry,
	cfg DispatcherConfig,
	opts ...DispatcherOption,
) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultJobTimeout
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.Progress == nil {
		cfg.Progress = func() ProgressSource { return NoProgress{} }
	}
	d := &Dispatcher{
		jobs:         jobs,
		integrations: integrations,
		cache:        jobCache,
		documents:    docs,
		adapters:     adapters,
		notifier:     notify.Multi{},
		metrics:      metrics.NoopRecorder{},
		T:            func(id string, _ ...interface{}) string { return id },
		tracer:       otel.Tracer(tracerName),
		log:          slog.Default(),
		now:          func() time.Time { return time.Now().UTC() },
		cfg:          cfg,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// errJobTimeout is the cause attached to the job context when the ceiling is hit.
var errJobTimeout = stderrors.New("export timed out")

// Dispatch drives one pending job to a terminal state. Failures of the job
// itself are recorded in the job record; the returned error only reports that
// the record could not be loaded or written.
func (d *Dispatcher) Dispatch(ctx context.Context, jobID string) error {
	stored, err := d.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if stored.Status != model.JobPending {
		d.log.WarnContext(ctx, "export job is not pending, skipping dispatch",
			slog.String("job_id", jobID),
			slog.String("status", string(stored.Status)))
		return nil
	}

	ctx, span := d.tracer.Start(ctx, "export.job", trace.WithAttributes(
		attribute.String("job.id", stored.ID),
		attribute.String("job.format", string(stored.ExportFormat)),
		attribute.Int("job.documents", stored.TotalDocuments),
	))
	defer span.End()

	ctx, cancel := context.WithTimeoutCause(ctx, d.cfg.Timeout, errJobTimeout)
	defer cancel()

	d.metrics.SetJobsInFlight(int(d.inFlight.Add(1)))
	defer func() { d.metrics.SetJobsInFlight(int(d.inFlight.Add(-1))) }()

	started := d.now()
	t := newTracker(*stored, d.jobs, d.cache, d.now, d.log)
	if err := t.start(ctx); err != nil {
		return err
	}

	integ, target, fatal := d.prepare(ctx, stored)
	integrationType := "unknown"
	if integ != nil {
		integrationType = string(integ.Type)
		span.SetAttributes(attribute.String("integration.type", integrationType))
	}
	if fatal == nil {
		fatal = d.transferAll(ctx, t, integ, target)
	}

	var finishErr error
	if fatal != nil {
		msg := fatal.Error()
		if stderrors.Is(context.Cause(ctx), errJobTimeout) {
			msg = fmt.Sprintf("export timed out after %s", d.cfg.Timeout)
		}
		failedDoc := ""
		var df *documentFatalError
		if stderrors.As(fatal, &df) {
			failedDoc = df.DocumentID
		}
		span.RecordError(fatal)
		span.SetStatus(otelcodes.Error, msg)
		finishErr = t.fail(ctx, msg, failedDoc)
	} else {
		finishErr = t.complete(ctx)
	}
	if finishErr != nil {
		return finishErr
	}

	final := t.snapshot()
	d.report(ctx, final, integ, integrationType, d.now().Sub(started))
	return nil
}

// prepare resolves the integration, its adapter and the job's documents.
func (d *Dispatcher) prepare(ctx context.Context, job *model.ExportJob) (*model.Integration, *target, error) {
	integ, err := d.integrations.GetIntegration(ctx, job.IntegrationID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil, fmt.Errorf("integration %s was removed", job.IntegrationID)
		}
		return nil, nil, fmt.Errorf("load integration: %w", err)
	}
	a, ok := d.adapters.Get(integ.Type)
	if !ok {
		return integ, nil, fmt.Errorf("no adapter for integration type %q", integ.Type)
	}
	docs, err := d.documents.ListDocuments(ctx, job.ProjectID)
	if err != nil {
		return integ, nil, fmt.Errorf("document source unavailable: %w", err)
	}

	cfg := integ.Configuration
	if job.Options.FolderPath != "" {
		cfg.FolderPath = job.Options.FolderPath
	}
	return integ, &target{
		adapter: a,
		config:  cfg,
		format:  job.ExportFormat,
		docs:    documents.Index(docs),
		ids:     job.DocumentIDs,
		jobID:   job.ID,
	}, nil
}

type target struct {
	adapter adapter.TransferAdapter
	config  model.IntegrationConfig
	format  model.Format
	docs    map[string]model.Document
	ids     []string
	jobID   string
}

// documentFatalError is a fatal error raised while a given document was in flight.
type documentFatalError struct {
	DocumentID string
	Err        error
}

func (e *documentFatalError) Error() string { return e.Err.Error() }

func (e *documentFatalError) Unwrap() error { return e.Err }

// transferAll sends the documents in batches and stops at the first fatal error.
func (d *Dispatcher) transferAll(ctx context.Context, t *tracker, integ *model.Integration, tg *target) error {
	tickCtx, stopTicks := context.WithCancel(ctx)
	var ticks sync.WaitGroup
	ticks.Add(1)
	go func() {
		defer ticks.Done()
		src := d.cfg.Progress()
		for {
			step, ok := src.Tick(tickCtx)
			if !ok {
				return
			}
			if err := t.nudge(tickCtx, step); err != nil {
				d.log.WarnContext(ctx, "failed to persist progress", slog.String("job_id", tg.jobID), slog.Any("error", err))
			}
		}
	}()
	defer func() {
		stopTicks()
		ticks.Wait()
	}()

	for start := 0; start < len(tg.ids); start += d.cfg.Parallelism {
		end := min(start+d.cfg.Parallelism, len(tg.ids))
		g, gctx := errgroup.WithContext(ctx)
		for _, id := range tg.ids[start:end] {
			g.Go(func() error {
				res, err := d.transferOne(gctx, integ, tg, id)
				if err != nil {
					return err
				}
				d.metrics.IncDocumentResult(string(integ.Type), documentLabel(res.Status))
				return t.advance(ctx, res)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		// a deadline hit after the last batch does not undo finished transfers
		if end < len(tg.ids) && ctx.Err() != nil {
			return context.Cause(ctx)
		}
	}
	return nil
}

// transferOne renders and sends one document. A returned error is fatal for
// the job; per-document failures come back as a failed result. A panic in a
// renderer or adapter fails only its document.
func (d *Dispatcher) transferOne(ctx context.Context, integ *model.Integration, tg *target, id string) (res model.ExportResult, err error) {
	ctx, span := d.tracer.Start(ctx, "export.document", trace.WithAttributes(attribute.String("document.id", id)))
	defer span.End()

	failed := func(err error) (model.ExportResult, error) {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		d.log.WarnContext(ctx, "document export failed",
			slog.String("document_id", id),
			slog.String("integration_id", integ.ID),
			slog.Any("error", err))
		return model.ExportResult{DocumentID: id, Status: model.DocumentFailed, Error: err.Error()}, nil
	}
	defer func() {
		if p := recover(); p != nil {
			d.log.ErrorContext(ctx, "document export panicked",
				slog.String("document_id", id),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())))
			res, err = failed(fmt.Errorf("document %s: unexpected failure: %v", id, p))
		}
	}()

	doc, ok := tg.docs[id]
	if !ok {
		return failed(fmt.Errorf("document %s not found in project", id))
	}
	file, err := render.Render(doc, tg.format)
	if err != nil {
		return failed(err)
	}
	url, err := tg.adapter.Transfer(ctx, file, tg.config)
	if err != nil {
		if adapter.IsFatal(err) || ctx.Err() != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, "fatal transfer error")
			if ctx.Err() != nil {
				err = context.Cause(ctx)
			}
			return model.ExportResult{}, &documentFatalError{DocumentID: id, Err: err}
		}
		return failed(err)
	}
	return model.ExportResult{DocumentID: id, Status: model.DocumentExported, URL: url}, nil
}

func (d *Dispatcher) report(ctx context.Context, job model.ExportJob, integ *model.Integration, integrationType string, took time.Duration) {
	outcome := metrics.ResultSuccess
	switch {
	case job.Status == model.JobFailed:
		outcome = metrics.ResultFailed
	case len(job.ExportedURLs) < job.TotalDocuments:
		outcome = metrics.ResultPartial
	}
	d.metrics.IncJobOutcome(integrationType, outcome)
	d.metrics.ObserveJobDuration(integrationType, took)

	name := job.IntegrationID
	if integ != nil {
		name = integ.Name
	}
	d.notifier.Notify(ctx, notify.ForJob(d.T, job, name))
	d.log.InfoContext(ctx, "export job finished",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.Status)),
		slog.String("outcome", outcome),
		slog.Int("processed", job.ProcessedDocuments),
		slog.Int("total", job.TotalDocuments),
		slog.Duration("took", took),
	)
}

func documentLabel(s model.DocumentStatus) string {
	if s == model.DocumentExported {
		return metrics.ResultSuccess
	}
	return metrics.ResultFailed
}
