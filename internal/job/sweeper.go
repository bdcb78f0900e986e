package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	goi18n "github.com/nicksnyder/go-i18n/i18n"

	"github.com/webitel/document-exporter/internal/cache"
	"github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/model"
	"github.com/webitel/document-exporter/internal/notify"
	"github.com/webitel/document-exporter/internal/store"
)

const DefaultQueueTimeout = 10 * time.Minute

type SweeperConfig struct {
	// JobTimeout is the dispatch ceiling; a processing job silent for longer
	// has lost its worker.
	JobTimeout time.Duration
	// QueueTimeout bounds how long a job may stay pending.
	QueueTimeout time.Duration
	// Interval between sweeps. Defaults to JobTimeout.
	Interval time.Duration
}

// Sweeper fails jobs whose worker is gone: a task popped by a process that
// died never reaches a terminal state on its own.
type Sweeper struct {
	scheduler gocron.Scheduler
	jobs      store.JobStore
	cache     cache.JobCache
	notifier  notify.Notifier
	T         goi18n.TranslateFunc
	log       *slog.Logger
	now       func() time.Time
	cfg       SweeperConfig
}

type SweeperOption func(*Sweeper)

func WithSweeperNotifier(n notify.Notifier, T goi18n.TranslateFunc) SweeperOption {
	return func(s *Sweeper) {
		s.notifier = n
		if T != nil {
			s.T = T
		}
	}
}

func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

func WithSweeperLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) { s.log = l }
}

func NewSweeper(jobs store.JobStore, jobCache cache.JobCache, cfg SweeperConfig, opts ...SweeperOption) (*Sweeper, error) {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = DefaultQueueTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = cfg.JobTimeout
	}
	sch, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	s := &Sweeper{
		scheduler: sch,
		jobs:      jobs,
		cache:     jobCache,
		notifier:  notify.Multi{},
		T:         func(id string, _ ...interface{}) string { return id },
		log:       slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start runs a sweep right away, which catches jobs orphaned by the previous
// process, and then every Interval.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(func() { s.Sweep(ctx) }),
		gocron.WithName("export-jobs-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweep job: %w", err)
	}
	s.log.Info("starting export job sweeper",
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("queue_timeout", s.cfg.QueueTimeout))
	s.scheduler.Start()
	return nil
}

func (s *Sweeper) Stop() error {
	s.log.Info("stopping export job sweeper")
	return s.scheduler.Shutdown()
}

// Sweep fails every abandoned job and returns how many it failed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.now()
	// a live dispatch writes its terminal state within JobTimeout+persistTimeout
	processingCutoff := now.Add(-(s.cfg.JobTimeout + persistTimeout))
	pendingCutoff := now.Add(-s.cfg.QueueTimeout)

	cutoff := processingCutoff
	if pendingCutoff.After(cutoff) {
		cutoff = pendingCutoff
	}
	list, err := s.jobs.ListUnfinishedJobs(ctx, cutoff)
	if err != nil {
		s.log.ErrorContext(ctx, "sweep: failed to list unfinished export jobs", slog.Any("error", err))
		return 0
	}

	failed := 0
	for _, job := range list {
		if ctx.Err() != nil {
			return failed
		}
		var msg string
		switch {
		case job.Status == model.JobProcessing && job.UpdatedAt.Before(processingCutoff):
			msg = fmt.Sprintf("export timed out after %s", s.cfg.JobTimeout)
		case job.Status == model.JobPending && job.UpdatedAt.Before(pendingCutoff):
			msg = fmt.Sprintf("export timed out after %s waiting for a worker", s.cfg.QueueTimeout)
		default:
			continue
		}
		if s.expire(ctx, job, msg) {
			failed++
		}
	}
	if failed > 0 {
		s.log.WarnContext(ctx, "sweep: failed abandoned export jobs", slog.Int("count", failed))
	}
	return failed
}

func (s *Sweeper) expire(ctx context.Context, job model.ExportJob, msg string) bool {
	t := newTracker(job, s.jobs, s.cache, s.now, s.log)
	if job.Status == model.JobPending {
		if err := t.start(ctx); err != nil {
			s.logConflict(ctx, job.ID, err)
			return false
		}
	}
	if err := t.fail(ctx, msg, ""); err != nil {
		s.logConflict(ctx, job.ID, err)
		return false
	}
	final := t.snapshot()
	s.notifier.Notify(ctx, notify.ForJob(s.T, final, final.IntegrationID))
	return true
}

func (s *Sweeper) logConflict(ctx context.Context, jobID string, err error) {
	var conflict *errors.DBConflictError
	if errors.As(err, &conflict) {
		// finished meanwhile
		s.log.DebugContext(ctx, "sweep: export job already finished", slog.String("job_id", jobID))
		return
	}
	s.log.ErrorContext(ctx, "sweep: failed to expire export job", slog.String("job_id", jobID), slog.Any("error", err))
}
