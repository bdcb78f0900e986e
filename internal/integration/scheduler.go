package integration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/webitel/document-exporter/internal/model"
)

const DefaultSyncInterval = 15 * time.Minute

// Scheduler periodically syncs every connected integration that has auto-sync enabled.
type Scheduler struct {
	scheduler gocron.Scheduler
	registry  *Registry
	interval  time.Duration
}

func NewScheduler(registry *Registry, interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, registry: registry, interval: interval}, nil
}

// Start schedules the auto-sync job and starts the scheduler. ctx bounds every sync run.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.SyncAutoEnabled(ctx) }),
		gocron.WithName("integrations-auto-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create auto-sync job: %w", err)
	}
	slog.Info("starting integration auto-sync", slog.Duration("interval", s.interval))
	s.scheduler.Start()
	return nil
}

func (s *Scheduler) Stop() error {
	slog.Info("stopping integration auto-sync")
	return s.scheduler.Shutdown()
}

// SyncAutoEnabled runs one sync cycle over the eligible integrations and
// returns how many were synced successfully.
func (s *Scheduler) SyncAutoEnabled(ctx context.Context) int {
	list, err := s.registry.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "auto-sync: failed to list integrations", slog.Any("error", err))
		return 0
	}
	synced := 0
	for _, integ := range list {
		if ctx.Err() != nil {
			return synced
		}
		if !integ.Configuration.AutoSync || integ.Status != model.IntegrationConnected {
			continue
		}
		if _, err := s.registry.Sync(ctx, integ.ID); err != nil {
			slog.WarnContext(ctx, "auto-sync: integration sync failed",
				slog.String("integration_id", integ.ID),
				slog.Any("error", err))
			continue
		}
		synced++
	}
	return synced
}
