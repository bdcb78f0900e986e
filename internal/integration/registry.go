// Package integration keeps the configured publishing targets and their
// connection status.
package integration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	goi18n "github.com/nicksnyder/go-i18n/i18n"
	"google.golang.org/grpc/codes"

	"github.com/webitel/document-exporter/internal/adapter"
	"github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/metrics"
	"github.com/webitel/document-exporter/internal/model"
	"github.com/webitel/document-exporter/internal/notify"
	"github.com/webitel/document-exporter/internal/store"
)

type Registry struct {
	store    store.IntegrationStore
	adapters *adapter.Registry
	notifier notify.Notifier
	metrics  metrics.Recorder
	T        goi18n.TranslateFunc
	log      *slog.Logger
	now      func() time.Time
	newID    func() string

	// guards status transitions so two syncs of one integration cannot interleave
	mu sync.Mutex
}

type Option func(*Registry)

func WithNotifier(n notify.Notifier) Option { return func(r *Registry) { r.notifier = n } }

func WithMetrics(m metrics.Recorder) Option { return func(r *Registry) { r.metrics = m } }

func WithTranslator(T goi18n.TranslateFunc) Option { return func(r *Registry) { r.T = T } }

func WithLogger(l *slog.Logger) Option { return func(r *Registry) { r.log = l } }

func WithClock(now func() time.Time) Option { return func(r *Registry) { r.now = now } }

func WithIDGenerator(f func() string) Option { return func(r *Registry) { r.newID = f } }

func New(st store.IntegrationStore, adapters *adapter.Registry, opts ...Option) *Registry {
	r := &Registry{
		store:    st,
		adapters: adapters,
		notifier: notify.Multi{},
		metrics:  metrics.NoopRecorder{},
		T:        func(id string, _ ...interface{}) string { return id },
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores a new integration and runs the adapter connection check.
// A failed check is not an error of Register: the integration is kept in the
// error status so it can be fixed and reconnected.
func (r *Registry) Register(ctx context.Context, input model.NewIntegration) (model.Integration, error) {
	if input.Name == "" {
		return model.Integration{}, errors.InvalidArgument("integration name is required")
	}
	a, ok := r.adapters.Get(input.Type)
	if !ok {
		return model.Integration{}, errors.InvalidArgument(fmt.Sprintf("unknown integration type %q", input.Type))
	}

	now := r.now()
	integ := model.Integration{
		ID:            r.newID(),
		Name:          input.Name,
		Type:          input.Type,
		Status:        model.IntegrationDisconnected,
		Configuration: input.Configuration,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.connect(ctx, a, &integ)

	if err := r.store.InsertIntegration(ctx, &integ); err != nil {
		return model.Integration{}, err
	}
	r.log.InfoContext(ctx, "integration registered",
		slog.String("integration_id", integ.ID),
		slog.String("type", string(integ.Type)),
		slog.String("status", string(integ.Status)),
	)
	return integ, nil
}

func (r *Registry) Remove(ctx context.Context, id string) error {
	if err := r.store.DeleteIntegration(ctx, id); err != nil {
		return err
	}
	r.log.InfoContext(ctx, "integration removed", slog.String("integration_id", id))
	return nil
}

func (r *Registry) Get(ctx context.Context, id string) (model.Integration, error) {
	integ, err := r.store.GetIntegration(ctx, id)
	if err != nil {
		return model.Integration{}, err
	}
	return *integ, nil
}

func (r *Registry) List(ctx context.Context) ([]model.Integration, error) {
	return r.store.ListIntegrations(ctx)
}

// Sync runs one sync cycle: connected → syncing → connected, refreshing the
// counters from the target. Only connected integrations can be synced; a
// failed cycle leaves the integration in the error status and is not retried.
func (r *Registry) Sync(ctx context.Context, id string) (model.Integration, error) {
	integ, a, err := r.beginSync(ctx, id)
	if err != nil {
		return model.Integration{}, err
	}

	stats, statErr := a.Stat(ctx, integ.Configuration)

	r.mu.Lock()
	now := r.now()
	integ.UpdatedAt = now
	if statErr != nil {
		integ.Status = model.IntegrationError
		integ.LastError = statErr.Error()
	} else {
		integ.Status = model.IntegrationConnected
		integ.LastError = ""
		integ.LastSyncAt = &now
		integ.DocumentsSynced = stats.Documents
		integ.StorageUsed = stats.StorageUsed
	}
	// the caller may have given up; the status must still leave syncing
	err = r.store.UpdateIntegration(context.WithoutCancel(ctx), &integ)
	r.mu.Unlock()
	if err != nil {
		return model.Integration{}, err
	}

	if statErr != nil {
		r.metrics.IncIntegrationSync(string(integ.Type), metrics.ResultFailed)
		r.log.WarnContext(ctx, "integration sync failed",
			slog.String("integration_id", integ.ID),
			slog.Any("error", statErr),
		)
		r.notifier.Notify(ctx, notify.ForSyncFailure(r.T, integ, statErr))
		return integ, errors.New("integration sync failed",
			errors.WithID("integration.sync.failed"),
			errors.WithCode(codes.Unavailable),
			errors.WithCause(statErr),
		)
	}
	r.metrics.IncIntegrationSync(string(integ.Type), metrics.ResultSuccess)
	r.log.InfoContext(ctx, "integration synced",
		slog.String("integration_id", integ.ID),
		slog.Int64("documents", integ.DocumentsSynced),
		slog.Int64("storage_used", integ.StorageUsed),
	)
	return integ, nil
}

func (r *Registry) beginSync(ctx context.Context, id string) (model.Integration, adapter.TransferAdapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.store.GetIntegration(ctx, id)
	if err != nil {
		return model.Integration{}, nil, err
	}
	integ := *stored
	if integ.Status != model.IntegrationConnected {
		return model.Integration{}, nil, errors.NewIntegrationUnavailableError(integ.ID, string(integ.Status))
	}
	a, ok := r.adapters.Get(integ.Type)
	if !ok {
		return model.Integration{}, nil, errors.FailedPrecondition(fmt.Sprintf("no adapter for integration type %q", integ.Type))
	}
	integ.Status = model.IntegrationSyncing
	integ.UpdatedAt = r.now()
	if err := r.store.UpdateIntegration(ctx, &integ); err != nil {
		return model.Integration{}, nil, err
	}
	return integ, a, nil
}

// Reconnect re-runs the connection check; it is the explicit caller retry for
// integrations in the error or disconnected status.
func (r *Registry) Reconnect(ctx context.Context, id string) (model.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.store.GetIntegration(ctx, id)
	if err != nil {
		return model.Integration{}, err
	}
	integ := *stored
	if integ.Status == model.IntegrationSyncing {
		return model.Integration{}, errors.NewIntegrationUnavailableError(integ.ID, string(integ.Status))
	}
	a, ok := r.adapters.Get(integ.Type)
	if !ok {
		return model.Integration{}, errors.FailedPrecondition(fmt.Sprintf("no adapter for integration type %q", integ.Type))
	}
	connErr := r.connect(ctx, a, &integ)
	if err := r.store.UpdateIntegration(ctx, &integ); err != nil {
		return model.Integration{}, err
	}
	if connErr != nil {
		return integ, errors.New("integration connection failed",
			errors.WithID("integration.connect.failed"),
			errors.WithCode(codes.Unavailable),
			errors.WithCause(connErr),
		)
	}
	return integ, nil
}

func (r *Registry) connect(ctx context.Context, a adapter.TransferAdapter, integ *model.Integration) error {
	err := a.Connect(ctx, integ.Configuration)
	integ.UpdatedAt = r.now()
	if err != nil {
		integ.Status = model.IntegrationError
		integ.LastError = err.Error()
		r.log.WarnContext(ctx, "integration connection check failed",
			slog.String("integration_id", integ.ID),
			slog.Any("error", err),
		)
		return err
	}
	integ.Status = model.IntegrationConnected
	integ.LastError = ""
	return nil
}
