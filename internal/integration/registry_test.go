package integration

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/document-exporter/internal/adapter"
	"github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/model"
	"github.com/webitel/document-exporter/internal/notify"
	"github.com/webitel/document-exporter/internal/store/memory"
)

type fakeAdapter struct {
	mu         sync.Mutex
	typ        model.IntegrationType
	connectErr error
	statErr    error
	stats      model.SyncStats
	statCalls  int
}

func (f *fakeAdapter) Type() model.IntegrationType { return f.typ }

func (f *fakeAdapter) Connect(context.Context, model.IntegrationConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectErr
}

func (f *fakeAdapter) Transfer(context.Context, model.File, model.IntegrationConfig) (string, error) {
	return "", nil
}

func (f *fakeAdapter) Stat(context.Context, model.IntegrationConfig) (model.SyncStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statCalls++
	return f.stats, f.statErr
}

func (f *fakeAdapter) set(connectErr, statErr error) {
	f.mu.Lock()
	f.connectErr, f.statErr = connectErr, statErr
	f.mu.Unlock()
}

type fixture struct {
	registry *Registry
	adapter  *fakeAdapter
	notes    []model.Notification
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		adapter: &fakeAdapter{typ: model.IntegrationSharePoint, stats: model.SyncStats{Documents: 12, StorageUsed: 4096}},
		now:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	seq := 0
	var mu sync.Mutex
	f.registry = New(memory.New().Integrations(), adapter.NewRegistry(f.adapter),
		WithClock(func() time.Time { return f.now }),
		WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("int-%d", seq)
		}),
		WithNotifier(notify.Func(func(_ context.Context, n model.Notification) {
			mu.Lock()
			f.notes = append(f.notes, n)
			mu.Unlock()
		})),
	)
	return f
}

func (f *fixture) register(t *testing.T, name string) model.Integration {
	t.Helper()
	integ, err := f.registry.Register(context.Background(), model.NewIntegration{
		Name: name,
		Type: model.IntegrationSharePoint,
		Configuration: model.IntegrationConfig{
			SiteURL:  "https://acme.sharepoint.com/sites/docs",
			AutoSync: true,
		},
	})
	require.NoError(t, err)
	return integ
}

func TestRegisterConnects(t *testing.T) {
	f := newFixture(t)
	integ := f.register(t, "Team Site")

	assert.Equal(t, "int-1", integ.ID)
	assert.Equal(t, model.IntegrationConnected, integ.Status)
	assert.Equal(t, f.now, integ.CreatedAt)
	assert.Nil(t, integ.LastSyncAt)

	got, err := f.registry.Get(context.Background(), "int-1")
	require.NoError(t, err)
	assert.Equal(t, integ, got)
}

func TestRegisterKeepsFailedConnection(t *testing.T) {
	f := newFixture(t)
	f.adapter.set(adapter.Fatal("sharepoint", stderrors.New("401")), nil)

	integ := f.register(t, "Broken")
	assert.Equal(t, model.IntegrationError, integ.Status)
	assert.Contains(t, integ.LastError, "401")
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Register(context.Background(), model.NewIntegration{Type: model.IntegrationSharePoint})
	assert.Error(t, err)

	_, err = f.registry.Register(context.Background(), model.NewIntegration{Name: "x", Type: "ftp"})
	assert.Error(t, err)

	list, err := f.registry.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSyncUpdatesCounters(t *testing.T) {
	f := newFixture(t)
	integ := f.register(t, "Team Site")
	f.now = f.now.Add(time.Hour)

	synced, err := f.registry.Sync(context.Background(), integ.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IntegrationConnected, synced.Status)
	require.NotNil(t, synced.LastSyncAt)
	assert.Equal(t, f.now, *synced.LastSyncAt)
	assert.Equal(t, int64(12), synced.DocumentsSynced)
	assert.Equal(t, int64(4096), synced.StorageUsed)

	stored, err := f.registry.Get(context.Background(), integ.ID)
	require.NoError(t, err)
	assert.Equal(t, synced, stored)
}

func TestSyncFailureMovesToError(t *testing.T) {
	f := newFixture(t)
	integ := f.register(t, "Team Site")
	f.adapter.set(nil, adapter.Fatal("sharepoint", stderrors.New("503")))

	got, err := f.registry.Sync(context.Background(), integ.ID)
	require.Error(t, err)
	assert.Equal(t, model.IntegrationError, got.Status)
	require.Len(t, f.notes, 1)
	assert.Equal(t, model.NotifyError, f.notes[0].Kind)

	// no automatic retry: a second sync is refused until the caller reconnects
	_, err = f.registry.Sync(context.Background(), integ.ID)
	assert.ErrorIs(t, err, errors.ErrIntegrationUnavailable)
	assert.Equal(t, 1, f.adapter.statCalls)

	f.adapter.set(nil, nil)
	reconnected, err := f.registry.Reconnect(context.Background(), integ.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IntegrationConnected, reconnected.Status)
	assert.Empty(t, reconnected.LastError)

	_, err = f.registry.Sync(context.Background(), integ.ID)
	assert.NoError(t, err)
}

func TestSyncRejectsDisconnected(t *testing.T) {
	f := newFixture(t)
	f.adapter.set(stderrors.New("refused"), nil)
	integ := f.register(t, "Team Site")

	_, err := f.registry.Sync(context.Background(), integ.ID)
	assert.ErrorIs(t, err, errors.ErrIntegrationUnavailable)
	assert.Zero(t, f.adapter.statCalls)

	_, err = f.registry.Reconnect(context.Background(), integ.ID)
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	integ := f.register(t, "Team Site")

	require.NoError(t, f.registry.Remove(context.Background(), integ.ID))
	_, err := f.registry.Get(context.Background(), integ.ID)
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsNotFound(f.registry.Remove(context.Background(), integ.ID)))
	_, err = f.registry.Sync(context.Background(), integ.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestSchedulerSyncsAutoEnabled(t *testing.T) {
	f := newFixture(t)
	auto := f.register(t, "Auto")
	manual, err := f.registry.Register(context.Background(), model.NewIntegration{
		Name:          "Manual",
		Type:          model.IntegrationSharePoint,
		Configuration: model.IntegrationConfig{SiteURL: "https://x"},
	})
	require.NoError(t, err)

	s, err := NewScheduler(f.registry, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, s.SyncAutoEnabled(context.Background()))

	got, err := f.registry.Get(context.Background(), auto.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastSyncAt)
	got, err = f.registry.Get(context.Background(), manual.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastSyncAt)
}

func TestSchedulerRunsPeriodically(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Auto")

	s, err := NewScheduler(f.registry, 20*time.Millisecond)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	defer func() { _ = s.Stop() }()

	assert.Eventually(t, func() bool {
		f.adapter.mu.Lock()
		defer f.adapter.mu.Unlock()
		return f.adapter.statCalls >= 2
	}, 2*time.Second, 10*time.Millisecond)
}
