package job

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webitel/document-exporter/internal/adapter"
	"github.com/webitel/document-exporter/internal/cache"
	memcache "github.com/webitel/document-exporter/internal/cache/memory"
	"github.com/webitel/document-exporter/internal/documents"
	"github.com/webitel/document-exporter/internal/model"
	"github.com/webitel/document-exporter/internal/notify"
	"github.com/webitel/document-exporter/internal/store"
	"github.com/webitel/document-exporter/internal/store/memory"
)

// stubAdapter succeeds unless a behaviour is registered for the document.
type stubAdapter struct {
	mu         sync.Mutex
	behaviours map[string]func(ctx context.Context) error
	calls      []string
	configs    []model.IntegrationConfig
	delay      time.Duration
}

func (s *stubAdapter) Type() model.IntegrationType { return model.IntegrationSharePoint }

func (s *stubAdapter) Connect(context.Context, model.IntegrationConfig) error { return nil }

func (s *stubAdapter) Stat(context.Context, model.IntegrationConfig) (model.SyncStats, error) {
	return model.SyncStats{}, nil
}

func (s *stubAdapter) Transfer(ctx context.Context, file model.File, cfg model.IntegrationConfig) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, file.DocumentID)
	s.configs = append(s.configs, cfg)
	fn := s.behaviours[file.DocumentID]
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", adapter.Fatal("stub", ctx.Err())
		}
	}
	if fn != nil {
		if err := fn(ctx); err != nil {
			return "", err
		}
	}
	return strings.TrimRight(cfg.SiteURL, "/") + "/" + file.Name, nil
}

func (s *stubAdapter) on(docID string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	s.behaviours[docID] = fn
	s.mu.Unlock()
}

func (s *stubAdapter) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// recordingJobs keeps every update written to the job store.
type recordingJobs struct {
	store.JobStore
	mu      sync.Mutex
	updates []model.ExportJob
}

func (r *recordingJobs) UpdateJob(ctx context.Context, job *model.ExportJob) error {
	r.mu.Lock()
	r.updates = append(r.updates, job.Clone())
	r.mu.Unlock()
	return r.JobStore.UpdateJob(ctx, job)
}

func (r *recordingJobs) observed(id string) []model.ExportJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ExportJob
	for _, j := range r.updates {
		if j.ID == id {
			out = append(out, j)
		}
	}
	return out
}

type testEnv struct {
	store      *memory.Store
	jobs       *recordingJobs
	cache      *memcache.Cache
	docs       *documents.Static
	adapter    *stubAdapter
	manager    *Manager
	dispatcher *Dispatcher
	integ      model.Integration

	mu    sync.Mutex
	notes []model.Notification
}

const testProject = "project-1"

func newTestEnv(t *testing.T, cfg DispatcherConfig) *testEnv {
	t.Helper()
	e := &testEnv{
		store:   memory.New(),
		cache:   memcache.New(64, 20*time.Millisecond),
		docs:    documents.NewStatic(),
		adapter: &stubAdapter{behaviours: map[string]func(context.Context) error{}},
	}
	e.jobs = &recordingJobs{JobStore: e.store.Jobs()}

	e.integ = model.Integration{
		ID:     "int-a",
		Name:   "Team Site",
		Type:   model.IntegrationSharePoint,
		Status: model.IntegrationConnected,
		Configuration: model.IntegrationConfig{
			SiteURL:    "https://acme.sharepoint.com/sites/docs",
			FolderPath: "Exports",
		},
	}
	require.NoError(t, e.store.Integrations().InsertIntegration(context.Background(), &e.integ))

	for i := 1; i <= 5; i++ {
		e.docs.Put(testProject, model.Document{
			ID:      fmt.Sprintf("d%d", i),
			Type:    model.DocumentText,
			Title:   fmt.Sprintf("Document %d", i),
			Content: "body",
		})
	}

	e.wire(cfg, e.cache)
	return e
}

// wire builds the manager and dispatcher around jobCache; tasks always go
// through the memory queue.
func (e *testEnv) wire(cfg DispatcherConfig, jobCache cache.JobCache) {
	e.manager = NewManager(e.jobs, e.store.Integrations(), e.cache, jobCache)
	e.dispatcher = NewDispatcher(e.jobs, e.store.Integrations(), jobCache, e.docs,
		adapter.NewRegistry(e.adapter), cfg,
		WithNotifier(notify.Func(func(_ context.Context, n model.Notification) {
			e.mu.Lock()
			e.notes = append(e.notes, n)
			e.mu.Unlock()
		})),
	)
}

// terminalWriteFails is a job cache that rejects snapshots of finished jobs.
type terminalWriteFails struct {
	*memcache.Cache
}

func (c terminalWriteFails) SetJob(ctx context.Context, job model.ExportJob) error {
	if job.Status.Terminal() {
		return fmt.Errorf("cache unavailable")
	}
	return c.Cache.SetJob(ctx, job)
}

func (e *testEnv) request(ids ...string) model.CreateJobRequest {
	return model.CreateJobRequest{
		ProjectID:     testProject,
		DocumentIDs:   ids,
		IntegrationID: e.integ.ID,
		Format:        model.FormatMarkdown,
	}
}

func allDocs() []string { return []string{"d1", "d2", "d3", "d4", "d5"} }

// run pops the queued task and dispatches it synchronously.
func (e *testEnv) run(t *testing.T) model.ExportJob {
	t.Helper()
	task, err := e.cache.PopExportTask(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.dispatcher.Dispatch(context.Background(), task.TaskID))

	job, err := e.store.Jobs().GetJob(context.Background(), task.TaskID)
	require.NoError(t, err)
	return *job
}

func (e *testEnv) create(t *testing.T, ids ...string) model.ExportJob {
	t.Helper()
	job, err := e.manager.CreateJob(context.Background(), e.request(ids...))
	require.NoError(t, err)
	return job
}

func (e *testEnv) notifications() []model.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Notification(nil), e.notes...)
}
