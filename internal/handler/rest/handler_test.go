package rest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	outerror "github.com/webitel/webitel-go-kit/pkg/errors"

	"github.com/webitel/document-exporter/internal/adapter"
	memcache "github.com/webitel/document-exporter/internal/cache/memory"
	"github.com/webitel/document-exporter/internal/documents"
	"github.com/webitel/document-exporter/internal/i18n"
	"github.com/webitel/document-exporter/internal/integration"
	"github.com/webitel/document-exporter/internal/job"
	"github.com/webitel/document-exporter/internal/model"
	"github.com/webitel/document-exporter/internal/service"
	"github.com/webitel/document-exporter/internal/store/memory"
)

type stubAdapter struct {
	mu         sync.Mutex
	connectErr error
	statErr    error
}

func (s *stubAdapter) Type() model.IntegrationType { return model.IntegrationSharePoint }

func (s *stubAdapter) Connect(context.Context, model.IntegrationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectErr
}

func (s *stubAdapter) Transfer(_ context.Context, file model.File, cfg model.IntegrationConfig) (string, error) {
	return cfg.SiteURL + "/" + file.Name, nil
}

func (s *stubAdapter) Stat(context.Context, model.IntegrationConfig) (model.SyncStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.SyncStats{Documents: 3}, s.statErr
}

type testAPI struct {
	server     *httptest.Server
	adapter    *stubAdapter
	cache      *memcache.Cache
	dispatcher *job.Dispatcher
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st := memory.New()
	c := memcache.New(16, 20*time.Millisecond)
	a := &stubAdapter{}
	adapters := adapter.NewRegistry(a)

	docs := documents.NewStatic()
	docs.Put("p1",
		model.Document{ID: "d1", Type: model.DocumentText, Title: "Intro", Content: "hello"},
		model.Document{ID: "d2", Type: model.DocumentTable, Title: "Budget", Content: "item,cost\nrent,100"},
		model.Document{ID: "d3", Type: model.DocumentText, Title: "Outro", Content: "bye"},
	)

	registry := integration.New(st.Integrations(), adapters)
	manager := job.NewManager(st.Jobs(), st.Integrations(), c, c)
	dispatcher := job.NewDispatcher(st.Jobs(), st.Integrations(), c, docs, adapters, job.DispatcherConfig{})
	monitor := job.NewMonitor(manager, time.Millisecond, nil)

	svc, err := service.NewExportService(manager, monitor, registry, docs, nil)
	require.NoError(t, err)
	h, err := NewHandler(svc, "", nil)
	require.NoError(t, err)

	r := chi.NewRouter()
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testAPI{server: srv, adapter: a, cache: c, dispatcher: dispatcher}
}

func (api *testAPI) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, api.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (api *testAPI) registerIntegration(t *testing.T) model.Integration {
	t.Helper()
	resp := api.do(t, http.MethodPost, "/v1/integrations", map[string]any{
		"name": "Team Site",
		"type": "sharepoint",
		"configuration": map[string]any{
			"siteUrl":     "https://acme.sharepoint.com/sites/docs",
			"credentials": map[string]string{"token": "secret"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[model.Integration](t, resp)
}

// dispatchQueued runs every queued job, stopping once the queue stays empty.
func (api *testAPI) dispatchQueued() error {
	for {
		task, err := api.cache.PopExportTask(context.Background())
		if err != nil {
			return nil
		}
		if err := api.dispatcher.Dispatch(context.Background(), task.TaskID); err != nil {
			return err
		}
	}
}

func (api *testAPI) drain(t *testing.T) {
	t.Helper()
	require.NoError(t, api.dispatchQueued())
}

func TestRegisterIntegration(t *testing.T) {
	api := newTestAPI(t)

	integ := api.registerIntegration(t)
	assert.Equal(t, model.IntegrationConnected, integ.Status)
	assert.Empty(t, integ.Configuration.Credentials)

	resp := api.do(t, http.MethodGet, "/v1/integrations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct {
		Data []model.Integration `json:"data"`
	}](t, resp)
	require.Len(t, list.Data, 1)
	assert.Empty(t, list.Data[0].Configuration.Credentials)

	resp = api.do(t, http.MethodGet, "/v1/integrations/"+integ.ID+"/formats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	formats := decode[struct {
		Formats []model.Format `json:"formats"`
	}](t, resp)
	assert.Contains(t, formats.Formats, model.FormatXLSX)
}

func TestRegisterIntegrationValidation(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodPost, "/v1/integrations", map[string]any{
		"name":          "Broken",
		"type":          "ftp",
		"configuration": map[string]any{"siteUrl": "not a url"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	appErr := decode[outerror.ApplicationError](t, resp)
	assert.Equal(t, "api.request.invalid", appErr.Id)
	assert.Contains(t, appErr.DetailedError, "type")
	assert.Contains(t, appErr.DetailedError, "configuration.siteUrl")
}

func TestCreateJobValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	integ := api.registerIntegration(t)

	resp := api.do(t, http.MethodPost, "/v1/projects/p1/jobs", map[string]any{
		"documentIds":   []string{},
		"integrationId": integ.ID,
		"format":        "pdf",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "export.validation.empty_selection", decode[outerror.ApplicationError](t, resp).Id)

	resp = api.do(t, http.MethodPost, "/v1/projects/p1/jobs", map[string]any{
		"documentIds":   []string{"d1"},
		"integrationId": integ.ID,
		"format":        "json",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "export.validation.unsupported_format", decode[outerror.ApplicationError](t, resp).Id)

	resp = api.do(t, http.MethodPost, "/v1/projects/p1/jobs", map[string]any{
		"documentIds":   []string{"d1"},
		"integrationId": "missing",
		"format":        "pdf",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "export.integration.unavailable", decode[outerror.ApplicationError](t, resp).Id)

	resp = api.do(t, http.MethodPost, "/v1/projects/p1/jobs", map[string]any{
		"documentIds":   []string{"d1"},
		"integrationId": integ.ID,
		"format":        "docx",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "export.validation.unsupported_format", decode[outerror.ApplicationError](t, resp).Id)

	// the first failing check wins
	resp = api.do(t, http.MethodPost, "/v1/projects/p1/jobs", map[string]any{
		"documentIds":   []string{},
		"integrationId": integ.ID,
		"format":        "docx",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "export.validation.empty_selection", decode[outerror.ApplicationError](t, resp).Id)

	resp = api.do(t, http.MethodPost, "/v1/projects/p1/jobs", map[string]any{
		"documentIds": []string{},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "export.validation.empty_selection", decode[outerror.ApplicationError](t, resp).Id)

	resp = api.do(t, http.MethodPost, "/v1/projects/p1/jobs", map[string]any{
		"documentIds": []string{"d1"},
		"format":      "pdf",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "export.integration.unavailable", decode[outerror.ApplicationError](t, resp).Id)

	resp = api.do(t, http.MethodGet, "/v1/projects/p1/jobs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[model.JobPage](t, resp).Data)
}

func TestCreateJobTranslatesErrors(t *testing.T) {
	api := newTestAPI(t)
	integ := api.registerIntegration(t)

	body, _ := json.Marshal(map[string]any{"integrationId": integ.ID, "format": "pdf"})
	req, err := http.NewRequest(http.MethodPost, api.server.URL+"/v1/projects/p1/jobs", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Accept-Language", "uk-UA,uk;q=0.9")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	appErr := decode[outerror.ApplicationError](t, resp)
	english := i18n.MustTfunc("en-us")("export.validation.empty_selection")
	assert.NotEmpty(t, appErr.DetailedError)
	assert.NotEqual(t, "export.validation.empty_selection", appErr.DetailedError)
	assert.NotEqual(t, english, appErr.DetailedError)
}

func TestCreateJobForWholeProject(t *testing.T) {
	api := newTestAPI(t)
	integ := api.registerIntegration(t)

	resp := api.do(t, http.MethodPost, "/v1/projects/p1/jobs", map[string]any{
		"all":           true,
		"integrationId": integ.ID,
		"format":        "xlsx",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	created := decode[model.ExportJob](t, resp)
	assert.Equal(t, model.JobPending, created.Status)
	assert.Equal(t, []string{"d1", "d2", "d3"}, created.DocumentIDs)

	api.drain(t)

	resp = api.do(t, http.MethodGet, "/v1/jobs/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	done := decode[model.ExportJob](t, resp)
	assert.Equal(t, model.JobCompleted, done.Status)
	assert.Len(t, done.ExportedURLs, 3)
}

func TestJobNotFound(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodGet, "/v1/jobs/nope", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/v1/jobs/nope/watch", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRetryRunningJobConflicts(t *testing.T) {
	api := newTestAPI(t)
	integ := api.registerIntegration(t)

	resp := api.do(t, http.MethodPost, "/v1/projects/p1/jobs", map[string]any{
		"documentIds":   []string{"d1"},
		"integrationId": integ.ID,
		"format":        "pdf",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	created := decode[model.ExportJob](t, resp)

	resp = api.do(t, http.MethodPost, "/v1/jobs/"+created.ID+"/retry", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	api.drain(t)
	resp = api.do(t, http.MethodPost, "/v1/jobs/"+created.ID+"/retry?failed_only=true", nil)
	// nothing failed, so there is nothing to send again
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(t, http.MethodPost, "/v1/jobs/"+created.ID+"/retry?failed_only=maybe", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSyncFailureIsBadGateway(t *testing.T) {
	api := newTestAPI(t)
	integ := api.registerIntegration(t)

	api.adapter.mu.Lock()
	api.adapter.statErr = stderrors.New("remote returned 503")
	api.adapter.mu.Unlock()

	resp := api.do(t, http.MethodPost, "/v1/integrations/"+integ.ID+"/sync", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "integration.sync.failed", decode[outerror.ApplicationError](t, resp).Id)

	// the integration is now in error; jobs against it are refused
	resp = api.do(t, http.MethodPost, "/v1/projects/p1/jobs", map[string]any{
		"documentIds":   []string{"d1"},
		"integrationId": integ.ID,
		"format":        "pdf",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	api.adapter.mu.Lock()
	api.adapter.statErr = nil
	api.adapter.mu.Unlock()
	resp = api.do(t, http.MethodPost, "/v1/integrations/"+integ.ID+"/connect", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.IntegrationConnected, decode[model.Integration](t, resp).Status)
}

func TestFormats(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodGet, "/v1/formats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	matrix := decode[map[model.IntegrationType][]model.Format](t, resp)
	assert.Len(t, matrix, 3)
	assert.NotContains(t, matrix[model.IntegrationConfluence], model.FormatXLSX)

	resp = api.do(t, http.MethodGet, "/v1/formats?type=confluence", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/v1/formats?type=ftp", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRemoveIntegration(t *testing.T) {
	api := newTestAPI(t)
	integ := api.registerIntegration(t)

	resp := api.do(t, http.MethodDelete, "/v1/integrations/"+integ.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/v1/integrations/"+integ.ID, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWatchJobStreamsToCompletion(t *testing.T) {
	api := newTestAPI(t)
	integ := api.registerIntegration(t)

	resp := api.do(t, http.MethodPost, "/v1/projects/p1/jobs", map[string]any{
		"documentIds":   []string{"d1", "d3"},
		"integrationId": integ.ID,
		"format":        "markdown",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	created := decode[model.ExportJob](t, resp)

	dispatched := make(chan error, 1)
	go func() { dispatched <- api.dispatchQueued() }()

	resp = api.do(t, http.MethodGet, "/v1/jobs/"+created.ID+"/watch", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []model.ExportJob
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var j model.ExportJob
			require.NoError(t, json.Unmarshal([]byte(data), &j))
			events = append(events, j)
		}
	}

	require.NoError(t, <-dispatched)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, model.JobCompleted, last.Status, fmt.Sprintf("%d events", len(events)))
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Progress, events[i-1].Progress)
	}
}
