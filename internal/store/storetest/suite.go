// Package storetest holds the behaviour every store.Store implementation shares.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dberr "github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/model"
	"github.com/webitel/document-exporter/internal/model/options"
	"github.com/webitel/document-exporter/internal/store"
)

// Run exercises s against the shared contract. Ids are random so a suite can
// run against a database that already holds rows.
func Run(t *testing.T, s store.Store) {
	t.Run("integration lifecycle", func(t *testing.T) { integrationLifecycle(t, s) })
	t.Run("integration list order", func(t *testing.T) { integrationOrder(t, s) })
	t.Run("job round trip", func(t *testing.T) { jobRoundTrip(t, s) })
	t.Run("terminal job is frozen", func(t *testing.T) { terminalFrozen(t, s) })
	t.Run("job paging", func(t *testing.T) { jobPaging(t, s) })
	t.Run("unfinished jobs", func(t *testing.T) { unfinishedJobs(t, s) })
}

// now is truncated to milliseconds, the coarsest precision any store keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func newIntegration(created time.Time) *model.Integration {
	return &model.Integration{
		ID:     uuid.NewString(),
		Name:   "Docs",
		Type:   model.IntegrationSharePoint,
		Status: model.IntegrationConnected,
		Configuration: model.IntegrationConfig{
			SiteURL:     "https://acme.sharepoint.com/sites/docs",
			FolderPath:  "Exports",
			Credentials: map[string]string{"token": "secret"},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func newJob(projectID string, started time.Time) *model.ExportJob {
	return &model.ExportJob{
		ID:             uuid.NewString(),
		ProjectID:      projectID,
		IntegrationID:  uuid.NewString(),
		Status:         model.JobPending,
		TotalDocuments: 2,
		ExportFormat:   model.FormatPDF,
		DocumentIDs:    []string{"d1", "d2"},
		Options:        model.ExportOptions{FolderPath: "Board"},
		StartedAt:      started,
		UpdatedAt:      started,
	}
}

func integrationLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	in := newIntegration(now())

	require.NoError(t, s.Integrations().InsertIntegration(ctx, in))
	assert.Error(t, s.Integrations().InsertIntegration(ctx, in))

	got, err := s.Integrations().GetIntegration(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Name, got.Name)
	assert.Equal(t, in.Configuration, got.Configuration)
	assert.Nil(t, got.LastSyncAt)
	assert.True(t, in.CreatedAt.Equal(got.CreatedAt))

	synced := now()
	got.Status = model.IntegrationError
	got.LastError = "token expired"
	got.LastSyncAt = &synced
	got.DocumentsSynced = 12
	got.StorageUsed = 4096
	require.NoError(t, s.Integrations().UpdateIntegration(ctx, got))

	again, err := s.Integrations().GetIntegration(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IntegrationError, again.Status)
	assert.Equal(t, "token expired", again.LastError)
	assert.EqualValues(t, 12, again.DocumentsSynced)
	assert.EqualValues(t, 4096, again.StorageUsed)
	require.NotNil(t, again.LastSyncAt)
	assert.True(t, synced.Equal(*again.LastSyncAt))

	require.NoError(t, s.Integrations().DeleteIntegration(ctx, in.ID))
	_, err = s.Integrations().GetIntegration(ctx, in.ID)
	assert.True(t, dberr.IsNotFound(err))
	assert.True(t, dberr.IsNotFound(s.Integrations().DeleteIntegration(ctx, in.ID)))
	assert.True(t, dberr.IsNotFound(s.Integrations().UpdateIntegration(ctx, in)))
}

func integrationOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := now()
	second := newIntegration(base.Add(time.Second))
	first := newIntegration(base)
	require.NoError(t, s.Integrations().InsertIntegration(ctx, second))
	require.NoError(t, s.Integrations().InsertIntegration(ctx, first))

	list, err := s.Integrations().ListIntegrations(ctx)
	require.NoError(t, err)
	var seen []string
	for _, in := range list {
		if in.ID == first.ID || in.ID == second.ID {
			seen = append(seen, in.ID)
		}
	}
	assert.Equal(t, []string{first.ID, second.ID}, seen)
}

func jobRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	job := newJob(uuid.NewString(), now())
	require.NoError(t, s.Jobs().InsertJob(ctx, job))

	got, err := s.Jobs().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.DocumentIDs, got.DocumentIDs)
	assert.Equal(t, job.Options, got.Options)
	assert.Equal(t, model.JobPending, got.Status)
	assert.Empty(t, got.ExportedURLs)

	got.Status = model.JobProcessing
	got.Progress = 50
	got.ProcessedDocuments = 1
	got.ExportedURLs = []string{"https://acme.sharepoint.com/sites/docs/Board/d1.pdf"}
	got.ExportResults = []model.ExportResult{{DocumentID: "d1", Status: model.DocumentExported, URL: got.ExportedURLs[0]}}
	got.UpdatedAt = now()
	require.NoError(t, s.Jobs().UpdateJob(ctx, got))

	again, err := s.Jobs().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, again.Progress)
	assert.Equal(t, 1, again.ProcessedDocuments)
	assert.Equal(t, got.ExportedURLs, again.ExportedURLs)
	assert.Equal(t, got.ExportResults, again.ExportResults)
	assert.Nil(t, again.CompletedAt)

	_, err = s.Jobs().GetJob(ctx, uuid.NewString())
	assert.True(t, dberr.IsNotFound(err))
	missing := newJob(job.ProjectID, now())
	assert.True(t, dberr.IsNotFound(s.Jobs().UpdateJob(ctx, missing)))
}

func terminalFrozen(t *testing.T, s store.Store) {
	ctx := context.Background()
	job := newJob(uuid.NewString(), now())
	require.NoError(t, s.Jobs().InsertJob(ctx, job))

	done := now()
	job.Status = model.JobCompleted
	job.Progress = 100
	job.ProcessedDocuments = 2
	job.CompletedAt = &done
	require.NoError(t, s.Jobs().UpdateJob(ctx, job))

	job.Status = model.JobFailed
	job.ErrorMessage = "late failure"
	err := s.Jobs().UpdateJob(ctx, job)
	var conflict *dberr.DBConflictError
	assert.ErrorAs(t, err, &conflict)

	got, err := s.Jobs().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, got.Status)
	assert.Empty(t, got.ErrorMessage)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
}

func jobPaging(t *testing.T, s store.Store) {
	ctx := context.Background()
	project := uuid.NewString()
	base := now()
	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		job := newJob(project, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.Jobs().InsertJob(ctx, job))
		ids = append(ids, job.ID)
	}
	require.NoError(t, s.Jobs().InsertJob(ctx, newJob(uuid.NewString(), base)))

	page, err := s.Jobs().SearchJobs(options.NewSearchOptions(ctx, 1, 2), project)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.True(t, page.Next)
	assert.Equal(t, ids[2], page.Data[0].ID)
	assert.Equal(t, ids[1], page.Data[1].ID)

	page, err = s.Jobs().SearchJobs(options.NewSearchOptions(ctx, 2, 2), project)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.False(t, page.Next)
	assert.Equal(t, ids[0], page.Data[0].ID)

	page, err = s.Jobs().SearchJobs(options.NewSearchOptions(ctx, 5, 2), project)
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.False(t, page.Next)
}

func unfinishedJobs(t *testing.T, s store.Store) {
	ctx := context.Background()
	project := uuid.NewString()
	base := now()

	pending := newJob(project, base.Add(-2*time.Hour))
	require.NoError(t, s.Jobs().InsertJob(ctx, pending))

	processing := newJob(project, base.Add(-3*time.Hour))
	require.NoError(t, s.Jobs().InsertJob(ctx, processing))
	processing.Status = model.JobProcessing
	processing.UpdatedAt = base.Add(-time.Hour)
	require.NoError(t, s.Jobs().UpdateJob(ctx, processing))

	finished := newJob(project, base.Add(-3*time.Hour))
	require.NoError(t, s.Jobs().InsertJob(ctx, finished))
	done := base.Add(-time.Hour)
	finished.Status = model.JobFailed
	finished.CompletedAt = &done
	finished.UpdatedAt = done
	require.NoError(t, s.Jobs().UpdateJob(ctx, finished))

	fresh := newJob(project, base)
	require.NoError(t, s.Jobs().InsertJob(ctx, fresh))

	list, err := s.Jobs().ListUnfinishedJobs(ctx, base.Add(-time.Minute))
	require.NoError(t, err)
	var seen []string
	for _, job := range list {
		if job.ProjectID == project {
			seen = append(seen, job.ID)
		}
	}
	assert.Equal(t, []string{pending.ID, processing.ID}, seen)
}
