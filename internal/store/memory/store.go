// Package memory is a process-local Store used by tests and single-node setups.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	dberr "github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/model"
	"github.com/webitel/document-exporter/internal/model/options"
	"github.com/webitel/document-exporter/internal/store"
)

type Store struct {
	mu           sync.RWMutex
	integrations map[string]model.Integration
	jobs         map[string]model.ExportJob
}

func New() *Store {
	return &Store{
		integrations: make(map[string]model.Integration),
		jobs:         make(map[string]model.ExportJob),
	}
}

func (s *Store) Integrations() store.IntegrationStore { return (*integrationStore)(s) }
func (s *Store) Jobs() store.JobStore                 { return (*jobStore)(s) }
func (s *Store) Open() error                          { return nil }
func (s *Store) Close() error                         { return nil }

type integrationStore Store

func (s *integrationStore) InsertIntegration(_ context.Context, input *model.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.integrations[input.ID]; ok {
		return &dberr.DBUniqueViolationError{
			DBError: *dberr.NewDBError("insert_integration", "integration already exists"),
			Column:  "id",
		}
	}
	s.integrations[input.ID] = cloneIntegration(*input)
	return nil
}

func (s *integrationStore) UpdateIntegration(_ context.Context, input *model.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.integrations[input.ID]; !ok {
		return dberr.NewDBNotFoundError("update_integration", "no integration found for id="+input.ID)
	}
	s.integrations[input.ID] = cloneIntegration(*input)
	return nil
}

func (s *integrationStore) DeleteIntegration(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.integrations[id]; !ok {
		return dberr.NewDBNotFoundError("delete_integration", "no integration found for id="+id)
	}
	delete(s.integrations, id)
	return nil
}

func (s *integrationStore) GetIntegration(_ context.Context, id string) (*model.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.integrations[id]
	if !ok {
		return nil, dberr.NewDBNotFoundError("get_integration", "no integration found for id="+id)
	}
	out := cloneIntegration(in)
	return &out, nil
}

func (s *integrationStore) ListIntegrations(_ context.Context) ([]model.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Integration, 0, len(s.integrations))
	for _, in := range s.integrations {
		out = append(out, cloneIntegration(in))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func cloneIntegration(in model.Integration) model.Integration {
	if in.Configuration.Credentials != nil {
		creds := make(map[string]string, len(in.Configuration.Credentials))
		for k, v := range in.Configuration.Credentials {
			creds[k] = v
		}
		in.Configuration.Credentials = creds
	}
	if in.LastSyncAt != nil {
		t := *in.LastSyncAt
		in.LastSyncAt = &t
	}
	return in
}

type jobStore Store

func (s *jobStore) InsertJob(_ context.Context, input *model.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[input.ID]; ok {
		return &dberr.DBUniqueViolationError{
			DBError: *dberr.NewDBError("insert_job", "job already exists"),
			Column:  "id",
		}
	}
	s.jobs[input.ID] = input.Clone()
	return nil
}

func (s *jobStore) UpdateJob(_ context.Context, input *model.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.jobs[input.ID]
	if !ok {
		return dberr.NewDBNotFoundError("update_job", "no export job found for id="+input.ID)
	}
	if current.Status.Terminal() {
		return dberr.NewDBConflictError("update_job", "export job "+input.ID+" is already "+string(current.Status))
	}
	s.jobs[input.ID] = input.Clone()
	return nil
}

func (s *jobStore) GetJob(_ context.Context, id string) (*model.ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, dberr.NewDBNotFoundError("get_job", "no export job found for id="+id)
	}
	out := job.Clone()
	return &out, nil
}

func (s *jobStore) SearchJobs(opts *options.SearchOptions, projectID string) (*model.JobPage, error) {
	s.mu.RLock()
	matched := make([]model.ExportJob, 0)
	for _, job := range s.jobs {
		if job.ProjectID == projectID {
			matched = append(matched, job.Clone())
		}
	}
	s.mu.RUnlock()

	// newest first
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].StartedAt.Equal(matched[j].StartedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	page := &model.JobPage{Page: opts.Page, Data: []model.ExportJob{}}
	from := opts.Offset()
	if from >= len(matched) {
		return page, nil
	}
	to := from + opts.Limit()
	if to > len(matched) {
		to = len(matched)
	}
	records := matched[from:to]
	if len(records) > opts.Size {
		page.Next = true
		records = records[:opts.Size]
	}
	page.Data = records
	return page, nil
}

func (s *jobStore) ListUnfinishedJobs(_ context.Context, updatedBefore time.Time) ([]model.ExportJob, error) {
	s.mu.RLock()
	out := make([]model.ExportJob, 0)
	for _, job := range s.jobs {
		if !job.Status.Terminal() && job.UpdatedAt.Before(updatedBefore) {
			out = append(out, job.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}
