package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	dberr "github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/model"
	"github.com/webitel/document-exporter/internal/model/options"
)

var jobColumns = []string{
	"id", "project_id", "integration_id", "status", "progress", "total_documents",
	"processed_documents", "export_format", "document_ids", "options", "started_at",
	"completed_at", "updated_at", "exported_urls", "error_message", "export_results", "retry_of",
}

type Jobs struct {
	storage *Store
}

func (m *Jobs) InsertJob(ctx context.Context, input *model.ExportJob) error {
	db, err := m.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("insert_job", err)
	}
	docIDs, opts, urls, results, err := encodeJob(input)
	if err != nil {
		return dberr.NewDBInternalError("insert_job", err)
	}
	sqlStr, args, err := builder().
		Insert("export_job").
		Columns(jobColumns...).
		Values(
			input.ID,
			input.ProjectID,
			input.IntegrationID,
			string(input.Status),
			input.Progress,
			input.TotalDocuments,
			input.ProcessedDocuments,
			string(input.ExportFormat),
			docIDs,
			opts,
			input.StartedAt.UnixMilli(),
			millisPtr(input.CompletedAt),
			input.UpdatedAt.UnixMilli(),
			urls,
			input.ErrorMessage,
			results,
			input.RetryOf,
		).
		ToSql()
	if err != nil {
		return dberr.NewDBInternalError("insert_job", err)
	}
	if _, err := db.ExecContext(ctx, sqlStr, args...); err != nil {
		return dberr.NewDBInternalError("insert_job", err)
	}
	return nil
}

func (m *Jobs) UpdateJob(ctx context.Context, input *model.ExportJob) error {
	db, err := m.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("update_job", err)
	}
	_, _, urls, results, err := encodeJob(input)
	if err != nil {
		return dberr.NewDBInternalError("update_job", err)
	}
	sqlStr, args, err := builder().
		Update("export_job").
		Set("status", string(input.Status)).
		Set("progress", input.Progress).
		Set("processed_documents", input.ProcessedDocuments).
		Set("completed_at", millisPtr(input.CompletedAt)).
		Set("updated_at", input.UpdatedAt.UnixMilli()).
		Set("exported_urls", urls).
		Set("error_message", input.ErrorMessage).
		Set("export_results", results).
		Where(sq.Eq{"id": input.ID, "status": []string{string(model.JobPending), string(model.JobProcessing)}}).
		ToSql()
	if err != nil {
		return dberr.NewDBInternalError("update_job", err)
	}
	res, err := db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return dberr.NewDBInternalError("update_job", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var status string
	err = db.QueryRowContext(ctx, `SELECT status FROM export_job WHERE id = ?`, input.ID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return dberr.NewDBNotFoundError("update_job", "no export job found for id="+input.ID)
	}
	if err != nil {
		return dberr.NewDBInternalError("update_job", err)
	}
	return dberr.NewDBConflictError("update_job", "export job "+input.ID+" is already "+status)
}

func (m *Jobs) GetJob(ctx context.Context, id string) (*model.ExportJob, error) {
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("get_job", err)
	}
	sqlStr, args, err := builder().Select(jobColumns...).From("export_job").Where("id = ?", id).ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError("get_job", err)
	}
	job, err := scanJob(db.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dberr.NewDBNotFoundError("get_job", "no export job found for id="+id)
	}
	if err != nil {
		return nil, dberr.NewDBInternalError("get_job", err)
	}
	return job, nil
}

func (m *Jobs) SearchJobs(opts *options.SearchOptions, projectID string) (*model.JobPage, error) {
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("search_jobs", err)
	}
	sqlStr, args, err := builder().
		Select(jobColumns...).
		From("export_job").
		Where("project_id = ?", projectID).
		OrderBy("started_at DESC", "id DESC").
		Offset(uint64(opts.Offset())).
		Limit(uint64(opts.Limit())).
		ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError("search_jobs", err)
	}
	rows, err := db.QueryContext(opts, sqlStr, args...)
	if err != nil {
		return nil, dberr.NewDBInternalError("search_jobs", err)
	}
	defer rows.Close()

	records := make([]model.ExportJob, 0, opts.Size)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, dberr.NewDBInternalError("search_jobs", err)
		}
		records = append(records, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.NewDBInternalError("search_jobs", err)
	}

	page := &model.JobPage{Page: opts.Page, Data: records}
	if len(records) > opts.Size {
		page.Next = true
		page.Data = records[:opts.Size]
	}
	return page, nil
}

func (m *Jobs) ListUnfinishedJobs(ctx context.Context, updatedBefore time.Time) ([]model.ExportJob, error) {
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("list_unfinished_jobs", err)
	}
	sqlStr, args, err := builder().
		Select(jobColumns...).
		From("export_job").
		Where(sq.Eq{"status": []string{string(model.JobPending), string(model.JobProcessing)}}).
		Where(sq.Lt{"updated_at": updatedBefore.UnixMilli()}).
		OrderBy("updated_at", "id").
		ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError("list_unfinished_jobs", err)
	}
	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, dberr.NewDBInternalError("list_unfinished_jobs", err)
	}
	defer rows.Close()

	out := make([]model.ExportJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, dberr.NewDBInternalError("list_unfinished_jobs", err)
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.NewDBInternalError("list_unfinished_jobs", err)
	}
	return out, nil
}

func encodeJob(input *model.ExportJob) (docIDs, opts, urls, results string, err error) {
	marshal := func(v any) string {
		if err != nil {
			return ""
		}
		var b []byte
		b, err = json.Marshal(v)
		return string(b)
	}
	ids := input.DocumentIDs
	if ids == nil {
		ids = []string{}
	}
	exported := input.ExportedURLs
	if exported == nil {
		exported = []string{}
	}
	res := input.ExportResults
	if res == nil {
		res = []model.ExportResult{}
	}
	docIDs = marshal(ids)
	opts = marshal(input.Options)
	urls = marshal(exported)
	results = marshal(res)
	return docIDs, opts, urls, results, err
}

func scanJob(row scanner) (*model.ExportJob, error) {
	var (
		job                         model.ExportJob
		status, format              string
		docIDs, opts, urls, results string
		startedAt, updatedAt        int64
		completedAt                 sql.NullInt64
	)
	err := row.Scan(
		&job.ID,
		&job.ProjectID,
		&job.IntegrationID,
		&status,
		&job.Progress,
		&job.TotalDocuments,
		&job.ProcessedDocuments,
		&format,
		&docIDs,
		&opts,
		&startedAt,
		&completedAt,
		&updatedAt,
		&urls,
		&job.ErrorMessage,
		&results,
		&job.RetryOf,
	)
	if err != nil {
		return nil, err
	}
	job.Status = model.JobStatus(status)
	job.ExportFormat = model.Format(format)
	job.StartedAt = time.UnixMilli(startedAt).UTC()
	job.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64).UTC()
		job.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(docIDs), &job.DocumentIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(opts), &job.Options); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(urls), &job.ExportedURLs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(results), &job.ExportResults); err != nil {
		return nil, err
	}
	return &job, nil
}
