package postgres

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	dberr "github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/model"
	"github.com/webitel/document-exporter/internal/model/options"
)

const jobTable = "document_exporter.export_job"

var jobColumns = []string{
	"id",
	"project_id",
	"integration_id",
	"status",
	"progress",
	"total_documents",
	"processed_documents",
	"export_format",
	"document_ids",
	"options",
	"started_at",
	"completed_at",
	"updated_at",
	"exported_urls",
	"error_message",
	"export_results",
	"retry_of",
}

type Jobs struct {
	storage *Store
}

// jobPayload holds the jsonb columns of a job.
type jobPayload struct {
	documentIDs, options, urls, results []byte
}

func marshalJob(input *model.ExportJob) (*jobPayload, error) {
	var (
		p   jobPayload
		err error
	)
	if p.documentIDs, err = json.Marshal(nonNil(input.DocumentIDs)); err != nil {
		return nil, err
	}
	if p.options, err = json.Marshal(input.Options); err != nil {
		return nil, err
	}
	if p.urls, err = json.Marshal(nonNil(input.ExportedURLs)); err != nil {
		return nil, err
	}
	results := input.ExportResults
	if results == nil {
		results = []model.ExportResult{}
	}
	if p.results, err = json.Marshal(results); err != nil {
		return nil, err
	}
	return &p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (m *Jobs) InsertJob(ctx context.Context, input *model.ExportJob) error {
	db, err := m.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("insert_job", err)
	}
	p, err := marshalJob(input)
	if err != nil {
		return dberr.NewDBInternalError("insert_job", err)
	}

	query := `
		INSERT INTO document_exporter.export_job
			(id, project_id, integration_id, status, progress, total_documents, processed_documents,
			 export_format, document_ids, options, started_at, completed_at, updated_at,
			 exported_urls, error_message, export_results, retry_of)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = db.Exec(ctx, query,
		input.ID,
		input.ProjectID,
		input.IntegrationID,
		input.Status,
		input.Progress,
		input.TotalDocuments,
		input.ProcessedDocuments,
		input.ExportFormat,
		p.documentIDs,
		p.options,
		input.StartedAt,
		input.CompletedAt,
		input.UpdatedAt,
		p.urls,
		input.ErrorMessage,
		p.results,
		input.RetryOf,
	)
	if err != nil {
		return mapError("insert_job", err)
	}
	return nil
}

// UpdateJob only touches non-terminal rows; a miss is resolved into not-found or conflict.
func (m *Jobs) UpdateJob(ctx context.Context, input *model.ExportJob) error {
	db, err := m.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("update_job", err)
	}
	p, err := marshalJob(input)
	if err != nil {
		return dberr.NewDBInternalError("update_job", err)
	}

	query := `
		UPDATE document_exporter.export_job
		SET status = $1,
		    progress = $2,
		    processed_documents = $3,
		    completed_at = $4,
		    updated_at = $5,
		    exported_urls = $6,
		    error_message = $7,
		    export_results = $8
		WHERE id = $9
		  AND status IN ('pending', 'processing')
	`
	cmd, err := db.Exec(ctx, query,
		input.Status,
		input.Progress,
		input.ProcessedDocuments,
		input.CompletedAt,
		input.UpdatedAt,
		p.urls,
		input.ErrorMessage,
		p.results,
		input.ID,
	)
	if err != nil {
		return mapError("update_job", err)
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = db.QueryRow(ctx, `SELECT status FROM document_exporter.export_job WHERE id = $1`, input.ID).Scan(&status)
	if err != nil {
		return mapError("update_job", err)
	}
	return dberr.NewDBConflictError("update_job", "export job "+input.ID+" is already "+status)
}

func (m *Jobs) GetJob(ctx context.Context, id string) (*model.ExportJob, error) {
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("get_job", err)
	}
	sqlStr, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select(jobColumns...).
		From(jobTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError("get_job", err)
	}
	job, err := scanJob(db.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return nil, mapError("get_job", err)
	}
	return job, nil
}

func (m *Jobs) SearchJobs(opts *options.SearchOptions, projectID string) (*model.JobPage, error) {
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("search_jobs", err)
	}

	query := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select(jobColumns...).
		From(jobTable).
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("started_at DESC", "id DESC").
		Offset(uint64(opts.Offset())).
		Limit(uint64(opts.Limit()))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError("search_jobs", err)
	}

	rows, err := db.Query(opts, sqlStr, args...)
	if err != nil {
		return nil, mapError("search_jobs", err)
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
	if err = rows.Err(); err != nil {
		return nil, dberr.NewDBInternalError("search_jobs", err)
	}

	// Check has_next
	hasNext := false
	if len(records) > opts.Size {
		hasNext = true
		records = records[:opts.Size]
	}

	return &model.JobPage{Page: opts.Page, Next: hasNext, Data: records}, nil
}

func (m *Jobs) ListUnfinishedJobs(ctx context.Context, updatedBefore time.Time) ([]model.ExportJob, error) {
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("list_unfinished_jobs", err)
	}
	sqlStr, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select(jobColumns...).
		From(jobTable).
		Where(sq.Eq{"status": []string{string(model.JobPending), string(model.JobProcessing)}}).
		Where(sq.Lt{"updated_at": updatedBefore}).
		OrderBy("updated_at", "id").
		ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError("list_unfinished_jobs", err)
	}
	rows, err := db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapError("list_unfinished_jobs", err)
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
	if err = rows.Err(); err != nil {
		return nil, dberr.NewDBInternalError("list_unfinished_jobs", err)
	}
	return out, nil
}

func scanJob(row pgx.Row) (*model.ExportJob, error) {
	var (
		job                         model.ExportJob
		docIDs, opts, urls, results []byte
		completedAt                 *time.Time
	)
	err := row.Scan(
		&job.ID,
		&job.ProjectID,
		&job.IntegrationID,
		&job.Status,
		&job.Progress,
		&job.TotalDocuments,
		&job.ProcessedDocuments,
		&job.ExportFormat,
		&docIDs,
		&opts,
		&job.StartedAt,
		&completedAt,
		&job.UpdatedAt,
		&urls,
		&job.ErrorMessage,
		&results,
		&job.RetryOf,
	)
	if err != nil {
		return nil, err
	}
	job.CompletedAt = completedAt
	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{docIDs, &job.DocumentIDs},
		{opts, &job.Options},
		{urls, &job.ExportedURLs},
		{results, &job.ExportResults},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, err
		}
	}
	return &job, nil
}
