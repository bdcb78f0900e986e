package postgres

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	dberr "github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/model"
)

const integrationTable = "document_exporter.integration"

var integrationColumns = []string{
	"id",
	"name",
	"type",
	"status",
	"configuration",
	"last_sync_at",
	"documents_synced",
	"storage_used",
	"last_error",
	"created_at",
	"updated_at",
}

type Integrations struct {
	storage *Store
}

func (m *Integrations) InsertIntegration(ctx context.Context, input *model.Integration) error {
	db, err := m.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("insert_integration", err)
	}
	cfg, err := json.Marshal(input.Configuration)
	if err != nil {
		return dberr.NewDBInternalError("insert_integration", err)
	}

	query := `
		INSERT INTO document_exporter.integration
			(id, name, type, status, configuration, last_sync_at, documents_synced, storage_used, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = db.Exec(ctx, query,
		input.ID,
		input.Name,
		input.Type,
		input.Status,
		cfg,
		input.LastSyncAt,
		input.DocumentsSynced,
		input.StorageUsed,
		input.LastError,
		input.CreatedAt,
		input.UpdatedAt,
	)
	if err != nil {
		return mapError("insert_integration", err)
	}
	return nil
}

func (m *Integrations) UpdateIntegration(ctx context.Context, input *model.Integration) error {
	db, err := m.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("update_integration", err)
	}
	cfg, err := json.Marshal(input.Configuration)
	if err != nil {
		return dberr.NewDBInternalError("update_integration", err)
	}

	query := `
		UPDATE document_exporter.integration
		SET name = $1,
		    status = $2,
		    configuration = $3,
		    last_sync_at = $4,
		    documents_synced = $5,
		    storage_used = $6,
		    last_error = $7,
		    updated_at = $8
		WHERE id = $9
	`
	cmd, err := db.Exec(ctx, query,
		input.Name,
		input.Status,
		cfg,
		input.LastSyncAt,
		input.DocumentsSynced,
		input.StorageUsed,
		input.LastError,
		input.UpdatedAt,
		input.ID,
	)
	if err != nil {
		return mapError("update_integration", err)
	}
	if cmd.RowsAffected() == 0 {
		return dberr.NewDBNotFoundError("update_integration", "no integration found for id="+input.ID)
	}
	return nil
}

func (m *Integrations) DeleteIntegration(ctx context.Context, id string) error {
	db, err := m.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("delete_integration", err)
	}
	cmd, err := db.Exec(ctx, `DELETE FROM document_exporter.integration WHERE id = $1`, id)
	if err != nil {
		return mapError("delete_integration", err)
	}
	if cmd.RowsAffected() == 0 {
		return dberr.NewDBNotFoundError("delete_integration", "no integration found for id="+id)
	}
	return nil
}

func (m *Integrations) GetIntegration(ctx context.Context, id string) (*model.Integration, error) {
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("get_integration", err)
	}
	sqlStr, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select(integrationColumns...).
		From(integrationTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError("get_integration", err)
	}
	in, err := scanIntegration(db.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return nil, mapError("get_integration", err)
	}
	return in, nil
}

func (m *Integrations) ListIntegrations(ctx context.Context) ([]model.Integration, error) {
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("list_integrations", err)
	}
	sqlStr, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select(integrationColumns...).
		From(integrationTable).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError("list_integrations", err)
	}
	rows, err := db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapError("list_integrations", err)
	}
	defer rows.Close()

	out := make([]model.Integration, 0)
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, dberr.NewDBInternalError("list_integrations", err)
		}
		out = append(out, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.NewDBInternalError("list_integrations", err)
	}
	return out, nil
}

func scanIntegration(row pgx.Row) (*model.Integration, error) {
	var (
		in         model.Integration
		cfg        []byte
		lastSyncAt *time.Time
	)
	err := row.Scan(
		&in.ID,
		&in.Name,
		&in.Type,
		&in.Status,
		&cfg,
		&lastSyncAt,
		&in.DocumentsSynced,
		&in.StorageUsed,
		&in.LastError,
		&in.CreatedAt,
		&in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &in.Configuration); err != nil {
			return nil, err
		}
	}
	in.LastSyncAt = lastSyncAt
	return &in, nil
}
