package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	dberr "github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/model"
)

var integrationColumns = []string{
	"id", "name", "type", "status", "configuration", "last_sync_at",
	"documents_synced", "storage_used", "last_error", "created_at", "updated_at",
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
	sqlStr, args, err := builder().
		Insert("integration").
		Columns(integrationColumns...).
		Values(
			input.ID,
			input.Name,
			string(input.Type),
			string(input.Status),
			string(cfg),
			millisPtr(input.LastSyncAt),
			input.DocumentsSynced,
			input.StorageUsed,
			input.LastError,
			input.CreatedAt.UnixMilli(),
			input.UpdatedAt.UnixMilli(),
		).
		ToSql()
	if err != nil {
		return dberr.NewDBInternalError("insert_integration", err)
	}
	if _, err := db.ExecContext(ctx, sqlStr, args...); err != nil {
		return dberr.NewDBInternalError("insert_integration", err)
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
	sqlStr, args, err := builder().
		Update("integration").
		Set("name", input.Name).
		Set("status", string(input.Status)).
		Set("configuration", string(cfg)).
		Set("last_sync_at", millisPtr(input.LastSyncAt)).
		Set("documents_synced", input.DocumentsSynced).
		Set("storage_used", input.StorageUsed).
		Set("last_error", input.LastError).
		Set("updated_at", input.UpdatedAt.UnixMilli()).
		Where("id = ?", input.ID).
		ToSql()
	if err != nil {
		return dberr.NewDBInternalError("update_integration", err)
	}
	res, err := db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return dberr.NewDBInternalError("update_integration", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dberr.NewDBNotFoundError("update_integration", "no integration found for id="+input.ID)
	}
	return nil
}

func (m *Integrations) DeleteIntegration(ctx context.Context, id string) error {
	db, err := m.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("delete_integration", err)
	}
	res, err := db.ExecContext(ctx, `DELETE FROM integration WHERE id = ?`, id)
	if err != nil {
		return dberr.NewDBInternalError("delete_integration", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dberr.NewDBNotFoundError("delete_integration", "no integration found for id="+id)
	}
	return nil
}

func (m *Integrations) GetIntegration(ctx context.Context, id string) (*model.Integration, error) {
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("get_integration", err)
	}
	sqlStr, args, err := builder().Select(integrationColumns...).From("integration").Where("id = ?", id).ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError("get_integration", err)
	}
	in, err := scanIntegration(db.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dberr.NewDBNotFoundError("get_integration", "no integration found for id="+id)
	}
	if err != nil {
		return nil, dberr.NewDBInternalError("get_integration", err)
	}
	return in, nil
}

func (m *Integrations) ListIntegrations(ctx context.Context) ([]model.Integration, error) {
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("list_integrations", err)
	}
	sqlStr, args, err := builder().Select(integrationColumns...).From("integration").OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError("list_integrations", err)
	}
	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, dberr.NewDBInternalError("list_integrations", err)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanIntegration(row scanner) (*model.Integration, error) {
	var (
		in                   model.Integration
		typ, status, cfg     string
		lastSyncAt           sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&in.ID,
		&in.Name,
		&typ,
		&status,
		&cfg,
		&lastSyncAt,
		&in.DocumentsSynced,
		&in.StorageUsed,
		&in.LastError,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	in.Type = model.IntegrationType(typ)
	in.Status = model.IntegrationStatus(status)
	if err := json.Unmarshal([]byte(cfg), &in.Configuration); err != nil {
		return nil, err
	}
	if lastSyncAt.Valid {
		t := time.UnixMilli(lastSyncAt.Int64).UTC()
		in.LastSyncAt = &t
	}
	in.CreatedAt = time.UnixMilli(createdAt).UTC()
	in.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &in, nil
}

func millisPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
