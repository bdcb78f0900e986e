// Package sqlite is an embedded Store backed by modernc.org/sqlite.
package sqlite

import (
	"database/sql"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/store"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS integration (
  id               TEXT PRIMARY KEY,
  name             TEXT NOT NULL,
  type             TEXT NOT NULL,
  status           TEXT NOT NULL,
  configuration    TEXT NOT NULL DEFAULT '{}',
  last_sync_at     INTEGER,
  documents_synced INTEGER NOT NULL DEFAULT 0,
  storage_used     INTEGER NOT NULL DEFAULT 0,
  last_error       TEXT NOT NULL DEFAULT '',
  created_at       INTEGER NOT NULL,
  updated_at       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS export_job (
  id                  TEXT PRIMARY KEY,
  project_id          TEXT NOT NULL,
  integration_id      TEXT NOT NULL,
  status              TEXT NOT NULL,
  progress            INTEGER NOT NULL DEFAULT 0,
  total_documents     INTEGER NOT NULL,
  processed_documents INTEGER NOT NULL DEFAULT 0,
  export_format       TEXT NOT NULL,
  document_ids        TEXT NOT NULL DEFAULT '[]',
  options             TEXT NOT NULL DEFAULT '{}',
  started_at          INTEGER NOT NULL,
  completed_at        INTEGER,
  updated_at          INTEGER NOT NULL,
  exported_urls       TEXT NOT NULL DEFAULT '[]',
  error_message       TEXT NOT NULL DEFAULT '',
  export_results      TEXT NOT NULL DEFAULT '[]',
  retry_of            TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS export_job_project_started_idx ON export_job (project_id, started_at DESC);
`

type Store struct {
	path string
	db   *sql.DB
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Integrations() store.IntegrationStore { return &Integrations{storage: s} }
func (s *Store) Jobs() store.JobStore                 { return &Jobs{storage: s} }

func (s *Store) Database() (*sql.DB, error) {
	if s.db == nil {
		return nil, errors.New("database connection is not opened")
	}
	return s.db, nil
}

func (s *Store) Open() error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// a second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return errors.Internal("apply schema", errors.WithCause(err), errors.WithID("store.sqlite.schema"))
	}
	s.db = db
	slog.Debug("document_exporter.store.connection_opened", slog.String("message", "sqlite: database opened"), slog.String("path", s.path))
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}
