package postgres

import (
	"context"
	_ "embed"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	conf "github.com/webitel/document-exporter/config"
	"github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/store"
	otelpgx "github.com/webitel/webitel-go-kit/infra/otel/instrumentation/pgx"
)

//go:embed schema.sql
var schema string

// Store is the struct implementing the Store interface.
type Store struct {
	integrationStore store.IntegrationStore
	jobStore         store.JobStore
	config           *conf.DatabaseConfig
	conn             *pgxpool.Pool
}

// New creates a new Store instance.
func New(config *conf.DatabaseConfig) *Store {
	return &Store{config: config}
}

func (s *Store) Integrations() store.IntegrationStore {
	if s.integrationStore == nil {
		s.integrationStore = &Integrations{storage: s}
	}
	return s.integrationStore
}

func (s *Store) Jobs() store.JobStore {
	if s.jobStore == nil {
		s.jobStore = &Jobs{storage: s}
	}
	return s.jobStore
}

// Database returns the database connection or a custom error if it is not opened.
func (s *Store) Database() (*pgxpool.Pool, error) {
	if s.conn == nil {
		return nil, errors.New("database connection is not opened")
	}
	return s.conn, nil
}

// Open establishes a connection to the database and applies the schema.
func (s *Store) Open() error {
	config, err := pgxpool.ParseConfig(s.config.Url)
	if err != nil {
		return err
	}

	// Attach the OpenTelemetry tracer for pgx
	config.ConnConfig.Tracer = otelpgx.NewTracer(otelpgx.WithTrimSQLInSpanName())

	conn, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return err
	}
	if _, err := conn.Exec(context.Background(), schema); err != nil {
		conn.Close()
		return errors.Internal("apply schema", errors.WithCause(err), errors.WithID("store.postgres.schema"))
	}
	s.conn = conn
	slog.Debug("document_exporter.store.connection_opened", slog.String("message", "postgres: connection opened"))
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		s.conn.Close()
		slog.Debug("document_exporter.store.connection_closed", slog.String("message", "postgres: connection closed"))
		s.conn = nil
	}
	return nil
}
