package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	dberr "github.com/webitel/document-exporter/internal/errors"
)

func mapError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return dberr.NewDBNotFoundError(op, "record not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return &dberr.DBUniqueViolationError{
				DBError: *dberr.NewDBError(op, pgErr.Message),
				Column:  pgErr.ConstraintName,
			}
		case "23503": // foreign_key_violation
			return &dberr.DBForeignKeyViolationError{
				DBError:         *dberr.NewDBError(op, pgErr.Message),
				ForeignKeyTable: pgErr.TableName,
			}
		}
	}
	return dberr.NewDBInternalError(op, err)
}
