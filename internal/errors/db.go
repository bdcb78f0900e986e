package errors

import (
	"fmt"

	"google.golang.org/grpc/codes"
)

// DBError is the base error for store failures; Op names the store operation.
type DBError struct {
	Op      string
	Message string
}

func NewDBError(op, message string) *DBError {
	return &DBError{Op: op, Message: message}
}

func (e *DBError) Error() string {
	return fmt.Sprintf("store.%s: %s", e.Op, e.Message)
}

func (e *DBError) GRPCCode() codes.Code { return codes.Internal }

type DBInternalError struct {
	DBError
	Cause error
}

func NewDBInternalError(op string, cause error) *DBInternalError {
	msg := "internal error"
	if cause != nil {
		msg = cause.Error()
	}
	return &DBInternalError{DBError: *NewDBError(op, msg), Cause: cause}
}

func (e *DBInternalError) Unwrap() error { return e.Cause }

type DBNotFoundError struct {
	DBError
}

func NewDBNotFoundError(op, message string) *DBNotFoundError {
	return &DBNotFoundError{DBError: *NewDBError(op, message)}
}

func (e *DBNotFoundError) GRPCCode() codes.Code { return codes.NotFound }

type DBUniqueViolationError struct {
	DBError
	Column string
}

func (e *DBUniqueViolationError) GRPCCode() codes.Code { return codes.AlreadyExists }

type DBForeignKeyViolationError struct {
	DBError
	ForeignKeyTable string
}

func (e *DBForeignKeyViolationError) GRPCCode() codes.Code { return codes.FailedPrecondition }

// DBConflictError is returned when an update targets a record that may no longer change.
type DBConflictError struct {
	DBError
}

func NewDBConflictError(op, message string) *DBConflictError {
	return &DBConflictError{DBError: *NewDBError(op, message)}
}

func (e *DBConflictError) GRPCCode() codes.Code { return codes.Aborted }

// IsNotFound reports whether err is a store miss.
func IsNotFound(err error) bool {
	var nf *DBNotFoundError
	return As(err, &nf) || Code(err) == codes.NotFound
}
