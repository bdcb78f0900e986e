package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
)

// AppError is the error type returned across service boundaries.
type AppError struct {
	ID      string
	Message string
	Status  codes.Code
	Cause   error
}

type Option func(*AppError)

func WithID(id string) Option {
	return func(e *AppError) { e.ID = id }
}

func WithCode(code codes.Code) Option {
	return func(e *AppError) { e.Status = code }
}

func WithCause(err error) Option {
	return func(e *AppError) { e.Cause = err }
}

// New creates an error with codes.Unknown unless WithCode is given.
func New(message string, opts ...Option) error {
	e := &AppError{Message: message, Status: codes.Unknown}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Internal(message string, opts ...Option) error {
	return New(message, append([]Option{WithCode(codes.Internal)}, opts...)...)
}

func InvalidArgument(message string, opts ...Option) error {
	return New(message, append([]Option{WithCode(codes.InvalidArgument)}, opts...)...)
}

func NotFound(message string, opts ...Option) error {
	return New(message, append([]Option{WithCode(codes.NotFound)}, opts...)...)
}

func FailedPrecondition(message string, opts ...Option) error {
	return New(message, append([]Option{WithCode(codes.FailedPrecondition)}, opts...)...)
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Code walks the chain and returns the first status code found.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var coder interface{ GRPCCode() codes.Code }
	if stderrors.As(err, &coder) {
		return coder.GRPCCode()
	}
	var app *AppError
	if stderrors.As(err, &app) {
		return app.Status
	}
	return codes.Unknown
}

func (e *AppError) GRPCCode() codes.Code { return e.Status }

// Details renders the id and the whole cause chain, for logs.
func Details(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	for cur := err; cur != nil; cur = stderrors.Unwrap(cur) {
		if b.Len() > 0 {
			b.WriteString(" <- ")
		}
		if app, ok := cur.(*AppError); ok {
			if app.ID != "" {
				b.WriteString("[" + app.ID + "] ")
			}
			b.WriteString(app.Message)
			continue
		}
		b.WriteString(cur.Error())
	}
	return b.String()
}

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Join(errs ...error) error { return stderrors.Join(errs...) }
