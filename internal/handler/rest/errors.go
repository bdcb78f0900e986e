package rest

import (
	"net/http"

	goi18n "github.com/nicksnyder/go-i18n/i18n"
	outerror "github.com/webitel/webitel-go-kit/pkg/errors"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"

	"github.com/webitel/document-exporter/internal/errors"
)

// writeError logs err and answers with an ApplicationError body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	trace.SpanFromContext(ctx).RecordError(err)

	code, id := classify(err)
	if code >= http.StatusInternalServerError {
		h.log.ErrorContext(ctx, errors.Details(err), "method", r.Method, "path", r.URL.Path)
	} else {
		h.log.WarnContext(ctx, err.Error(), "method", r.Method, "path", r.URL.Path)
	}

	writeJSON(w, code, &outerror.ApplicationError{
		Id:            id,
		DetailedError: message(err, h.translator(r)),
		StatusCode:    code,
		Status:        http.StatusText(code),
	})
}

func classify(err error) (int, string) {
	var exportErr *errors.ExportError
	if errors.As(err, &exportErr) {
		if errors.Is(err, errors.ErrIntegrationUnavailable) {
			return http.StatusConflict, exportErr.Id
		}
		return http.StatusBadRequest, exportErr.Id
	}
	if errors.IsNotFound(err) {
		return http.StatusNotFound, "api.process.not_found"
	}

	id := "api.process.internal"
	var app *errors.AppError
	if errors.As(err, &app) && app.ID != "" {
		id = app.ID
	}
	switch errors.Code(err) {
	case codes.InvalidArgument:
		if id == "api.process.internal" {
			id = "api.process.bad_args"
		}
		return http.StatusBadRequest, id
	case codes.FailedPrecondition, codes.Aborted, codes.AlreadyExists:
		return http.StatusConflict, id
	case codes.Unavailable:
		return http.StatusBadGateway, id
	default:
		return http.StatusInternalServerError, id
	}
}

func message(err error, T goi18n.TranslateFunc) string {
	var exportErr *errors.ExportError
	if errors.As(err, &exportErr) {
		return exportErr.Translate(T)
	}
	return err.Error()
}
