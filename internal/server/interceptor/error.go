package interceptor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	outerror "github.com/webitel/webitel-go-kit/pkg/errors"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/webitel/document-exporter/internal/errors"
)

// OuterInterceptor recovers panics and turns handler errors into gRPC
// statuses carrying an ApplicationError body.
func OuterInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if panicErr := recover(); panicErr != nil {
				slog.ErrorContext(ctx, "[PANIC RECOVER]", slog.Any("err", panicErr), slog.String("stack", string(debug.Stack())))
				resp = nil
				err = logAndReturnGRPCError(ctx, errors.Internal(fmt.Sprintf("panic: %v", panicErr), errors.WithID("api.process.panic")), info)
			}
		}()
		resp, err = handler(ctx, req)
		if err != nil {
			return nil, logAndReturnGRPCError(ctx, err, info)
		}
		return resp, nil
	}
}

// logAndReturnGRPCError logs the error and converts it to a gRPC error response.
func logAndReturnGRPCError(ctx context.Context, err error, info *grpc.UnaryServerInfo) error {
	if _, ok := status.FromError(err); ok {
		// already a status, e.g. from the health service
		return err
	}
	slog.WarnContext(ctx, fmt.Sprintf("method %s, error: %v", info.FullMethod, err.Error()))
	trace.SpanFromContext(ctx).RecordError(err)

	var (
		grpcCode codes.Code
		httpCode int
		id       string
	)
	slog.ErrorContext(ctx, errors.Details(err))
	switch grpcCode = errors.Code(err); grpcCode {
	case codes.NotFound:
		httpCode = http.StatusNotFound
		id = "api.process.not_found"
	case codes.InvalidArgument, codes.AlreadyExists:
		httpCode = http.StatusBadRequest
		id = "api.process.bad_args"
	case codes.FailedPrecondition, codes.Aborted:
		httpCode = http.StatusConflict
		id = "api.process.conflict"
	case codes.Unavailable:
		httpCode = http.StatusBadGateway
		id = "api.process.unavailable"
	default:
		grpcCode = codes.Internal
		httpCode = http.StatusInternalServerError
		id = "api.process.internal"
	}
	body, _ := json.Marshal(&outerror.ApplicationError{
		Id:            id,
		DetailedError: err.Error(),
		StatusCode:    httpCode,
		Status:        http.StatusText(httpCode),
	})
	return status.Error(grpcCode, string(body))
}
