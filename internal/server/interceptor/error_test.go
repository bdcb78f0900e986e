package interceptor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	outerror "github.com/webitel/webitel-go-kit/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/webitel/document-exporter/internal/errors"
)

var info = &grpc.UnaryServerInfo{FullMethod: "/test.Service/Call"}

func TestOuterInterceptorRecoversPanic(t *testing.T) {
	resp, err := OuterInterceptor()(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		panic("boom")
	})
	assert.Nil(t, resp)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Contains(t, st.Message(), "boom")
}

func TestOuterInterceptorMapsErrors(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
		id   string
	}{
		{errors.NewDBNotFoundError("get_job", "missing"), codes.NotFound, "api.process.not_found"},
		{errors.InvalidArgument("bad"), codes.InvalidArgument, "api.process.bad_args"},
		{errors.FailedPrecondition("running"), codes.FailedPrecondition, "api.process.conflict"},
		{errors.New("down", errors.WithCode(codes.Unavailable)), codes.Unavailable, "api.process.unavailable"},
		{errors.New("oops"), codes.Internal, "api.process.internal"},
	}
	for _, tt := range tests {
		_, err := OuterInterceptor()(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
			return nil, tt.err
		})
		st, ok := status.FromError(err)
		require.True(t, ok)
		assert.Equal(t, tt.code, st.Code())

		var appErr outerror.ApplicationError
		require.NoError(t, json.Unmarshal([]byte(st.Message()), &appErr))
		assert.Equal(t, tt.id, appErr.Id)
	}
}

func TestOuterInterceptorPassesStatus(t *testing.T) {
	_, err := OuterInterceptor()(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	})
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.Equal(t, "unknown service", status.Convert(err).Message())
}
