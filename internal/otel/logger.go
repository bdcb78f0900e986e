// Package logging wires log/slog into the OpenTelemetry SDK.
package logging

import (
	"context"
	"log/slog"
	"os"

	slogutil "github.com/webitel/webitel-go-kit/infra/otel/log/bridge/slog"
	otelsdk "github.com/webitel/webitel-go-kit/infra/otel/sdk"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/sdk/resource"

	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/log/otlp"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/log/stdout"
)

const levelEnv = "OTEL_LOG_LEVEL"

// Setup configures the OpenTelemetry SDK for service, redirects slog.Default()
// to it and returns the SDK shutdown hook.
func Setup(ctx context.Context, service *resource.Resource) (func(context.Context) error, error) {
	verbose := levelFromEnv()

	shutdown, err := otelsdk.Configure(
		ctx,
		otelsdk.WithResource(service),
		otelsdk.WithLogBridge(func() {
			slog.SetDefault(slog.New(
				slogutil.WithLevel(verbose, otelslog.NewHandler("slog")),
			))
		}),
	)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "document_exporter.otel.setup_complete", slog.String("level", verbose.Level().String()))
	return shutdown, nil
}

// levelFromEnv reads OTEL_LOG_LEVEL; unknown values keep info.
func levelFromEnv() *slog.LevelVar {
	var verbose slog.LevelVar
	verbose.Set(slog.LevelInfo)
	if input := os.Getenv(levelEnv); input != "" {
		_ = verbose.UnmarshalText([]byte(input))
	}
	return &verbose
}
