package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	conf "github.com/webitel/document-exporter/config"
	"github.com/webitel/document-exporter/internal/app"
	"github.com/webitel/document-exporter/internal/model"
	logging "github.com/webitel/document-exporter/internal/otel"

	// ------------ logging ------------ //
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	// -------------------- plugin(s) -------------------- //
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/log/otlp"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/log/stdout"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/metric/otlp"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/metric/stdout"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/trace/otlp"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/trace/stdout"
)

func Run() {

	// Load configuration
	config, appErr := conf.LoadConfig()
	if appErr != nil {
		slog.Error("document_exporter.main.configuration_error", slog.String("error", appErr.Error()))
		os.Exit(1)
	}

	// slog + OTEL logging
	service := resource.NewSchemaless(
		semconv.ServiceName(model.AppServiceName),
		semconv.ServiceVersion(model.CurrentVersion),
		semconv.ServiceInstanceID(config.Consul.Id),
		semconv.ServiceNamespace(model.NamespaceName),
	)
	shutdown, err := logging.Setup(context.Background(), service)
	if err != nil {
		slog.Error("document_exporter.main.otel_setup_error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize the application
	application, appErr := app.New(config, shutdown)
	if appErr != nil {
		slog.Error("document_exporter.main.application_initialization_error", slog.String("error", appErr.Error()))
		_ = shutdown(context.Background())
		os.Exit(1)
	}

	// Log the configuration
	slog.Debug("document_exporter.main.configuration_loaded",
		slog.String("database_driver", config.Database.Driver),
		slog.String("queue_driver", config.Queue.Driver),
		slog.String("http_address", config.HTTP.Addr),
		slog.String("grpc_address", config.Consul.PublicAddress),
		slog.String("consul", config.Consul.Address),
		slog.String("consul_id", config.Consul.Id),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Start the application
	slog.Info("document_exporter.main.starting_application")
	startErr := application.Start(ctx)
	if startErr != nil {
		slog.Error("document_exporter.main.application_start_error", slog.String("error", startErr.Error()))
	} else {
		slog.Info("document_exporter.main.received_stop_signal")
	}

	if err := application.Stop(); err != nil {
		slog.Error("document_exporter.main.application_stop_error", slog.String("error", err.Error()))
	}
	if startErr != nil {
		os.Exit(1)
	}
	slog.Info("document_exporter.main.service_gracefully_stopped")
}
