package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	goi18n "github.com/nicksnyder/go-i18n/i18n"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	cfg "github.com/webitel/document-exporter/config"
	"github.com/webitel/document-exporter/internal/adapter"
	"github.com/webitel/document-exporter/internal/cache"
	memcache "github.com/webitel/document-exporter/internal/cache/memory"
	rediscache "github.com/webitel/document-exporter/internal/cache/redis"
	"github.com/webitel/document-exporter/internal/documents"
	"github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/i18n"
	"github.com/webitel/document-exporter/internal/integration"
	"github.com/webitel/document-exporter/internal/job"
	"github.com/webitel/document-exporter/internal/metrics"
	"github.com/webitel/document-exporter/internal/notify"
	"github.com/webitel/document-exporter/internal/server"
	"github.com/webitel/document-exporter/internal/service"
	"github.com/webitel/document-exporter/internal/store"
	"github.com/webitel/document-exporter/internal/store/memory"
	"github.com/webitel/document-exporter/internal/store/postgres"
	"github.com/webitel/document-exporter/internal/store/sqlite"
)

const (
	memoryQueueCapacity = 1024
	memoryPopTimeout    = 2 * time.Second
	shutdownTimeout     = 10 * time.Second
)

type App struct {
	Config   *cfg.AppConfig
	log      *slog.Logger
	exitCh   chan error
	shutdown func(ctx context.Context) error

	Store   store.Store
	Cache   cache.Cache
	Metrics *prometheus.Registry

	T            goi18n.TranslateFunc
	recorder     metrics.Recorder
	notifier     notify.Notifier
	nats         *notify.NATS
	adapters     *adapter.Registry
	documents    documents.Source
	Integrations *integration.Registry
	scheduler    *integration.Scheduler
	Jobs         *job.Manager
	Dispatcher   *job.Dispatcher
	Monitor      *job.Monitor
	sweeper      *job.Sweeper
	Service      service.ExportService

	server     *server.Server
	httpServer *server.HTTPServer

	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// New creates a fully initialized App.
func New(config *cfg.AppConfig, shutdown func(ctx context.Context) error) (*App, error) {
	app := &App{
		Config:   config,
		shutdown: shutdown,
		exitCh:   make(chan error, 2),
		log:      slog.Default(),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}
	if err := app.initCache(); err != nil {
		return nil, err
	}
	if err := app.initTelemetry(); err != nil {
		return nil, err
	}
	if err := app.initNotifier(); err != nil {
		return nil, err
	}
	if err := app.initExport(); err != nil {
		return nil, err
	}
	if err := app.initServers(); err != nil {
		return nil, err
	}

	return app, nil
}

// --------- Private init methods ---------

func (app *App) initStore() error {
	if app.Config.Database == nil {
		return errors.New("database config is nil")
	}
	switch app.Config.Database.Driver {
	case cfg.DriverPostgres:
		app.Store = postgres.New(app.Config.Database)
	case cfg.DriverSQLite:
		app.Store = sqlite.New(app.Config.Database.Url)
	case cfg.DriverMemory:
		app.Store = memory.New()
	default:
		return errors.New("unknown database driver " + app.Config.Database.Driver)
	}
	return nil
}

func (app *App) initCache() error {
	if app.Config.Queue.Driver == cfg.DriverMemory {
		app.Cache = memcache.New(memoryQueueCapacity, memoryPopTimeout)
		return nil
	}
	redisCache, err := rediscache.NewRedisCache(app.Config.Redis.Addr, app.Config.Redis.Password, app.Config.Redis.DB)
	if err != nil {
		return errors.New("unable to initialize Redis", errors.WithCause(err))
	}
	app.Cache = redisCache
	return nil
}

func (app *App) initTelemetry() error {
	app.Metrics = prometheus.NewRegistry()
	app.Metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.recorder = metrics.NewPrometheusRecorder(app.Metrics)

	T, err := i18n.Tfunc(app.Config.Language)
	if err != nil {
		return errors.New("unable to load translations", errors.WithCause(err))
	}
	app.T = T
	return nil
}

func (app *App) initNotifier() error {
	sinks := notify.Multi{notify.NewLog(app.log)}
	if app.Config.Nats.URL != "" {
		n, err := notify.NewNATS(app.Config.Nats.URL, app.Config.Nats.Subject)
		if err != nil {
			return errors.New("unable to connect notifications", errors.WithCause(err))
		}
		app.nats = n
		sinks = append(sinks, n)
	}
	app.notifier = sinks
	return nil
}

func (app *App) initExport() error {
	breaker := adapter.DefaultBreakerSettings()
	app.adapters = adapter.NewRegistry(
		adapter.NewBreaker(adapter.NewSharePoint(nil), breaker),
		adapter.NewBreaker(adapter.NewConfluence(nil), breaker),
		adapter.NewBreaker(adapter.NewObjectStorage(), breaker),
	)
	app.documents = documents.NewHTTP(app.Config.Documents.SourceURL, nil)

	app.Integrations = integration.New(app.Store.Integrations(), app.adapters,
		integration.WithNotifier(app.notifier),
		integration.WithMetrics(app.recorder),
		integration.WithTranslator(app.T),
		integration.WithLogger(app.log),
	)
	scheduler, err := integration.NewScheduler(app.Integrations, app.Config.Integrations.SyncInterval)
	if err != nil {
		return errors.New("unable to create sync scheduler", errors.WithCause(err))
	}
	app.scheduler = scheduler

	app.Jobs = job.NewManager(app.Store.Jobs(), app.Store.Integrations(), app.Cache, app.Cache,
		job.WithManagerMetrics(app.recorder),
		job.WithManagerLogger(app.log),
	)

	exportCfg := app.Config.Export
	app.Dispatcher = job.NewDispatcher(
		app.Store.Jobs(),
		app.Store.Integrations(),
		app.Cache,
		app.documents,
		app.adapters,
		job.DispatcherConfig{
			Timeout:     exportCfg.JobTimeout,
			Parallelism: exportCfg.TransferParallelism,
			Progress:    func() job.ProgressSource { return job.NewJitter(exportCfg.ProgressInterval) },
		},
		job.WithNotifier(app.notifier),
		job.WithMetrics(app.recorder),
		job.WithTranslator(app.T),
		job.WithLogger(app.log),
	)
	app.Monitor = job.NewMonitor(app.Jobs, exportCfg.PollInterval, app.log)

	sweeper, err := job.NewSweeper(app.Store.Jobs(), app.Cache,
		job.SweeperConfig{JobTimeout: exportCfg.JobTimeout, QueueTimeout: exportCfg.QueueTimeout},
		job.WithSweeperNotifier(app.notifier, app.T),
		job.WithSweeperLogger(app.log),
	)
	if err != nil {
		return errors.New("unable to create export job sweeper", errors.WithCause(err))
	}
	app.sweeper = sweeper

	svc, err := service.NewExportService(app.Jobs, app.Monitor, app.Integrations, app.documents, app.log)
	if err != nil {
		return err
	}
	app.Service = svc
	return nil
}

func (app *App) initServers() error {
	if app.Config.Consul.PublicAddress != "" {
		srv, err := server.BuildServer(app.Config.Consul, app.exitCh)
		if err != nil {
			return errors.New("failed to build server", errors.WithCause(err))
		}
		app.server = srv
	}

	var mountErr error
	app.httpServer = server.NewHTTPServer(app.Config.HTTP.Addr, app.Metrics, app.exitCh, func(r chi.Router) {
		mountErr = RegisterServices(r, app)
	})
	return mountErr
}

// Start opens the store, starts the servers, the sync scheduler and the
// export workers, then blocks until a server fails or ctx is done.
func (app *App) Start(ctx context.Context) error {
	if err := app.Store.Open(); err != nil {
		return errors.New("failed to open store", errors.WithCause(err))
	}

	ctx, app.cancel = context.WithCancel(ctx)

	if app.server != nil {
		go app.server.Start()
	}
	go app.httpServer.Start()

	if err := app.scheduler.Start(ctx); err != nil {
		return errors.New("failed to start sync scheduler", errors.WithCause(err))
	}
	if err := app.sweeper.Start(ctx); err != nil {
		return errors.New("failed to start export job sweeper", errors.WithCause(err))
	}
	app.StartExportWorker(ctx)

	select {
	case err := <-app.exitCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down all services
func (app *App) Stop() error {
	slog.Info("document_exporter.main.stop_starting")

	if app.cancel != nil {
		app.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if app.httpServer != nil {
		if err := app.httpServer.Shutdown(ctx); err != nil {
			slog.Error("http server shutdown error", "err", err)
		} else {
			slog.Info("http server stopped")
		}
	}
	if app.server != nil {
		app.server.Stop()
		slog.Info("grpc server stopped")
	}
	if app.scheduler != nil {
		if err := app.scheduler.Stop(); err != nil {
			slog.Error("sync scheduler stop error", "err", err)
		}
	}
	if app.sweeper != nil {
		if err := app.sweeper.Stop(); err != nil {
			slog.Error("export job sweeper stop error", "err", err)
		}
	}

	// running jobs finish under their own timeout
	app.workers.Wait()
	slog.Info("export workers stopped")

	if app.nats != nil {
		if err := app.nats.Close(); err != nil {
			slog.Error("nats close error", "err", err)
		}
	}
	if app.Cache != nil {
		if err := app.Cache.Close(); err != nil {
			slog.Error("cache close error", "err", err)
		} else {
			slog.Info("cache closed")
		}
	}
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			slog.Error("store close error", "err", err)
		}
	}

	if app.shutdown != nil {
		if err := app.shutdown(ctx); err != nil {
			slog.Error("shutdown hook error", "err", err)
		} else {
			slog.Info("shutdown hook executed")
		}
	}

	slog.Info("document_exporter.main.stop_complete")
	return nil
}
