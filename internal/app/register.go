package app

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/webitel/document-exporter/internal/handler/rest"
)

// serviceRegistration holds information for initializing and mounting an HTTP service.
type serviceRegistration struct {
	init  func(*App) (any, error)     // Initialization function for *App
	mount func(r chi.Router, svc any) // Mounts the service routes
	name  string                      // Service name for logging
}

// RegisterServices initializes and mounts all API services on r.
func RegisterServices(r chi.Router, appInstance *App) error {
	services := []serviceRegistration{
		{
			init: func(a *App) (any, error) {
				return rest.NewHandler(a.Service, a.Config.Language, a.log)
			},
			mount: func(r chi.Router, svc any) { svc.(*rest.Handler).Routes(r) },
			name:  "Export",
		},
	}

	for _, service := range services {
		svc, err := service.init(appInstance)
		if err != nil {
			slog.Error("service initialization failed", "service", service.name, "error", err)
			return err
		}
		service.mount(r, svc)
		slog.Info("service registered successfully", "service", service.name)
	}
	return nil
}
