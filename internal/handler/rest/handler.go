// Package rest exposes the export service over HTTP.
package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	goi18n "github.com/nicksnyder/go-i18n/i18n"

	"github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/i18n"
	"github.com/webitel/document-exporter/internal/service"
)

type Handler struct {
	service  service.ExportService
	language string
	log      *slog.Logger
}

func NewHandler(svc service.ExportService, language string, log *slog.Logger) (*Handler, error) {
	if svc == nil {
		return nil, errors.Internal("export service is nil")
	}
	if language == "" {
		language = i18n.DefaultLanguage
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{service: svc, language: language, log: log}, nil
}

// Routes mounts the API under r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/formats", h.handleFormats)

		r.Route("/integrations", func(r chi.Router) {
			r.Get("/", h.handleListIntegrations)
			r.Post("/", h.handleRegisterIntegration)
			r.Get("/{id}", h.handleGetIntegration)
			r.Delete("/{id}", h.handleRemoveIntegration)
			r.Post("/{id}/sync", h.handleSyncIntegration)
			r.Post("/{id}/connect", h.handleReconnectIntegration)
			r.Get("/{id}/formats", h.handleIntegrationFormats)
		})

		r.Route("/projects/{projectId}", func(r chi.Router) {
			r.Get("/documents", h.handleListDocuments)
			r.Post("/jobs", h.handleCreateJob)
			r.Get("/jobs", h.handleListJobs)
		})

		r.Route("/jobs/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetJob)
			r.Get("/watch", h.handleWatchJob)
			r.Post("/retry", h.handleRetryJob)
		})
	})
}

// translator picks the request language from Accept-Language, falling back
// to the configured default.
func (h *Handler) translator(r *http.Request) goi18n.TranslateFunc {
	for _, part := range strings.Split(r.Header.Get("Accept-Language"), ",") {
		lang := strings.ToLower(strings.TrimSpace(strings.SplitN(part, ";", 2)[0]))
		if lang == "" {
			continue
		}
		if T, err := i18n.Tfunc(lang); err == nil {
			return T
		}
	}
	return i18n.MustTfunc(h.language)
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.InvalidArgument("malformed request body", errors.WithCause(err), errors.WithID("api.request.malformed"))
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.InvalidArgument("query parameter "+key+" must be an integer", errors.WithID("api.request.bad_query"))
	}
	return v, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.InvalidArgument("query parameter "+key+" must be a boolean", errors.WithID("api.request.bad_query"))
	}
	return v, nil
}
