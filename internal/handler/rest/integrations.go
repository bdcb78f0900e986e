package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/format"
	"github.com/webitel/document-exporter/internal/model"
)

func (h *Handler) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListIntegrations(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (h *Handler) handleRegisterIntegration(w http.ResponseWriter, r *http.Request) {
	var req registerIntegrationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validateRequest(&req); err != nil {
		h.writeError(w, r, err)
		return
	}
	// a failed connection check still creates the integration, in the error status
	integ, err := h.service.RegisterIntegration(r.Context(), req.model())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, integ)
}

func (h *Handler) handleGetIntegration(w http.ResponseWriter, r *http.Request) {
	integ, err := h.service.GetIntegration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, integ)
}

func (h *Handler) handleRemoveIntegration(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveIntegration(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSyncIntegration(w http.ResponseWriter, r *http.Request) {
	integ, err := h.service.SyncIntegration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, integ)
}

func (h *Handler) handleReconnectIntegration(w http.ResponseWriter, r *http.Request) {
	integ, err := h.service.ReconnectIntegration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, integ)
}

func (h *Handler) handleIntegrationFormats(w http.ResponseWriter, r *http.Request) {
	integ, err := h.service.GetIntegration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":    integ.Type,
		"formats": h.service.SupportedFormats(integ.Type),
	})
}

// handleFormats answers the whole matrix, or one row with ?type=.
func (h *Handler) handleFormats(w http.ResponseWriter, r *http.Request) {
	if t := r.URL.Query().Get("type"); t != "" {
		typ := model.IntegrationType(t)
		formats := h.service.SupportedFormats(typ)
		if len(formats) == 0 {
			h.writeError(w, r, errors.InvalidArgument("unknown integration type "+t, errors.WithID("api.request.bad_query")))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"type": typ, "formats": formats})
		return
	}
	matrix := make(map[model.IntegrationType][]model.Format)
	for _, typ := range format.Types() {
		matrix[typ] = h.service.SupportedFormats(typ)
	}
	writeJSON(w, http.StatusOK, matrix)
}
