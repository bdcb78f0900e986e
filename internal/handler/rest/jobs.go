package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/webitel/document-exporter/internal/model"
	"github.com/webitel/document-exporter/internal/model/options"
)

func (h *Handler) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")

	var req createJobRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validateRequest(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ids := req.DocumentIDs
	if req.All {
		sel, err := h.service.SelectAll(r.Context(), projectID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		ids = sel.Current()
	}

	job, err := h.service.CreateJob(r.Context(), model.CreateJobRequest{
		ProjectID:     projectID,
		DocumentIDs:   ids,
		IntegrationID: req.IntegrationID,
		Format:        req.Format,
		Options:       req.Options,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	size, err := queryInt(r, "size", options.DefaultPageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	jobs, err := h.service.GetJobs(r.Context(), chi.URLParam(r, "projectId"), page, size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	failedOnly, err := queryBool(r, "failed_only")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	job, err := h.service.RetryJob(r.Context(), chi.URLParam(r, "id"), failedOnly)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.ListDocuments(r.Context(), chi.URLParam(r, "projectId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": docs})
}
