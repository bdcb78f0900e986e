package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/webitel/document-exporter/internal/model"
)

// handleWatchJob streams job updates as server-sent events until the job is
// terminal or the client goes away.
func (h *Handler) handleWatchJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "id")

	updates := make(chan model.ExportJob)
	stop := make(chan struct{})
	watch, err := h.service.WatchJob(ctx, jobID, func(job model.ExportJob) {
		select {
		case updates <- job:
		case <-stop:
		case <-ctx.Done():
		}
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer watch.Cancel()
	// release a callback blocked on updates before Cancel waits for it
	defer close(stop)

	// the stream outlives the server write timeout
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	h.log.InfoContext(ctx, "export job watch opened", "job_id", jobID)
	for {
		select {
		case <-ctx.Done():
			h.log.InfoContext(ctx, "export job watch closed by client", "job_id", jobID)
			return
		case <-watch.Done():
			return
		case job := <-updates:
			if err := writeEvent(w, rc, job); err != nil {
				h.log.WarnContext(ctx, "failed to write job event", "job_id", jobID, "error", err)
				return
			}
			if job.Status.Terminal() {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, job model.ExportJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: job\ndata: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}
