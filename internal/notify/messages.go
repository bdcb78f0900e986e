package notify

import (
	goi18n "github.com/nicksnyder/go-i18n/i18n"

	"github.com/webitel/document-exporter/internal/model"
)

// ForJob builds the notification for a terminal job. Jobs that completed with
// failed documents are reported as info rather than success.
func ForJob(T goi18n.TranslateFunc, job model.ExportJob, integrationName string) model.Notification {
	exported, failed := 0, 0
	for _, r := range job.ExportResults {
		switch r.Status {
		case model.DocumentExported:
			exported++
		default:
			failed++
		}
	}
	args := map[string]any{
		"Integration": integrationName,
		"Exported":    exported,
		"Failed":      failed,
		"Total":       job.TotalDocuments,
		"Error":       job.ErrorMessage,
	}

	n := model.Notification{JobID: job.ID}
	switch {
	case job.Status == model.JobFailed:
		n.Kind = model.NotifyError
		n.Title = T("notify.job.failed.title")
		n.Message = T("notify.job.failed.message", args)
	case failed > 0:
		n.Kind = model.NotifyInfo
		n.Title = T("notify.job.partial.title")
		n.Message = T("notify.job.partial.message", args)
	default:
		n.Kind = model.NotifySuccess
		n.Title = T("notify.job.completed.title")
		n.Message = T("notify.job.completed.message", args)
	}
	return n
}

func ForSyncFailure(T goi18n.TranslateFunc, integ model.Integration, err error) model.Notification {
	return model.Notification{
		Kind:  model.NotifyError,
		Title: T("notify.integration.sync_failed.title"),
		Message: T("notify.integration.sync_failed.message", map[string]any{
			"Integration": integ.Name,
			"Error":       err.Error(),
		}),
	}
}
