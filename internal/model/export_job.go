package model

import "time"

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

type DocumentStatus string

const (
	DocumentExported DocumentStatus = "exported"
	DocumentFailed   DocumentStatus = "failed"
	DocumentSkipped  DocumentStatus = "skipped"
)

type ExportResult struct {
	DocumentID string         `json:"documentId"`
	Status     DocumentStatus `json:"status"`
	URL        string         `json:"url,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type ExportOptions struct {
	// FolderPath overrides the integration's configured folder for this job.
	FolderPath string `json:"folderPath,omitempty"`
}

type ExportJob struct {
	ID                 string         `json:"id"`
	ProjectID          string         `json:"projectId"`
	IntegrationID      string         `json:"integrationId"`
	Status             JobStatus      `json:"status"`
	Progress           int            `json:"progress"`
	TotalDocuments     int            `json:"totalDocuments"`
	ProcessedDocuments int            `json:"processedDocuments"`
	ExportFormat       Format         `json:"exportFormat"`
	DocumentIDs        []string       `json:"documentIds"`
	Options            ExportOptions  `json:"options"`
	StartedAt          time.Time      `json:"startedAt"`
	CompletedAt        *time.Time     `json:"completedAt,omitempty"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	ExportedURLs       []string       `json:"exportedUrls,omitempty"`
	ErrorMessage       string         `json:"errorMessage,omitempty"`
	ExportResults      []ExportResult `json:"exportResults,omitempty"`
	RetryOf            string         `json:"retryOf,omitempty"`
}

// Clone returns a deep copy; snapshots handed out of a tracker must not alias it.
func (j ExportJob) Clone() ExportJob {
	j.DocumentIDs = append([]string(nil), j.DocumentIDs...)
	j.ExportedURLs = append([]string(nil), j.ExportedURLs...)
	j.ExportResults = append([]ExportResult(nil), j.ExportResults...)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		j.CompletedAt = &t
	}
	return j
}

// UnfinishedDocumentIDs lists documents that failed or were never attempted.
func (j ExportJob) UnfinishedDocumentIDs() []string {
	done := make(map[string]bool, len(j.ExportResults))
	for _, r := range j.ExportResults {
		if r.Status == DocumentExported {
			done[r.DocumentID] = true
		}
	}
	ids := make([]string, 0, len(j.DocumentIDs))
	for _, id := range j.DocumentIDs {
		if !done[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// CreateJobRequest is the input of the job manager.
type CreateJobRequest struct {
	ProjectID     string        `json:"projectId"`
	DocumentIDs   []string      `json:"documentIds"`
	IntegrationID string        `json:"integrationId"`
	Format        Format        `json:"format"`
	Options       ExportOptions `json:"options"`
}
