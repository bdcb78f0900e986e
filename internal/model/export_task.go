package model

// ExportTask is the dispatch message pushed to the queue. It must be JSON-serializable.
type ExportTask struct {
	TaskID        string `json:"task_id"` // equals the job id
	ProjectID     string `json:"project_id"`
	IntegrationID string `json:"integration_id"`
	Format        Format `json:"format"`
	EnqueuedAt    int64  `json:"enqueued_at"` // unix milliseconds
}
