package models

import "time"

// Job types carried on the jobs topic.
const (
	JobTypeImport  = "import"
	JobTypeReindex = "reindex"
)

// Job statuses recorded by the tracker. A job is terminal once it reaches
// succeeded or failed.
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// Job is a background work item: a template import from GitHub or a full
// search-index rebuild. Jobs are published to Kafka and processed by the
// worker loop; status is observable via the tracker.
type Job struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	RepoOwner  string    `json:"repo_owner,omitempty"`
	RepoName   string    `json:"repo_name,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// JobStatus is the tracker record for one job.
type JobStatus struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	Documents  int        `json:"documents,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// AnalyticsEvent is one search-analytics row written to ClickHouse.
type AnalyticsEvent struct {
	EventType  string    `json:"event_type"`
	QueryHash  string    `json:"query_hash"`
	Index      string    `json:"index"`
	Intent     string    `json:"intent"`
	DurationMs float64   `json:"duration_ms"`
	TotalHits  int64     `json:"total_hits"`
	Degraded   bool      `json:"degraded"`
	Timestamp  time.Time `json:"timestamp"`
	TraceID    string    `json:"trace_id"`
}
