package model

import "time"

// ProcessingJobStatus represents the status of a syllabus processing job
type ProcessingJobStatus string

const (
	JobStatusPending    ProcessingJobStatus = "pending"
	JobStatusProcessing ProcessingJobStatus = "processing"
	JobStatusCompleted  ProcessingJobStatus = "completed"
	JobStatusFailed     ProcessingJobStatus = "failed"
)

// ProcessingJob is the live progress record for one pipeline run, stored in
// Redis. The durable resume checkpoint lives on the Syllabus row; this record
// only feeds status polling and dashboards.
type ProcessingJob struct {
	JobID      string              `json:"job_id"`
	SyllabusID uint                `json:"syllabus_id"`
	UserID     uint                `json:"user_id"`
	Status     ProcessingJobStatus `json:"status"`
	Phase      string              `json:"phase"` // "text", "topics", "schedule", "beginner", "intermediate", "advanced"
	Message    string              `json:"message,omitempty"`

	TopicsTotal int `json:"topics_total,omitempty"`
	TopicsDone  int `json:"topics_done,omitempty"`

	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Redis key patterns for processing jobs
const (
	// RedisKeyJobState stores the full job state as JSON.
	// Usage: fmt.Sprintf(RedisKeyJobState, jobID)
	RedisKeyJobState = "job:state:%s"

	// RedisKeySyllabusLock guards one syllabus against concurrent pipeline runs.
	// Usage: fmt.Sprintf(RedisKeySyllabusLock, syllabusID)
	RedisKeySyllabusLock = "syllabus:lock:%d"
)
