package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/studypath/api/model"
	"github.com/studypath/api/utils/cache"
)

// TTLs for Redis-resident job state
const (
	JobStateTTLSuccess = 1 * time.Hour
	JobStateTTLFailure = 24 * time.Hour
	JobStateTTLActive  = 24 * time.Hour

	// SyllabusLockTTL bounds how long one pipeline run can hold the
	// per-syllabus lock. Slightly above the queue visibility timeout so the
	// lock never outlives a redelivery window by much.
	SyllabusLockTTL = 20 * time.Minute
)

// ProgressTracker keeps the live job state in Redis for status polling, and
// hands out a per-syllabus processing lock. The lock is an extra guard on top
// of the persisted stage flags; correctness never depends on it.
type ProgressTracker struct {
	cache *cache.RedisCache
}

// NewProgressTracker creates a progress tracker over Redis
func NewProgressTracker(c *cache.RedisCache) *ProgressTracker {
	return &ProgressTracker{cache: c}
}

// StartJob records a fresh job state
func (p *ProgressTracker) StartJob(ctx context.Context, jobID string, syllabusID, userID uint) {
	now := time.Now().UTC()
	p.save(ctx, &model.ProcessingJob{
		JobID:      jobID,
		SyllabusID: syllabusID,
		UserID:     userID,
		Status:     model.JobStatusProcessing,
		StartedAt:  now,
		UpdatedAt:  now,
	}, JobStateTTLActive)
}

// SetPhase updates the current phase and topic progress counters
func (p *ProgressTracker) SetPhase(ctx context.Context, jobID, phase string, topicsDone, topicsTotal int) {
	job, err := p.GetJob(ctx, jobID)
	if err != nil {
		return
	}
	job.Phase = phase
	job.TopicsDone = topicsDone
	job.TopicsTotal = topicsTotal
	job.UpdatedAt = time.Now().UTC()
	p.save(ctx, job, JobStateTTLActive)
}

// CompleteJob marks the job state finished
func (p *ProgressTracker) CompleteJob(ctx context.Context, jobID string) {
	job, err := p.GetJob(ctx, jobID)
	if err != nil {
		return
	}
	now := time.Now().UTC()
	job.Status = model.JobStatusCompleted
	job.Phase = "done"
	job.CompletedAt = &now
	job.UpdatedAt = now
	p.save(ctx, job, JobStateTTLSuccess)
}

// FailJob records the failure message on the job state
func (p *ProgressTracker) FailJob(ctx context.Context, jobID, message string) {
	job, err := p.GetJob(ctx, jobID)
	if err != nil {
		return
	}
	job.Status = model.JobStatusFailed
	job.Error = message
	job.UpdatedAt = time.Now().UTC()
	p.save(ctx, job, JobStateTTLFailure)
}

// GetJob loads the live job state
func (p *ProgressTracker) GetJob(ctx context.Context, jobID string) (*model.ProcessingJob, error) {
	var job model.ProcessingJob
	key := fmt.Sprintf(model.RedisKeyJobState, jobID)
	if err := p.cache.GetJSON(ctx, key, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (p *ProgressTracker) save(ctx context.Context, job *model.ProcessingJob, ttl time.Duration) {
	key := fmt.Sprintf(model.RedisKeyJobState, job.JobID)
	if err := p.cache.SetJSON(ctx, key, job, ttl); err != nil {
		// Progress state is advisory; a Redis hiccup must not fail the pipeline
		log.Printf("ProgressTracker: failed to save job %s: %v", job.JobID, err)
	}
}

// AcquireSyllabusLock takes the per-syllabus processing lock. Returns false
// when another worker currently holds it.
func (p *ProgressTracker) AcquireSyllabusLock(ctx context.Context, syllabusID uint, jobID string) (bool, error) {
	key := fmt.Sprintf(model.RedisKeySyllabusLock, syllabusID)
	return p.cache.SetNX(ctx, key, jobID, SyllabusLockTTL)
}

// ReleaseSyllabusLock drops the per-syllabus processing lock
func (p *ProgressTracker) ReleaseSyllabusLock(ctx context.Context, syllabusID uint) {
	key := fmt.Sprintf(model.RedisKeySyllabusLock, syllabusID)
	if err := p.cache.Delete(ctx, key); err != nil {
		log.Printf("ProgressTracker: failed to release lock for syllabus %d: %v", syllabusID, err)
	}
}
