package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/studypath/api/model"
	"github.com/studypath/api/queue"
)

const (
	// stuckProcessingAfter is how long a syllabus may sit in PROCESSING before
	// its worker is presumed dead. Comfortably above the queue visibility
	// timeout so a healthy redelivery always wins the race.
	stuckProcessingAfter = 45 * time.Minute

	// stuckPendingAfter is how long a PENDING syllabus may wait before we
	// assume its enqueue was lost
	stuckPendingAfter = 15 * time.Minute

	staleJobStateAfter    = 48 * time.Hour
	notificationRetention = 30 * 24 * time.Hour
)

// RequeueStuckSyllabi re-enqueues syllabi whose processing run died or whose
// original enqueue was lost. Redelivery is safe: the pipeline resumes from
// the persisted stage flags.
func (m *CronManager) RequeueStuckSyllabi() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "requeue_stuck_syllabi"
	now := time.Now().UTC()

	var stuck []model.Syllabus
	err := m.db.WithContext(ctx).
		Where("(status = ? AND processing_started_at < ?) OR (status = ? AND created_at < ?)",
			model.SyllabusStatusProcessing, now.Add(-stuckProcessingAfter),
			model.SyllabusStatusPending, now.Add(-stuckPendingAfter)).
		Find(&stuck).Error
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to query stuck syllabi: %w", err))
		return
	}

	if len(stuck) == 0 {
		m.logJobComplete(jobName, "No stuck syllabi")
		return
	}

	requeued := 0
	for _, syllabus := range stuck {
		job := queue.SyllabusJob{
			JobID:      uuid.NewString(),
			SyllabusID: syllabus.ID,
			UserID:     syllabus.UserID,
			FilePath:   syllabus.FilePath,
		}
		if err := m.queue.Enqueue(ctx, job); err != nil {
			m.logJobError(jobName, fmt.Errorf("failed to re-enqueue syllabus %d: %w", syllabus.ID, err))
			continue
		}
		requeued++
	}

	m.logJobComplete(jobName, fmt.Sprintf("Re-enqueued %d of %d stuck syllabi", requeued, len(stuck)))
}

// CleanupOldNotifications deletes read notifications past the retention window
func (m *CronManager) CleanupOldNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "cleanup_old_notifications"

	deleted, err := m.notifications.CleanupOldNotifications(ctx, notificationRetention)
	if err != nil {
		m.logJobError(jobName, err)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Deleted %d old notifications", deleted))
}

// PurgeStaleJobState deletes Redis job-state records that stopped updating.
// TTLs already expire most of them; this sweeps records written by crashed
// runs that kept refreshing the active TTL.
func (m *CronManager) PurgeStaleJobState() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "purge_stale_job_state"
	cutoff := time.Now().UTC().Add(-staleJobStateAfter)

	keys, err := m.cache.Keys(ctx, "job:state:*")
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to list job-state keys: %w", err))
		return
	}

	purged := 0
	for _, key := range keys {
		var job model.ProcessingJob
		if err := m.cache.GetJSON(ctx, key, &job); err != nil {
			continue
		}
		if job.UpdatedAt.Before(cutoff) {
			if err := m.cache.Delete(ctx, key); err == nil {
				purged++
			}
		}
	}

	m.logJobComplete(jobName, fmt.Sprintf("Purged %d of %d job-state records", purged, len(keys)))
}
