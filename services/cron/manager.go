package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/studypath/api/queue"
	"github.com/studypath/api/services"
	"github.com/studypath/api/utils/cache"
	"gorm.io/gorm"
)

// CronManager manages all scheduled maintenance jobs
type CronManager struct {
	cron  *cron.Cron
	db    *gorm.DB
	queue queue.Queue
	cache *cache.RedisCache

	notifications *services.NotificationService
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, q queue.Queue, c *cache.RedisCache, notifications *services.NotificationService) *CronManager {
	return &CronManager{
		cron:          cron.New(cron.WithSeconds()),
		db:            db,
		queue:         q,
		cache:         c,
		notifications: notifications,
	}
}

// Start registers and starts all cron jobs
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs and waits for running ones to finish
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

func (m *CronManager) registerJobs() error {
	// 1. Every 10 minutes: re-enqueue syllabi stuck in PROCESSING or never
	// picked up from PENDING
	_, err := m.cron.AddFunc("0 */10 * * * *", func() {
		m.logJobStart("requeue_stuck_syllabi")
		m.RequeueStuckSyllabi()
	})
	if err != nil {
		return err
	}

	// 2. Daily at 2 AM: delete old read notifications
	_, err = m.cron.AddFunc("0 0 2 * * *", func() {
		m.logJobStart("cleanup_old_notifications")
		m.CleanupOldNotifications()
	})
	if err != nil {
		return err
	}

	// 3. Daily at 3 AM: purge stale Redis job state
	_, err = m.cron.AddFunc("0 0 3 * * *", func() {
		m.logJobStart("purge_stale_job_state")
		m.PurgeStaleJobState()
	})
	if err != nil {
		return err
	}

	log.Println("All cron jobs registered successfully")
	return nil
}

func (m *CronManager) logJobStart(jobName string) {
	log.Printf("[CRON] Starting job: %s at %s", jobName, time.Now().Format(time.RFC3339))
}

func (m *CronManager) logJobComplete(jobName string, message string) {
	log.Printf("[CRON] Completed job: %s - %s", jobName, message)
}

func (m *CronManager) logJobError(jobName string, err error) {
	log.Printf("[CRON] Job failed: %s - %v", jobName, err)
}
