package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/studypath/api/model"
	"github.com/studypath/api/queue"
	"github.com/studypath/api/storage"
	"gorm.io/gorm"
)

// ErrSyllabusBusy means the syllabus is currently being processed and cannot
// accept the requested operation
var ErrSyllabusBusy = errors.New("syllabus is currently processing")

// UploadRequest is a validated syllabus upload
type UploadRequest struct {
	UserID            uint
	Title             string
	RawText           string // set when the client pasted text directly
	FileName          string // set when a file was uploaded
	FileContent       []byte
	PreferredLanguage string
	DailyStudyMinutes int
}

// SyllabusService owns the syllabus lifecycle outside the worker: uploads,
// enqueueing, status polling, and explicit reprocessing.
type SyllabusService struct {
	db       *gorm.DB
	storage  *storage.SpacesClient
	queue    queue.Queue
	progress *ProgressTracker
}

// NewSyllabusService creates a syllabus service
func NewSyllabusService(db *gorm.DB, spaces *storage.SpacesClient, q queue.Queue, progress *ProgressTracker) *SyllabusService {
	return &SyllabusService{
		db:       db,
		storage:  spaces,
		queue:    q,
		progress: progress,
	}
}

// Upload stores the syllabus, creates its row in PENDING, and enqueues the
// processing job. The row is created before the enqueue so a lost job can be
// re-enqueued by the stuck-syllabus cron.
func (s *SyllabusService) Upload(ctx context.Context, req UploadRequest) (*model.Syllabus, string, error) {
	if req.RawText == "" && len(req.FileContent) == 0 {
		return nil, "", fmt.Errorf("upload needs either text or a file")
	}

	syllabus := &model.Syllabus{
		UserID:            req.UserID,
		Title:             req.Title,
		RawText:           req.RawText,
		PreferredLanguage: req.PreferredLanguage,
		DailyStudyMinutes: req.DailyStudyMinutes,
		Status:            model.SyllabusStatusPending,
	}

	if len(req.FileContent) > 0 {
		key := s.objectKey(req.UserID, req.FileName)
		if _, err := s.storage.UploadBytes(ctx, key, req.FileContent, storage.ContentTypeForFilename(req.FileName)); err != nil {
			return nil, "", fmt.Errorf("failed to store syllabus file: %w", err)
		}
		syllabus.FilePath = key
	}

	if err := s.db.WithContext(ctx).Create(syllabus).Error; err != nil {
		return nil, "", fmt.Errorf("failed to create syllabus: %w", err)
	}

	jobID, err := s.enqueue(ctx, syllabus)
	if err != nil {
		// The row stays PENDING; the maintenance cron will re-enqueue it
		log.Printf("SyllabusService: enqueue for syllabus %d failed: %v", syllabus.ID, err)
		return syllabus, "", err
	}

	return syllabus, jobID, nil
}

// GetStatus returns the polling view of a syllabus, enriched with the live
// job phase when one is active
func (s *SyllabusService) GetStatus(ctx context.Context, syllabusID uint) (*model.SyllabusStatusResponse, error) {
	var syllabus model.Syllabus
	if err := s.db.WithContext(ctx).First(&syllabus, syllabusID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSyllabusNotFound
		}
		return nil, fmt.Errorf("failed to fetch syllabus %d: %w", syllabusID, err)
	}
	return syllabus.ToStatusResponse(), nil
}

// GetPlan returns the syllabus with its scheduled topics ordered by day
func (s *SyllabusService) GetPlan(ctx context.Context, syllabusID uint) (*model.Syllabus, error) {
	var syllabus model.Syllabus
	err := s.db.WithContext(ctx).
		Preload("Topics", func(db *gorm.DB) *gorm.DB {
			return db.Order("day_index ASC, position ASC")
		}).
		First(&syllabus, syllabusID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSyllabusNotFound
		}
		return nil, fmt.Errorf("failed to fetch syllabus %d: %w", syllabusID, err)
	}
	return &syllabus, nil
}

// GetQuiz returns the newest version of a topic's quiz at one level
func (s *SyllabusService) GetQuiz(ctx context.Context, topicID uint, level model.QuizLevel) (*model.Quiz, error) {
	var quiz model.Quiz
	err := s.db.WithContext(ctx).
		Preload("Questions").
		Where("topic_id = ? AND level = ?", topicID, level).
		Order("version DESC").
		First(&quiz).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to fetch quiz for topic %d (%s): %w", topicID, level, err)
	}
	return &quiz, nil
}

// Reprocess re-enqueues a failed or pending syllabus. Completed stages stay
// saved; the pipeline picks up from the first unset flag.
func (s *SyllabusService) Reprocess(ctx context.Context, syllabusID uint) (string, error) {
	var syllabus model.Syllabus
	if err := s.db.WithContext(ctx).First(&syllabus, syllabusID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrSyllabusNotFound
		}
		return "", fmt.Errorf("failed to fetch syllabus %d: %w", syllabusID, err)
	}

	switch syllabus.Status {
	case model.SyllabusStatusProcessing:
		return "", ErrSyllabusBusy
	case model.SyllabusStatusCompleted:
		return "", fmt.Errorf("syllabus %d is already completed", syllabusID)
	}

	return s.enqueue(ctx, &syllabus)
}

func (s *SyllabusService) enqueue(ctx context.Context, syllabus *model.Syllabus) (string, error) {
	jobID := uuid.NewString()
	job := queue.SyllabusJob{
		JobID:      jobID,
		SyllabusID: syllabus.ID,
		UserID:     syllabus.UserID,
		FilePath:   syllabus.FilePath,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("failed to enqueue syllabus %d: %w", syllabus.ID, err)
	}
	log.Printf("SyllabusService: enqueued job %s for syllabus %d", jobID, syllabus.ID)
	return jobID, nil
}

// GetJobProgress returns the live Redis job state for status polling
func (s *SyllabusService) GetJobProgress(ctx context.Context, jobID string) (*model.ProcessingJob, error) {
	if s.progress == nil {
		return nil, fmt.Errorf("progress tracking is not configured")
	}
	return s.progress.GetJob(ctx, jobID)
}

func (s *SyllabusService) objectKey(userID uint, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("syllabi/%d/%d%s", userID, time.Now().UnixNano(), ext)
}
