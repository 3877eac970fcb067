package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/studypath/api/model"
	"gorm.io/gorm"
)

// ErrSyllabusNotFound is returned when the syllabus row does not exist
var ErrSyllabusNotFound = errors.New("syllabus not found")

// StateStore owns every write to the syllabus processing state. All mutations
// are conditional single-row UPDATEs guarded on the expected prior state, so
// concurrent workers racing on the same syllabus cannot double-apply a stage.
// Every operation is idempotent: re-applying an already-applied transition
// affects zero rows and returns nil.
type StateStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStateStore creates a state store over the given database
func NewStateStore(db *gorm.DB) *StateStore {
	return &StateStore{db: db, now: time.Now}
}

// ReadState loads the current status and processing-state bitmap
func (s *StateStore) ReadState(ctx context.Context, syllabusID uint) (*model.Syllabus, error) {
	var syllabus model.Syllabus
	err := s.db.WithContext(ctx).First(&syllabus, syllabusID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSyllabusNotFound
		}
		return nil, fmt.Errorf("failed to load syllabus %d: %w", syllabusID, err)
	}
	return &syllabus, nil
}

// MarkProcessing transitions a syllabus into PROCESSING and stamps the start
// time. The update is guarded so an already-PROCESSING row (a resumed run) is
// left untouched, preserving the in-flight bitmap, and a COMPLETED row is
// never reopened by a duplicate delivery.
func (s *StateStore) MarkProcessing(ctx context.Context, syllabusID uint) error {
	now := s.now().UTC()
	result := s.db.WithContext(ctx).Model(&model.Syllabus{}).
		Where("id = ? AND status NOT IN ?", syllabusID,
			[]model.SyllabusStatus{model.SyllabusStatusProcessing, model.SyllabusStatusCompleted}).
		Updates(map[string]interface{}{
			"status":                model.SyllabusStatusProcessing,
			"error_message":         "",
			"processing_started_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark syllabus %d processing: %w", syllabusID, result.Error)
	}
	return nil
}

// MarkTopicsSaved flips the topics flag. Guarded on the flag being unset.
func (s *StateStore) MarkTopicsSaved(ctx context.Context, syllabusID uint) error {
	result := s.db.WithContext(ctx).Model(&model.Syllabus{}).
		Where("id = ? AND topics_saved = ?", syllabusID, false).
		Updates(map[string]interface{}{
			"topics_saved":        true,
			"last_completed_step": "topics",
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark topics saved for syllabus %d: %w", syllabusID, result.Error)
	}
	return nil
}

// MarkStage records the quiz level currently being generated
func (s *StateStore) MarkStage(ctx context.Context, syllabusID uint, level model.QuizLevel) error {
	result := s.db.WithContext(ctx).Model(&model.Syllabus{}).
		Where("id = ?", syllabusID).
		Update("stage", level)
	if result.Error != nil {
		return fmt.Errorf("failed to set stage for syllabus %d: %w", syllabusID, result.Error)
	}
	return nil
}

// MarkLevelSaved flips the quiz flag for one level. Guarded on the flag being
// unset so a racing duplicate invocation flips it at most once.
func (s *StateStore) MarkLevelSaved(ctx context.Context, syllabusID uint, level model.QuizLevel) error {
	column := model.LevelFlagColumn(level)
	if column == "" {
		return fmt.Errorf("unknown quiz level %q", level)
	}

	result := s.db.WithContext(ctx).Model(&model.Syllabus{}).
		Where(fmt.Sprintf("id = ? AND %s = ?", column), syllabusID, false).
		Updates(map[string]interface{}{
			column:                true,
			"last_completed_step": fmt.Sprintf("%s_quiz", level),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark %s quiz saved for syllabus %d: %w", level, syllabusID, result.Error)
	}
	return nil
}

// MarkFailed records terminal failure. Only the pipeline's top-level handler
// calls this; the partial bitmap stays intact for reprocessing.
func (s *StateStore) MarkFailed(ctx context.Context, syllabusID uint, stage model.QuizLevel, message string) error {
	updates := map[string]interface{}{
		"status":        model.SyllabusStatusError,
		"error_message": message,
	}
	if stage != "" {
		updates["stage"] = stage
	}

	result := s.db.WithContext(ctx).Model(&model.Syllabus{}).
		Where("id = ? AND status <> ?", syllabusID, model.SyllabusStatusCompleted).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to mark syllabus %d failed: %w", syllabusID, result.Error)
	}
	return nil
}

// MarkCompleted transitions to COMPLETED once every level flag is set. The
// guard re-checks the flags inside the UPDATE itself, so a stale caller whose
// view of the bitmap is outdated cannot complete a syllabus early.
func (s *StateStore) MarkCompleted(ctx context.Context, syllabusID uint) error {
	now := s.now().UTC()
	result := s.db.WithContext(ctx).Model(&model.Syllabus{}).
		Where("id = ? AND status <> ? AND topics_saved = ? AND beginner_quiz_saved = ? AND intermediate_quiz_saved = ? AND advanced_quiz_saved = ?",
			syllabusID, model.SyllabusStatusCompleted, true, true, true, true).
		Updates(map[string]interface{}{
			"status":                  model.SyllabusStatusCompleted,
			"stage":                   "",
			"error_message":           "",
			"last_completed_step":     "completed",
			"processing_completed_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark syllabus %d completed: %w", syllabusID, result.Error)
	}
	return nil
}

// SaveRawText persists extracted text onto the syllabus row
func (s *StateStore) SaveRawText(ctx context.Context, syllabusID uint, text string) error {
	result := s.db.WithContext(ctx).Model(&model.Syllabus{}).
		Where("id = ?", syllabusID).
		Update("raw_text", text)
	if result.Error != nil {
		return fmt.Errorf("failed to save raw text for syllabus %d: %w", syllabusID, result.Error)
	}
	return nil
}
