package model

import (
	"time"

	"gorm.io/gorm"
)

// SyllabusStatus represents the overall processing status of a syllabus
type SyllabusStatus string

const (
	SyllabusStatusPending    SyllabusStatus = "pending"
	SyllabusStatusProcessing SyllabusStatus = "processing"
	SyllabusStatusCompleted  SyllabusStatus = "completed"
	SyllabusStatusError      SyllabusStatus = "error"
)

// QuizLevel is the difficulty tier of a quiz
type QuizLevel string

const (
	LevelBeginner     QuizLevel = "beginner"
	LevelIntermediate QuizLevel = "intermediate"
	LevelAdvanced     QuizLevel = "advanced"
)

// Levels lists quiz levels in generation order
func Levels() []QuizLevel {
	return []QuizLevel{LevelBeginner, LevelIntermediate, LevelAdvanced}
}

// Syllabus represents an uploaded syllabus and its processing lifecycle.
//
// The four *_saved boolean columns are the resume checkpoint: they record what
// has been durably persisted, independent of Status/Stage which only describe
// current activity. A crashed or redelivered job consults these flags to skip
// stages that already completed.
type Syllabus struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID            uint   `gorm:"not null;index" json:"user_id"`
	Title             string `gorm:"type:varchar(255);not null" json:"title"`
	RawText           string `gorm:"type:text" json:"-"`
	PreferredLanguage string `gorm:"type:varchar(50);default:'english'" json:"preferred_language"`
	DailyStudyMinutes int    `gorm:"default:60" json:"daily_study_minutes"`
	FilePath          string `gorm:"type:varchar(512)" json:"file_path,omitempty"`

	Status       SyllabusStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	Stage        QuizLevel      `gorm:"type:varchar(20)" json:"stage,omitempty"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`

	// Processing-state bitmap. Separate columns so each flag can be flipped by
	// a conditional single-row UPDATE without touching the others.
	TopicsSaved           bool `gorm:"default:false" json:"topics_saved"`
	BeginnerQuizSaved     bool `gorm:"default:false" json:"beginner_quiz_saved"`
	IntermediateQuizSaved bool `gorm:"default:false" json:"intermediate_quiz_saved"`
	AdvancedQuizSaved     bool `gorm:"default:false" json:"advanced_quiz_saved"`

	LastCompletedStep     string     `gorm:"type:varchar(50)" json:"last_completed_step,omitempty"`
	ProcessingStartedAt   *time.Time `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at,omitempty"`

	// Relationships
	User   User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Topics []Topic `gorm:"foreignKey:SyllabusID;constraint:OnDelete:CASCADE" json:"topics,omitempty"`
}

// ProcessingState is the four-flag bitmap read by the pipeline on stage entry
type ProcessingState struct {
	TopicsSaved           bool `json:"topics_saved"`
	BeginnerQuizSaved     bool `json:"beginner_quiz_saved"`
	IntermediateQuizSaved bool `json:"intermediate_quiz_saved"`
	AdvancedQuizSaved     bool `json:"advanced_quiz_saved"`
}

// State returns the syllabus processing-state bitmap
func (s *Syllabus) State() ProcessingState {
	return ProcessingState{
		TopicsSaved:           s.TopicsSaved,
		BeginnerQuizSaved:     s.BeginnerQuizSaved,
		IntermediateQuizSaved: s.IntermediateQuizSaved,
		AdvancedQuizSaved:     s.AdvancedQuizSaved,
	}
}

// LevelSaved reports whether the quiz flag for the given level is set
func (p ProcessingState) LevelSaved(level QuizLevel) bool {
	switch level {
	case LevelBeginner:
		return p.BeginnerQuizSaved
	case LevelIntermediate:
		return p.IntermediateQuizSaved
	case LevelAdvanced:
		return p.AdvancedQuizSaved
	}
	return false
}

// AllLevelsSaved reports whether every quiz level has been persisted
func (p ProcessingState) AllLevelsSaved() bool {
	return p.BeginnerQuizSaved && p.IntermediateQuizSaved && p.AdvancedQuizSaved
}

// LevelFlagColumn maps a quiz level to its flag column name
func LevelFlagColumn(level QuizLevel) string {
	switch level {
	case LevelBeginner:
		return "beginner_quiz_saved"
	case LevelIntermediate:
		return "intermediate_quiz_saved"
	case LevelAdvanced:
		return "advanced_quiz_saved"
	}
	return ""
}

// SyllabusStatusResponse is the polling shape returned to clients
type SyllabusStatusResponse struct {
	ID                uint            `json:"id"`
	Title             string          `json:"title"`
	Status            SyllabusStatus  `json:"status"`
	Stage             QuizLevel       `json:"stage,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	ProcessingState   ProcessingState `json:"processing_state"`
	LastCompletedStep string          `json:"last_completed_step,omitempty"`
}

// ToStatusResponse converts a Syllabus to its polling representation
func (s *Syllabus) ToStatusResponse() *SyllabusStatusResponse {
	return &SyllabusStatusResponse{
		ID:                s.ID,
		Title:             s.Title,
		Status:            s.Status,
		Stage:             s.Stage,
		ErrorMessage:      s.ErrorMessage,
		ProcessingState:   s.State(),
		LastCompletedStep: s.LastCompletedStep,
	}
}
