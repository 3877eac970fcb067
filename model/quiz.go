package model

import (
	"time"

	"gorm.io/gorm"
)

// Quiz is a generated question set for one topic at one difficulty level.
// A (topic, level, version) triple is unique; version starts at 1 and only
// explicit regeneration creates higher versions.
type Quiz struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	TopicID uint      `gorm:"not null;index;uniqueIndex:idx_quiz_topic_level_version" json:"topic_id"`
	Level   QuizLevel `gorm:"type:varchar(20);not null;uniqueIndex:idx_quiz_topic_level_version" json:"level"`
	Version int       `gorm:"not null;default:1;uniqueIndex:idx_quiz_topic_level_version" json:"version"`

	// Relationships
	Topic     Topic          `gorm:"foreignKey:TopicID;constraint:OnDelete:CASCADE" json:"-"`
	Questions []QuizQuestion `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

// QuizQuestion is a single four-option multiple-choice question.
// Every field is mandatory; the invariant is enforced at the LLM-response
// boundary before rows are built.
type QuizQuestion struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	QuizID      uint   `gorm:"not null;index" json:"quiz_id"`
	Question    string `gorm:"type:text;not null" json:"question"`
	OptionA     string `gorm:"type:text;not null" json:"option_a"`
	OptionB     string `gorm:"type:text;not null" json:"option_b"`
	OptionC     string `gorm:"type:text;not null" json:"option_c"`
	OptionD     string `gorm:"type:text;not null" json:"option_d"`
	Answer      string `gorm:"type:varchar(1);not null" json:"answer"` // A, B, C or D
	Explanation string `gorm:"type:text;not null" json:"explanation"`

	// Relationships
	Quiz Quiz `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"-"`
}
