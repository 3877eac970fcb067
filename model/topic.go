package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Topic is a schedulable unit of study material extracted from a syllabus
type Topic struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	SyllabusID           uint           `gorm:"not null;index" json:"syllabus_id"`
	Position             int            `gorm:"not null" json:"position"` // order within the extraction batch
	Title                string         `gorm:"type:varchar(255);not null" json:"title"`
	Summary              string         `gorm:"type:text" json:"summary"`
	EstimatedTimeMinutes int            `gorm:"not null" json:"estimated_time_minutes"`
	Keywords             datatypes.JSON `gorm:"type:jsonb" json:"keywords"` // array of strings
	AssignedDate         time.Time      `gorm:"type:date;index" json:"assigned_date"`
	DayIndex             int            `gorm:"not null" json:"day_index"` // 1-based ordinal of distinct assigned dates
	Completed            bool           `gorm:"default:false" json:"completed"`

	// Relationships
	Syllabus Syllabus `gorm:"foreignKey:SyllabusID;constraint:OnDelete:CASCADE" json:"-"`
	Quizzes  []Quiz   `gorm:"foreignKey:TopicID;constraint:OnDelete:CASCADE" json:"quizzes,omitempty"`
}
