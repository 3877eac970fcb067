package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationType represents the visual state of a notification
type NotificationType string

const (
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeError   NotificationType = "error"
	NotificationTypeInfo    NotificationType = "info"
)

// NotificationCategory groups notifications by origin
type NotificationCategory string

const (
	NotificationCategoryQuizReady NotificationCategory = "quiz_ready"
	NotificationCategoryPlanReady NotificationCategory = "plan_ready"
	NotificationCategoryFailure   NotificationCategory = "processing_failed"
)

// UserNotification is an in-app notification row
type UserNotification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID     uint                 `gorm:"not null;index" json:"user_id"`
	Type       NotificationType     `gorm:"type:varchar(20);not null" json:"type"`
	Category   NotificationCategory `gorm:"type:varchar(50);not null" json:"category"`
	Title      string               `gorm:"type:varchar(255);not null" json:"title"`
	Message    string               `gorm:"type:text" json:"message"`
	Read       bool                 `gorm:"default:false;index" json:"read"`
	SyllabusID *uint                `gorm:"index" json:"syllabus_id,omitempty"`
	Metadata   datatypes.JSON       `gorm:"type:jsonb" json:"metadata,omitempty"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
