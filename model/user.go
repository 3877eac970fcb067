package model

import (
	"time"

	"gorm.io/gorm"
)

// User is the notification target for pipeline events. Authentication and
// session handling live outside this service.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name        string `gorm:"type:varchar(255)" json:"name"`
	Email       string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	DeviceToken string `gorm:"type:varchar(512)" json:"-"` // push notification target

	Syllabi []Syllabus `gorm:"foreignKey:UserID" json:"-"`
}
