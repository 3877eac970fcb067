package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/studypath/api/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationService fans quiz-ready events out to the in-app notification
// table, the push relay and email. Dispatch is best-effort: delivery failures
// are logged and never block the pipeline.
type NotificationService struct {
	db           *gorm.DB
	email        *EmailService
	pushRelayURL string
	httpClient   *http.Client
}

// NewNotificationService creates a notification service
func NewNotificationService(db *gorm.DB, email *EmailService, pushRelayURL string) *NotificationService {
	return &NotificationService{
		db:           db,
		email:        email,
		pushRelayURL: pushRelayURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SendQuizReadyNotification notifies a user that one quiz level finished for
// a syllabus. Always returns nil-adjacent behavior for the pipeline: the
// returned error is informational, callers log it and move on.
func (s *NotificationService) SendQuizReadyNotification(ctx context.Context, user *model.User, syllabus *model.Syllabus, level model.QuizLevel) error {
	title := fmt.Sprintf("%s quizzes ready", level)
	message := fmt.Sprintf("Your %s-level quizzes for \"%s\" are ready to take.", level, syllabus.Title)

	var firstErr error

	if err := s.createNotificationRow(ctx, user.ID, syllabus.ID, title, message, level); err != nil {
		log.Printf("Notification: failed to store row for user %d syllabus %d: %v", user.ID, syllabus.ID, err)
		firstErr = err
	}

	if err := s.sendPush(ctx, user, title, message); err != nil {
		log.Printf("Notification: push failed for user %d: %v", user.ID, err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if s.email != nil && user.Email != "" {
		if err := s.email.SendQuizReadyEmail(user.Email, user.Name, syllabus.Title, string(level)); err != nil {
			log.Printf("Notification: email failed for user %d: %v", user.ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (s *NotificationService) createNotificationRow(ctx context.Context, userID, syllabusID uint, title, message string, level model.QuizLevel) error {
	metadata, err := json.Marshal(map[string]interface{}{
		"syllabus_id": syllabusID,
		"level":       level,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	notification := &model.UserNotification{
		UserID:     userID,
		Type:       model.NotificationTypeSuccess,
		Category:   model.NotificationCategoryQuizReady,
		Title:      title,
		Message:    message,
		SyllabusID: &syllabusID,
		Metadata:   datatypes.JSON(metadata),
	}

	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// sendPush posts the notification to the push relay, which owns APNs/FCM
// delivery
func (s *NotificationService) sendPush(ctx context.Context, user *model.User, title, message string) error {
	if s.pushRelayURL == "" || user.DeviceToken == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"device_token": user.DeviceToken,
		"title":        title,
		"body":         message,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.pushRelayURL+"/push", bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push relay request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push relay returned status %d", resp.StatusCode)
	}

	return nil
}

// CleanupOldNotifications removes read notifications older than the given age
func (s *NotificationService) CleanupOldNotifications(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	result := s.db.WithContext(ctx).
		Where("created_at < ? AND read = ?", cutoff, true).
		Delete(&model.UserNotification{})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to cleanup old notifications: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		log.Printf("Notification: cleaned up %d old notifications", result.RowsAffected)
	}

	return result.RowsAffected, nil
}
