package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/studypath/api/model"
	"github.com/studypath/api/services/llm"
	"gorm.io/gorm"
)

// QuizService handles on-demand quiz regeneration outside the pipeline.
// Regeneration never touches the syllabus flags: the level stays saved, and a
// new quiz row is written at the next version so the old quiz survives until
// the new one is fully persisted.
type QuizService struct {
	db            *gorm.DB
	gateway       *llm.Gateway
	questionCount int
}

// NewQuizService creates a quiz service
func NewQuizService(db *gorm.DB, gateway *llm.Gateway, questionCount int) *QuizService {
	if questionCount <= 0 {
		questionCount = 10
	}
	return &QuizService{db: db, gateway: gateway, questionCount: questionCount}
}

// Regenerate produces a fresh quiz for one topic at one level, persisted with
// a bumped version number
func (q *QuizService) Regenerate(ctx context.Context, topicID uint, level model.QuizLevel) (*model.Quiz, error) {
	var topic model.Topic
	if err := q.db.WithContext(ctx).Preload("Syllabus").First(&topic, topicID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("topic %d not found", topicID)
		}
		return nil, fmt.Errorf("failed to fetch topic %d: %w", topicID, err)
	}

	questions, err := q.gateway.GenerateQuiz(ctx, llm.QuizRequest{
		TopicTitle:    topic.Title,
		Context:       topic.Summary,
		Level:         level,
		QuestionCount: q.questionCount,
		Language:      topic.Syllabus.PreferredLanguage,
	})
	if err != nil {
		return nil, err
	}

	quiz := &model.Quiz{TopicID: topic.ID, Level: level}
	for _, question := range questions {
		quiz.Questions = append(quiz.Questions, model.QuizQuestion{
			Question:    question.Question,
			OptionA:     question.OptionA,
			OptionB:     question.OptionB,
			OptionC:     question.OptionC,
			OptionD:     question.OptionD,
			Answer:      question.Answer,
			Explanation: question.Explanation,
		})
	}

	err = q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Version is assigned inside the transaction so concurrent
		// regenerations of the same (topic, level) cannot collide silently;
		// the unique index rejects the loser.
		var latest int
		if err := tx.Model(&model.Quiz{}).
			Where("topic_id = ? AND level = ?", topic.ID, level).
			Select("COALESCE(MAX(version), 0)").
			Scan(&latest).Error; err != nil {
			return err
		}
		quiz.Version = latest + 1
		return tx.Create(quiz).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist regenerated quiz for topic %d (%s): %w", topic.ID, level, err)
	}

	log.Printf("QuizService: regenerated %s quiz for topic %d at version %d", level, topic.ID, quiz.Version)
	return quiz, nil
}
