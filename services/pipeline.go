package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/studypath/api/model"
	"github.com/studypath/api/queue"
	"github.com/studypath/api/services/llm"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrAlreadyProcessed signals a redelivered job whose syllabus is already
// COMPLETED. The worker treats it as success and deletes the message.
var ErrAlreadyProcessed = errors.New("syllabus already processed")

// FileFetcher fetches uploaded file content from object storage
type FileFetcher interface {
	GetFileContent(ctx context.Context, key string) ([]byte, error)
}

// PipelineConfig wires the syllabus pipeline's collaborators
type PipelineConfig struct {
	DB        *gorm.DB
	States    *StateStore
	Gateway   *llm.Gateway
	Extractor *TextExtractor
	Storage   FileFetcher
	Notifier  *NotificationService
	Progress  *ProgressTracker

	// QuestionCount is how many questions each quiz requests. Zero means 10.
	QuestionCount int

	// TopicCallDelay spaces out successive quiz-generation calls
	TopicCallDelay time.Duration
}

// SyllabusPipeline runs the full syllabus processing state machine: extract
// text, extract and schedule topics, generate quizzes per level, complete.
//
// Every stage consults the persisted flags before doing work and re-checks
// them immediately before persisting, so a crashed or redelivered job resumes
// where the last run durably left off instead of redoing or duplicating work.
type SyllabusPipeline struct {
	db        *gorm.DB
	states    *StateStore
	gateway   *llm.Gateway
	extractor *TextExtractor
	storage   FileFetcher
	notifier  *NotificationService
	progress  *ProgressTracker

	questionCount  int
	topicCallDelay time.Duration

	// now and sleep are swappable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSyllabusPipeline creates a pipeline from config, applying defaults
func NewSyllabusPipeline(config PipelineConfig) *SyllabusPipeline {
	if config.QuestionCount <= 0 {
		config.QuestionCount = 10
	}
	return &SyllabusPipeline{
		db:             config.DB,
		states:         config.States,
		gateway:        config.Gateway,
		extractor:      config.Extractor,
		storage:        config.Storage,
		notifier:       config.Notifier,
		progress:       config.Progress,
		questionCount:  config.QuestionCount,
		topicCallDelay: config.TopicCallDelay,
		now:            time.Now,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
}

// Process runs the pipeline for one job. It is the single entry point for
// both fresh and redelivered deliveries; MarkFailed is called here and
// nowhere deeper, so one run records at most one failure.
func (p *SyllabusPipeline) Process(ctx context.Context, job queue.SyllabusJob) error {
	syllabus, err := p.states.ReadState(ctx, job.SyllabusID)
	if err != nil {
		return err
	}

	if syllabus.Status == model.SyllabusStatusCompleted {
		log.Printf("Pipeline: syllabus %d already completed, skipping job %s", job.SyllabusID, job.JobID)
		return ErrAlreadyProcessed
	}

	if err := p.states.MarkProcessing(ctx, job.SyllabusID); err != nil {
		return err
	}

	if p.progress != nil {
		p.progress.StartJob(ctx, job.JobID, job.SyllabusID, job.UserID)
	}

	if err := p.run(ctx, job, syllabus); err != nil {
		log.Printf("Pipeline: syllabus %d failed: %v", job.SyllabusID, err)
		if markErr := p.states.MarkFailed(ctx, job.SyllabusID, "", err.Error()); markErr != nil {
			log.Printf("Pipeline: failed to record failure for syllabus %d: %v", job.SyllabusID, markErr)
		}
		if p.progress != nil {
			p.progress.FailJob(ctx, job.JobID, err.Error())
		}
		return err
	}

	if p.progress != nil {
		p.progress.CompleteJob(ctx, job.JobID)
	}
	return nil
}

func (p *SyllabusPipeline) run(ctx context.Context, job queue.SyllabusJob, syllabus *model.Syllabus) error {
	text, err := p.ensureRawText(ctx, job, syllabus)
	if err != nil {
		return err
	}

	if !syllabus.TopicsSaved {
		p.setPhase(ctx, job.JobID, "topics", 0, 0)
		if err := p.extractAndScheduleTopics(ctx, syllabus, text); err != nil {
			return err
		}
	} else {
		log.Printf("Pipeline: syllabus %d topics already saved, skipping extraction", syllabus.ID)
	}

	topics, err := p.loadTopics(ctx, syllabus.ID)
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		return fmt.Errorf("syllabus %d has no topics after extraction stage", syllabus.ID)
	}

	for _, level := range model.Levels() {
		state, err := p.states.ReadState(ctx, syllabus.ID)
		if err != nil {
			return err
		}
		if state.State().LevelSaved(level) {
			log.Printf("Pipeline: syllabus %d %s quizzes already saved, skipping", syllabus.ID, level)
			continue
		}

		if err := p.generateLevel(ctx, job, syllabus, topics, level); err != nil {
			return err
		}
	}

	if err := p.states.MarkCompleted(ctx, syllabus.ID); err != nil {
		return err
	}

	log.Printf("Pipeline: syllabus %d completed", syllabus.ID)
	return nil
}

// ensureRawText returns the syllabus text, extracting and persisting it from
// the uploaded file when the row does not carry it yet
func (p *SyllabusPipeline) ensureRawText(ctx context.Context, job queue.SyllabusJob, syllabus *model.Syllabus) (string, error) {
	if syllabus.RawText != "" {
		if len(syllabus.RawText) < MinMeaningfulTextLength {
			return "", fmt.Errorf("syllabus %d raw text is too short (%d characters) to build a study plan", syllabus.ID, len(syllabus.RawText))
		}
		return syllabus.RawText, nil
	}

	filePath := syllabus.FilePath
	if filePath == "" {
		filePath = job.FilePath
	}
	if filePath == "" {
		return "", fmt.Errorf("syllabus %d has neither raw text nor a file", syllabus.ID)
	}

	p.setPhase(ctx, job.JobID, "text", 0, 0)

	content, err := p.storage.GetFileContent(ctx, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to fetch syllabus file %s: %w", filePath, err)
	}

	text, err := p.extractor.ExtractTextFromFile(ctx, content, filePath)
	if err != nil {
		return "", err
	}

	if err := p.states.SaveRawText(ctx, syllabus.ID, text); err != nil {
		return "", err
	}
	syllabus.RawText = text
	return text, nil
}

// extractAndScheduleTopics runs topic extraction over every chunk, schedules
// the combined list, and persists it. The whole batch lands in one
// transaction so a crash cannot leave a partial topic set behind.
func (p *SyllabusPipeline) extractAndScheduleTopics(ctx context.Context, syllabus *model.Syllabus, text string) error {
	chunks := ChunkText(text)
	log.Printf("Pipeline: extracting topics for syllabus %d from %d chunk(s)", syllabus.ID, len(chunks))

	prefs := llm.ExtractionPrefs{Language: syllabus.PreferredLanguage}

	var extracted []llm.ExtractedTopic
	for i, chunk := range chunks {
		topics, err := p.gateway.ExtractTopics(ctx, chunk.Content, prefs)
		if err != nil {
			return fmt.Errorf("extraction failed on chunk %d/%d: %w", i+1, len(chunks), err)
		}
		extracted = append(extracted, topics...)
	}

	if len(extracted) == 0 {
		return fmt.Errorf("no topics extracted for syllabus %d", syllabus.ID)
	}

	rows := make([]model.Topic, 0, len(extracted))
	for i, t := range extracted {
		keywords, err := json.Marshal(t.Keywords)
		if err != nil {
			return fmt.Errorf("failed to encode keywords for topic %q: %w", t.Title, err)
		}
		rows = append(rows, model.Topic{
			SyllabusID:           syllabus.ID,
			Position:             i + 1,
			Title:                t.Title,
			Summary:              t.Summary,
			EstimatedTimeMinutes: t.EstimatedTimeMinutes,
			Keywords:             datatypes.JSON(keywords),
		})
	}

	rows = ScheduleTopics(rows, p.now(), syllabus.DailyStudyMinutes)

	// Re-check the flag right before persisting: a duplicate delivery may have
	// saved the topics while this run was calling providers.
	fresh, err := p.states.ReadState(ctx, syllabus.ID)
	if err != nil {
		return err
	}
	if fresh.TopicsSaved {
		log.Printf("Pipeline: syllabus %d topics saved by a concurrent run, discarding batch", syllabus.ID)
		return nil
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Clear remnants of a run that crashed between persist and flag flip
		if err := tx.Unscoped().Where("syllabus_id = ?", syllabus.ID).Delete(&model.Topic{}).Error; err != nil {
			return err
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("failed to persist topics for syllabus %d: %w", syllabus.ID, err)
	}

	if err := p.states.MarkTopicsSaved(ctx, syllabus.ID); err != nil {
		return err
	}

	log.Printf("Pipeline: saved %d topics for syllabus %d", len(rows), syllabus.ID)
	return nil
}

func (p *SyllabusPipeline) loadTopics(ctx context.Context, syllabusID uint) ([]model.Topic, error) {
	var topics []model.Topic
	err := p.db.WithContext(ctx).
		Where("syllabus_id = ?", syllabusID).
		Order("position ASC").
		Find(&topics).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load topics for syllabus %d: %w", syllabusID, err)
	}
	return topics, nil
}

// generateLevel generates and persists quizzes for every topic at one level.
// All quizzes for the level land in one transaction, then the level flag flips.
func (p *SyllabusPipeline) generateLevel(ctx context.Context, job queue.SyllabusJob, syllabus *model.Syllabus, topics []model.Topic, level model.QuizLevel) error {
	if err := p.states.MarkStage(ctx, syllabus.ID, level); err != nil {
		return err
	}
	log.Printf("Pipeline: generating %s quizzes for syllabus %d (%d topics)", level, syllabus.ID, len(topics))

	quizzes := make([]model.Quiz, 0, len(topics))
	for i, topic := range topics {
		p.setPhase(ctx, job.JobID, string(level), i, len(topics))

		questions, err := p.gateway.GenerateQuiz(ctx, llm.QuizRequest{
			TopicTitle:    topic.Title,
			Context:       topic.Summary,
			Level:         level,
			QuestionCount: p.questionCount,
			Language:      syllabus.PreferredLanguage,
		})
		if err != nil {
			return err
		}

		quiz := model.Quiz{TopicID: topic.ID, Level: level, Version: 1}
		for _, q := range questions {
			quiz.Questions = append(quiz.Questions, model.QuizQuestion{
				Question:    q.Question,
				OptionA:     q.OptionA,
				OptionB:     q.OptionB,
				OptionC:     q.OptionC,
				OptionD:     q.OptionD,
				Answer:      q.Answer,
				Explanation: q.Explanation,
			})
		}
		quizzes = append(quizzes, quiz)

		if p.topicCallDelay > 0 && i < len(topics)-1 {
			if err := p.sleep(ctx, p.topicCallDelay); err != nil {
				return err
			}
		}
	}

	// Re-check the level flag right before persisting
	fresh, err := p.states.ReadState(ctx, syllabus.ID)
	if err != nil {
		return err
	}
	if fresh.State().LevelSaved(level) {
		log.Printf("Pipeline: syllabus %d %s quizzes saved by a concurrent run, discarding batch", syllabus.ID, level)
		return nil
	}

	topicIDs := make([]uint, len(topics))
	for i, t := range topics {
		topicIDs[i] = t.ID
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var staleIDs []uint
		if err := tx.Model(&model.Quiz{}).
			Where("topic_id IN ? AND level = ? AND version = ?", topicIDs, level, 1).
			Pluck("id", &staleIDs).Error; err != nil {
			return err
		}
		if len(staleIDs) > 0 {
			if err := tx.Unscoped().Where("quiz_id IN ?", staleIDs).Delete(&model.QuizQuestion{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Where("id IN ?", staleIDs).Delete(&model.Quiz{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(&quizzes).Error
	})
	if err != nil {
		return fmt.Errorf("failed to persist %s quizzes for syllabus %d: %w", level, syllabus.ID, err)
	}

	if err := p.states.MarkLevelSaved(ctx, syllabus.ID, level); err != nil {
		return err
	}

	p.notifyLevelReady(ctx, syllabus, level)

	log.Printf("Pipeline: saved %s quizzes for syllabus %d", level, syllabus.ID)
	return nil
}

// notifyLevelReady fans out the quiz-ready notification. Failures are logged;
// notifications never fail the pipeline.
func (p *SyllabusPipeline) notifyLevelReady(ctx context.Context, syllabus *model.Syllabus, level model.QuizLevel) {
	if p.notifier == nil {
		return
	}

	var user model.User
	if err := p.db.WithContext(ctx).First(&user, syllabus.UserID).Error; err != nil {
		log.Printf("Pipeline: cannot notify, failed to load user %d: %v", syllabus.UserID, err)
		return
	}

	if err := p.notifier.SendQuizReadyNotification(ctx, &user, syllabus, level); err != nil {
		log.Printf("Pipeline: notification for syllabus %d (%s) incomplete: %v", syllabus.ID, level, err)
	}
}

func (p *SyllabusPipeline) setPhase(ctx context.Context, jobID, phase string, done, total int) {
	if p.progress != nil {
		p.progress.SetPhase(ctx, jobID, phase, done, total)
	}
}
