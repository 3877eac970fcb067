package services

import (
	"context"
	"testing"

	"github.com/studypath/api/model"
	"github.com/studypath/api/services/llm"
)

func TestRegenerateBumpsVersion(t *testing.T) {
	db := openTestDB(t)
	syllabus := seedSyllabus(t, db)
	ctx := context.Background()

	topic := model.Topic{
		SyllabusID:           syllabus.ID,
		Position:             1,
		Title:                "Hash Tables",
		Summary:              "Buckets, collisions and load factors.",
		EstimatedTimeMinutes: 40,
		Keywords:             []byte(`["hashing"]`),
	}
	if err := db.Create(&topic).Error; err != nil {
		t.Fatal(err)
	}
	original := model.Quiz{TopicID: topic.ID, Level: model.LevelBeginner, Version: 1}
	if err := db.Create(&original).Error; err != nil {
		t.Fatal(err)
	}

	provider := llm.NewMockProvider("mock", questionArrayJSON(t, 3))
	svc := NewQuizService(db, llm.NewGateway([]llm.Provider{provider}, 1), 3)

	regenerated, err := svc.Regenerate(ctx, topic.ID, model.LevelBeginner)
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	if regenerated.Version != 2 {
		t.Errorf("version = %d, want 2", regenerated.Version)
	}
	if len(regenerated.Questions) != 3 {
		t.Errorf("got %d questions, want 3", len(regenerated.Questions))
	}

	// The original quiz survives alongside the new version
	var count int64
	db.Model(&model.Quiz{}).Where("topic_id = ? AND level = ?", topic.ID, model.LevelBeginner).Count(&count)
	if count != 2 {
		t.Errorf("quiz count = %d, want 2", count)
	}
}

func TestRegenerateFirstVersionWhenNoneExists(t *testing.T) {
	db := openTestDB(t)
	syllabus := seedSyllabus(t, db)

	topic := model.Topic{
		SyllabusID:           syllabus.ID,
		Position:             1,
		Title:                "Heaps",
		EstimatedTimeMinutes: 30,
		Keywords:             []byte(`["heap"]`),
	}
	if err := db.Create(&topic).Error; err != nil {
		t.Fatal(err)
	}

	provider := llm.NewMockProvider("mock", questionArrayJSON(t, 3))
	svc := NewQuizService(db, llm.NewGateway([]llm.Provider{provider}, 1), 3)

	quiz, err := svc.Regenerate(context.Background(), topic.ID, model.LevelAdvanced)
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	if quiz.Version != 1 {
		t.Errorf("version = %d, want 1", quiz.Version)
	}
}

func TestRegenerateUnknownTopic(t *testing.T) {
	provider := llm.NewMockProvider("mock", questionArrayJSON(t, 3))
	svc := NewQuizService(openTestDB(t), llm.NewGateway([]llm.Provider{provider}, 1), 3)

	if _, err := svc.Regenerate(context.Background(), 999, model.LevelBeginner); err == nil {
		t.Fatal("expected error for unknown topic")
	}
}
