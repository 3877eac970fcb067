package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/studypath/api/model"
	"github.com/studypath/api/queue"
	"github.com/studypath/api/services/llm"
	"gorm.io/gorm"
)

type fakeStorage struct {
	content []byte
	fetched []string
}

func (f *fakeStorage) GetFileContent(_ context.Context, key string) ([]byte, error) {
	f.fetched = append(f.fetched, key)
	if f.content == nil {
		return nil, fmt.Errorf("no object at %s", key)
	}
	return f.content, nil
}

func topicArrayJSON(t *testing.T, n int) string {
	t.Helper()
	type topic struct {
		Title                string   `json:"title"`
		EstimatedTimeMinutes int      `json:"estimated_time_minutes"`
		Keywords             []string `json:"keywords"`
		Summary              string   `json:"summary"`
	}
	topics := make([]topic, n)
	for i := range topics {
		topics[i] = topic{
			Title:                fmt.Sprintf("Topic %d", i+1),
			EstimatedTimeMinutes: 30,
			Keywords:             []string{"keyword"},
			Summary:              "What this topic covers and why it matters.",
		}
	}
	raw, err := json.Marshal(topics)
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

func questionArrayJSON(t *testing.T, n int) string {
	t.Helper()
	type question struct {
		Question    string `json:"question"`
		OptionA     string `json:"option_a"`
		OptionB     string `json:"option_b"`
		OptionC     string `json:"option_c"`
		OptionD     string `json:"option_d"`
		Answer      string `json:"answer"`
		Explanation string `json:"explanation"`
	}
	questions := make([]question, n)
	for i := range questions {
		questions[i] = question{
			Question:    fmt.Sprintf("Question %d?", i+1),
			OptionA:     "first",
			OptionB:     "second",
			OptionC:     "third",
			OptionD:     "fourth",
			Answer:      "A",
			Explanation: "The first option is the correct one.",
		}
	}
	raw, err := json.Marshal(questions)
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

func newTestPipeline(db *gorm.DB, provider llm.Provider, store FileFetcher) *SyllabusPipeline {
	gateway := llm.NewGateway([]llm.Provider{provider}, 1)
	if store == nil {
		store = &fakeStorage{}
	}
	return NewSyllabusPipeline(PipelineConfig{
		DB:            db,
		States:        NewStateStore(db),
		Gateway:       gateway,
		Extractor:     NewTextExtractor(NewPDFExtractor(), NewOCRClient("http://127.0.0.1:1")),
		Storage:       store,
		QuestionCount: 3,
	})
}

func testJob(syllabus *model.Syllabus) queue.SyllabusJob {
	return queue.SyllabusJob{
		JobID:      "job-test",
		SyllabusID: syllabus.ID,
		UserID:     syllabus.UserID,
		FilePath:   syllabus.FilePath,
	}
}

func TestPipelineProcessesFreshSyllabus(t *testing.T) {
	db := openTestDB(t)
	syllabus := seedSyllabus(t, db)

	// First call answers extraction, every later call answers quiz generation
	provider := llm.NewMockProvider("mock", topicArrayJSON(t, 2), questionArrayJSON(t, 3))
	p := newTestPipeline(db, provider, nil)

	if err := p.Process(context.Background(), testJob(syllabus)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	got, err := NewStateStore(db).ReadState(context.Background(), syllabus.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.SyllabusStatusCompleted {
		t.Errorf("status = %s, want completed (error: %s)", got.Status, got.ErrorMessage)
	}
	state := got.State()
	if !state.TopicsSaved || !state.AllLevelsSaved() {
		t.Errorf("flags incomplete after success: %+v", state)
	}

	var topics []model.Topic
	if err := db.Where("syllabus_id = ?", syllabus.ID).Order("position").Find(&topics).Error; err != nil {
		t.Fatal(err)
	}
	if len(topics) != 2 {
		t.Fatalf("got %d topics, want 2", len(topics))
	}
	for i, topic := range topics {
		if topic.DayIndex == 0 {
			t.Errorf("topic %d has no day index", i)
		}
		if topic.AssignedDate.IsZero() {
			t.Errorf("topic %d has no assigned date", i)
		}
	}

	var quizCount int64
	db.Model(&model.Quiz{}).Count(&quizCount)
	if quizCount != 6 {
		t.Errorf("got %d quizzes, want 6 (2 topics x 3 levels)", quizCount)
	}
	var questionCount int64
	db.Model(&model.QuizQuestion{}).Count(&questionCount)
	if questionCount != 18 {
		t.Errorf("got %d questions, want 18", questionCount)
	}
}

func TestPipelineRedeliveryAfterCompletionIsNoOp(t *testing.T) {
	db := openTestDB(t)
	syllabus := seedSyllabus(t, db)
	provider := llm.NewMockProvider("mock", topicArrayJSON(t, 2), questionArrayJSON(t, 3))
	p := newTestPipeline(db, provider, nil)
	ctx := context.Background()

	if err := p.Process(ctx, testJob(syllabus)); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	callsAfterFirst := provider.Calls

	err := p.Process(ctx, testJob(syllabus))
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("want ErrAlreadyProcessed, got %v", err)
	}
	if provider.Calls != callsAfterFirst {
		t.Errorf("redelivery reached the provider: %d extra calls", provider.Calls-callsAfterFirst)
	}

	var topicCount int64
	db.Model(&model.Topic{}).Count(&topicCount)
	if topicCount != 2 {
		t.Errorf("redelivery changed topic count to %d", topicCount)
	}
}

func TestPipelineResumesSkippingSavedStages(t *testing.T) {
	db := openTestDB(t)
	syllabus := seedSyllabus(t, db)
	ctx := context.Background()
	states := NewStateStore(db)

	// Simulate a crashed run that persisted topics and beginner quizzes
	topics := []model.Topic{
		{SyllabusID: syllabus.ID, Position: 1, Title: "Saved A", EstimatedTimeMinutes: 30, Keywords: []byte(`["k"]`)},
		{SyllabusID: syllabus.ID, Position: 2, Title: "Saved B", EstimatedTimeMinutes: 30, Keywords: []byte(`["k"]`)},
	}
	if err := db.Create(&topics).Error; err != nil {
		t.Fatal(err)
	}
	if err := states.MarkTopicsSaved(ctx, syllabus.ID); err != nil {
		t.Fatal(err)
	}
	if err := states.MarkLevelSaved(ctx, syllabus.ID, model.LevelBeginner); err != nil {
		t.Fatal(err)
	}

	// The provider only knows how to answer quiz generation: if the resumed
	// run re-attempted extraction it would fail outright.
	provider := llm.NewMockProvider("mock", questionArrayJSON(t, 3))
	p := newTestPipeline(db, provider, nil)

	if err := p.Process(ctx, testJob(syllabus)); err != nil {
		t.Fatalf("resume run failed: %v", err)
	}

	var topicCount int64
	db.Model(&model.Topic{}).Count(&topicCount)
	if topicCount != 2 {
		t.Errorf("resume re-created topics: count %d", topicCount)
	}

	// Only intermediate and advanced were generated: 2 topics x 2 levels
	if provider.Calls != 4 {
		t.Errorf("provider called %d times, want 4", provider.Calls)
	}
	var quizCount int64
	db.Model(&model.Quiz{}).Count(&quizCount)
	if quizCount != 4 {
		t.Errorf("got %d quizzes, want 4", quizCount)
	}

	got, _ := states.ReadState(ctx, syllabus.ID)
	if got.Status != model.SyllabusStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
}

func TestPipelineFailureRecordsErrorAndKeepsProgress(t *testing.T) {
	db := openTestDB(t)
	syllabus := seedSyllabus(t, db)

	provider := llm.NewMockProvider("mock")
	provider.Err = errors.New("provider down")
	p := newTestPipeline(db, provider, nil)

	err := p.Process(context.Background(), testJob(syllabus))
	if err == nil {
		t.Fatal("expected failure")
	}

	got, readErr := NewStateStore(db).ReadState(context.Background(), syllabus.ID)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if got.Status != model.SyllabusStatusError {
		t.Errorf("status = %s, want error", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("error_message empty after failure")
	}
	if got.TopicsSaved {
		t.Error("topics flag set even though extraction never succeeded")
	}
}

func TestPipelineRejectsTooShortRawText(t *testing.T) {
	db := openTestDB(t)
	syllabus := seedSyllabus(t, db)
	if err := db.Model(syllabus).Update("raw_text", "Graphs.").Error; err != nil {
		t.Fatal(err)
	}
	syllabus.RawText = "Graphs."

	provider := llm.NewMockProvider("mock", topicArrayJSON(t, 2), questionArrayJSON(t, 3))
	p := newTestPipeline(db, provider, nil)

	err := p.Process(context.Background(), testJob(syllabus))
	if err == nil {
		t.Fatal("expected failure for sub-minimum raw text")
	}
	if provider.Calls != 0 {
		t.Errorf("short raw text reached the provider: %d calls", provider.Calls)
	}

	got, readErr := NewStateStore(db).ReadState(context.Background(), syllabus.ID)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if got.Status != model.SyllabusStatusError {
		t.Errorf("status = %s, want error", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("error_message empty after short-text failure")
	}
}

func TestPipelineFetchesFileWhenRawTextMissing(t *testing.T) {
	db := openTestDB(t)
	syllabus := seedSyllabus(t, db)

	fileText := strings.Repeat("Chapter on data structures and their complexity. ", 5)
	if err := db.Model(syllabus).Updates(map[string]interface{}{
		"raw_text":  "",
		"file_path": "syllabi/1/algo.txt",
	}).Error; err != nil {
		t.Fatal(err)
	}
	syllabus.RawText = ""
	syllabus.FilePath = "syllabi/1/algo.txt"

	store := &fakeStorage{content: []byte(fileText)}
	provider := llm.NewMockProvider("mock", topicArrayJSON(t, 1), questionArrayJSON(t, 3))
	p := newTestPipeline(db, provider, store)

	if err := p.Process(context.Background(), testJob(syllabus)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(store.fetched) != 1 || store.fetched[0] != "syllabi/1/algo.txt" {
		t.Errorf("fetched keys: %v", store.fetched)
	}

	var got model.Syllabus
	if err := db.First(&got, syllabus.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.RawText == "" {
		t.Error("extracted text not persisted to the syllabus row")
	}
}
