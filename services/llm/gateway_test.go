package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/studypath/api/model"
)

func newTestGateway(maxRetries int, providers ...Provider) *Gateway {
	g := NewGateway(providers, maxRetries)
	g.sleep = func(context.Context, time.Duration) error { return nil }
	return g
}

func validTopicJSON(n int) string {
	topics := make([]ExtractedTopic, n)
	for i := range topics {
		topics[i] = ExtractedTopic{
			Title:                fmt.Sprintf("Topic %d", i+1),
			EstimatedTimeMinutes: 30,
			Keywords:             []string{"keyword"},
			Summary:              "A summary of the material covered by this topic.",
		}
	}
	raw, _ := json.Marshal(topics)
	return string(raw)
}

func validQuestionJSON(n int) string {
	questions := make([]GeneratedQuestion, n)
	for i := range questions {
		questions[i] = GeneratedQuestion{
			Question:    fmt.Sprintf("Question %d?", i+1),
			OptionA:     "first",
			OptionB:     "second",
			OptionC:     "third",
			OptionD:     "fourth",
			Answer:      "A",
			Explanation: "Because the first option is correct.",
		}
	}
	raw, _ := json.Marshal(questions)
	return string(raw)
}

func TestExtractTopicsHappyPath(t *testing.T) {
	mock := NewMockProvider("mock", validTopicJSON(3))
	g := newTestGateway(3, mock)

	topics, err := g.ExtractTopics(context.Background(), "syllabus text", ExtractionPrefs{})
	if err != nil {
		t.Fatalf("ExtractTopics failed: %v", err)
	}
	if len(topics) != 3 {
		t.Errorf("got %d topics, want 3", len(topics))
	}
	if mock.Calls != 1 {
		t.Errorf("provider called %d times, want 1", mock.Calls)
	}
}

func TestExtractTopicsRepairsFencedResponse(t *testing.T) {
	fenced := "```json\n" + validTopicJSON(2) + "\n```"
	mock := NewMockProvider("mock", fenced)
	g := newTestGateway(3, mock)

	topics, err := g.ExtractTopics(context.Background(), "text", ExtractionPrefs{})
	if err != nil {
		t.Fatalf("ExtractTopics failed: %v", err)
	}
	if len(topics) != 2 {
		t.Errorf("got %d topics, want 2", len(topics))
	}
	// Repaired locally, no extra provider round trip
	if mock.Calls != 1 {
		t.Errorf("provider called %d times, want 1", mock.Calls)
	}
}

func TestExtractTopicsDropsInvalidItems(t *testing.T) {
	response := `[
		{"title": "Valid", "estimated_time_minutes": 45, "keywords": ["k"], "summary": "s"},
		{"title": "", "estimated_time_minutes": 45, "keywords": ["k"], "summary": "s"},
		{"title": "No minutes", "estimated_time_minutes": 0, "keywords": ["k"], "summary": "s"},
		{"title": "No keywords", "estimated_time_minutes": 30, "keywords": [], "summary": "s"}
	]`
	mock := NewMockProvider("mock", response)
	g := newTestGateway(3, mock)

	topics, err := g.ExtractTopics(context.Background(), "text", ExtractionPrefs{})
	if err != nil {
		t.Fatalf("ExtractTopics failed: %v", err)
	}
	if len(topics) != 1 {
		t.Fatalf("got %d topics, want only the valid one", len(topics))
	}
	if topics[0].Title != "Valid" {
		t.Errorf("surviving topic is %q", topics[0].Title)
	}
}

func TestExtractTopicsModelAssistedRepair(t *testing.T) {
	// First response is cut off mid-string and unrecoverable locally; the
	// repair round trip returns a clean array.
	broken := `[{"title": "Half a topi`
	mock := NewMockProvider("mock", broken, validTopicJSON(2))
	g := newTestGateway(3, mock)

	topics, err := g.ExtractTopics(context.Background(), "text", ExtractionPrefs{})
	if err != nil {
		t.Fatalf("ExtractTopics failed: %v", err)
	}
	if len(topics) != 2 {
		t.Errorf("got %d topics, want 2", len(topics))
	}
	if mock.Calls != 2 {
		t.Errorf("provider called %d times, want 2 (extraction + repair)", mock.Calls)
	}
}

func TestExtractTopicsSalvagesTruncatedResponse(t *testing.T) {
	// Truncated mid-array with two whole objects; the repair round trip also
	// fails, so individual objects are salvaged.
	truncated := `[` +
		`{"title": "One", "estimated_time_minutes": 20, "keywords": ["a"], "summary": "s"}, ` +
		`{"title": "Two", "estimated_time_minutes": 25, "keywords": ["b"], "summary": "s"}, ` +
		`{"title": "Thr`
	mock := NewMockProvider("mock", truncated, "sorry, I cannot fix that")
	g := newTestGateway(3, mock)

	topics, err := g.ExtractTopics(context.Background(), "text", ExtractionPrefs{})
	if err != nil {
		t.Fatalf("ExtractTopics failed: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("salvaged %d topics, want 2", len(topics))
	}
}

func TestExtractTopicsFallsBackAcrossProviders(t *testing.T) {
	primary := NewMockProvider("primary")
	primary.Err = errors.New("rate limited")
	secondary := NewMockProvider("secondary", validTopicJSON(1))
	g := newTestGateway(2, primary, secondary)

	topics, err := g.ExtractTopics(context.Background(), "text", ExtractionPrefs{})
	if err != nil {
		t.Fatalf("ExtractTopics failed: %v", err)
	}
	if len(topics) != 1 {
		t.Errorf("got %d topics from fallback, want 1", len(topics))
	}
	if primary.Calls != 2 {
		t.Errorf("primary retried %d times, want 2", primary.Calls)
	}
	if secondary.Calls != 1 {
		t.Errorf("secondary called %d times, want 1", secondary.Calls)
	}
}

func TestExtractTopicsAllProvidersExhausted(t *testing.T) {
	broken := NewMockProvider("broken")
	broken.Err = errors.New("boom")
	g := newTestGateway(2, broken)

	_, err := g.ExtractTopics(context.Background(), "text", ExtractionPrefs{})
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("want *ExtractionError, got %T: %v", err, err)
	}
}

func TestMinimumAccepted(t *testing.T) {
	cases := []struct {
		requested int
		want      int
	}{
		{10, 7},
		{5, 4},
		{3, 3},
		{1, 1},
	}
	for _, tc := range cases {
		if got := MinimumAccepted(tc.requested); got != tc.want {
			t.Errorf("MinimumAccepted(%d) = %d, want %d", tc.requested, got, tc.want)
		}
	}
}

func TestGenerateQuizAcceptsAtThreshold(t *testing.T) {
	// 7 of 10 requested is exactly the acceptance floor
	mock := NewMockProvider("mock", validQuestionJSON(7))
	g := newTestGateway(3, mock)

	questions, err := g.GenerateQuiz(context.Background(), QuizRequest{
		TopicTitle:    "Recursion",
		Level:         model.LevelBeginner,
		QuestionCount: 10,
	})
	if err != nil {
		t.Fatalf("GenerateQuiz failed: %v", err)
	}
	if len(questions) != 7 {
		t.Errorf("got %d questions, want 7", len(questions))
	}
}

func TestGenerateQuizRejectsBelowThreshold(t *testing.T) {
	// 6 of 10 is one under the floor; every retry returns the same response
	mock := NewMockProvider("mock", validQuestionJSON(6))
	g := newTestGateway(2, mock)

	_, err := g.GenerateQuiz(context.Background(), QuizRequest{
		TopicTitle:    "Recursion",
		Level:         model.LevelAdvanced,
		QuestionCount: 10,
	})
	var generationErr *GenerationError
	if !errors.As(err, &generationErr) {
		t.Fatalf("want *GenerationError, got %T: %v", err, err)
	}
	if generationErr.Level != model.LevelAdvanced {
		t.Errorf("error level = %s", generationErr.Level)
	}
}

func TestGenerateQuizNormalizesAnswerCase(t *testing.T) {
	questions := make([]GeneratedQuestion, 1)
	questions[0] = GeneratedQuestion{
		Question:    "Pick one?",
		OptionA:     "a", OptionB: "b", OptionC: "c", OptionD: "d",
		Answer:      " b ",
		Explanation: "b is right",
	}
	raw, _ := json.Marshal(questions)
	mock := NewMockProvider("mock", string(raw))
	g := newTestGateway(3, mock)

	got, err := g.GenerateQuiz(context.Background(), QuizRequest{
		TopicTitle:    "Casing",
		Level:         model.LevelIntermediate,
		QuestionCount: 1,
	})
	if err != nil {
		t.Fatalf("GenerateQuiz failed: %v", err)
	}
	if got[0].Answer != "B" {
		t.Errorf("answer normalized to %q, want B", got[0].Answer)
	}
}

func TestGenerateQuizDropsMalformedQuestions(t *testing.T) {
	bad := GeneratedQuestion{Question: "Missing options?", Answer: "A", Explanation: "x"}
	good := GeneratedQuestion{
		Question: "Complete?", OptionA: "1", OptionB: "2", OptionC: "3", OptionD: "4",
		Answer: "C", Explanation: "because",
	}
	raw, _ := json.Marshal([]GeneratedQuestion{bad, good})
	mock := NewMockProvider("mock", string(raw))
	g := newTestGateway(3, mock)

	got, err := g.GenerateQuiz(context.Background(), QuizRequest{
		TopicTitle:    "Filtering",
		Level:         model.LevelBeginner,
		QuestionCount: 1,
	})
	if err != nil {
		t.Fatalf("GenerateQuiz failed: %v", err)
	}
	if len(got) != 1 || got[0].Question != "Complete?" {
		t.Fatalf("got %v", got)
	}
}
