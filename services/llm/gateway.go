package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/studypath/api/model"
)

const (
	// maxPromptChars caps how much syllabus text one extraction call carries.
	// Longer inputs are chunked upstream before they reach the gateway.
	maxPromptChars = 48000

	// acceptanceRatio is the fraction of the requested question count that
	// must survive validation for a generation to count as good enough.
	acceptanceRatio = 0.7

	completionMaxTokens = 8192
	defaultTemperature  = 0.2
)

// ExtractedTopic is one topic-shaped record returned by extraction
type ExtractedTopic struct {
	Title                string   `json:"title"`
	EstimatedTimeMinutes int      `json:"estimated_time_minutes"`
	Keywords             []string `json:"keywords"`
	Summary              string   `json:"summary"`
}

// GeneratedQuestion is one validated quiz question returned by generation
type GeneratedQuestion struct {
	Question    string `json:"question"`
	OptionA     string `json:"option_a"`
	OptionB     string `json:"option_b"`
	OptionC     string `json:"option_c"`
	OptionD     string `json:"option_d"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation"`
}

// ExtractionPrefs carries user preferences into topic extraction
type ExtractionPrefs struct {
	Language string
}

// QuizRequest describes one quiz-generation call
type QuizRequest struct {
	TopicTitle    string
	Context       string
	Level         model.QuizLevel
	QuestionCount int
	Language      string
}

// ExtractionError means every provider was exhausted or no valid topic
// survived the recovery pipeline
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("topic extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// GenerationError means quiz generation failed across all providers
type GenerationError struct {
	Level model.QuizLevel
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("quiz generation failed for %s: %v", e.Level, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Gateway wraps an ordered list of providers behind uniform extract/generate
// operations. Each operation retries within a provider before moving to the
// next one in the list.
type Gateway struct {
	providers  []Provider
	maxRetries int

	// sleep is swappable so tests do not wait out backoffs
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGateway creates a gateway over providers, tried in the given order
func NewGateway(providers []Provider, maxRetries int) *Gateway {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Gateway{
		providers:  providers,
		maxRetries: maxRetries,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// MinimumAccepted returns how many valid questions a generation needs for the
// requested count
func MinimumAccepted(requested int) int {
	return int(math.Ceil(acceptanceRatio * float64(requested)))
}

// ExtractTopics extracts topic-shaped records from syllabus text. Invalid
// items are dropped; the call fails only when no provider yields at least one
// valid topic.
func (g *Gateway) ExtractTopics(ctx context.Context, text string, prefs ExtractionPrefs) ([]ExtractedTopic, error) {
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}

	messages := buildTopicExtractionPrompt(text, prefs.Language)

	var lastErr error
	for _, provider := range g.providers {
		for attempt := 1; attempt <= g.maxRetries; attempt++ {
			topics, err := g.extractOnce(ctx, provider, messages)
			if err == nil {
				return topics, nil
			}
			lastErr = err

			if ctx.Err() != nil {
				return nil, &ExtractionError{Err: ctx.Err()}
			}

			log.Printf("LLM Gateway: extraction attempt %d/%d on %s failed: %v",
				attempt, g.maxRetries, provider.Name(), err)

			if attempt < g.maxRetries {
				if err := g.sleep(ctx, backoff(attempt)); err != nil {
					return nil, &ExtractionError{Err: err}
				}
			}
		}
		log.Printf("LLM Gateway: provider %s exhausted for extraction, falling back", provider.Name())
	}

	return nil, &ExtractionError{Err: lastErr}
}

func (g *Gateway) extractOnce(ctx context.Context, provider Provider, messages []Message) ([]ExtractedTopic, error) {
	content, err := provider.Complete(ctx, CompletionRequest{
		Messages:    messages,
		MaxTokens:   completionMaxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty response from %s", provider.Name())
	}

	var candidates []ExtractedTopic
	if err := g.decodeWithRecovery(ctx, provider, content, &candidates); err != nil {
		// Truncated or otherwise unrecoverable as a whole: salvage whatever
		// individual objects still parse.
		candidates = salvageTopics(content)
		if len(candidates) == 0 {
			return nil, fmt.Errorf("unparseable extraction response: %w", err)
		}
	}

	var topics []ExtractedTopic
	for _, candidate := range candidates {
		candidate.Title = strings.TrimSpace(candidate.Title)
		candidate.Summary = strings.TrimSpace(candidate.Summary)
		if err := ValidateTopic(candidate); err != nil {
			log.Printf("LLM Gateway: dropping invalid topic %q: %v", candidate.Title, err)
			continue
		}
		topics = append(topics, candidate)
	}

	if len(topics) == 0 {
		return nil, fmt.Errorf("no valid topics in response from %s", provider.Name())
	}

	return topics, nil
}

// GenerateQuiz generates questions for one topic at one level. The result is
// accepted only when at least 70% of the requested count survives validation.
func (g *Gateway) GenerateQuiz(ctx context.Context, req QuizRequest) ([]GeneratedQuestion, error) {
	if req.QuestionCount <= 0 {
		req.QuestionCount = 10
	}

	messages := buildQuizPrompt(req)
	needed := MinimumAccepted(req.QuestionCount)

	var lastErr error
	for _, provider := range g.providers {
		for attempt := 1; attempt <= g.maxRetries; attempt++ {
			questions, err := g.generateOnce(ctx, provider, messages, needed)
			if err == nil {
				return questions, nil
			}
			lastErr = err

			if ctx.Err() != nil {
				return nil, &GenerationError{Level: req.Level, Err: ctx.Err()}
			}

			log.Printf("LLM Gateway: quiz attempt %d/%d on %s for %q (%s) failed: %v",
				attempt, g.maxRetries, provider.Name(), req.TopicTitle, req.Level, err)

			if attempt < g.maxRetries {
				if err := g.sleep(ctx, backoff(attempt)); err != nil {
					return nil, &GenerationError{Level: req.Level, Err: err}
				}
			}
		}
		log.Printf("LLM Gateway: provider %s exhausted for quiz generation, falling back", provider.Name())
	}

	return nil, &GenerationError{Level: req.Level, Err: lastErr}
}

func (g *Gateway) generateOnce(ctx context.Context, provider Provider, messages []Message, needed int) ([]GeneratedQuestion, error) {
	content, err := provider.Complete(ctx, CompletionRequest{
		Messages:    messages,
		MaxTokens:   completionMaxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty response from %s", provider.Name())
	}

	var candidates []GeneratedQuestion
	if err := g.decodeWithRecovery(ctx, provider, content, &candidates); err != nil {
		candidates = salvageQuestions(content)
		if len(candidates) == 0 {
			return nil, fmt.Errorf("unparseable quiz response: %w", err)
		}
	}

	var questions []GeneratedQuestion
	for _, candidate := range candidates {
		candidate.Answer = strings.ToUpper(strings.TrimSpace(candidate.Answer))
		if err := ValidateQuestion(candidate); err != nil {
			log.Printf("LLM Gateway: dropping invalid question: %v", err)
			continue
		}
		questions = append(questions, candidate)
	}

	if len(questions) < needed {
		return nil, fmt.Errorf("only %d of %d required questions survived validation", len(questions), needed)
	}

	return questions, nil
}

// decodeWithRecovery runs the local repair pipeline, then asks the provider
// itself to repair the blob before giving up
func (g *Gateway) decodeWithRecovery(ctx context.Context, provider Provider, content string, target interface{}) error {
	if err := DecodeArray(content, target); err == nil {
		return nil
	}

	repaired, err := provider.Complete(ctx, CompletionRequest{
		Messages:    buildRepairPrompt(content),
		MaxTokens:   completionMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return fmt.Errorf("model-assisted repair call failed: %w", err)
	}

	return DecodeArray(repaired, target)
}

func salvageTopics(content string) []ExtractedTopic {
	var topics []ExtractedTopic
	for _, raw := range SalvageObjects(Repair(content)) {
		var t ExtractedTopic
		if json.Unmarshal(raw, &t) == nil {
			topics = append(topics, t)
		}
	}
	return topics
}

func salvageQuestions(content string) []GeneratedQuestion {
	var questions []GeneratedQuestion
	for _, raw := range SalvageObjects(Repair(content)) {
		var q GeneratedQuestion
		if json.Unmarshal(raw, &q) == nil {
			questions = append(questions, q)
		}
	}
	return questions
}

// backoff returns the exponential retry delay: 1s, 2s, 4s, ...
func backoff(attempt int) time.Duration {
	return time.Duration(1<<(attempt-1)) * time.Second
}
