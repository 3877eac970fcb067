package llm

import (
	"fmt"

	"github.com/studypath/api/model"
)

const topicExtractionSystemPrompt = `You are an expert at breaking academic syllabi and course outlines into a study plan.

Analyze the provided syllabus text and extract the distinct topics a student must study. For each topic produce:
- title: a short, specific topic name
- estimated_time_minutes: realistic study time, between 15 and 120
- keywords: 3 to 5 relevant terms
- summary: 100 to 400 words a student can study from directly

Guidelines:
- Extract at least 12 topics; split broad units into concrete topics when needed
- Keep topics in the order they appear in the syllabus
- Summaries must teach the topic, not describe the syllabus
- Respond with a JSON array only. No markdown, no code blocks, no commentary.`

// buildTopicExtractionPrompt builds the system and user messages for topic
// extraction. preferredLanguage translates titles and summaries; keywords stay
// as-is so search keeps working.
func buildTopicExtractionPrompt(text, preferredLanguage string) []Message {
	system := topicExtractionSystemPrompt
	if preferredLanguage != "" && preferredLanguage != "english" {
		system += fmt.Sprintf("\n- Write every title and summary in %s", preferredLanguage)
	}

	user := fmt.Sprintf(`Extract the study topics from this syllabus:

%s

Respond with a JSON array of objects shaped like:
[{"title":"...","estimated_time_minutes":45,"keywords":["...","...","..."],"summary":"..."}]`, text)

	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

// levelFraming returns the cognitive framing for a quiz level
func levelFraming(level model.QuizLevel) string {
	switch level {
	case model.LevelBeginner:
		return "recall: definitions, basic facts and terminology"
	case model.LevelIntermediate:
		return "application: applying the concepts to concrete situations"
	case model.LevelAdvanced:
		return "analysis: comparing approaches, edge cases and reasoning about tradeoffs"
	}
	return "recall"
}

// buildQuizPrompt builds the messages for quiz generation for one topic
func buildQuizPrompt(req QuizRequest) []Message {
	system := fmt.Sprintf(`You write multiple-choice quizzes for students.

Difficulty: %s. Questions test %s.

Every question must have exactly these fields, all non-empty:
- question: the question text
- option_a, option_b, option_c, option_d: four distinct answer choices
- answer: the correct choice, exactly one of "A", "B", "C", "D"
- explanation: why the answer is correct

Respond with a JSON array only. No markdown, no code blocks, no commentary.`,
		req.Level, levelFraming(req.Level))

	if req.Language != "" && req.Language != "english" {
		system += fmt.Sprintf("\nWrite questions, options and explanations in %s.", req.Language)
	}

	user := fmt.Sprintf(`Write at least %d %s-level questions about "%s".

Study material:
%s`, req.QuestionCount, req.Level, req.TopicTitle, req.Context)

	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

// buildRepairPrompt asks a model to fix a malformed JSON blob. Used as the
// last resort after the local repair pipeline fails.
func buildRepairPrompt(malformed string) []Message {
	return []Message{
		{Role: "system", Content: "You repair malformed JSON. Output the corrected JSON only, with no markdown and no commentary. Preserve the data; fix only the syntax."},
		{Role: "user", Content: malformed},
	}
}
