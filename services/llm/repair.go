package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSONFound is returned when no valid JSON object/array survives the
// repair pipeline
var ErrNoJSONFound = errors.New("no valid JSON object or array found in response")

// RepairPass is a single repair transformation. Passes are independent,
// composed in a fixed order and individually testable against known
// malformed inputs.
type RepairPass func(string) string

// repairPasses is the fixed repair order applied before re-parsing
var repairPasses = []RepairPass{
	StripMarkdownFences,
	NormalizeSmartQuotes,
	StripControlChars,
	RemoveTrailingCommas,
	QuoteBareKeys,
}

// Repair applies every repair pass in order
func Repair(s string) string {
	for _, pass := range repairPasses {
		s = pass(s)
	}
	return s
}

// StripMarkdownFences removes ```json ... ``` code-block wrappers
func StripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}

	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
	}

	// Inline code blocks embedded in prose
	re := regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")
	matches := re.FindStringSubmatch(s)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	return strings.TrimSpace(s)
}

// NormalizeSmartQuotes replaces typographic quotes with ASCII ones
func NormalizeSmartQuotes(s string) string {
	replacer := strings.NewReplacer(
		"“", `"`, // left double
		"”", `"`, // right double
		"‘", "'", // left single
		"’", "'", // right single
	)
	return replacer.Replace(s)
}

// StripControlChars drops control characters that break json.Unmarshal,
// keeping standard whitespace
func StripControlChars(s string) string {
	var cleaned strings.Builder
	cleaned.Grow(len(s))
	for _, r := range s {
		if r >= 32 || r == '\n' || r == '\r' || r == '\t' {
			cleaned.WriteRune(r)
		}
	}
	return cleaned.String()
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// RemoveTrailingCommas deletes commas immediately before a closing brace or
// bracket
func RemoveTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

var bareKeyRe = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)

// QuoteBareKeys wraps unquoted object keys in double quotes. Heuristic: it
// can touch string values containing "{key:" shapes, which is acceptable for
// LLM output that failed strict parsing anyway.
func QuoteBareKeys(s string) string {
	return bareKeyRe.ReplaceAllString(s, `$1"$2":`)
}

// ExtractJSON finds the first complete JSON object or array in a string via
// bracket matching, skipping garbage before and after it.
func ExtractJSON(s string) (string, error) {
	if s == "" {
		return "", ErrNoJSONFound
	}

	startObj := strings.Index(s, "{")
	startArr := strings.Index(s, "[")

	var start int
	var openChar, closeChar rune

	switch {
	case startObj == -1 && startArr == -1:
		return "", ErrNoJSONFound
	case startObj == -1 || (startArr != -1 && startArr < startObj):
		start = startArr
		openChar, closeChar = '[', ']'
	default:
		start = startObj
		openChar, closeChar = '{', '}'
	}

	depth := 0
	inString := false
	escaped := false
	end := -1

	for i := start; i < len(s); i++ {
		c := rune(s[i])

		if escaped {
			escaped = false
			continue
		}

		if c == '\\' && inString {
			escaped = true
			continue
		}

		if c == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		if c == openChar {
			depth++
		} else if c == closeChar {
			depth--
			if depth == 0 {
				end = i + 1
				break
			}
		}
	}

	if end == -1 {
		return "", fmt.Errorf("%w: unbalanced brackets", ErrNoJSONFound)
	}

	candidate := s[start:end]
	if !json.Valid([]byte(candidate)) {
		return "", fmt.Errorf("%w: bracket-matched candidate is invalid", ErrNoJSONFound)
	}

	return candidate, nil
}

// SalvageObjects extracts individual complete {...} objects and returns those
// that parse as valid JSON. Last resort when the response as a whole is
// unrecoverable (e.g. truncated mid-array). Bracket matching is string-aware,
// so braces inside explanation strings do not split an object.
func SalvageObjects(s string) []json.RawMessage {
	var salvaged []json.RawMessage
	for i := 0; i < len(s); {
		start := strings.IndexByte(s[i:], '{')
		if start == -1 {
			break
		}
		start += i

		end := matchBrace(s, start)
		if end == -1 {
			i = start + 1
			continue
		}

		candidate := s[start:end]
		if json.Valid([]byte(candidate)) {
			salvaged = append(salvaged, json.RawMessage(candidate))
			i = end
		} else {
			i = start + 1
		}
	}
	return salvaged
}

// matchBrace returns the index one past the '}' matching the '{' at start, or
// -1 when the object never closes. Braces and quotes inside string values are
// skipped.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		if c == '{' {
			depth++
		} else if c == '}' {
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// DecodeArray runs the full recovery pipeline over a raw LLM response and
// unmarshals the first JSON array it can recover into target:
// fence strip and direct parse, then repair passes, then bracket extraction.
func DecodeArray(response string, target interface{}) error {
	stripped := StripMarkdownFences(response)
	if json.Unmarshal([]byte(stripped), target) == nil {
		return nil
	}

	repaired := Repair(response)
	if json.Unmarshal([]byte(repaired), target) == nil {
		return nil
	}

	extracted, err := ExtractJSON(repaired)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extracted), target); err != nil {
		return fmt.Errorf("recovered JSON did not match expected shape: %w", err)
	}
	return nil
}
