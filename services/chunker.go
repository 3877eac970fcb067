package services

import (
	"strings"
	"unicode/utf8"
)

const (
	// ChunkSize is the character budget per chunk sent to the LLM gateway
	ChunkSize = 3000

	// ChunkOverlap is how many characters consecutive chunks share so context
	// survives the boundary
	ChunkOverlap = 200

	// sentenceSearchFloor: a sentence break is only taken when it lies past
	// this fraction of the chunk, so chunks never collapse to a few words
	sentenceSearchFloor = 0.7
)

// TextChunk is one slice of the input text
type TextChunk struct {
	Content     string
	StartIndex  int
	EndIndex    int // exclusive
	ChunkNumber int // 1-based
}

// ChunkText splits text into overlapping chunks, preferring to break at a
// sentence terminator instead of mid-sentence. Pure and deterministic.
func ChunkText(text string) []TextChunk {
	if text == "" {
		return nil
	}

	if len(text) <= ChunkSize {
		return []TextChunk{{
			Content:     text,
			StartIndex:  0,
			EndIndex:    len(text),
			ChunkNumber: 1,
		}}
	}

	var chunks []TextChunk
	start := 0
	number := 1

	for start < len(text) {
		end := start + ChunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			if boundary := sentenceBoundary(text, start, end); boundary > 0 {
				end = boundary
			} else {
				end = runeStart(text, end)
			}
		}

		chunks = append(chunks, TextChunk{
			Content:     text[start:end],
			StartIndex:  start,
			EndIndex:    end,
			ChunkNumber: number,
		})
		number++

		if end >= len(text) {
			break
		}

		start = end - ChunkOverlap
		if start < 0 {
			start = 0
		}
		start = runeStart(text, start)
	}

	return chunks
}

// sentenceBoundary searches backward from end for the last sentence
// terminator past 70% of the chunk. Returns 0 when none is found.
func sentenceBoundary(text string, start, end int) int {
	floor := start + int(float64(ChunkSize)*sentenceSearchFloor)

	for i := end - 1; i > floor; i-- {
		switch text[i] {
		case '.', '!', '?':
			return i + 1
		case '\n':
			// A blank line also terminates a sentence
			if i > 0 && text[i-1] == '\n' {
				return i + 1
			}
		}
	}

	return 0
}

// runeStart moves a byte offset backward to the start of the UTF-8 rune it
// falls inside, so a cut never splits a multibyte character.
func runeStart(text string, i int) int {
	for i > 0 && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// ChunkCount returns how many chunks ChunkText would produce, without
// building them. Used for progress reporting.
func ChunkCount(text string) int {
	return len(ChunkText(text))
}

// joinChunks reassembles chunk contents, dropping each chunk's leading
// overlap. Test helper shape kept here because the invariant (lossless
// round trip) is part of the chunker's contract.
func joinChunks(chunks []TextChunk) string {
	var b strings.Builder
	prevEnd := 0
	for _, c := range chunks {
		skip := prevEnd - c.StartIndex
		if skip < 0 {
			skip = 0
		}
		if skip < len(c.Content) {
			b.WriteString(c.Content[skip:])
		}
		prevEnd = c.EndIndex
	}
	return b.String()
}
