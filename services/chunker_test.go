package services

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkTextShortInputIsSingleChunk(t *testing.T) {
	text := "A short syllabus about databases."

	chunks := ChunkText(text)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != text {
		t.Errorf("single chunk should equal the input, got %q", chunks[0].Content)
	}
	if chunks[0].StartIndex != 0 || chunks[0].EndIndex != len(text) {
		t.Errorf("unexpected bounds: start=%d end=%d", chunks[0].StartIndex, chunks[0].EndIndex)
	}
}

func TestChunkTextEmptyInput(t *testing.T) {
	if got := ChunkText(""); len(got) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(got))
	}
}

func TestChunkTextCoversWholeInput(t *testing.T) {
	// Sentences long enough to force several chunks
	var sb strings.Builder
	for i := 0; i < 400; i++ {
		sb.WriteString("Relational algebra underpins query planning in modern engines. ")
	}
	text := sb.String()

	chunks := ChunkText(text)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for %d chars, got %d", len(text), len(chunks))
	}

	if chunks[0].StartIndex != 0 {
		t.Errorf("first chunk must start at 0, got %d", chunks[0].StartIndex)
	}
	if chunks[len(chunks)-1].EndIndex != len(text) {
		t.Errorf("last chunk must end at %d, got %d", len(text), chunks[len(chunks)-1].EndIndex)
	}

	// Consecutive chunks must overlap so no sentence falls in a gap
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartIndex >= chunks[i-1].EndIndex {
			t.Errorf("chunk %d starts at %d, after previous end %d: gap in coverage",
				i, chunks[i].StartIndex, chunks[i-1].EndIndex)
		}
		if chunks[i].ChunkNumber != i+1 {
			t.Errorf("chunk %d has number %d", i, chunks[i].ChunkNumber)
		}
	}
}

func TestChunkTextRoundTrip(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		sb.WriteString("Normalization reduces redundancy. Indexes trade writes for reads! Does sharding help? ")
	}
	text := sb.String()

	chunks := ChunkText(text)
	if got := joinChunks(chunks); got != text {
		t.Fatalf("reassembled text differs from input: got %d chars, want %d", len(got), len(text))
	}
}

func TestChunkTextPrefersSentenceBoundaries(t *testing.T) {
	// One long run of sentences; every cut should land just after a sentence
	// end rather than mid-word, because boundaries exist past the 70% floor.
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("Every topic deserves a clear summary for the learner to review. ")
	}
	text := sb.String()

	chunks := ChunkText(text)
	for i, chunk := range chunks[:len(chunks)-1] {
		trimmed := strings.TrimRight(chunk.Content, " \n")
		last := trimmed[len(trimmed)-1]
		if last != '.' && last != '!' && last != '?' {
			t.Errorf("chunk %d does not end at a sentence boundary: ...%q", i, trimmed[len(trimmed)-20:])
		}
	}
}

func TestChunkCountMatchesChunkText(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		sb.WriteString("Counting chunks should agree with producing them. ")
	}
	text := sb.String()

	if got, want := ChunkCount(text), len(ChunkText(text)); got != want {
		t.Errorf("ChunkCount = %d, len(ChunkText) = %d", got, want)
	}
}

func TestChunkTextNeverSplitsMultibyteRunes(t *testing.T) {
	// No sentence terminators, so cuts fall at the raw size boundary. The
	// leading ASCII byte shifts every three-byte rune off a multiple of the
	// chunk size, forcing the boundary into the middle of a rune.
	text := "a" + strings.Repeat("あ", 3000)

	chunks := ChunkText(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if !utf8.ValidString(chunk.Content) {
			t.Errorf("chunk %d is not valid UTF-8", chunk.ChunkNumber)
		}
	}
	if joinChunks(chunks) != text {
		t.Error("rune-aligned chunks no longer reassemble the input")
	}
}
