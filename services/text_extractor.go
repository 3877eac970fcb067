package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MinMeaningfulTextLength is the minimum extracted-text length below which a
// syllabus cannot be processed. Anything shorter produces garbage topics.
const MinMeaningfulTextLength = 100

// TextExtractor turns uploaded file bytes into raw syllabus text, dispatching
// on the file's type: native PDF text first, OCR for images and scanned PDFs,
// pass-through for plain text.
type TextExtractor struct {
	pdf *PDFExtractor
	ocr *OCRClient
}

// NewTextExtractor creates a text extractor
func NewTextExtractor(pdf *PDFExtractor, ocr *OCRClient) *TextExtractor {
	return &TextExtractor{pdf: pdf, ocr: ocr}
}

// ExtractTextFromFile extracts text from file bytes based on the filename's
// extension. Fails when the result is below the minimum meaningful length.
func (t *TextExtractor) ExtractTextFromFile(ctx context.Context, content []byte, filename string) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty file content for %q", filename)
	}

	var text string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err = t.pdf.ExtractText(content)
		if err != nil && t.ocr != nil {
			// Scanned PDFs have no extractable text layer; fall through to OCR
			text, err = t.ocr.ExtractText(ctx, content, filename)
		}
	case ".txt", ".md":
		if !utf8.Valid(content) {
			return "", fmt.Errorf("file %q is not valid UTF-8 text", filename)
		}
		text = string(content)
	case ".png", ".jpg", ".jpeg":
		if t.ocr == nil {
			return "", fmt.Errorf("image upload %q requires OCR, which is not configured", filename)
		}
		text, err = t.ocr.ExtractText(ctx, content, filename)
	default:
		return "", fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}

	if err != nil {
		return "", fmt.Errorf("text extraction failed for %q: %w", filename, err)
	}

	text = strings.TrimSpace(text)
	if len(text) < MinMeaningfulTextLength {
		return "", fmt.Errorf("extracted text from %q is too short (%d characters) to build a study plan", filename, len(text))
	}

	return text, nil
}
