// Package document extracts text from uploaded files.
package document

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// ErrNoText is returned when a document has no extractable text
var ErrNoText = errors.New("document contains no text")

// PDFTextExtractor implements port.DocumentExtractor with MuPDF
type PDFTextExtractor struct {
	maxPages int
	logger   *zap.Logger
}

// NewPDFTextExtractor creates an extractor reading at most maxPages pages;
// zero means every page
func NewPDFTextExtractor(maxPages int, logger *zap.Logger) *PDFTextExtractor {
	return &PDFTextExtractor{maxPages: maxPages, logger: logger}
}

// ExtractText returns the text of each page joined by blank lines
func (e *PDFTextExtractor) ExtractText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty document")
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if e.maxPages > 0 && pageCount > e.maxPages {
		e.logger.Warn("Truncating long document",
			zap.Int("total_pages", pageCount),
			zap.Int("max_pages", e.maxPages))
		pageCount = e.maxPages
	}

	pages := make([]string, 0, pageCount)
	for n := 0; n < pageCount; n++ {
		text, err := doc.Text(n)
		if err != nil {
			e.logger.Warn("Failed to extract page text", zap.Int("page", n), zap.Error(err))
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", ErrNoText
	}

	e.logger.Debug("Extracted PDF text", zap.Int("pages", len(pages)))
	return strings.Join(pages, "\n\n"), nil
}
