package domain

import (
	"fmt"
	"time"
)

// FAQEntry is the source-of-truth row behind an FAQ chunk. The question is
// what gets embedded; the answer is what gets shown.
type FAQEntry struct {
	ID               string
	TenantID         string
	Question         string
	Answer           string
	Category         string
	ArticleReference string
	SourceLabel      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Document is the source-of-truth row behind document chunks. ExtractedText
// holds the full plain text pulled from the uploaded file; StorageKey points
// at the original object in blob storage.
type Document struct {
	ID            string
	TenantID      string
	Title         string
	Category      string
	SourceLabel   string
	StorageKey    string
	ExtractedText string
	ChunkCount    int
	CreatedAt     time.Time
}

// MinDocumentTextLength is the minimum extracted-text length accepted at
// ingestion. Anything shorter is almost always a scanned image.
const MinDocumentTextLength = 50

// ValidateFAQEntry validates an FAQEntry instance
func ValidateFAQEntry(f *FAQEntry) error {
	if f == nil {
		return fmt.Errorf("faq entry cannot be nil")
	}
	if f.ID == "" {
		return fmt.Errorf("faq entry ID is required")
	}
	if f.TenantID == "" {
		return ErrTenantRequired
	}
	if f.Question == "" {
		return fmt.Errorf("faq entry Question is required")
	}
	if f.Answer == "" {
		return fmt.Errorf("faq entry Answer is required")
	}
	return nil
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if d.TenantID == "" {
		return ErrTenantRequired
	}
	if d.Title == "" {
		return fmt.Errorf("document Title is required")
	}
	if len(d.ExtractedText) < MinDocumentTextLength {
		return ErrDocumentTooShort
	}
	return nil
}
