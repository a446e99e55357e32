package domain

import (
	"fmt"
	"math"
	"time"
)

// SourceType identifies where an indexed chunk came from
type SourceType string

const (
	SourceTypeFAQ      SourceType = "faq"
	SourceTypeDocument SourceType = "document"
)

// ChunkMetadata is the structured sidecar carried by every indexed chunk.
// ArticleReference holds the legal citation for FAQ entries (e.g. "Art. 28")
// and takes precedence over Title when a source is displayed to the user.
type ChunkMetadata struct {
	Title            string
	Category         string
	ArticleReference string
	SourceLabel      string
	Tags             []string
}

// KnowledgeChunk is a unit of indexed content. Chunks are immutable: a
// re-embedding replaces the row rather than mutating it.
type KnowledgeChunk struct {
	ID         string
	TenantID   string
	SourceType SourceType
	// ParentID references the owning FAQ entry or document; ChunkIndex
	// orders sibling chunks split from the same document.
	ParentID   string
	ChunkIndex int
	Content    string
	Embedding  []float32
	Metadata   ChunkMetadata
	CreatedAt  time.Time
}

// RetrievalMatch is a query-time result. It only lives for the duration of
// one retrieval call and is never persisted.
type RetrievalMatch struct {
	Chunk KnowledgeChunk
	Score float32
}

// ValidateChunk validates a KnowledgeChunk before it is committed to the
// index. The embedding dimension must match the index-wide dimension fixed
// by the embedding provider.
func ValidateChunk(c *KnowledgeChunk, dimensions int) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}
	if c.TenantID == "" {
		return ErrTenantRequired
	}
	if c.Content == "" {
		return fmt.Errorf("chunk content is required")
	}
	if !isValidSourceType(c.SourceType) {
		return ErrInvalidSourceType
	}
	if dimensions > 0 && len(c.Embedding) != dimensions {
		return ErrDimensionMismatch
	}
	return nil
}

func isValidSourceType(t SourceType) bool {
	switch t {
	case SourceTypeFAQ, SourceTypeDocument:
		return true
	}
	return false
}

// NormalizeEmbedding scales a vector to unit length in place and returns it.
// Zero vectors are returned unchanged.
func NormalizeEmbedding(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
