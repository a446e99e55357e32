package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validChunk() *KnowledgeChunk {
	return &KnowledgeChunk{
		ID:         "chunk-1",
		TenantID:   "tenant-1",
		SourceType: SourceTypeFAQ,
		ParentID:   "faq-1",
		Content:    "Pets are allowed.",
		Embedding:  []float32{0.6, 0.8, 0},
	}
}

func TestSourceTypeConstants(t *testing.T) {
	assert.Equal(t, "faq", string(SourceTypeFAQ))
	assert.Equal(t, "document", string(SourceTypeDocument))
}

func TestValidateChunk(t *testing.T) {
	assert.NoError(t, ValidateChunk(validChunk(), 3))
}

func TestValidateChunk_DimensionMismatch(t *testing.T) {
	c := validChunk()
	assert.ErrorIs(t, ValidateChunk(c, 1536), ErrDimensionMismatch)
}

func TestValidateChunk_ZeroDimensionsSkipsCheck(t *testing.T) {
	c := validChunk()
	assert.NoError(t, ValidateChunk(c, 0))
}

func TestValidateChunk_InvalidSourceType(t *testing.T) {
	c := validChunk()
	c.SourceType = "webpage"
	assert.ErrorIs(t, ValidateChunk(c, 3), ErrInvalidSourceType)
}

func TestValidateChunk_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *KnowledgeChunk)
	}{
		{"nil chunk", nil},
		{"missing ID", func(c *KnowledgeChunk) { c.ID = "" }},
		{"missing tenant", func(c *KnowledgeChunk) { c.TenantID = "" }},
		{"missing content", func(c *KnowledgeChunk) { c.Content = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.modify == nil {
				assert.Error(t, ValidateChunk(nil, 3))
				return
			}
			c := validChunk()
			tt.modify(c)
			assert.Error(t, ValidateChunk(c, 3))
		})
	}
}

func TestNormalizeEmbedding(t *testing.T) {
	v := NormalizeEmbedding([]float32{3, 4})

	assert.InDelta(t, 0.6, v[0], 0.0001)
	assert.InDelta(t, 0.8, v[1], 0.0001)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 0.0001)
}

func TestNormalizeEmbedding_ZeroVector(t *testing.T) {
	v := NormalizeEmbedding([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func TestNormalizeEmbedding_AlreadyUnit(t *testing.T) {
	v := NormalizeEmbedding([]float32{1, 0})
	assert.InDelta(t, 1.0, v[0], 0.0001)
	assert.InDelta(t, 0.0, v[1], 0.0001)
}
