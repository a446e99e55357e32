package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/normahq/norma/internal/domain"
)

type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) Search(ctx context.Context, embedding []float32, tenantID string, threshold float32, limit int) ([]domain.RetrievalMatch, error) {
	args := m.Called(ctx, embedding, tenantID, threshold, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievalMatch), args.Error(1)
}

func faqMatch(content, articleRef, label string, score float32) domain.RetrievalMatch {
	return domain.RetrievalMatch{
		Chunk: domain.KnowledgeChunk{
			ID:         "c-1",
			TenantID:   "tenant-1",
			SourceType: domain.SourceTypeFAQ,
			Content:    content,
			Metadata: domain.ChunkMetadata{
				Title:            "Can I keep a dog?",
				ArticleReference: articleRef,
				SourceLabel:      label,
			},
		},
		Score: score,
	}
}

func documentMatch(content, title, label string, score float32) domain.RetrievalMatch {
	return domain.RetrievalMatch{
		Chunk: domain.KnowledgeChunk{
			ID:         "c-2",
			TenantID:   "tenant-1",
			SourceType: domain.SourceTypeDocument,
			Content:    content,
			Metadata: domain.ChunkMetadata{
				Title:       title,
				SourceLabel: label,
			},
		},
		Score: score,
	}
}

var testEmbedding = []float32{0.1, 0.2, 0.3}

func newTestRetrievalService(embedding *MockEmbeddingClient, index *MockVectorIndex) *RetrievalService {
	return NewRetrievalService(embedding, index)
}

func TestAnswerQuestion_ConfidentTierOnly(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	embedding.On("GenerateEmbedding", mock.Anything, "are dogs allowed").Return(testEmbedding, nil)
	index.On("Search", mock.Anything, testEmbedding, "tenant-1", float32(0.75), 5).
		Return([]domain.RetrievalMatch{faqMatch("Pets are allowed.", "Art. 9", "Regolamento", 0.82)}, nil)

	result, err := svc.AnswerQuestion(context.Background(), "are dogs allowed", "tenant-1")
	require.NoError(t, err)

	assert.False(t, result.NoMatch)
	assert.Contains(t, result.Answer, "Pets are allowed.")
	index.AssertNumberOfCalls(t, "Search", 1)
	index.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, float32(0.60), mock.Anything)
}

func TestAnswerQuestion_BestEffortFallback(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	index.On("Search", mock.Anything, testEmbedding, "tenant-1", float32(0.75), 5).
		Return([]domain.RetrievalMatch{}, nil)
	index.On("Search", mock.Anything, testEmbedding, "tenant-1", float32(0.60), 3).
		Return([]domain.RetrievalMatch{faqMatch("Quiet hours run 22:00 to 08:00.", "Art. 4", "Regolamento", 0.66)}, nil)

	result, err := svc.AnswerQuestion(context.Background(), "quiet hours", "tenant-1")
	require.NoError(t, err)

	assert.False(t, result.NoMatch)
	assert.Contains(t, result.Answer, "Quiet hours")
	// A best-effort score still flags the answer for follow-up options.
	assert.NotEmpty(t, result.Options)
	index.AssertNumberOfCalls(t, "Search", 2)
}

func TestAnswerQuestion_NoMatchIsNotAnError(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	index.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RetrievalMatch{}, nil)

	result, err := svc.AnswerQuestion(context.Background(), "helicopter parking", "tenant-1")
	require.NoError(t, err)

	assert.True(t, result.NoMatch)
	assert.Contains(t, result.Answer, "Norma")
	assert.Empty(t, result.Sources)
	assert.Len(t, result.Options, 3)
}

func TestAnswerQuestion_EmptyQuery(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	_, err := svc.AnswerQuestion(context.Background(), "   ", "tenant-1")
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
	embedding.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
}

func TestAnswerQuestion_QueryTooLong(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	long := strings.Repeat("à", 501)
	_, err := svc.AnswerQuestion(context.Background(), long, "tenant-1")
	assert.ErrorIs(t, err, domain.ErrQueryTooLong)
	embedding.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
}

func TestAnswerQuestion_MaxLengthQueryAccepted(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	index.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RetrievalMatch{}, nil)

	// Length is counted in runes, not bytes.
	exact := strings.Repeat("à", 500)
	_, err := svc.AnswerQuestion(context.Background(), exact, "tenant-1")
	assert.NoError(t, err)
}

func TestAnswerQuestion_TenantRequired(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	_, err := svc.AnswerQuestion(context.Background(), "question", "")
	assert.ErrorIs(t, err, domain.ErrTenantRequired)
}

func TestAnswerQuestion_EmbeddingFailureIsInfrastructure(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := svc.AnswerQuestion(context.Background(), "question", "tenant-1")
	require.Error(t, err)
	assert.True(t, domain.IsInfrastructure(err))
	index.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAnswerQuestion_IndexFailureIsInfrastructure(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	index.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset"))

	_, err := svc.AnswerQuestion(context.Background(), "question", "tenant-1")
	require.Error(t, err)
	assert.True(t, domain.IsInfrastructure(err))
}

func TestAnswerQuestion_AnswerPrefixedWithSourceLabel(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	index.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RetrievalMatch{faqMatch("Pets are allowed.", "Art. 9", "Regolamento Condominiale", 0.88)}, nil)

	result, err := svc.AnswerQuestion(context.Background(), "are dogs allowed", "tenant-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Answer, "According to the **Regolamento Condominiale**:"))
}

func TestAnswerQuestion_SecondChunkAppendedWhenSameLabel(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	first := documentMatch("Bikes go in the bike room.", "Regolamento", "Regolamento", 0.85)
	second := documentMatch("Strollers may also be parked there.", "Regolamento", "Regolamento", 0.80)

	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	index.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RetrievalMatch{first, second}, nil)

	result, err := svc.AnswerQuestion(context.Background(), "bike storage", "tenant-1")
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "Bikes go in the bike room.")
	assert.Contains(t, result.Answer, "Strollers may also be parked there.")
}

func TestAnswerQuestion_SecondChunkSkippedWhenLabelDiffers(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	first := documentMatch("Bikes go in the bike room.", "Regolamento", "Regolamento", 0.85)
	second := documentMatch("Assembly voted on bike racks.", "Verbale 2024", "Verbale Assemblea", 0.80)

	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	index.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RetrievalMatch{first, second}, nil)

	result, err := svc.AnswerQuestion(context.Background(), "bike storage", "tenant-1")
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "Bikes go in the bike room.")
	assert.NotContains(t, result.Answer, "Assembly voted on bike racks.")
}

func TestAnswerQuestion_FAQSourceUsesArticleReference(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	index.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RetrievalMatch{faqMatch("Pets are allowed.", "Art. 9", "Regolamento", 0.88)}, nil)

	result, err := svc.AnswerQuestion(context.Background(), "are dogs allowed", "tenant-1")
	require.NoError(t, err)

	require.Len(t, result.Sources, 1)
	assert.Equal(t, domain.SourceTypeFAQ, result.Sources[0].Type)
	// The FAQ title is the question text; the article reference is the authority.
	assert.Equal(t, "Art. 9", result.Sources[0].Reference)
}

func TestAnswerQuestion_FAQWithoutArticleReferenceHasNoSource(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	index.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RetrievalMatch{faqMatch("Pets are allowed.", "", "Regolamento", 0.88)}, nil)

	result, err := svc.AnswerQuestion(context.Background(), "are dogs allowed", "tenant-1")
	require.NoError(t, err)
	assert.Empty(t, result.Sources)
}

func TestAnswerQuestion_DocumentSourceUsesTitle(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	index.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RetrievalMatch{documentMatch("Quiet hours...", "Regolamento 2024", "Regolamento", 0.88)}, nil)

	result, err := svc.AnswerQuestion(context.Background(), "quiet hours", "tenant-1")
	require.NoError(t, err)

	require.Len(t, result.Sources, 1)
	assert.Equal(t, domain.SourceTypeDocument, result.Sources[0].Type)
	assert.Equal(t, "Regolamento 2024", result.Sources[0].Reference)
}

func TestAnswerQuestion_NotFoundPhraseAttachesOptions(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	index.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RetrievalMatch{faqMatch("The regulation does not specify a rule for this case.", "Art. 1", "Regolamento", 0.90)}, nil)

	result, err := svc.AnswerQuestion(context.Background(), "fireworks on the terrace", "tenant-1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Options)
}

func TestAnswerQuestion_ConfidentAnswerHasNoOptions(t *testing.T) {
	embedding := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestRetrievalService(embedding, index)

	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	index.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RetrievalMatch{faqMatch("Pets are allowed.", "Art. 9", "Regolamento", 0.90)}, nil)

	result, err := svc.AnswerQuestion(context.Background(), "are dogs allowed", "tenant-1")
	require.NoError(t, err)
	assert.Empty(t, result.Options)
}

func TestValidateQuery(t *testing.T) {
	svc := newTestRetrievalService(new(MockEmbeddingClient), new(MockVectorIndex))

	assert.ErrorIs(t, svc.ValidateQuery(""), domain.ErrEmptyQuery)
	assert.ErrorIs(t, svc.ValidateQuery("  \t "), domain.ErrEmptyQuery)
	assert.ErrorIs(t, svc.ValidateQuery(strings.Repeat("x", 501)), domain.ErrQueryTooLong)
	assert.NoError(t, svc.ValidateQuery("are dogs allowed"))
}
