package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/normahq/norma/internal/domain"
	"github.com/normahq/norma/internal/telemetry"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the nearest-neighbor search primitive. Implementations
// return matches with cosine similarity >= threshold, ordered by descending
// score, capped at limit, scoped to one tenant.
type VectorIndex interface {
	Search(ctx context.Context, embedding []float32, tenantID string, threshold float32, limit int) ([]domain.RetrievalMatch, error)
}

// RetrievalConfig controls the tiered similarity search.
//
// The threshold values are tuned empirically for the embedding model's score
// scale. The confident tier trades recall for precision; the best-effort
// tier trades precision for giving the user *some* grounded answer rather
// than none. If the embedding model changes, both must be re-tuned.
type RetrievalConfig struct {
	ConfidentThreshold  float32
	ConfidentLimit      int
	BestEffortThreshold float32
	BestEffortLimit     int
	MaxQueryLength      int
	CallTimeout         time.Duration
	AssistantName       string
}

// DefaultRetrievalConfig returns the default retrieval tuning.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		ConfidentThreshold:  0.75,
		ConfidentLimit:      5,
		BestEffortThreshold: 0.60,
		BestEffortLimit:     3,
		MaxQueryLength:      500,
		CallTimeout:         12 * time.Second,
		AssistantName:       "Norma",
	}
}

// AnswerResult is the outcome of one retrieval call. NoMatch is a valid
// terminal outcome, not an error: the system tried and found nothing.
type AnswerResult struct {
	Answer  string
	Sources []domain.AnswerSource
	Matches []domain.RetrievalMatch
	NoMatch bool
	Options []domain.AnswerOption
}

// notFoundPhrases flags answers whose own text admits the knowledge base
// does not cover the question, so follow-up options can be attached even
// when chunks matched.
var notFoundPhrases = []string{
	"could not find",
	"couldn't find",
	"does not specify",
	"doesn't specify",
	"no information",
	"not covered",
}

// RetrievalService turns a free-text question into a grounded answer with
// provenance using the embedding provider and the vector index.
type RetrievalService struct {
	embedding EmbeddingClient
	index     VectorIndex
	cfg       RetrievalConfig
}

// NewRetrievalService creates a RetrievalService with default tuning.
func NewRetrievalService(embedding EmbeddingClient, index VectorIndex) *RetrievalService {
	return NewRetrievalServiceWithConfig(embedding, index, DefaultRetrievalConfig())
}

// NewRetrievalServiceWithConfig creates a RetrievalService with explicit tuning.
func NewRetrievalServiceWithConfig(embedding EmbeddingClient, index VectorIndex, cfg RetrievalConfig) *RetrievalService {
	if cfg.ConfidentLimit <= 0 {
		cfg.ConfidentLimit = 5
	}
	if cfg.BestEffortLimit <= 0 {
		cfg.BestEffortLimit = 3
	}
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = 500
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 12 * time.Second
	}
	if cfg.AssistantName == "" {
		cfg.AssistantName = "Norma"
	}
	return &RetrievalService{
		embedding: embedding,
		index:     index,
		cfg:       cfg,
	}
}

// ValidateQuery applies the local pre-network checks shared with the
// conversation layer.
func (s *RetrievalService) ValidateQuery(query string) error {
	return validateQuery(query, s.cfg.MaxQueryLength)
}

func validateQuery(query string, maxLength int) error {
	if strings.TrimSpace(query) == "" {
		return domain.ErrEmptyQuery
	}
	if len([]rune(query)) > maxLength {
		return domain.ErrQueryTooLong
	}
	return nil
}

// AnswerQuestion maps a question to a best-effort grounded answer.
//
// The search is tiered: a confident pass first, then a single lower-threshold
// retry only if the confident pass comes back empty. Both tiers empty is the
// NoMatch terminal outcome. Only embedding-provider or index failures return
// an error, and always with the infrastructure code.
func (s *RetrievalService) AnswerQuestion(ctx context.Context, query, tenantID string) (*AnswerResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.AnswerQuestion", telemetry.SpanAttributes{
		TenantID:  tenantID,
		Operation: "answer",
	})
	defer span.End()

	if err := validateQuery(query, s.cfg.MaxQueryLength); err != nil {
		return nil, err
	}
	if tenantID == "" {
		return nil, domain.ErrTenantRequired
	}

	embedding, err := s.embed(ctx, strings.TrimSpace(query))
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	matches, err := s.search(ctx, embedding, tenantID, s.cfg.ConfidentThreshold, s.cfg.ConfidentLimit)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if len(matches) == 0 {
		matches, err = s.search(ctx, embedding, tenantID, s.cfg.BestEffortThreshold, s.cfg.BestEffortLimit)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	if len(matches) == 0 {
		return s.notFoundResult(), nil
	}

	return s.composeAnswer(matches), nil
}

func (s *RetrievalService) embed(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	embedding, err := s.embedding.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, domain.NewInfrastructureError("embedding provider unavailable", err)
	}
	return embedding, nil
}

func (s *RetrievalService) search(ctx context.Context, embedding []float32, tenantID string, threshold float32, limit int) ([]domain.RetrievalMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	matches, err := s.index.Search(ctx, embedding, tenantID, threshold, limit)
	if err != nil {
		return nil, domain.NewInfrastructureError("vector index unavailable", err)
	}
	return matches, nil
}

func (s *RetrievalService) notFoundResult() *AnswerResult {
	answer := fmt.Sprintf(
		"I'm %s, your condominium assistant, and I couldn't find anything about that in this condominium's rules and documents. Try rephrasing your question, or I can forward it to the administration.",
		s.cfg.AssistantName,
	)
	return &AnswerResult{
		Answer:  answer,
		Sources: []domain.AnswerSource{},
		Matches: []domain.RetrievalMatch{},
		NoMatch: true,
		Options: recoveryOptions(),
	}
}

// composeAnswer builds the answer body from the top match, appending the
// second match only when it shares the top match's source label. Mixing
// sources with different provenance in one answer conflates authorities, so
// composition stays deliberately conservative.
func (s *RetrievalService) composeAnswer(matches []domain.RetrievalMatch) *AnswerResult {
	top := matches[0]

	var b strings.Builder
	if label := top.Chunk.Metadata.SourceLabel; label != "" {
		fmt.Fprintf(&b, "According to the **%s**:\n\n", label)
	}
	b.WriteString(top.Chunk.Content)

	used := []domain.RetrievalMatch{top}
	if len(matches) > 1 && matches[1].Chunk.Metadata.SourceLabel == top.Chunk.Metadata.SourceLabel {
		b.WriteString("\n\n")
		b.WriteString(matches[1].Chunk.Content)
		used = append(used, matches[1])
	}

	result := &AnswerResult{
		Answer:  b.String(),
		Sources: buildSources(used),
		Matches: matches,
	}

	if s.looksUnanswered(result.Answer, top.Score) {
		result.Options = recoveryOptions()
	}

	return result
}

// looksUnanswered flags answers that likely leave the user empty-handed: a
// top score below the confident threshold (the answer came from the
// best-effort tier) or answer text that itself admits a gap.
func (s *RetrievalService) looksUnanswered(answer string, topScore float32) bool {
	if topScore < s.cfg.ConfidentThreshold {
		return true
	}
	lower := strings.ToLower(answer)
	for _, phrase := range notFoundPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// buildSources maps matches to display provenance. FAQ sources use the
// article reference, never the FAQ title: the title is the question text,
// and showing it as a source would present the question as an authority.
// An FAQ match without an article reference contributes no source line.
func buildSources(matches []domain.RetrievalMatch) []domain.AnswerSource {
	sources := make([]domain.AnswerSource, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		src, ok := sourceFor(m.Chunk)
		if !ok {
			continue
		}
		key := string(src.Type) + "|" + src.Reference + "|" + src.Label
		if seen[key] {
			continue
		}
		seen[key] = true
		sources = append(sources, src)
	}
	return sources
}

func sourceFor(c domain.KnowledgeChunk) (domain.AnswerSource, bool) {
	switch c.SourceType {
	case domain.SourceTypeFAQ:
		if c.Metadata.ArticleReference == "" {
			return domain.AnswerSource{}, false
		}
		return domain.AnswerSource{
			Type:      domain.SourceTypeFAQ,
			Reference: c.Metadata.ArticleReference,
			Label:     c.Metadata.SourceLabel,
		}, true
	case domain.SourceTypeDocument:
		return domain.AnswerSource{
			Type:      domain.SourceTypeDocument,
			Reference: c.Metadata.Title,
			Label:     c.Metadata.SourceLabel,
		}, true
	}
	return domain.AnswerSource{}, false
}

func recoveryOptions() []domain.AnswerOption {
	return []domain.AnswerOption{
		{Kind: domain.OptionRephrase, Label: "Rephrase the question"},
		{Kind: domain.OptionOpenTicket, Label: "Open a support ticket"},
		{Kind: domain.OptionShowContact, Label: "View administration contact"},
	}
}
