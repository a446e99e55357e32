package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/normahq/norma/internal/domain"
	"github.com/normahq/norma/internal/pagination"
	"github.com/normahq/norma/internal/telemetry"
)

// FAQRepositoryInterface defines the repository interface for FAQ persistence
type FAQRepositoryInterface interface {
	Create(ctx context.Context, f *domain.FAQEntry) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.FAQEntry, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.FAQEntry, error)
	ListByTenantWithCursor(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*FAQPageResult, error)
	Delete(ctx context.Context, tenantID, id string) error
}

type FAQPageResult struct {
	Items      []*domain.FAQEntry
	NextCursor string
	HasMore    bool
}

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Document, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.Document, error)
	ListByTenantWithCursor(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	UpdateChunkCount(ctx context.Context, tenantID, id string, count int) error
	Delete(ctx context.Context, tenantID, id string) error
}

type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// ChunkIndexInterface is the write side of the vector index. ReplaceForParent
// is delete-then-insert so re-ingesting the same source never leaves stale
// vectors behind.
type ChunkIndexInterface interface {
	ReplaceForParent(ctx context.Context, tenantID, parentID string, chunks []*domain.KnowledgeChunk) error
	DeleteByParent(ctx context.Context, tenantID, parentID string) error
	DeleteByTenant(ctx context.Context, tenantID string) error
	CountByTenant(ctx context.Context, tenantID string) (int, error)
}

// EmbeddingProvider extends EmbeddingClient with the fixed index dimension.
type EmbeddingProvider interface {
	EmbeddingClient
	Dimensions() int
}

// ObjectStore persists original uploaded files.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// TextExtractor pulls plain text out of an uploaded file.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

const (
	// reindexBatchSize bounds concurrent embedding calls during a full
	// reindex so the provider's rate limit is not tripped.
	reindexBatchSize = 8
	// reindexBatchDelay spaces batches out for the same reason.
	reindexBatchDelay = 500 * time.Millisecond
)

// IngestionService handles knowledge ingestion: FAQ entries, uploaded
// documents, and full reindexing of a tenant's knowledge base.
type IngestionService struct {
	faqRepo      FAQRepositoryInterface
	documentRepo DocumentRepositoryInterface
	index        ChunkIndexInterface
	embedding    EmbeddingProvider
	extractor    TextExtractor
	objects      ObjectStore
	uuidGen      UUIDGenerator
	chunkCfg     ChunkConfig
	batchDelay   time.Duration
}

// NewIngestionService creates a new IngestionService instance. objects may be
// nil when blob storage is not configured; originals are then not retained.
func NewIngestionService(
	faqRepo FAQRepositoryInterface,
	documentRepo DocumentRepositoryInterface,
	index ChunkIndexInterface,
	embedding EmbeddingProvider,
	extractor TextExtractor,
	objects ObjectStore,
) *IngestionService {
	return &IngestionService{
		faqRepo:      faqRepo,
		documentRepo: documentRepo,
		index:        index,
		embedding:    embedding,
		extractor:    extractor,
		objects:      objects,
		uuidGen:      &DefaultUUIDGenerator{},
		chunkCfg:     DefaultChunkConfig(),
		batchDelay:   reindexBatchDelay,
	}
}

// NewIngestionServiceWithUUIDGen creates a new IngestionService with custom UUID generator (for testing)
func NewIngestionServiceWithUUIDGen(
	faqRepo FAQRepositoryInterface,
	documentRepo DocumentRepositoryInterface,
	index ChunkIndexInterface,
	embedding EmbeddingProvider,
	extractor TextExtractor,
	objects ObjectStore,
	uuidGen UUIDGenerator,
) *IngestionService {
	s := NewIngestionService(faqRepo, documentRepo, index, embedding, extractor, objects)
	s.uuidGen = uuidGen
	s.batchDelay = 0
	return s
}

// IngestFAQInput represents the input for ingesting an FAQ entry
type IngestFAQInput struct {
	TenantID         string
	Question         string
	Answer           string
	Category         string
	ArticleReference string
	SourceLabel      string
}

// IngestDocumentInput represents the input for ingesting an uploaded document
type IngestDocumentInput struct {
	TenantID    string
	Title       string
	Category    string
	SourceLabel string
	FileName    string
	ContentType string
	Data        []byte
}

// ReindexReport summarizes a full reindex run. Failed counts items whose
// embedding could not be regenerated; their source rows are untouched and a
// later run will pick them up again.
type ReindexReport struct {
	Indexed int
	Failed  int
	Errors  []string
}

// IngestFAQ persists an FAQ entry and indexes it as a single chunk. The
// question text is what gets embedded, because that is what user queries will
// be compared against; the answer is the chunk content shown back.
func (s *IngestionService) IngestFAQ(ctx context.Context, input IngestFAQInput) (*domain.FAQEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.IngestFAQ", telemetry.SpanAttributes{
		TenantID:  input.TenantID,
		Operation: "ingest_faq",
	})
	defer span.End()

	now := time.Now().UTC()
	entry := &domain.FAQEntry{
		ID:               s.uuidGen.NewString(),
		TenantID:         input.TenantID,
		Question:         input.Question,
		Answer:           input.Answer,
		Category:         input.Category,
		ArticleReference: input.ArticleReference,
		SourceLabel:      input.SourceLabel,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := domain.ValidateFAQEntry(entry); err != nil {
		return nil, err
	}

	if err := s.faqRepo.Create(ctx, entry); err != nil {
		span.SetError(err)
		return nil, err
	}

	chunk, err := s.faqChunk(ctx, entry)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if err := s.index.ReplaceForParent(ctx, entry.TenantID, entry.ID, []*domain.KnowledgeChunk{chunk}); err != nil {
		span.SetError(err)
		return nil, domain.NewInfrastructureError("failed to index faq entry", err)
	}

	return entry, nil
}

// IngestDocument extracts text from an uploaded file, stores the original,
// splits the text into chunks, and indexes each chunk.
func (s *IngestionService) IngestDocument(ctx context.Context, input IngestDocumentInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.IngestDocument", telemetry.SpanAttributes{
		TenantID:  input.TenantID,
		Operation: "ingest_document",
	})
	defer span.End()

	if input.TenantID == "" {
		return nil, domain.ErrTenantRequired
	}

	text, err := s.extractor.ExtractText(ctx, input.Data)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "could not extract text from file", err)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:            s.uuidGen.NewString(),
		TenantID:      input.TenantID,
		Title:         input.Title,
		Category:      input.Category,
		SourceLabel:   input.SourceLabel,
		ExtractedText: text,
		CreatedAt:     now,
	}
	if doc.SourceLabel == "" {
		doc.SourceLabel = doc.Title
	}

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}

	if s.objects != nil && len(input.Data) > 0 {
		key := fmt.Sprintf("%s/documents/%s/%s", doc.TenantID, doc.ID, input.FileName)
		if err := s.objects.Put(ctx, key, input.Data, input.ContentType); err != nil {
			span.SetError(err)
			return nil, domain.NewInfrastructureError("failed to store original file", err)
		}
		doc.StorageKey = key
	}

	if err := s.documentRepo.Create(ctx, doc); err != nil {
		span.SetError(err)
		return nil, err
	}

	chunks, err := s.documentChunks(ctx, doc)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if err := s.index.ReplaceForParent(ctx, doc.TenantID, doc.ID, chunks); err != nil {
		span.SetError(err)
		return nil, domain.NewInfrastructureError("failed to index document", err)
	}

	doc.ChunkCount = len(chunks)
	if err := s.documentRepo.UpdateChunkCount(ctx, doc.TenantID, doc.ID, doc.ChunkCount); err != nil {
		span.SetError(err)
		return nil, err
	}

	return doc, nil
}

// DeleteFAQ removes an FAQ entry and its indexed chunk.
func (s *IngestionService) DeleteFAQ(ctx context.Context, tenantID, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.DeleteFAQ", telemetry.SpanAttributes{
		TenantID:  tenantID,
		Operation: "delete_faq",
	})
	defer span.End()

	if _, err := s.faqRepo.GetByID(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.index.DeleteByParent(ctx, tenantID, id); err != nil {
		span.SetError(err)
		return domain.NewInfrastructureError("failed to remove indexed chunks", err)
	}
	return s.faqRepo.Delete(ctx, tenantID, id)
}

// DeleteDocument removes a document and its indexed chunks.
func (s *IngestionService) DeleteDocument(ctx context.Context, tenantID, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.DeleteDocument", telemetry.SpanAttributes{
		TenantID:   tenantID,
		DocumentID: id,
		Operation:  "delete_document",
	})
	defer span.End()

	if _, err := s.documentRepo.GetByID(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.index.DeleteByParent(ctx, tenantID, id); err != nil {
		span.SetError(err)
		return domain.NewInfrastructureError("failed to remove indexed chunks", err)
	}
	return s.documentRepo.Delete(ctx, tenantID, id)
}

// ReindexAll drops every indexed chunk for the tenant and rebuilds the index
// from the stored FAQ entries and documents. The rebuild is not atomic:
// retrieval during a run sees a partially rebuilt index. Per-item embedding
// failures are counted and reported, never fatal, so one bad row cannot
// abort the whole rebuild. Running it twice converges to the same state.
func (s *IngestionService) ReindexAll(ctx context.Context, tenantID string) (*ReindexReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.ReindexAll", telemetry.SpanAttributes{
		TenantID:  tenantID,
		Operation: "reindex",
	})
	defer span.End()

	if tenantID == "" {
		return nil, domain.ErrTenantRequired
	}

	faqs, err := s.faqRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	docs, err := s.documentRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if err := s.index.DeleteByTenant(ctx, tenantID); err != nil {
		span.SetError(err)
		return nil, domain.NewInfrastructureError("failed to clear index", err)
	}

	report := &ReindexReport{}

	type item struct {
		label string
		run   func(ctx context.Context) error
	}
	items := make([]item, 0, len(faqs)+len(docs))
	for _, f := range faqs {
		f := f
		items = append(items, item{
			label: "faq " + f.ID,
			run: func(ctx context.Context) error {
				chunk, err := s.faqChunk(ctx, f)
				if err != nil {
					return err
				}
				return s.index.ReplaceForParent(ctx, f.TenantID, f.ID, []*domain.KnowledgeChunk{chunk})
			},
		})
	}
	for _, d := range docs {
		d := d
		items = append(items, item{
			label: "document " + d.ID,
			run: func(ctx context.Context) error {
				chunks, err := s.documentChunks(ctx, d)
				if err != nil {
					return err
				}
				if err := s.index.ReplaceForParent(ctx, d.TenantID, d.ID, chunks); err != nil {
					return err
				}
				return s.documentRepo.UpdateChunkCount(ctx, d.TenantID, d.ID, len(chunks))
			},
		})
	}

	for start := 0; start < len(items); start += reindexBatchSize {
		end := start + reindexBatchSize
		if end > len(items) {
			end = len(items)
		}

		var (
			g, gctx = errgroup.WithContext(ctx)
			results = make([]error, end-start)
		)
		for i, it := range items[start:end] {
			i, it := i, it
			g.Go(func() error {
				results[i] = it.run(gctx)
				return nil
			})
		}
		_ = g.Wait()

		for i, err := range results {
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", items[start+i].label, err))
			} else {
				report.Indexed++
			}
		}

		if ctx.Err() != nil {
			return report, domain.NewInfrastructureError("reindex interrupted", ctx.Err())
		}
		if end < len(items) && s.batchDelay > 0 {
			time.Sleep(s.batchDelay)
		}
	}

	return report, nil
}

// GetFAQ retrieves an FAQ entry by ID within a tenant.
func (s *IngestionService) GetFAQ(ctx context.Context, tenantID, id string) (*domain.FAQEntry, error) {
	return s.faqRepo.GetByID(ctx, tenantID, id)
}

// GetDocument retrieves a document by ID within a tenant.
func (s *IngestionService) GetDocument(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	return s.documentRepo.GetByID(ctx, tenantID, id)
}

type ListFAQInput struct {
	TenantID string
	Cursor   string
	Limit    int
}

type ListFAQOutput struct {
	Items   []*domain.FAQEntry
	Cursor  string
	HasMore bool
}

// ListFAQs returns a page of FAQ entries for the tenant.
func (s *IngestionService) ListFAQs(ctx context.Context, input ListFAQInput) (*ListFAQOutput, error) {
	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	result, err := s.faqRepo.ListByTenantWithCursor(ctx, input.TenantID, cursor, limit)
	if err != nil {
		return nil, err
	}
	return &ListFAQOutput{Items: result.Items, Cursor: result.NextCursor, HasMore: result.HasMore}, nil
}

type ListDocumentsInput struct {
	TenantID string
	Cursor   string
	Limit    int
}

type ListDocumentsOutput struct {
	Items   []*domain.Document
	Cursor  string
	HasMore bool
}

// ListDocuments returns a page of documents for the tenant.
func (s *IngestionService) ListDocuments(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	result, err := s.documentRepo.ListByTenantWithCursor(ctx, input.TenantID, cursor, limit)
	if err != nil {
		return nil, err
	}
	return &ListDocumentsOutput{Items: result.Items, Cursor: result.NextCursor, HasMore: result.HasMore}, nil
}

func (s *IngestionService) faqChunk(ctx context.Context, entry *domain.FAQEntry) (*domain.KnowledgeChunk, error) {
	embedding, err := s.embedding.GenerateEmbedding(ctx, entry.Question)
	if err != nil {
		return nil, domain.NewInfrastructureError("embedding provider unavailable", err)
	}
	domain.NormalizeEmbedding(embedding)

	chunk := &domain.KnowledgeChunk{
		ID:         s.uuidGen.NewString(),
		TenantID:   entry.TenantID,
		SourceType: domain.SourceTypeFAQ,
		ParentID:   entry.ID,
		ChunkIndex: 0,
		Content:    entry.Answer,
		Embedding:  embedding,
		Metadata: domain.ChunkMetadata{
			Title:            entry.Question,
			Category:         entry.Category,
			ArticleReference: entry.ArticleReference,
			SourceLabel:      entry.SourceLabel,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := domain.ValidateChunk(chunk, s.embedding.Dimensions()); err != nil {
		return nil, err
	}
	return chunk, nil
}

func (s *IngestionService) documentChunks(ctx context.Context, doc *domain.Document) ([]*domain.KnowledgeChunk, error) {
	pieces := chunkText(doc.ExtractedText, s.chunkCfg)
	chunks := make([]*domain.KnowledgeChunk, 0, len(pieces))
	for i, piece := range pieces {
		embedding, err := s.embedding.GenerateEmbedding(ctx, piece)
		if err != nil {
			return nil, domain.NewInfrastructureError("embedding provider unavailable", err)
		}
		domain.NormalizeEmbedding(embedding)

		chunk := &domain.KnowledgeChunk{
			ID:         s.uuidGen.NewString(),
			TenantID:   doc.TenantID,
			SourceType: domain.SourceTypeDocument,
			ParentID:   doc.ID,
			ChunkIndex: i,
			Content:    piece,
			Embedding:  embedding,
			Metadata: domain.ChunkMetadata{
				Title:       doc.Title,
				Category:    doc.Category,
				SourceLabel: doc.SourceLabel,
				Tags:        categoryTags(doc.Category),
			},
			CreatedAt: time.Now().UTC(),
		}
		if err := domain.ValidateChunk(chunk, s.embedding.Dimensions()); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// categoryTags splits a category label into lowercase keywords so the index
// keeps a lexical handle on each chunk alongside its embedding.
func categoryTags(category string) []string {
	words := strings.FieldsFunc(strings.ToLower(category), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(words))
	tags := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		tags = append(tags, w)
	}
	return tags
}
