package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/normahq/norma/internal/api"
	"github.com/normahq/norma/internal/api/middleware"
	"github.com/normahq/norma/internal/domain"
	"github.com/normahq/norma/internal/service"
)

type FAQService interface {
	IngestFAQ(ctx context.Context, input service.IngestFAQInput) (*domain.FAQEntry, error)
	GetFAQ(ctx context.Context, tenantID, id string) (*domain.FAQEntry, error)
	ListFAQs(ctx context.Context, input service.ListFAQInput) (*service.ListFAQOutput, error)
	DeleteFAQ(ctx context.Context, tenantID, id string) error
}

// ReindexQueue enqueues and inspects reindex runs.
type ReindexQueue interface {
	Enqueue(ctx context.Context, job *domain.ReindexJob) (string, error)
	GetByID(ctx context.Context, id string) (*domain.ReindexJob, error)
}

type FAQHandler struct {
	svc     FAQService
	queue   ReindexQueue
	uuidGen service.UUIDGenerator
}

func NewFAQHandler(svc FAQService, queue ReindexQueue) *FAQHandler {
	return &FAQHandler{svc: svc, queue: queue, uuidGen: &service.DefaultUUIDGenerator{}}
}

type CreateFAQRequest struct {
	Question         string `json:"question"`
	Answer           string `json:"answer"`
	Category         string `json:"category"`
	ArticleReference string `json:"article_reference"`
	SourceLabel      string `json:"source_label"`
}

type FAQResponse struct {
	ID               string `json:"id"`
	TenantID         string `json:"tenant_id"`
	Question         string `json:"question"`
	Answer           string `json:"answer"`
	Category         string `json:"category,omitempty"`
	ArticleReference string `json:"article_reference,omitempty"`
	SourceLabel      string `json:"source_label,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

func faqToResponse(f *domain.FAQEntry) *FAQResponse {
	return &FAQResponse{
		ID:               f.ID,
		TenantID:         f.TenantID,
		Question:         f.Question,
		Answer:           f.Answer,
		Category:         f.Category,
		ArticleReference: f.ArticleReference,
		SourceLabel:      f.SourceLabel,
		CreatedAt:        f.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        f.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *FAQHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateFAQRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.Answer == "" {
		api.Error(w, http.StatusBadRequest, "answer is required")
		return
	}

	entry, err := h.svc.IngestFAQ(r.Context(), service.IngestFAQInput{
		TenantID:         tenantID,
		Question:         req.Question,
		Answer:           req.Answer,
		Category:         req.Category,
		ArticleReference: req.ArticleReference,
		SourceLabel:      req.SourceLabel,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, faqToResponse(entry))
}

func (h *FAQHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	entry, err := h.svc.GetFAQ(r.Context(), tenantID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, faqToResponse(entry))
}

type FAQListResponse struct {
	Items   []*FAQResponse `json:"items"`
	Cursor  string         `json:"cursor,omitempty"`
	HasMore bool           `json:"has_more"`
}

func (h *FAQHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.svc.ListFAQs(r.Context(), service.ListFAQInput{
		TenantID: tenantID,
		Cursor:   cursor,
		Limit:    limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*FAQResponse, len(output.Items))
	for i, f := range output.Items {
		responses[i] = faqToResponse(f)
	}

	api.Success(w, http.StatusOK, FAQListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *FAQHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.DeleteFAQ(r.Context(), tenantID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type ReindexJobResponse struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	Status    string `json:"status"`
	Indexed   int    `json:"indexed"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

func reindexJobToResponse(job *domain.ReindexJob) *ReindexJobResponse {
	return &ReindexJobResponse{
		ID:        job.ID,
		TenantID:  job.TenantID,
		Status:    string(job.Status),
		Indexed:   job.Indexed,
		Failed:    job.Failed,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	}
}

// Reindex queues a full rebuild of the tenant's index. Returns the job ID so
// the caller can poll for completion.
func (h *FAQHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	jobID, err := h.queue.Enqueue(r.Context(), &domain.ReindexJob{
		ID:        h.uuidGen.NewString(),
		TenantID:  tenantID,
		Status:    domain.ReindexJobStatusPending,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// ReindexStatus reports on a queued or finished rebuild.
func (h *FAQHandler) ReindexStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	job, err := h.queue.GetByID(r.Context(), id)
	if err != nil {
		api.Error(w, http.StatusNotFound, "reindex job not found")
		return
	}
	if job.TenantID != tenantID {
		api.Error(w, http.StatusNotFound, "reindex job not found")
		return
	}

	api.Success(w, http.StatusOK, reindexJobToResponse(job))
}
