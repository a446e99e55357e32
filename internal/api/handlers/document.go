package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/normahq/norma/internal/api"
	"github.com/normahq/norma/internal/api/middleware"
	"github.com/normahq/norma/internal/domain"
	"github.com/normahq/norma/internal/service"
)

// maxUploadBytes caps one uploaded file. Condominium bylaws and assembly
// minutes are small; anything bigger is almost certainly the wrong file.
const maxUploadBytes = 20 * 1024 * 1024

type DocumentService interface {
	IngestDocument(ctx context.Context, input service.IngestDocumentInput) (*domain.Document, error)
	GetDocument(ctx context.Context, tenantID, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
	DeleteDocument(ctx context.Context, tenantID, id string) error
}

// DownloadURLSigner mints presigned URLs for stored originals.
type DownloadURLSigner interface {
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

type DocumentHandler struct {
	svc    DocumentService
	signer DownloadURLSigner
}

// NewDocumentHandler creates a DocumentHandler. signer may be nil when blob
// storage is not configured; downloads then return 404.
func NewDocumentHandler(svc DocumentService, signer DownloadURLSigner) *DocumentHandler {
	return &DocumentHandler{svc: svc, signer: signer}
}

type DocumentResponse struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Title       string `json:"title"`
	Category    string `json:"category,omitempty"`
	SourceLabel string `json:"source_label,omitempty"`
	ChunkCount  int    `json:"chunk_count"`
	CreatedAt   string `json:"created_at"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:          d.ID,
		TenantID:    d.TenantID,
		Title:       d.Title,
		Category:    d.Category,
		SourceLabel: d.SourceLabel,
		ChunkCount:  d.ChunkCount,
		CreatedAt:   d.CreatedAt.Format(time.RFC3339),
	}
}

// Upload accepts a multipart form with a "file" part and title/category/
// source_label fields, extracts the text, and indexes the document.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if len(data) > maxUploadBytes {
		api.Error(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	doc, err := h.svc.IngestDocument(r.Context(), service.IngestDocumentInput{
		TenantID:    tenantID,
		Title:       title,
		Category:    r.FormValue("category"),
		SourceLabel: r.FormValue("source_label"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	doc, err := h.svc.GetDocument(r.Context(), tenantID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
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

	output, err := h.svc.ListDocuments(r.Context(), service.ListDocumentsInput{
		TenantID: tenantID,
		Cursor:   cursor,
		Limit:    limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(output.Items))
	for i, d := range output.Items {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

// GetDownloadURL returns a presigned URL for the stored original file.
func (h *DocumentHandler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	doc, err := h.svc.GetDocument(r.Context(), tenantID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if h.signer == nil || doc.StorageKey == "" {
		api.Error(w, http.StatusNotFound, "original file not available")
		return
	}

	url, err := h.signer.GenerateDownloadURL(r.Context(), doc.StorageKey)
	if err != nil {
		api.Error(w, http.StatusBadGateway, "failed to generate download url")
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"download_url": url})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteDocument(r.Context(), tenantID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}
