package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/normahq/norma/internal/api/handlers"
	"github.com/normahq/norma/internal/domain"
	"github.com/normahq/norma/internal/service"
)

type MockAuthValidator struct {
	mock.Mock
}

func (m *MockAuthValidator) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

type MockFAQService struct {
	mock.Mock
}

func (m *MockFAQService) IngestFAQ(ctx context.Context, input service.IngestFAQInput) (*domain.FAQEntry, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FAQEntry), args.Error(1)
}

func (m *MockFAQService) GetFAQ(ctx context.Context, tenantID, id string) (*domain.FAQEntry, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FAQEntry), args.Error(1)
}

func (m *MockFAQService) ListFAQs(ctx context.Context, input service.ListFAQInput) (*service.ListFAQOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListFAQOutput), args.Error(1)
}

func (m *MockFAQService) DeleteFAQ(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) IngestDocument(ctx context.Context, input service.IngestDocumentInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) GetDocument(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) ListDocuments(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListDocumentsOutput), args.Error(1)
}

func (m *MockDocumentService) DeleteDocument(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

type MockReindexQueue struct {
	mock.Mock
}

func (m *MockReindexQueue) Enqueue(ctx context.Context, job *domain.ReindexJob) (string, error) {
	args := m.Called(ctx, job)
	return args.String(0), args.Error(1)
}

func (m *MockReindexQueue) GetByID(ctx context.Context, id string) (*domain.ReindexJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReindexJob), args.Error(1)
}

type MockQuestionAnswerer struct {
	mock.Mock
}

func (m *MockQuestionAnswerer) AnswerQuestion(ctx context.Context, query, tenantID string) (*service.AnswerResult, error) {
	args := m.Called(ctx, query, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AnswerResult), args.Error(1)
}

func (m *MockQuestionAnswerer) ValidateQuery(query string) error {
	args := m.Called(query)
	return args.Error(0)
}

type noopTicketSink struct{}

func (noopTicketSink) Create(ctx context.Context, t *domain.SupportTicket) error { return nil }

type noopFeedbackSink struct{}

func (noopFeedbackSink) Create(ctx context.Context, f *domain.FeedbackRecord) error { return nil }

func setupRouter() (http.Handler, *MockAuthValidator, *MockFAQService, *MockQuestionAnswerer) {
	authValidator := new(MockAuthValidator)
	faqSvc := new(MockFAQService)
	docSvc := new(MockDocumentService)
	queue := new(MockReindexQueue)
	answerer := new(MockQuestionAnswerer)

	sessionMgr := service.NewSessionManager(answerer, noopTicketSink{}, noopFeedbackSink{})

	cfg := RouterConfig{
		AuthValidator:    authValidator,
		FAQHandler:       handlers.NewFAQHandler(faqSvc, queue),
		DocumentHandler:  handlers.NewDocumentHandler(docSvc, nil),
		AssistantHandler: handlers.NewAssistantHandler(sessionMgr),
		AskHandler:       handlers.NewAskHandler(answerer),
	}

	return NewRouter(cfg), authValidator, faqSvc, answerer
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_AuthenticatedRoutes_RequireAuth(t *testing.T) {
	router, _, _, _ := setupRouter()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/faqs"},
		{http.MethodGet, "/faqs"},
		{http.MethodGet, "/faqs/123"},
		{http.MethodDelete, "/faqs/123"},
		{http.MethodPost, "/documents"},
		{http.MethodGet, "/documents"},
		{http.MethodGet, "/documents/123"},
		{http.MethodGet, "/documents/123/download"},
		{http.MethodDelete, "/documents/123"},
		{http.MethodPost, "/reindex"},
		{http.MethodGet, "/reindex/123"},
		{http.MethodPost, "/ask"},
		{http.MethodPost, "/sessions"},
		{http.MethodPost, "/sessions/123/messages"},
		{http.MethodGet, "/sessions/123/turns"},
		{http.MethodPost, "/sessions/123/escalate"},
		{http.MethodPost, "/sessions/123/feedback"},
		{http.MethodDelete, "/sessions/123"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_AuthenticatedRoutes_WithValidAuth(t *testing.T) {
	router, authValidator, faqSvc, _ := setupRouter()

	authValidator.On("ValidateAPIKey", mock.Anything, "condo-api-key").Return("tenant-1", nil)

	expected := &domain.FAQEntry{
		ID:        "faq-1",
		TenantID:  "tenant-1",
		Question:  "Can I keep a dog?",
		Answer:    "Yes.",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	faqSvc.On("GetFAQ", mock.Anything, "tenant-1", "faq-1").Return(expected, nil)

	req := httptest.NewRequest(http.MethodGet, "/faqs/faq-1", nil)
	req.Header.Set("Authorization", "Bearer condo-api-key")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	authValidator.AssertExpectations(t)
	faqSvc.AssertExpectations(t)
}

func TestRouter_AskFlow(t *testing.T) {
	router, authValidator, _, answerer := setupRouter()

	authValidator.On("ValidateAPIKey", mock.Anything, "condo-api-key").Return("tenant-1", nil)
	answerer.On("AnswerQuestion", mock.Anything, "are dogs allowed?", "tenant-1").
		Return(&service.AnswerResult{Answer: "Pets are allowed."}, nil)

	body := `{"question":"are dogs allowed?"}`
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer condo-api-key")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	answerer.AssertExpectations(t)
}

func TestRouter_TenantHeaderPropagated(t *testing.T) {
	router, authValidator, faqSvc, _ := setupRouter()

	authValidator.On("ValidateAPIKey", mock.Anything, "condo-api-key").Return("tenant-1", nil)
	faqSvc.On("ListFAQs", mock.Anything, mock.MatchedBy(func(input service.ListFAQInput) bool {
		return input.TenantID == "tenant-1"
	})).Return(&service.ListFAQOutput{Items: []*domain.FAQEntry{}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/faqs", nil)
	req.Header.Set("Authorization", "Bearer condo-api-key")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tenant-1", req.Header.Get("X-Tenant-ID"))
	faqSvc.AssertExpectations(t)
}
