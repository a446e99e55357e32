package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normahq/norma/internal/domain"
	"github.com/normahq/norma/internal/service"
)

type stubAnswerer struct {
	result *service.AnswerResult
	err    error
}

func (s *stubAnswerer) AnswerQuestion(ctx context.Context, query, tenantID string) (*service.AnswerResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubAnswerer) ValidateQuery(query string) error {
	if query == "" {
		return domain.ErrEmptyQuery
	}
	return nil
}

type stubTicketSink struct{ err error }

func (s *stubTicketSink) Create(ctx context.Context, t *domain.SupportTicket) error { return s.err }

type stubFeedbackSink struct{ err error }

func (s *stubFeedbackSink) Create(ctx context.Context, f *domain.FeedbackRecord) error { return s.err }

func newTestAssistantHandler(answerer *stubAnswerer) (*AssistantHandler, *service.SessionManager) {
	mgr := service.NewSessionManager(answerer, &stubTicketSink{}, &stubFeedbackSink{})
	return NewAssistantHandler(mgr), mgr
}

func TestAssistantHandler_CreateSession(t *testing.T) {
	handler, _ := newTestAssistantHandler(&stubAnswerer{})

	body := `{"user_id":"user-5"}`
	req := requestWithTenantID(http.MethodPost, "/sessions", []byte(body))
	w := httptest.NewRecorder()

	handler.CreateSession(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.NotEmpty(t, data["id"])
	assert.Equal(t, "tenant-1", data["tenant_id"])
	assert.Equal(t, "user-5", data["user_id"])
}

func TestAssistantHandler_CreateSession_EmptyBody(t *testing.T) {
	handler, _ := newTestAssistantHandler(&stubAnswerer{})

	req := requestWithTenantID(http.MethodPost, "/sessions", nil)
	w := httptest.NewRecorder()

	handler.CreateSession(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAssistantHandler_Submit_Success(t *testing.T) {
	answerer := &stubAnswerer{result: &service.AnswerResult{
		Answer: "Pets are allowed.",
		Sources: []domain.AnswerSource{
			{Type: domain.SourceTypeFAQ, Reference: "Art. 9", Label: "Regolamento"},
		},
	}}
	handler, mgr := newTestAssistantHandler(answerer)

	session, err := mgr.Create("tenant-1", "")
	require.NoError(t, err)

	body := `{"question":"are dogs allowed?"}`
	req := withURLParam(requestWithTenantID(http.MethodPost, "/sessions/"+session.ID+"/messages", []byte(body)), "id", session.ID)
	w := httptest.NewRecorder()

	handler.Submit(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "Pets are allowed.", data["text"])
	assert.Equal(t, "assistant", data["sender"])

	sources := data["sources"].([]interface{})
	require.Len(t, sources, 1)
	assert.Equal(t, "Art. 9", sources[0].(map[string]interface{})["reference"])
}

func TestAssistantHandler_Submit_SessionNotFound(t *testing.T) {
	handler, _ := newTestAssistantHandler(&stubAnswerer{})

	body := `{"question":"hello"}`
	req := withURLParam(requestWithTenantID(http.MethodPost, "/sessions/nope/messages", []byte(body)), "id", "nope")
	w := httptest.NewRecorder()

	handler.Submit(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssistantHandler_Submit_InfrastructureFailureReturnsErrorTurn(t *testing.T) {
	answerer := &stubAnswerer{err: domain.NewInfrastructureError("embedding provider unavailable", errors.New("timeout"))}
	handler, mgr := newTestAssistantHandler(answerer)

	session, err := mgr.Create("tenant-1", "")
	require.NoError(t, err)

	body := `{"question":"are dogs allowed?"}`
	req := withURLParam(requestWithTenantID(http.MethodPost, "/sessions/"+session.ID+"/messages", []byte(body)), "id", session.ID)
	w := httptest.NewRecorder()

	handler.Submit(w, req)

	// The recorded error turn is returned so clients can render it, with a
	// gateway status so they can tell it apart from a grounded answer.
	assert.Equal(t, http.StatusBadGateway, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, true, data["is_error"])
	assert.NotEmpty(t, data["options"])
}

func TestAssistantHandler_GetTurns(t *testing.T) {
	answerer := &stubAnswerer{result: &service.AnswerResult{Answer: "Answer."}}
	handler, mgr := newTestAssistantHandler(answerer)

	session, err := mgr.Create("tenant-1", "")
	require.NoError(t, err)
	_, err = session.Submit(context.Background(), "question one")
	require.NoError(t, err)

	req := withURLParam(requestWithTenantID(http.MethodGet, "/sessions/"+session.ID+"/turns", nil), "id", session.ID)
	w := httptest.NewRecorder()

	handler.GetTurns(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	turns := resp["data"].([]interface{})
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].(map[string]interface{})["sender"])
	assert.Equal(t, "assistant", turns[1].(map[string]interface{})["sender"])
}

func TestAssistantHandler_Escalate(t *testing.T) {
	answerer := &stubAnswerer{result: &service.AnswerResult{Answer: "not found", NoMatch: true}}
	handler, mgr := newTestAssistantHandler(answerer)

	session, err := mgr.Create("tenant-1", "")
	require.NoError(t, err)
	_, err = session.Submit(context.Background(), "can I install a heat pump?")
	require.NoError(t, err)

	req := withURLParam(requestWithTenantID(http.MethodPost, "/sessions/"+session.ID+"/escalate", nil), "id", session.ID)
	w := httptest.NewRecorder()

	handler.Escalate(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Contains(t, data["subject"], "can I install a heat pump?")
}

func TestAssistantHandler_Escalate_NothingToEscalate(t *testing.T) {
	handler, mgr := newTestAssistantHandler(&stubAnswerer{})

	session, err := mgr.Create("tenant-1", "")
	require.NoError(t, err)

	req := withURLParam(requestWithTenantID(http.MethodPost, "/sessions/"+session.ID+"/escalate", nil), "id", session.ID)
	w := httptest.NewRecorder()

	handler.Escalate(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAssistantHandler_Feedback_RequiresUseful(t *testing.T) {
	handler, mgr := newTestAssistantHandler(&stubAnswerer{})

	session, err := mgr.Create("tenant-1", "")
	require.NoError(t, err)

	req := withURLParam(requestWithTenantID(http.MethodPost, "/sessions/"+session.ID+"/feedback", []byte(`{}`)), "id", session.ID)
	w := httptest.NewRecorder()

	handler.Feedback(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssistantHandler_Feedback_Success(t *testing.T) {
	answerer := &stubAnswerer{result: &service.AnswerResult{Answer: "Answer."}}
	handler, mgr := newTestAssistantHandler(answerer)

	session, err := mgr.Create("tenant-1", "")
	require.NoError(t, err)
	_, err = session.Submit(context.Background(), "question")
	require.NoError(t, err)

	req := withURLParam(requestWithTenantID(http.MethodPost, "/sessions/"+session.ID+"/feedback", []byte(`{"useful":true}`)), "id", session.ID)
	w := httptest.NewRecorder()

	handler.Feedback(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.NotEmpty(t, data["id"])
}

func TestAssistantHandler_CloseSession(t *testing.T) {
	handler, mgr := newTestAssistantHandler(&stubAnswerer{})

	session, err := mgr.Create("tenant-1", "")
	require.NoError(t, err)

	req := withURLParam(requestWithTenantID(http.MethodDelete, "/sessions/"+session.ID, nil), "id", session.ID)
	w := httptest.NewRecorder()

	handler.CloseSession(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	_, err = mgr.Get("tenant-1", session.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
