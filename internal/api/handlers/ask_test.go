package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/normahq/norma/internal/domain"
	"github.com/normahq/norma/internal/service"
)

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

func TestAskHandler_Success(t *testing.T) {
	answerer := new(MockQuestionAnswerer)
	handler := NewAskHandler(answerer)

	answerer.On("AnswerQuestion", mock.Anything, "are dogs allowed?", "tenant-1").
		Return(&service.AnswerResult{
			Answer: "Pets are allowed.",
			Sources: []domain.AnswerSource{
				{Type: domain.SourceTypeFAQ, Reference: "Art. 9", Label: "Regolamento"},
			},
		}, nil)

	body := `{"question":"are dogs allowed?"}`
	req := requestWithTenantID(http.MethodPost, "/ask", []byte(body))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "Pets are allowed.", data["answer"])
	assert.Equal(t, false, data["no_match"])
}

func TestAskHandler_NoMatch(t *testing.T) {
	answerer := new(MockQuestionAnswerer)
	handler := NewAskHandler(answerer)

	answerer.On("AnswerQuestion", mock.Anything, mock.Anything, mock.Anything).
		Return(&service.AnswerResult{
			Answer:  "I couldn't find anything about that.",
			NoMatch: true,
			Options: []domain.AnswerOption{
				{Kind: domain.OptionRephrase, Label: "Rephrase the question"},
			},
		}, nil)

	body := `{"question":"helicopter parking"}`
	req := requestWithTenantID(http.MethodPost, "/ask", []byte(body))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, true, data["no_match"])
	assert.NotEmpty(t, data["options"])
}

func TestAskHandler_ValidationError(t *testing.T) {
	answerer := new(MockQuestionAnswerer)
	handler := NewAskHandler(answerer)

	answerer.On("AnswerQuestion", mock.Anything, "", "tenant-1").
		Return(nil, domain.ErrEmptyQuery)

	body := `{"question":""}`
	req := requestWithTenantID(http.MethodPost, "/ask", []byte(body))
	w := httptest.NewRecorder()

	handler.Ask(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAskHandler_Unauthorized(t *testing.T) {
	handler := NewAskHandler(new(MockQuestionAnswerer))

	req := httptest.NewRequest(http.MethodPost, "/ask", nil)
	w := httptest.NewRecorder()

	handler.Ask(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
