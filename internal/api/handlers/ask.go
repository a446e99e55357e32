package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/normahq/norma/internal/api"
	"github.com/normahq/norma/internal/api/middleware"
	"github.com/normahq/norma/internal/service"
)

// QuestionAnswerer is the stateless retrieval entry point.
type QuestionAnswerer interface {
	AnswerQuestion(ctx context.Context, query, tenantID string) (*service.AnswerResult, error)
}

// AskHandler serves one-shot questions outside of a session. Used by the CLI
// and by integrations that keep their own conversation state.
type AskHandler struct {
	answerer QuestionAnswerer
}

func NewAskHandler(answerer QuestionAnswerer) *AskHandler {
	return &AskHandler{answerer: answerer}
}

type AskRequest struct {
	Question string `json:"question"`
}

type AskResponse struct {
	Answer  string           `json:"answer"`
	NoMatch bool             `json:"no_match"`
	Sources []SourceResponse `json:"sources,omitempty"`
	Options []OptionResponse `json:"options,omitempty"`
}

func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.answerer.AnswerQuestion(r.Context(), req.Question, tenantID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := AskResponse{
		Answer:  result.Answer,
		NoMatch: result.NoMatch,
	}
	for _, s := range result.Sources {
		resp.Sources = append(resp.Sources, SourceResponse{Type: string(s.Type), Reference: s.Reference, Label: s.Label})
	}
	for _, o := range result.Options {
		resp.Options = append(resp.Options, OptionResponse{Kind: string(o.Kind), Label: o.Label})
	}

	api.Success(w, http.StatusOK, resp)
}
