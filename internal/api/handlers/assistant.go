package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/normahq/norma/internal/api"
	"github.com/normahq/norma/internal/api/middleware"
	"github.com/normahq/norma/internal/domain"
	"github.com/normahq/norma/internal/service"
)

// SessionStore manages open conversation sessions.
type SessionStore interface {
	Create(tenantID, userID string) (*service.Session, error)
	Get(tenantID, id string) (*service.Session, error)
	Close(tenantID, id string) error
}

type AssistantHandler struct {
	sessions SessionStore
}

func NewAssistantHandler(sessions SessionStore) *AssistantHandler {
	return &AssistantHandler{sessions: sessions}
}

type CreateSessionRequest struct {
	UserID string `json:"user_id"`
}

type SessionResponse struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id,omitempty"`
}

type OptionResponse struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
}

type SourceResponse struct {
	Type      string `json:"type"`
	Reference string `json:"reference"`
	Label     string `json:"label,omitempty"`
}

type TurnResponse struct {
	ID        string           `json:"id"`
	Sender    string           `json:"sender"`
	Text      string           `json:"text"`
	Timestamp string           `json:"timestamp"`
	IsError   bool             `json:"is_error,omitempty"`
	Options   []OptionResponse `json:"options,omitempty"`
	Sources   []SourceResponse `json:"sources,omitempty"`
}

func turnToResponse(t *domain.ConversationTurn) *TurnResponse {
	resp := &TurnResponse{
		ID:        t.ID,
		Sender:    string(t.Sender),
		Text:      t.Text,
		Timestamp: t.Timestamp.Format(time.RFC3339),
		IsError:   t.IsError,
	}
	for _, o := range t.Options {
		resp.Options = append(resp.Options, OptionResponse{Kind: string(o.Kind), Label: o.Label})
	}
	for _, s := range t.Sources {
		resp.Sources = append(resp.Sources, SourceResponse{Type: string(s.Type), Reference: s.Reference, Label: s.Label})
	}
	return resp
}

func (h *AssistantHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	session, err := h.sessions.Create(tenantID, req.UserID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, SessionResponse{
		ID:       session.ID,
		TenantID: session.TenantID,
		UserID:   session.UserID,
	})
}

type SubmitRequest struct {
	Question string `json:"question"`
}

// Submit runs one question through retrieval. When retrieval infrastructure
// fails, the session records an error turn with recovery options; that turn
// is returned with a 502 so clients can both show it and tell the failure
// apart from a grounded answer.
func (h *AssistantHandler) Submit(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	session, err := h.sessions.Get(tenantID, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, err := session.Submit(r.Context(), req.Question)
	if err != nil {
		if turn != nil {
			api.JSON(w, api.DomainErrorToHTTP(err), api.SuccessResponse{Data: turnToResponse(turn)})
			return
		}
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, turnToResponse(turn))
}

func (h *AssistantHandler) GetTurns(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	session, err := h.sessions.Get(tenantID, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	turns := session.Turns()
	responses := make([]*TurnResponse, len(turns))
	for i := range turns {
		responses[i] = turnToResponse(&turns[i])
	}

	api.Success(w, http.StatusOK, responses)
}

type TicketResponse struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

func (h *AssistantHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	session, err := h.sessions.Get(tenantID, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	ticket, err := session.EscalateToTicket(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, TicketResponse{
		ID:        ticket.ID,
		Subject:   ticket.Subject,
		Body:      ticket.Body,
		CreatedAt: ticket.CreatedAt.Format(time.RFC3339),
	})
}

type FeedbackRequest struct {
	Useful *bool `json:"useful"`
}

func (h *AssistantHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	session, err := h.sessions.Get(tenantID, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Useful == nil {
		api.Error(w, http.StatusBadRequest, "useful is required")
		return
	}

	record, err := session.RecordFeedback(r.Context(), *req.Useful)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, map[string]string{"id": record.ID})
}

func (h *AssistantHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.sessions.Close(tenantID, chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "closed"})
}
