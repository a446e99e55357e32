package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/normahq/norma/internal/domain"
	"github.com/normahq/norma/internal/telemetry"
)

// Answerer is the retrieval entry point consumed by a session.
type Answerer interface {
	AnswerQuestion(ctx context.Context, query, tenantID string) (*AnswerResult, error)
	ValidateQuery(query string) error
}

// TicketSink receives escalated questions.
type TicketSink interface {
	Create(ctx context.Context, t *domain.SupportTicket) error
}

// FeedbackSink receives answer usefulness ratings.
type FeedbackSink interface {
	Create(ctx context.Context, f *domain.FeedbackRecord) error
}

// Session is one open conversation between a user and the assistant. Turns
// are held in memory in submission order for the lifetime of the session.
// A session accepts one submission at a time; a second Submit while the
// first is still waiting on retrieval is rejected rather than queued.
type Session struct {
	ID       string
	TenantID string
	UserID   string

	answerer Answerer
	tickets  TicketSink
	feedback FeedbackSink
	uuidGen  UUIDGenerator

	mu       sync.Mutex
	turns    []domain.ConversationTurn
	inFlight bool
}

// SessionManager owns the open sessions, keyed by session ID.
type SessionManager struct {
	answerer Answerer
	tickets  TicketSink
	feedback FeedbackSink
	uuidGen  UUIDGenerator

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(answerer Answerer, tickets TicketSink, feedback FeedbackSink) *SessionManager {
	return &SessionManager{
		answerer: answerer,
		tickets:  tickets,
		feedback: feedback,
		uuidGen:  &DefaultUUIDGenerator{},
		sessions: make(map[string]*Session),
	}
}

// NewSessionManagerWithUUIDGen creates a SessionManager with a custom UUID generator (for testing)
func NewSessionManagerWithUUIDGen(answerer Answerer, tickets TicketSink, feedback FeedbackSink, uuidGen UUIDGenerator) *SessionManager {
	m := NewSessionManager(answerer, tickets, feedback)
	m.uuidGen = uuidGen
	return m
}

// Create opens a new session for the given tenant and user.
func (m *SessionManager) Create(tenantID, userID string) (*Session, error) {
	if tenantID == "" {
		return nil, domain.ErrTenantRequired
	}
	s := &Session{
		ID:       m.uuidGen.NewString(),
		TenantID: tenantID,
		UserID:   userID,
		answerer: m.answerer,
		tickets:  m.tickets,
		feedback: m.feedback,
		uuidGen:  m.uuidGen,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns an open session by ID, scoped to the tenant.
func (m *SessionManager) Get(tenantID, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || s.TenantID != tenantID {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Close drops a session from the manager. Turns are discarded with it.
func (m *SessionManager) Close(tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.TenantID != tenantID {
		return domain.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Submit runs one question through retrieval and appends the resulting pair
// of turns. The user turn is appended before retrieval starts so it is
// visible even if retrieval fails; an infrastructure failure produces an
// error turn with recovery options instead of losing the exchange.
func (s *Session) Submit(ctx context.Context, question string) (*domain.ConversationTurn, error) {
	ctx, span := telemetry.StartSpan(ctx, "Session.Submit", telemetry.SpanAttributes{
		TenantID:  s.TenantID,
		SessionID: s.ID,
		Operation: "submit",
	})
	defer span.End()

	// Validate before touching session state so a bad question never
	// occupies the in-flight slot or pollutes the turn sequence.
	if err := s.answerer.ValidateQuery(question); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, domain.ErrSubmissionInFlight
	}
	s.inFlight = true
	s.turns = append(s.turns, domain.ConversationTurn{
		ID:        s.uuidGen.NewString(),
		Sender:    domain.SenderUser,
		Text:      strings.TrimSpace(question),
		Timestamp: time.Now().UTC(),
	})
	s.mu.Unlock()

	result, err := s.answerer.AnswerQuestion(ctx, question, s.TenantID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false

	var turn domain.ConversationTurn
	if err != nil {
		span.SetError(err)
		turn = domain.ConversationTurn{
			ID:        s.uuidGen.NewString(),
			Sender:    domain.SenderAssistant,
			Text:      "Something went wrong while looking that up. Please try again in a moment.",
			Timestamp: time.Now().UTC(),
			IsError:   true,
			Options:   recoveryOptions(),
		}
		s.turns = append(s.turns, turn)
		return &turn, err
	}

	turn = domain.ConversationTurn{
		ID:        s.uuidGen.NewString(),
		Sender:    domain.SenderAssistant,
		Text:      result.Answer,
		Timestamp: time.Now().UTC(),
		Options:   result.Options,
		Sources:   result.Sources,
	}
	s.turns = append(s.turns, turn)
	return &turn, nil
}

// EscalateToTicket forwards the most recent user question to the
// administration as a support ticket.
func (s *Session) EscalateToTicket(ctx context.Context) (*domain.SupportTicket, error) {
	ctx, span := telemetry.StartSpan(ctx, "Session.EscalateToTicket", telemetry.SpanAttributes{
		TenantID:  s.TenantID,
		SessionID: s.ID,
		Operation: "escalate",
	})
	defer span.End()

	question, ok := s.lastText(domain.SenderUser)
	if !ok {
		return nil, domain.ErrNothingToEscalate
	}

	ticket := &domain.SupportTicket{
		ID:        s.uuidGen.NewString(),
		TenantID:  s.TenantID,
		UserID:    s.UserID,
		Subject:   fmt.Sprintf("Unanswered question: %s", truncate(question, 80)),
		Body:      question,
		CreatedAt: time.Now().UTC(),
	}
	if err := domain.ValidateSupportTicket(ticket); err != nil {
		return nil, err
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		span.SetError(err)
		return nil, domain.NewInfrastructureError("failed to open support ticket", err)
	}
	return ticket, nil
}

// RecordFeedback rates the most recent assistant answer. The stored source
// title prefers the article reference over the document title so feedback
// rows cite the same authority the user saw.
func (s *Session) RecordFeedback(ctx context.Context, useful bool) (*domain.FeedbackRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "Session.RecordFeedback", telemetry.SpanAttributes{
		TenantID:  s.TenantID,
		SessionID: s.ID,
		Operation: "feedback",
	})
	defer span.End()

	s.mu.Lock()
	var answerTurn *domain.ConversationTurn
	var questionText string
	for i := len(s.turns) - 1; i >= 0; i-- {
		t := s.turns[i]
		if answerTurn == nil && t.Sender == domain.SenderAssistant && !t.IsError {
			answerTurn = &t
			continue
		}
		if answerTurn != nil && t.Sender == domain.SenderUser {
			questionText = t.Text
			break
		}
	}
	s.mu.Unlock()

	if answerTurn == nil {
		return nil, domain.ErrNothingToRate
	}

	record := &domain.FeedbackRecord{
		ID:        s.uuidGen.NewString(),
		TenantID:  s.TenantID,
		UserID:    s.UserID,
		Question:  questionText,
		Answer:    answerTurn.Text,
		Useful:    useful,
		CreatedAt: time.Now().UTC(),
	}
	if len(answerTurn.Sources) > 0 {
		src := answerTurn.Sources[0]
		record.SourceTitle = src.Reference
		record.SourceType = src.Type
	}
	if err := domain.ValidateFeedbackRecord(record); err != nil {
		return nil, err
	}
	if err := s.feedback.Create(ctx, record); err != nil {
		span.SetError(err)
		return nil, domain.NewInfrastructureError("failed to record feedback", err)
	}
	return record, nil
}

// Turns returns a snapshot of the conversation so far.
func (s *Session) Turns() []domain.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ConversationTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Session) lastText(sender domain.Sender) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Sender == sender {
			return s.turns[i].Text, true
		}
	}
	return "", false
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
