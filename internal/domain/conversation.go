package domain

import (
	"fmt"
	"time"
)

// Sender identifies who produced a conversation turn
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// OptionKind enumerates the follow-up actions a turn can offer
type OptionKind string

const (
	OptionOpenTicket  OptionKind = "open_ticket"
	OptionShowContact OptionKind = "show_contact"
	OptionRephrase    OptionKind = "rephrase"
)

// AnswerOption is a follow-up action attached to an assistant turn so the
// user is never left with a dead end.
type AnswerOption struct {
	Kind  OptionKind
	Label string
}

// AnswerSource is a provenance descriptor surfaced with an answer. For FAQ
// matches Reference carries the article citation; for documents it carries
// the document title.
type AnswerSource struct {
	Type      SourceType
	Reference string
	Label     string
}

// ConversationTurn is one exchange in a session. Turns are appended to an
// in-memory ordered sequence for the lifetime of the open conversation.
type ConversationTurn struct {
	ID        string
	Sender    Sender
	Text      string
	Timestamp time.Time
	IsError   bool
	Options   []AnswerOption
	Sources   []AnswerSource
}

// FeedbackRecord is a usefulness signal created once per rated answer.
// Write-only from the core's perspective.
type FeedbackRecord struct {
	ID          string
	TenantID    string
	UserID      string
	Question    string
	Answer      string
	SourceTitle string
	SourceType  SourceType
	Useful      bool
	CreatedAt   time.Time
}

// SupportTicket is the escalation sink for questions retrieval could not
// answer.
type SupportTicket struct {
	ID        string
	TenantID  string
	UserID    string
	Subject   string
	Body      string
	CreatedAt time.Time
}

// ValidateFeedbackRecord validates a FeedbackRecord instance
func ValidateFeedbackRecord(f *FeedbackRecord) error {
	if f == nil {
		return fmt.Errorf("feedback record cannot be nil")
	}
	if f.ID == "" {
		return fmt.Errorf("feedback record ID is required")
	}
	if f.TenantID == "" {
		return ErrTenantRequired
	}
	if f.Question == "" {
		return fmt.Errorf("feedback record Question is required")
	}
	return nil
}

// ValidateSupportTicket validates a SupportTicket instance
func ValidateSupportTicket(tk *SupportTicket) error {
	if tk == nil {
		return fmt.Errorf("support ticket cannot be nil")
	}
	if tk.ID == "" {
		return fmt.Errorf("support ticket ID is required")
	}
	if tk.TenantID == "" {
		return ErrTenantRequired
	}
	if tk.Body == "" {
		return fmt.Errorf("support ticket Body is required")
	}
	return nil
}
