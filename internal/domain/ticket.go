package domain

import (
	"fmt"
	"time"
)

// TicketStatus represents the lifecycle state of a support ticket
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "OPEN"
	TicketStatusClosed TicketStatus = "CLOSED"
)

// Ticket categories assigned by automatic analysis
const (
	CategoryTechnical      = "Technical Issue"
	CategoryBilling        = "Billing Issue"
	CategoryAccount        = "Account Issue"
	CategoryGeneralInquiry = "General Inquiry"
	CategoryFeatureRequest = "Feature Request"
	CategoryOther          = "Other"
)

// Sentiment labels assigned by automatic analysis
const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
)

// TicketMessage is one entry in a ticket's conversation history.
type TicketMessage struct {
	Sender     string    `json:"sender"`
	Message    string    `json:"message"`
	Time       time.Time `json:"time"`
	AgentEmail string    `json:"agent_email,omitempty"`
}

// TicketAnalysis holds the AI classification produced when a ticket is created.
type TicketAnalysis struct {
	Category     string `json:"category"`
	Sentiment    string `json:"sentiment"`
	UrgencyScore int    `json:"urgency_score"`
	Summary      string `json:"summary"`
}

// Ticket is a customer support ticket with its conversation history.
type Ticket struct {
	ID        string
	Name      string
	Email     string
	Status    TicketStatus
	Messages  []TicketMessage
	Analysis  *TicketAnalysis
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FallbackAnalysis is used when the analysis provider fails; ticket creation
// must not depend on it succeeding.
func FallbackAnalysis() *TicketAnalysis {
	return &TicketAnalysis{
		Category:     CategoryOther,
		Sentiment:    SentimentNeutral,
		UrgencyScore: 5,
		Summary:      "Automatic analysis unavailable.",
	}
}

// ValidateTicket validates a Ticket instance
func ValidateTicket(t *Ticket) error {
	if t == nil {
		return fmt.Errorf("ticket cannot be nil")
	}
	if t.ID == "" {
		return fmt.Errorf("ticket ID is required")
	}
	if t.Name == "" {
		return fmt.Errorf("ticket Name is required")
	}
	if t.Email == "" {
		return fmt.Errorf("ticket Email is required")
	}
	if len(t.Messages) == 0 {
		return fmt.Errorf("ticket must have at least one message")
	}
	if !isValidTicketStatus(t.Status) {
		return ErrInvalidTicketStatus
	}
	return nil
}

func isValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusClosed:
		return true
	}
	return false
}

// IsValidCategory checks whether a category label is one the analyst may assign.
func IsValidCategory(c string) bool {
	switch c {
	case CategoryTechnical, CategoryBilling, CategoryAccount,
		CategoryGeneralInquiry, CategoryFeatureRequest, CategoryOther:
		return true
	}
	return false
}

// IsValidSentiment checks whether a sentiment label is one the analyst may assign.
func IsValidSentiment(s string) bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}
