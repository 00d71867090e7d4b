package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTicket(t *testing.T) {
	now := time.Now().UTC()
	valid := &Ticket{
		ID:     "t-1",
		Name:   "Alice",
		Email:  "alice@example.com",
		Status: TicketStatusOpen,
		Messages: []TicketMessage{
			{Sender: "customer", Message: "Something broke", Time: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, ValidateTicket(valid))

	tests := []struct {
		name   string
		mutate func(tk *Ticket)
	}{
		{"missing ID", func(tk *Ticket) { tk.ID = "" }},
		{"missing name", func(tk *Ticket) { tk.Name = "" }},
		{"missing email", func(tk *Ticket) { tk.Email = "" }},
		{"no messages", func(tk *Ticket) { tk.Messages = nil }},
		{"unknown status", func(tk *Ticket) { tk.Status = "PENDING" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := *valid
			tt.mutate(&tk)
			assert.Error(t, ValidateTicket(&tk))
		})
	}

	assert.Error(t, ValidateTicket(nil))
}

func TestFallbackAnalysis(t *testing.T) {
	a := FallbackAnalysis()
	assert.Equal(t, CategoryOther, a.Category)
	assert.Equal(t, SentimentNeutral, a.Sentiment)
	assert.Equal(t, 5, a.UrgencyScore)
	assert.NotEmpty(t, a.Summary)
}

func TestIsValidCategory(t *testing.T) {
	for _, c := range []string{
		CategoryTechnical, CategoryBilling, CategoryAccount,
		CategoryGeneralInquiry, CategoryFeatureRequest, CategoryOther,
	} {
		assert.True(t, IsValidCategory(c), c)
	}
	assert.False(t, IsValidCategory("Spam"))
	assert.False(t, IsValidCategory(""))
}

func TestIsValidSentiment(t *testing.T) {
	for _, s := range []string{SentimentPositive, SentimentNeutral, SentimentNegative} {
		assert.True(t, IsValidSentiment(s), s)
	}
	assert.False(t, IsValidSentiment("Angry"))
}
