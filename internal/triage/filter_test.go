package triage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mailpilot/backend/internal/models"
)

func TestIsAlreadyResponded(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sent := []models.SentEmailSummary{
		{ID: "1", Subject: "Project Update", Recipients: []string{"a@x.com"}, SentAt: sentAt},
	}

	tests := []struct {
		name     string
		from     string
		subject  string
		expected bool
	}{
		{"reply prefix on matching subject", "<a@x.com>", "Re: Project Update", true},
		{"forward prefix on matching subject", "a@x.com", "Fwd: Project Update", true},
		{"exact subject", "Ann <a@x.com>", "Project Update", true},
		{"sent subject is substring of inbound", "<a@x.com>", "Project Update - final", true},
		{"inbound subject is substring of sent", "<a@x.com>", "Update", true},
		{"unrelated subject", "<a@x.com>", "Completely unrelated", false},
		{"different sender", "<b@x.com>", "Project Update", false},
		{"sender case-insensitive", "<A@X.COM>", "Project Update", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := models.InboundEmail{From: tt.from, Subject: tt.subject}
			assert.Equal(t, tt.expected, IsAlreadyResponded(email, sent))
		})
	}

	t.Run("no sent summaries", func(t *testing.T) {
		email := models.InboundEmail{From: "<a@x.com>", Subject: "Project Update"}
		assert.False(t, IsAlreadyResponded(email, nil))
	})

	t.Run("only a single prefix is stripped", func(t *testing.T) {
		email := models.InboundEmail{From: "<a@x.com>", Subject: "Re: Re: Something else entirely"}
		assert.False(t, IsAlreadyResponded(email, sent))
	})

	t.Run("empty subjects match only each other", func(t *testing.T) {
		blankSent := []models.SentEmailSummary{
			{Subject: "", Recipients: []string{"a@x.com"}},
		}
		email := models.InboundEmail{From: "<a@x.com>", Subject: "Anything"}
		assert.False(t, IsAlreadyResponded(email, blankSent))

		blank := models.InboundEmail{From: "<a@x.com>", Subject: ""}
		assert.True(t, IsAlreadyResponded(blank, blankSent))
	})
}
