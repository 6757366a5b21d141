// Package triage implements the email triage pipeline: fetch unread mail,
// dedupe against sent mail, batch-classify, cache both stages, rank and
// render.
package triage

import (
	"strings"

	"github.com/mailpilot/backend/internal/mailbox"
	"github.com/mailpilot/backend/internal/models"
)

// IsAlreadyResponded reports whether the inbound email has already been
// answered: some sent summary lists the sender among its recipients and its
// normalized subject overlaps the inbound one.
//
// The subject comparison is substring-in-either-direction on purpose, to
// absorb subject-line mutations by mail clients. That favors false positives
// (marking as responded) over false negatives; short generic subjects like
// "Update" can match "Project Update".
func IsAlreadyResponded(email models.InboundEmail, sent []models.SentEmailSummary) bool {
	sender := mailbox.ExtractAddress(email.From)
	if sender == "" {
		return false
	}

	subject := normalizeSubject(email.Subject)

	for _, summary := range sent {
		if !recipientsInclude(summary.Recipients, sender) {
			continue
		}

		sentSubject := normalizeSubject(summary.Subject)
		if subjectsOverlap(subject, sentSubject) {
			return true
		}
	}

	return false
}

// normalizeSubject strips a single leading Re:/Fwd: prefix (case-insensitive)
// and lowercases.
func normalizeSubject(subject string) string {
	s := strings.TrimSpace(strings.ToLower(subject))
	for _, prefix := range []string{"re:", "fwd:"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
			break
		}
	}
	return s
}

func recipientsInclude(recipients []string, address string) bool {
	for _, recipient := range recipients {
		if recipient == address {
			return true
		}
	}
	return false
}

func subjectsOverlap(a, b string) bool {
	if a == "" || b == "" {
		return a == b
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}
