package triage

import (
	"fmt"
	"strings"
	"time"

	"github.com/mailpilot/backend/internal/models"
)

const (
	reportPreviewLength = 300
	reportBanner        = "========================================"
	reportDivider       = "----------------------------------------"
)

// renderReport produces the human-readable plain-text report over the ranked
// needs-response entries.
func renderReport(entries []models.TriageReportEntry, generatedAt time.Time) string {
	var b strings.Builder

	b.WriteString(reportBanner + "\n")
	b.WriteString("EMAIL TRIAGE REPORT\n")
	b.WriteString("Generated: " + generatedAt.Format(time.RFC1123) + "\n")
	b.WriteString(reportBanner + "\n\n")

	if len(entries) == 0 {
		b.WriteString("No emails requiring immediate response.\n")
		return b.String()
	}

	for _, entry := range entries {
		b.WriteString("Subject: " + entry.Email.Subject + "\n")
		b.WriteString("From: " + entry.Email.From + "\n")
		b.WriteString("Received: " + entry.Email.ReceivedAt.Format(time.RFC1123) + "\n")
		b.WriteString("Importance: " + strings.ToUpper(entry.Verdict.Importance) + "\n")
		b.WriteString("Time-sensitive: " + yesNo(entry.Verdict.TimeSensitive) + "\n")
		b.WriteString("Topics: " + strings.Join(entry.Verdict.Topics, ", ") + "\n")
		b.WriteString("Reason: " + entry.Verdict.Reason + "\n")
		if entry.AlreadyResponded {
			b.WriteString("ALREADY RESPONDED\n")
		}
		b.WriteString("Preview: " + preview(entry.Email.Body) + "\n")
		b.WriteString(reportDivider + "\n")
	}

	return b.String()
}

func preview(body string) string {
	flat := strings.Join(strings.Fields(body), " ")
	runes := []rune(flat)
	if len(runes) <= reportPreviewLength {
		return flat
	}
	return string(runes[:reportPreviewLength]) + "..."
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// Summary is a one-line account of a triage run, used by the CLI.
func Summary(output *models.TriageOutput) string {
	return fmt.Sprintf("%d emails analyzed, %d need a response",
		output.NumEmails, len(output.NeedsResponseEmails))
}
