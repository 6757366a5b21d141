package models

import "time"

// Importance levels a verdict may carry. Anything else coming back from the
// classifier is a schema violation.
const (
	ImportanceHigh   = "high"
	ImportanceMedium = "medium"
	ImportanceLow    = "low"
)

// Header is a single message header as a name/value pair.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// InboundEmail is an unread message fetched from the mailbox. It is immutable
// once fetched; its lifetime is bounded by one triage request or a cache
// entry's TTL.
type InboundEmail struct {
	ID         string    `json:"id"`
	MessageID  string    `json:"message_id"`
	ThreadID   string    `json:"thread_id"`
	From       string    `json:"from"`
	To         []string  `json:"to"`
	CC         []string  `json:"cc"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`
	Body       string    `json:"body"`
	Snippet    string    `json:"snippet"`
	Headers    []Header  `json:"headers,omitempty"`
}

// SentEmailSummary is header-only metadata of a sent message, used for
// response matching. Recipients are lowercased bare addresses.
type SentEmailSummary struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Recipients []string  `json:"recipients"`
	SentAt     time.Time `json:"sent_at"`
}

// ClassificationVerdict is the per-email result of a batch classification
// call. EmailID must reference an InboundEmail fetched in the same batch; a
// verdict without a matching email is an orphan and is surfaced, not dropped.
type ClassificationVerdict struct {
	EmailID       string   `json:"emailId"`
	Importance    string   `json:"importance"`
	Reason        string   `json:"reason"`
	NeedsResponse bool     `json:"needsResponse"`
	TimeSensitive bool     `json:"timeSensitive"`
	Topics        []string `json:"topics"`
}

// ValidImportance reports whether the verdict's importance is one of the
// three allowed values.
func (v *ClassificationVerdict) ValidImportance() bool {
	switch v.Importance {
	case ImportanceHigh, ImportanceMedium, ImportanceLow:
		return true
	}
	return false
}

// TriageReportEntry pairs an inbound email with its verdict and the derived
// already-responded flag. Only entries with NeedsResponse=true make it into
// the ranked needs-response list.
type TriageReportEntry struct {
	Email            InboundEmail          `json:"email"`
	Verdict          ClassificationVerdict `json:"verdict"`
	AlreadyResponded bool                  `json:"already_responded"`
}

// AnalyzedEmail is a flat display row for every verdict, including orphans.
type AnalyzedEmail struct {
	EmailID       string   `json:"email_id"`
	From          string   `json:"from"`
	Subject       string   `json:"subject"`
	Importance    string   `json:"importance"`
	NeedsResponse bool     `json:"needs_response"`
	TimeSensitive bool     `json:"time_sensitive"`
	Topics        []string `json:"topics"`
	Reason        string   `json:"reason"`
	Orphan        bool     `json:"orphan,omitempty"`
}

// TriageOutput is the machine-readable result of one triage run.
type TriageOutput struct {
	LastUpdated         time.Time           `json:"last_updated"`
	NeedsResponseEmails []TriageReportEntry `json:"needs_response_emails"`
	Report              string              `json:"report"`
	AnalyzedEmails      []AnalyzedEmail     `json:"analyzed_emails"`
	NumEmails           int                 `json:"num_emails"`
}
