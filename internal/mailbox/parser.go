package mailbox

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"

	"github.com/mailpilot/backend/internal/models"
)

const snippetLength = 120

// Fallback values for messages with missing envelope fields.
const (
	missingSubject = "No Subject"
	missingSender  = "Unknown Sender"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// parseInboundEmail converts a fetched IMAP message into an InboundEmail.
// Returns ok=false when the message carries neither a Message-ID nor a thread
// reference; such a message cannot be addressed later and is skipped.
func parseInboundEmail(imapMsg *imap.Message, fetchedAt time.Time) (*models.InboundEmail, bool) {
	if imapMsg == nil {
		return nil, false
	}

	email := &models.InboundEmail{
		ID:         strconv.FormatUint(uint64(imapMsg.Uid), 10),
		Subject:    missingSubject,
		From:       missingSender,
		ReceivedAt: fetchedAt,
	}

	if env := imapMsg.Envelope; env != nil {
		email.MessageID = env.MessageId
		email.ThreadID = threadReference(env)

		if len(env.From) > 0 {
			if from := formatAddress(env.From[0]); from != "" {
				email.From = from
			}
		}
		email.To = formatAddressList(env.To)
		email.CC = formatAddressList(env.Cc)
		if env.Subject != "" {
			email.Subject = env.Subject
		}
		if !env.Date.IsZero() {
			email.ReceivedAt = env.Date
		}
	}

	if email.MessageID == "" && email.ThreadID == "" {
		return nil, false
	}

	if bodyReader := imapMsg.GetBody(&imap.BodySectionName{}); bodyReader != nil {
		envelope, err := enmime.ReadEnvelope(bodyReader)
		if err == nil {
			email.Body = resolveBody(envelope)
			email.Headers = collectHeaders(envelope)
		}
		// A body parse failure is not fatal; the envelope metadata is enough
		// to triage on.
	}

	email.Snippet = makeSnippet(email.Body)

	return email, true
}

// threadReference derives a thread id from the envelope. IMAP has no native
// thread id, so the In-Reply-To reference stands in; a fresh message threads
// under its own Message-ID.
func threadReference(env *imap.Envelope) string {
	if env.InReplyTo != "" {
		return env.InReplyTo
	}
	return env.MessageId
}

// resolveBody prefers a genuine text/plain part; if only HTML exists, markup
// is stripped and whitespace flattened. The derived text enmime synthesizes
// for HTML-only messages keeps markdown-ish markers and hard line breaks, so
// it is not used as-is.
func resolveBody(envelope *enmime.Envelope) string {
	if hasTextPart(envelope) {
		if text := strings.TrimSpace(envelope.Text); text != "" {
			return text
		}
	}
	if envelope.HTML != "" {
		return stripHTML(envelope.HTML)
	}
	return strings.TrimSpace(envelope.Text)
}

// hasTextPart reports whether the message carries an actual text/plain part,
// as opposed to enmime's text rendering of an HTML-only message.
func hasTextPart(envelope *enmime.Envelope) bool {
	if envelope.Root == nil {
		return false
	}
	return envelope.Root.DepthMatchFirst(func(part *enmime.Part) bool {
		return part.ContentType == "text/plain"
	}) != nil
}

// stripHTML flattens an HTML body to plain text: tags removed, entities
// decoded, runs of whitespace collapsed to single spaces, trimmed.
func stripHTML(markup string) string {
	text := tagPattern.ReplaceAllString(markup, " ")
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

// collectHeaders flattens the parsed header block into name/value pairs,
// sorted by name for deterministic output.
func collectHeaders(envelope *enmime.Envelope) []models.Header {
	keys := envelope.GetHeaderKeys()
	sort.Strings(keys)

	headers := make([]models.Header, 0, len(keys))
	for _, key := range keys {
		headers = append(headers, models.Header{
			Name:  key,
			Value: envelope.GetHeader(key),
		})
	}
	return headers
}

func makeSnippet(body string) string {
	flat := strings.Join(strings.Fields(body), " ")
	runes := []rune(flat)
	if len(runes) <= snippetLength {
		return flat
	}
	return string(runes[:snippetLength]) + "..."
}

// parseSentSummary converts an envelope-only sent message into a summary for
// response matching. Recipient addresses are reduced to bare lowercase form.
func parseSentSummary(imapMsg *imap.Message, fetchedAt time.Time) models.SentEmailSummary {
	summary := models.SentEmailSummary{
		ID:     strconv.FormatUint(uint64(imapMsg.Uid), 10),
		SentAt: fetchedAt,
	}

	if env := imapMsg.Envelope; env != nil {
		summary.Subject = env.Subject
		if !env.Date.IsZero() {
			summary.SentAt = env.Date
		}
		for _, addr := range env.To {
			if formatted := formatAddress(addr); formatted != "" {
				summary.Recipients = append(summary.Recipients, ExtractAddress(formatted))
			}
		}
	}

	return summary
}

// formatAddress formats an IMAP address as "Name <mailbox@host>" or bare
// "mailbox@host" when no display name is present.
func formatAddress(address *imap.Address) string {
	if address == nil {
		return ""
	}
	if address.MailboxName == "" && address.HostName == "" {
		return ""
	}
	if address.PersonalName != "" {
		return fmt.Sprintf("%s <%s@%s>", address.PersonalName, address.MailboxName, address.HostName)
	}
	return fmt.Sprintf("%s@%s", address.MailboxName, address.HostName)
}

func formatAddressList(addresses []*imap.Address) []string {
	result := make([]string, 0, len(addresses))
	for _, address := range addresses {
		if formatted := formatAddress(address); formatted != "" {
			result = append(result, formatted)
		}
	}
	return result
}

// ExtractAddress reduces a "Name <addr>" form to the bare lowercase address.
// A string with no angle-bracket form is lowercased as-is.
func ExtractAddress(from string) string {
	if start := strings.LastIndex(from, "<"); start != -1 {
		if end := strings.Index(from[start:], ">"); end != -1 {
			return strings.ToLower(strings.TrimSpace(from[start+1 : start+end]))
		}
	}
	return strings.ToLower(strings.TrimSpace(from))
}
