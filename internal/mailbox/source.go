// Package mailbox adapts the IMAP mailbox provider into the value types the
// triage pipeline works with. The adapter is deliberately narrow so the
// pipeline never sees provider-specific shapes.
package mailbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/mailpilot/backend/internal/models"
)

// ErrMessageNotFound is returned by Trash when the given id does not match
// any message in the inbox.
var ErrMessageNotFound = errors.New("message not found")

// ErrPermissionDenied is returned by Trash when the server refuses the move.
var ErrPermissionDenied = errors.New("permission denied")

// FetchError wraps a provider-call failure during a listing. Any such failure
// aborts the whole fetch; partial per-message failures are not retried.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("mailbox fetch failed (%s): %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Source is the mailbox adapter contract consumed by the triage pipeline.
type Source interface {
	// FetchUnread returns unread inbox messages received within the trailing
	// window, full content resolved, newest capped at the adapter's page size.
	FetchUnread(ctx context.Context, windowHours int) ([]models.InboundEmail, error)

	// FetchSent returns header-only summaries of sent mail within the
	// trailing window. No bodies are fetched.
	FetchSent(ctx context.Context, windowDays int) ([]models.SentEmailSummary, error)

	// Trash soft-deletes a single message by id. It surfaces
	// ErrMessageNotFound and ErrPermissionDenied distinctly.
	Trash(ctx context.Context, id string) error
}
