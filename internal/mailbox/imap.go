package mailbox

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/mailpilot/backend/internal/models"
)

const defaultPageSize = 50

// Config holds the connection settings for one mailbox account.
type Config struct {
	Server      string
	Username    string
	Password    string
	UseTLS      bool
	InboxFolder string // defaults to INBOX
	SentFolder  string // defaults to Sent
	TrashFolder string // defaults to Trash
	PageSize    int    // defaults to 50
}

// IMAPSource implements Source against an IMAP server. Each operation dials
// its own connection; per-message fetches within a listing are issued one at
// a time, bounding concurrent load on the provider.
type IMAPSource struct {
	cfg Config
	now func() time.Time
}

// NewIMAPSource creates an adapter for the given account.
func NewIMAPSource(cfg Config) *IMAPSource {
	if cfg.InboxFolder == "" {
		cfg.InboxFolder = "INBOX"
	}
	if cfg.SentFolder == "" {
		cfg.SentFolder = "Sent"
	}
	if cfg.TrashFolder == "" {
		cfg.TrashFolder = "Trash"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &IMAPSource{cfg: cfg, now: time.Now}
}

// FetchUnread returns unread inbox messages received within the trailing
// windowHours, newest capped at the page size, with full content resolved.
func (s *IMAPSource) FetchUnread(ctx context.Context, windowHours int) ([]models.InboundEmail, error) {
	c, err := connect(s.cfg.Server, s.cfg.Username, s.cfg.Password, s.cfg.UseTLS)
	if err != nil {
		return nil, &FetchError{Op: "connect", Err: err}
	}
	defer func() { _ = c.Logout() }()

	if _, err := c.Select(s.cfg.InboxFolder, true); err != nil {
		return nil, &FetchError{Op: "select inbox", Err: err}
	}

	cutoff := s.now().Add(-time.Duration(windowHours) * time.Hour)

	criteria := imap.NewSearchCriteria()
	criteria.Since = cutoff
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, &FetchError{Op: "search unread", Err: err}
	}

	// SEARCH SINCE has date granularity; the exact hour cutoff is applied
	// after parsing, against each message's received time.
	if len(uids) > s.cfg.PageSize {
		uids = uids[len(uids)-s.cfg.PageSize:]
	}

	emails := make([]models.InboundEmail, 0, len(uids))
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{Op: "fetch unread", Err: err}
		}

		msg, err := fetchFullMessage(c, uid)
		if err != nil {
			return nil, &FetchError{Op: "fetch message", Err: err}
		}

		email, ok := parseInboundEmail(msg, s.now())
		if !ok {
			// Unaddressable later: no message id and no thread reference.
			log.Printf("Mailbox: skipping unaddressable message UID %d", uid)
			continue
		}

		if email.ReceivedAt.Before(cutoff) {
			continue
		}

		emails = append(emails, *email)
	}

	return emails, nil
}

// FetchSent returns header-only summaries of sent mail within the trailing
// windowDays. Only envelopes are fetched since response matching needs just
// subject, recipients and date.
func (s *IMAPSource) FetchSent(ctx context.Context, windowDays int) ([]models.SentEmailSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Op: "fetch sent", Err: err}
	}

	c, err := connect(s.cfg.Server, s.cfg.Username, s.cfg.Password, s.cfg.UseTLS)
	if err != nil {
		return nil, &FetchError{Op: "connect", Err: err}
	}
	defer func() { _ = c.Logout() }()

	if _, err := c.Select(s.cfg.SentFolder, true); err != nil {
		return nil, &FetchError{Op: "select sent", Err: err}
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = s.now().AddDate(0, 0, -windowDays)

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, &FetchError{Op: "search sent", Err: err}
	}
	if len(uids) == 0 {
		return []models.SentEmailSummary{}, nil
	}

	messages, err := fetchEnvelopes(c, uids)
	if err != nil {
		return nil, &FetchError{Op: "fetch sent envelopes", Err: err}
	}

	summaries := make([]models.SentEmailSummary, 0, len(messages))
	for _, msg := range messages {
		summaries = append(summaries, parseSentSummary(msg, s.now()))
	}

	return summaries, nil
}

// Trash moves a single message out of the inbox into the trash folder. The id
// is the message's inbox UID; a missing id surfaces ErrMessageNotFound, a
// server refusal ErrPermissionDenied.
func (s *IMAPSource) Trash(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("trash aborted: %w", err)
	}

	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return ErrMessageNotFound
	}

	c, err := connect(s.cfg.Server, s.cfg.Username, s.cfg.Password, s.cfg.UseTLS)
	if err != nil {
		return &FetchError{Op: "connect", Err: err}
	}
	defer func() { _ = c.Logout() }()

	if _, err := c.Select(s.cfg.InboxFolder, false); err != nil {
		return &FetchError{Op: "select inbox", Err: err}
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uint32(uid))

	// Confirm the UID still exists; MOVE on a gone message would silently
	// succeed on some servers.
	criteria := imap.NewSearchCriteria()
	criteria.Uid = seqSet
	found, err := c.UidSearch(criteria)
	if err != nil {
		return &FetchError{Op: "search by uid", Err: err}
	}
	if len(found) == 0 {
		return ErrMessageNotFound
	}

	if err := s.moveToTrash(c, seqSet); err != nil {
		if isPermissionError(err) {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return &FetchError{Op: "move to trash", Err: err}
	}

	return nil
}

// moveToTrash relocates the messages in seqSet to the trash folder. Servers
// advertising MOVE (RFC 6851) get the atomic form; everything else gets the
// classic copy, flag \Deleted, expunge sequence.
func (s *IMAPSource) moveToTrash(c *client.Client, seqSet *imap.SeqSet) error {
	if ok, err := c.Support("MOVE"); err == nil && ok {
		return c.UidMove(seqSet, s.cfg.TrashFolder)
	}

	if err := c.UidCopy(seqSet, s.cfg.TrashFolder); err != nil {
		return err
	}

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.UidStore(seqSet, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return err
	}

	return c.Expunge(nil)
}

// isPermissionError detects server refusals from the NO response text. IMAP
// has no structured error codes at this layer, so string matching is the
// only option (same approach the connection-retry path takes).
func isPermissionError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission") ||
		strings.Contains(msg, "not allowed") ||
		strings.Contains(msg, "read-only")
}

// fetchFullMessage fetches envelope, flags, UID and the full body for one UID.
func fetchFullMessage(c *client.Client, uid uint32) (*imap.Message, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	msg := <-messages
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %d: %w", uid, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("server did not return message %d", uid)
	}

	return msg, nil
}

// fetchEnvelopes fetches envelope metadata only for the given UIDs.
func fetchEnvelopes(c *client.Client, uids []uint32) ([]*imap.Message, error) {
	seqSet := new(imap.SeqSet)
	for _, uid := range uids {
		seqSet.AddNum(uid)
	}

	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchUid,
	}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)

	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	var result []*imap.Message
	for msg := range messages {
		result = append(result, msg)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch envelopes: %w", err)
	}

	return result, nil
}

var _ Source = (*IMAPSource)(nil)
