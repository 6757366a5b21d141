package testutil

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend"
	"github.com/emersion/go-imap/backend/memory"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
)

// moveBackend wraps the memory backend so its mailboxes satisfy
// backend.MoveMailbox. go-imap's server always advertises MOVE in
// CAPABILITY, but the memory backend does not implement it, so without
// this wrapper a client-issued MOVE fails with NO.
type moveBackend struct {
	*memory.Backend
}

func (b *moveBackend) Login(connInfo *imap.ConnInfo, username, password string) (backend.User, error) {
	u, err := b.Backend.Login(connInfo, username, password)
	if err != nil {
		return nil, err
	}
	return &moveUser{u}, nil
}

type moveUser struct {
	backend.User
}

func (u *moveUser) GetMailbox(name string) (backend.Mailbox, error) {
	m, err := u.User.GetMailbox(name)
	if err != nil {
		return nil, err
	}
	return &moveMailbox{m}, nil
}

type moveMailbox struct {
	backend.Mailbox
}

func (m *moveMailbox) MoveMessages(uid bool, seqset *imap.SeqSet, dest string) error {
	if err := m.Mailbox.CopyMessages(uid, seqset, dest); err != nil {
		return err
	}
	if err := m.Mailbox.UpdateMessagesFlags(uid, seqset, imap.AddFlags, []string{imap.DeletedFlag}); err != nil {
		return err
	}
	return m.Mailbox.Expunge()
}

// TestIMAPUsername and TestIMAPPassword are the credentials of the default
// user the in-memory IMAP backend creates.
const (
	TestIMAPUsername = "username"
	TestIMAPPassword = "password"
)

// TestIMAPServer is an in-memory IMAP server bound to a random local port.
type TestIMAPServer struct {
	Address string
	Backend *memory.Backend
	server  *server.Server
}

// TestMessage describes one message to seed into a folder.
type TestMessage struct {
	MessageID string
	InReplyTo string
	From      string
	To        string
	Subject   string
	Body      string
	Date      time.Time
	Seen      bool
}

// NewTestIMAPServer starts an in-memory IMAP server and registers its
// shutdown with the test.
func NewTestIMAPServer(t *testing.T) *TestIMAPServer {
	t.Helper()

	be := memory.New()

	s := server.New(&moveBackend{be})
	s.AllowInsecureAuth = true

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	go func() {
		if err := s.Serve(listener); err != nil {
			t.Logf("IMAP server error: %v", err)
		}
	}()

	// Give the server time to start accepting connections.
	time.Sleep(100 * time.Millisecond)

	t.Cleanup(func() {
		_ = s.Close()
	})

	return &TestIMAPServer{
		Address: listener.Addr().String(),
		Backend: be,
		server:  s,
	}
}

// Connect creates a logged-in IMAP client connection to the test server.
func (s *TestIMAPServer) Connect(t *testing.T) (*imapclient.Client, func()) {
	t.Helper()

	client, err := imapclient.Dial(s.Address)
	if err != nil {
		t.Fatalf("Failed to connect to test server: %v", err)
	}

	if err := client.Login(TestIMAPUsername, TestIMAPPassword); err != nil {
		_ = client.Logout()
		t.Fatalf("Failed to login: %v", err)
	}

	return client, func() { _ = client.Logout() }
}

// EnsureFolder creates the folder if it does not exist.
func (s *TestIMAPServer) EnsureFolder(t *testing.T, name string) {
	t.Helper()

	client, cleanup := s.Connect(t)
	defer cleanup()

	if _, err := client.Select(name, false); err != nil {
		if err := client.Create(name); err != nil {
			t.Fatalf("Failed to create folder %s: %v", name, err)
		}
	}
}

// ClearFolder removes every message from the folder. The memory backend
// pre-seeds INBOX with an example message; call this before seeding fixtures.
func (s *TestIMAPServer) ClearFolder(t *testing.T, name string) {
	t.Helper()

	client, cleanup := s.Connect(t)
	defer cleanup()

	status, err := client.Select(name, false)
	if err != nil {
		t.Fatalf("Failed to select folder %s: %v", name, err)
	}

	if status.Messages == 0 {
		return
	}

	seq := new(imap.SeqSet)
	seq.AddRange(1, status.Messages)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := client.Store(seq, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		t.Fatalf("Failed to flag messages deleted: %v", err)
	}
	if err := client.Expunge(nil); err != nil {
		t.Fatalf("Failed to expunge folder %s: %v", name, err)
	}
}

// AddMessage appends a message to the folder and returns its UID.
func (s *TestIMAPServer) AddMessage(t *testing.T, folderName string, msg TestMessage) uint32 {
	t.Helper()

	client, cleanup := s.Connect(t)
	defer cleanup()

	if _, err := client.Select(folderName, false); err != nil {
		t.Fatalf("Failed to select folder: %v", err)
	}

	var b strings.Builder
	b.WriteString("Message-ID: " + msg.MessageID + "\r\n")
	if msg.InReplyTo != "" {
		b.WriteString("In-Reply-To: " + msg.InReplyTo + "\r\n")
	}
	b.WriteString("Date: " + msg.Date.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("From: " + msg.From + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	body := msg.Body
	if body == "" {
		body = "Test message body."
	}
	b.WriteString(body + "\r\n")

	var flags []string
	if msg.Seen {
		flags = append(flags, imap.SeenFlag)
	}

	if err := client.Append(folderName, flags, msg.Date, strings.NewReader(b.String())); err != nil {
		t.Fatalf("Failed to append message: %v", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Message-ID", msg.MessageID)
	uids, err := client.UidSearch(criteria)
	if err != nil {
		t.Fatalf("Failed to search for message: %v", err)
	}

	if len(uids) == 0 {
		t.Fatal("Message not found after append")
	}

	return uids[len(uids)-1]
}

// MessageCount returns the number of messages currently in the folder.
func (s *TestIMAPServer) MessageCount(t *testing.T, folderName string) uint32 {
	t.Helper()

	client, cleanup := s.Connect(t)
	defer cleanup()

	status, err := client.Select(folderName, true)
	if err != nil {
		t.Fatalf("Failed to select folder %s: %v", folderName, err)
	}

	return status.Messages
}
