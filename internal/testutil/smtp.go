package testutil

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// StoredMessage is one message accepted by the in-memory SMTP backend.
type StoredMessage struct {
	From string
	To   []string
	Data []byte
}

// MemoryBackend is a simple in-memory SMTP backend for testing. It accepts
// any credentials and stores every delivered message.
type MemoryBackend struct {
	mu       sync.Mutex
	messages []*StoredMessage
}

// NewMemoryBackend creates a new in-memory SMTP backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		messages: make([]*StoredMessage, 0),
	}
}

// NewSession creates a new SMTP session.
func (b *MemoryBackend) NewSession(*smtp.Conn) (smtp.Session, error) {
	return &memorySession{backend: b}, nil
}

// GetMessages returns all received messages.
func (b *MemoryBackend) GetMessages() []*StoredMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messages
}

type memorySession struct {
	backend *MemoryBackend
	from    string
	to      []string
}

func (s *memorySession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *memorySession) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		return nil
	}), nil
}

func (s *memorySession) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *memorySession) Rcpt(to string, opts *smtp.RcptOptions) error {
	s.to = append(s.to, to)
	return nil
}

func (s *memorySession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	s.backend.messages = append(s.backend.messages, &StoredMessage{
		From: s.from,
		To:   s.to,
		Data: data,
	})

	return nil
}

func (s *memorySession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *memorySession) Logout() error {
	return nil
}

// TestSMTPServer is an in-memory SMTP server bound to a random local port.
type TestSMTPServer struct {
	Address string
	Backend *MemoryBackend
	server  *smtp.Server
}

// NewTestSMTPServer starts an in-memory SMTP server and registers its
// shutdown with the test.
func NewTestSMTPServer(t *testing.T) *TestSMTPServer {
	t.Helper()

	be := NewMemoryBackend()

	s := smtp.NewServer(be)
	s.AllowInsecureAuth = true
	s.Domain = "localhost"

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	go func() {
		if err := s.Serve(listener); err != nil {
			t.Logf("SMTP server error: %v", err)
		}
	}()

	// Give the server time to start accepting connections.
	time.Sleep(100 * time.Millisecond)

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("Failed to close SMTP server: %v", err)
		}
	})

	return &TestSMTPServer{
		Address: listener.Addr().String(),
		Backend: be,
		server:  s,
	}
}

// GetMessages returns all messages received by the server.
func (s *TestSMTPServer) GetMessages() []*StoredMessage {
	return s.Backend.GetMessages()
}
