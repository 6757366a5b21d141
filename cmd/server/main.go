package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailpilot/backend/internal/api"
	"github.com/mailpilot/backend/internal/auth"
	"github.com/mailpilot/backend/internal/cache"
	"github.com/mailpilot/backend/internal/config"
	"github.com/mailpilot/backend/internal/crypto"
	"github.com/mailpilot/backend/internal/db"
	"github.com/mailpilot/backend/internal/mailbox"
	"github.com/mailpilot/backend/internal/mailer"
	"github.com/mailpilot/backend/internal/triage"
	ws "github.com/mailpilot/backend/internal/websocket"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	log.Printf("Successfully connected to database")

	server := NewServer(cfg, pool)

	address := ":" + cfg.Port
	log.Printf("Mailpilot backend server starting on %s (environment: %s)", address, cfg.Environment)

	if err := http.ListenAndServe(address, server); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// NewServer creates and returns a new HTTP handler for the Mailpilot API server.
func NewServer(cfg *config.Config, dbPool *pgxpool.Pool) http.Handler {
	source := mailbox.NewIMAPSource(mailbox.Config{
		Server:   cfg.IMAPServer,
		Username: cfg.IMAPUsername,
		Password: cfg.IMAPPassword,
		UseTLS:   cfg.IMAPUseTLS,
	})

	// The Gemini key may legitimately be absent at startup; classification
	// fails at trigger time instead.
	classifier := triage.NewGeminiClassifier(cfg.GeminiAPIKey, cfg.GeminiModel)

	store := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, 0)
	if err := store.Ping(context.Background()); err != nil {
		log.Printf("Warning: Redis unreachable at %s, cache reads will degrade to fresh fetches: %v", cfg.RedisAddr, err)
	}

	triageService := triage.NewService(source, classifier, store, cfg.CacheTTL)

	wsHub := ws.NewHub(10)

	triageHandler := api.NewTriageHandler(triageService, wsHub)
	contactsHandler := api.NewContactsHandler(dbPool)
	notesHandler := api.NewNotesHandler(dbPool)
	wsHandler := api.NewWebSocketHandler(wsHub)

	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)
	mux.HandleFunc("/healthz", handleHealth)

	mux.Handle("/analyze-emails", auth.RequireAuth(requireMethod(http.MethodGet, triageHandler.AnalyzeEmails)))
	mux.Handle("/analyze-emails/view", auth.RequireAuth(requireMethod(http.MethodGet, triageHandler.AnalyzeEmailsView)))
	mux.Handle("/delete/", auth.RequireAuth(requireMethod(http.MethodPost, triageHandler.DeleteEmail)))

	mux.Handle("/api/v1/contacts", auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			contactsHandler.ListContacts(w, r)
		case http.MethodPost:
			contactsHandler.SaveContact(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
	mux.Handle("/api/v1/contacts/", auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			contactsHandler.GetContact(w, r)
		case http.MethodDelete:
			contactsHandler.DeleteContact(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	mux.Handle("/api/v1/notes", auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			notesHandler.ListNotes(w, r)
		case http.MethodPost:
			notesHandler.CreateNote(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
	mux.Handle("/api/v1/notes/", auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			notesHandler.GetNote(w, r)
		case http.MethodPut:
			notesHandler.UpdateNote(w, r)
		case http.MethodDelete:
			notesHandler.DeleteNote(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	// Outbound sending is optional; the route is only exposed when SMTP is configured.
	if cfg.SMTPServer != "" {
		smtpMailer, err := mailer.NewMailer(mailer.Config{
			Server:      cfg.SMTPServer,
			Username:    cfg.SMTPUsername,
			Password:    cfg.SMTPPassword,
			FromAddress: cfg.AccountEmail,
			UseStartTLS: true,
		})
		if err != nil {
			log.Fatalf("Failed to create mailer: %v", err)
		}
		sendHandler := api.NewSendHandler(smtpMailer)
		mux.Handle("/api/v1/emails/send", auth.RequireAuth(requireMethod(http.MethodPost, sendHandler.SendEmail)))
	} else {
		log.Printf("SMTP not configured, outbound sending disabled")
	}

	// The webhook authenticates with its HMAC signature, not a bearer token,
	// and is only exposed when a shared secret is configured.
	if cfg.WebhookSecret != "" {
		signer, err := crypto.NewSigner(cfg.WebhookSecret)
		if err != nil {
			log.Fatalf("Failed to create webhook signer: %v", err)
		}
		webhookHandler := api.NewWebhookHandler(dbPool, signer)
		mux.Handle("/webhooks/mailgun", requireMethod(http.MethodPost, webhookHandler.HandleMailgun))
	} else {
		log.Printf("Webhook secret not configured, webhook ingestion disabled")
	}

	// WebSocket handler handles its own authentication via query parameter
	// (since browsers can't set headers on WebSocket connections).
	mux.Handle("/api/v1/ws", http.HandlerFunc(wsHandler.Handle))

	return mux
}

func requireMethod(method string, handler http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	})
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Mailpilot API is running")
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "ok")
}
