package triage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/mailpilot/backend/internal/cache"
	"github.com/mailpilot/backend/internal/mailbox"
	"github.com/mailpilot/backend/internal/models"
)

// Cache keys for the two independent slots. Values are the JSON-serialized
// arrays; the TTL is applied on every write.
const (
	emailCacheKey   = "triage:emails"
	verdictCacheKey = "triage:verdicts"
)

// DefaultCacheTTL is applied to both cache slots unless configured otherwise.
const DefaultCacheTTL = 30 * time.Minute

const (
	defaultUnreadWindowHours = 24
	defaultSentWindowDays    = 7
)

// Service runs the triage pipeline: fetch (or reuse cached) unread mail,
// classify (or reuse cached verdicts), reconcile, rank and render.
type Service struct {
	source     mailbox.Source
	classifier Classifier
	store      cache.Store

	ttl               time.Duration
	unreadWindowHours int
	sentWindowDays    int
	now               func() time.Time
}

// NewService creates a triage service. A non-positive ttl falls back to
// DefaultCacheTTL.
func NewService(source mailbox.Source, classifier Classifier, store cache.Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		source:            source,
		classifier:        classifier,
		store:             store,
		ttl:               ttl,
		unreadWindowHours: defaultUnreadWindowHours,
		sentWindowDays:    defaultSentWindowDays,
		now:               time.Now,
	}
}

// Triage executes one triage request. forceRefresh bypasses both cache slots.
//
// The verdict cache is trusted only when the email set itself came from
// cache: a freshly fetched email set can never be paired with a stale verdict
// cache, even one that has not expired yet.
func (s *Service) Triage(ctx context.Context, forceRefresh bool) (*models.TriageOutput, error) {
	emails, emailsFromCache, err := s.loadEmails(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}

	analysisMustBeFresh := forceRefresh || !emailsFromCache

	verdicts, verdictsFromCache := []models.ClassificationVerdict(nil), false
	if !analysisMustBeFresh {
		verdicts, verdictsFromCache = s.cachedVerdicts(ctx)
	}
	if !verdictsFromCache {
		verdicts, err = s.classifier.Classify(ctx, emails)
		if err != nil {
			return nil, err
		}
		s.putCached(ctx, verdictCacheKey, verdicts)
	}

	needsResponse, analyzed, err := s.reconcile(ctx, emails, verdicts)
	if err != nil {
		return nil, err
	}

	rank(needsResponse)

	generatedAt := s.now()
	return &models.TriageOutput{
		LastUpdated:         generatedAt,
		NeedsResponseEmails: needsResponse,
		Report:              renderReport(needsResponse, generatedAt),
		AnalyzedEmails:      analyzed,
		NumEmails:           len(emails),
	}, nil
}

// loadEmails returns the working email set and whether it came from cache.
func (s *Service) loadEmails(ctx context.Context, forceRefresh bool) ([]models.InboundEmail, bool, error) {
	if !forceRefresh {
		raw, err := s.store.Get(ctx, emailCacheKey)
		if err == nil {
			var emails []models.InboundEmail
			if jsonErr := json.Unmarshal(raw, &emails); jsonErr == nil {
				return emails, true, nil
			}
			log.Printf("Triage: Discarding undecodable email cache entry")
		} else if !errors.Is(err, cache.ErrMiss) {
			// Cache failures are never fatal; proceed as a miss.
			log.Printf("Triage: Email cache read failed: %v", err)
		}
	}

	emails, err := s.source.FetchUnread(ctx, s.unreadWindowHours)
	if err != nil {
		return nil, false, err
	}

	s.putCached(ctx, emailCacheKey, emails)
	return emails, false, nil
}

// cachedVerdicts reads the verdict cache slot; ok=false on any miss or error.
func (s *Service) cachedVerdicts(ctx context.Context) ([]models.ClassificationVerdict, bool) {
	raw, err := s.store.Get(ctx, verdictCacheKey)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("Triage: Verdict cache read failed: %v", err)
		}
		return nil, false
	}

	var verdicts []models.ClassificationVerdict
	if err := json.Unmarshal(raw, &verdicts); err != nil {
		log.Printf("Triage: Discarding undecodable verdict cache entry")
		return nil, false
	}

	return verdicts, true
}

// putCached serializes and writes a cache slot. Failures are logged only.
func (s *Service) putCached(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("Triage: Failed to encode cache value for %s: %v", key, err)
		return
	}
	if err := s.store.Put(ctx, key, raw, s.ttl); err != nil {
		log.Printf("Triage: Cache write for %s failed: %v", key, err)
	}
}

// orphanLabel marks display rows for verdicts whose email id matched nothing
// in the fetched set.
const orphanLabel = "Unknown (AI Mismatch)"

// reconcile matches verdicts back to their emails by id. Matched verdicts
// become display rows and, when a response is needed, full ranked entries
// with the already-responded flag computed against freshly fetched sent mail.
// Orphan verdicts are flagged, kept in the display list and excluded from the
// ranking.
func (s *Service) reconcile(ctx context.Context, emails []models.InboundEmail, verdicts []models.ClassificationVerdict) ([]models.TriageReportEntry, []models.AnalyzedEmail, error) {
	emailByID := make(map[string]models.InboundEmail, len(emails))
	for _, email := range emails {
		emailByID[email.ID] = email
	}

	// Sent mail is looked up fresh on every run: response activity changes
	// independently of the cache windows.
	var sent []models.SentEmailSummary
	sentFetched := false

	needsResponse := make([]models.TriageReportEntry, 0)
	analyzed := make([]models.AnalyzedEmail, 0, len(verdicts))

	for _, verdict := range verdicts {
		email, ok := emailByID[verdict.EmailID]
		if !ok {
			log.Printf("Triage: Verdict for unknown email id %s", verdict.EmailID)
			analyzed = append(analyzed, models.AnalyzedEmail{
				EmailID:       verdict.EmailID,
				From:          orphanLabel,
				Subject:       orphanLabel,
				Importance:    verdict.Importance,
				NeedsResponse: verdict.NeedsResponse,
				TimeSensitive: verdict.TimeSensitive,
				Topics:        verdict.Topics,
				Reason:        verdict.Reason,
				Orphan:        true,
			})
			continue
		}

		analyzed = append(analyzed, models.AnalyzedEmail{
			EmailID:       verdict.EmailID,
			From:          email.From,
			Subject:       email.Subject,
			Importance:    verdict.Importance,
			NeedsResponse: verdict.NeedsResponse,
			TimeSensitive: verdict.TimeSensitive,
			Topics:        verdict.Topics,
			Reason:        verdict.Reason,
		})

		if !verdict.NeedsResponse {
			continue
		}

		if !sentFetched {
			var err error
			sent, err = s.source.FetchSent(ctx, s.sentWindowDays)
			if err != nil {
				return nil, nil, err
			}
			sentFetched = true
		}

		needsResponse = append(needsResponse, models.TriageReportEntry{
			Email:            email,
			Verdict:          verdict,
			AlreadyResponded: IsAlreadyResponded(email, sent),
		})
	}

	return needsResponse, analyzed, nil
}

// importanceRank orders high before medium before low.
func importanceRank(importance string) int {
	switch importance {
	case models.ImportanceHigh:
		return 0
	case models.ImportanceMedium:
		return 1
	default:
		return 2
	}
}

// rank sorts the needs-response list: not-yet-responded first, then
// time-sensitive first, then by importance severity. Ties keep input order.
func rank(entries []models.TriageReportEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.AlreadyResponded != b.AlreadyResponded {
			return !a.AlreadyResponded
		}
		if a.Verdict.TimeSensitive != b.Verdict.TimeSensitive {
			return a.Verdict.TimeSensitive
		}
		return importanceRank(a.Verdict.Importance) < importanceRank(b.Verdict.Importance)
	})
}

// Delete trashes a message and prunes it from both cache slots so a
// subsequent cache-hit triage does not resurrect it. A cache prune failure
// after a successful trash never fails the delete; it is only logged.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.source.Trash(ctx, id); err != nil {
		return err
	}

	s.pruneEmailCache(ctx, id)
	s.pruneVerdictCache(ctx, id)
	return nil
}

func (s *Service) pruneEmailCache(ctx context.Context, id string) {
	raw, err := s.store.Get(ctx, emailCacheKey)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("Triage: Email cache read during prune failed: %v", err)
		}
		return
	}

	var emails []models.InboundEmail
	if err := json.Unmarshal(raw, &emails); err != nil {
		log.Printf("Triage: Discarding undecodable email cache entry during prune")
		return
	}

	kept := emails[:0]
	for _, email := range emails {
		if email.ID != id {
			kept = append(kept, email)
		}
	}
	if len(kept) == len(emails) {
		return
	}

	s.putCached(ctx, emailCacheKey, kept)
}

func (s *Service) pruneVerdictCache(ctx context.Context, id string) {
	raw, err := s.store.Get(ctx, verdictCacheKey)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("Triage: Verdict cache read during prune failed: %v", err)
		}
		return
	}

	var verdicts []models.ClassificationVerdict
	if err := json.Unmarshal(raw, &verdicts); err != nil {
		log.Printf("Triage: Discarding undecodable verdict cache entry during prune")
		return
	}

	kept := verdicts[:0]
	for _, verdict := range verdicts {
		if verdict.EmailID != id {
			kept = append(kept, verdict)
		}
	}
	if len(kept) == len(verdicts) {
		return
	}

	s.putCached(ctx, verdictCacheKey, kept)
}
