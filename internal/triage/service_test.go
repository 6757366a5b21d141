package triage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailpilot/backend/internal/cache"
	"github.com/mailpilot/backend/internal/models"
)

// fakeSource plays back canned mailbox data and counts calls.
type fakeSource struct {
	unread      []models.InboundEmail
	sent        []models.SentEmailSummary
	unreadErr   error
	sentErr     error
	trashErr    error
	unreadCalls int
	sentCalls   int
	trashed     []string
}

func (f *fakeSource) FetchUnread(context.Context, int) ([]models.InboundEmail, error) {
	f.unreadCalls++
	return f.unread, f.unreadErr
}

func (f *fakeSource) FetchSent(context.Context, int) ([]models.SentEmailSummary, error) {
	f.sentCalls++
	return f.sent, f.sentErr
}

func (f *fakeSource) Trash(_ context.Context, id string) error {
	if f.trashErr != nil {
		return f.trashErr
	}
	f.trashed = append(f.trashed, id)
	return nil
}

// fakeClassifier returns canned verdicts and counts calls.
type fakeClassifier struct {
	verdicts []models.ClassificationVerdict
	err      error
	calls    int
}

func (f *fakeClassifier) Classify(context.Context, []models.InboundEmail) ([]models.ClassificationVerdict, error) {
	f.calls++
	return f.verdicts, f.err
}

func testEmail(id, from, subject string) models.InboundEmail {
	return models.InboundEmail{
		ID:         id,
		MessageID:  "<" + id + "@example.com>",
		From:       from,
		Subject:    subject,
		ReceivedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		Body:       "body of " + id,
	}
}

func testVerdict(emailID string, needsResponse bool) models.ClassificationVerdict {
	return models.ClassificationVerdict{
		EmailID:       emailID,
		Importance:    models.ImportanceMedium,
		Reason:        "test",
		NeedsResponse: needsResponse,
		Topics:        []string{"a", "b"},
	}
}

func seedCache(t *testing.T, store cache.Store, key string, value any) {
	t.Helper()
	raw, err := json.Marshal(value)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), key, raw, time.Minute))
}

func TestTriage(t *testing.T) {
	ctx := context.Background()

	t.Run("cold caches fetch and classify fresh, then populate both slots", func(t *testing.T) {
		source := &fakeSource{unread: []models.InboundEmail{testEmail("1", "a@x.com", "Hi")}}
		classifier := &fakeClassifier{verdicts: []models.ClassificationVerdict{testVerdict("1", false)}}
		store := cache.NewMemoryStore()
		svc := NewService(source, classifier, store, 0)

		output, err := svc.Triage(ctx, false)
		require.NoError(t, err)

		assert.Equal(t, 1, source.unreadCalls)
		assert.Equal(t, 1, classifier.calls)
		assert.Equal(t, 1, output.NumEmails)

		_, err = store.Get(ctx, emailCacheKey)
		assert.NoError(t, err)
		_, err = store.Get(ctx, verdictCacheKey)
		assert.NoError(t, err)
	})

	t.Run("email cache hit consults the verdict cache before classifying", func(t *testing.T) {
		source := &fakeSource{}
		classifier := &fakeClassifier{}
		store := cache.NewMemoryStore()
		seedCache(t, store, emailCacheKey, []models.InboundEmail{testEmail("1", "a@x.com", "Hi")})
		seedCache(t, store, verdictCacheKey, []models.ClassificationVerdict{testVerdict("1", false)})
		svc := NewService(source, classifier, store, 0)

		output, err := svc.Triage(ctx, false)
		require.NoError(t, err)

		assert.Zero(t, source.unreadCalls)
		assert.Zero(t, classifier.calls)
		assert.Len(t, output.AnalyzedEmails, 1)
	})

	t.Run("email cache miss bypasses an unexpired verdict cache", func(t *testing.T) {
		source := &fakeSource{unread: []models.InboundEmail{testEmail("1", "a@x.com", "Hi")}}
		classifier := &fakeClassifier{verdicts: []models.ClassificationVerdict{testVerdict("1", false)}}
		store := cache.NewMemoryStore()
		// Verdict slot populated, email slot empty: coherence rule forbids
		// pairing fresh emails with these verdicts.
		seedCache(t, store, verdictCacheKey, []models.ClassificationVerdict{testVerdict("stale", false)})
		svc := NewService(source, classifier, store, 0)

		output, err := svc.Triage(ctx, false)
		require.NoError(t, err)

		assert.Equal(t, 1, source.unreadCalls)
		assert.Equal(t, 1, classifier.calls)
		require.Len(t, output.AnalyzedEmails, 1)
		assert.Equal(t, "1", output.AnalyzedEmails[0].EmailID)
	})

	t.Run("forceRefresh bypasses both caches", func(t *testing.T) {
		source := &fakeSource{unread: []models.InboundEmail{testEmail("1", "a@x.com", "Hi")}}
		classifier := &fakeClassifier{verdicts: []models.ClassificationVerdict{testVerdict("1", false)}}
		store := cache.NewMemoryStore()
		seedCache(t, store, emailCacheKey, []models.InboundEmail{testEmail("old", "b@x.com", "Old")})
		seedCache(t, store, verdictCacheKey, []models.ClassificationVerdict{testVerdict("old", false)})
		svc := NewService(source, classifier, store, 0)

		_, err := svc.Triage(ctx, true)
		require.NoError(t, err)

		assert.Equal(t, 1, source.unreadCalls)
		assert.Equal(t, 1, classifier.calls)
	})

	t.Run("fetch failure aborts the run", func(t *testing.T) {
		source := &fakeSource{unreadErr: errors.New("imap down")}
		svc := NewService(source, &fakeClassifier{}, cache.NewMemoryStore(), 0)

		_, err := svc.Triage(ctx, false)
		assert.Error(t, err)
	})

	t.Run("classification failure aborts the run", func(t *testing.T) {
		source := &fakeSource{unread: []models.InboundEmail{testEmail("1", "a@x.com", "Hi")}}
		classifier := &fakeClassifier{err: &ClassificationError{Err: errors.New("bad schema")}}
		svc := NewService(source, classifier, cache.NewMemoryStore(), 0)

		_, err := svc.Triage(ctx, false)
		var classErr *ClassificationError
		assert.True(t, errors.As(err, &classErr))
	})

	t.Run("cache store failures degrade to fresh fetches", func(t *testing.T) {
		source := &fakeSource{unread: []models.InboundEmail{testEmail("1", "a@x.com", "Hi")}}
		classifier := &fakeClassifier{verdicts: []models.ClassificationVerdict{testVerdict("1", false)}}
		svc := NewService(source, classifier, &failingStore{}, 0)

		output, err := svc.Triage(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, output.NumEmails)
	})

	t.Run("orphan verdict is flagged and excluded from the ranking", func(t *testing.T) {
		source := &fakeSource{unread: []models.InboundEmail{testEmail("1", "a@x.com", "Hi")}}
		classifier := &fakeClassifier{verdicts: []models.ClassificationVerdict{
			testVerdict("1", false),
			testVerdict("ghost", true),
		}}
		svc := NewService(source, classifier, cache.NewMemoryStore(), 0)

		output, err := svc.Triage(ctx, false)
		require.NoError(t, err)

		require.Len(t, output.AnalyzedEmails, 2)
		orphan := output.AnalyzedEmails[1]
		assert.Equal(t, "Unknown (AI Mismatch)", orphan.From)
		assert.Equal(t, "Unknown (AI Mismatch)", orphan.Subject)
		assert.True(t, orphan.Orphan)
		assert.Empty(t, output.NeedsResponseEmails)
		// No original body exists for the orphan, so no sent-mail lookup ran.
		assert.Zero(t, source.sentCalls)
	})

	t.Run("needs-response entries get the already-responded flag from fresh sent mail", func(t *testing.T) {
		source := &fakeSource{
			unread: []models.InboundEmail{testEmail("1", "Ann <a@x.com>", "Re: Project Update")},
			sent: []models.SentEmailSummary{
				{Subject: "Project Update", Recipients: []string{"a@x.com"}},
			},
		}
		classifier := &fakeClassifier{verdicts: []models.ClassificationVerdict{testVerdict("1", true)}}
		svc := NewService(source, classifier, cache.NewMemoryStore(), 0)

		output, err := svc.Triage(ctx, false)
		require.NoError(t, err)

		require.Len(t, output.NeedsResponseEmails, 1)
		assert.True(t, output.NeedsResponseEmails[0].AlreadyResponded)
		assert.Equal(t, 1, source.sentCalls)
	})

	t.Run("sent mail is fetched once per run even with many entries", func(t *testing.T) {
		source := &fakeSource{unread: []models.InboundEmail{
			testEmail("1", "a@x.com", "One"),
			testEmail("2", "b@x.com", "Two"),
		}}
		classifier := &fakeClassifier{verdicts: []models.ClassificationVerdict{
			testVerdict("1", true),
			testVerdict("2", true),
		}}
		svc := NewService(source, classifier, cache.NewMemoryStore(), 0)

		_, err := svc.Triage(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, source.sentCalls)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes exactly the trashed entry from both cache slots", func(t *testing.T) {
		source := &fakeSource{}
		store := cache.NewMemoryStore()
		seedCache(t, store, emailCacheKey, []models.InboundEmail{
			testEmail("1", "a@x.com", "One"),
			testEmail("2", "b@x.com", "Two"),
			testEmail("3", "c@x.com", "Three"),
		})
		seedCache(t, store, verdictCacheKey, []models.ClassificationVerdict{
			testVerdict("1", false),
			testVerdict("2", true),
		})
		svc := NewService(source, &fakeClassifier{}, store, 0)

		require.NoError(t, svc.Delete(ctx, "2"))

		assert.Equal(t, []string{"2"}, source.trashed)

		raw, err := store.Get(ctx, emailCacheKey)
		require.NoError(t, err)
		var emails []models.InboundEmail
		require.NoError(t, json.Unmarshal(raw, &emails))
		require.Len(t, emails, 2)
		assert.Equal(t, "1", emails[0].ID)
		assert.Equal(t, "3", emails[1].ID)

		raw, err = store.Get(ctx, verdictCacheKey)
		require.NoError(t, err)
		var verdicts []models.ClassificationVerdict
		require.NoError(t, json.Unmarshal(raw, &verdicts))
		require.Len(t, verdicts, 1)
		assert.Equal(t, "1", verdicts[0].EmailID)
	})

	t.Run("trash failure propagates and leaves caches alone", func(t *testing.T) {
		source := &fakeSource{trashErr: errors.New("imap down")}
		store := cache.NewMemoryStore()
		seedCache(t, store, emailCacheKey, []models.InboundEmail{testEmail("1", "a@x.com", "One")})
		svc := NewService(source, &fakeClassifier{}, store, 0)

		assert.Error(t, svc.Delete(ctx, "1"))

		raw, err := store.Get(ctx, emailCacheKey)
		require.NoError(t, err)
		var emails []models.InboundEmail
		require.NoError(t, json.Unmarshal(raw, &emails))
		assert.Len(t, emails, 1)
	})

	t.Run("cache failure after a successful trash does not fail the delete", func(t *testing.T) {
		source := &fakeSource{}
		svc := NewService(source, &fakeClassifier{}, &failingStore{}, 0)

		assert.NoError(t, svc.Delete(ctx, "1"))
		assert.Equal(t, []string{"1"}, source.trashed)
	})

	t.Run("empty caches are left untouched", func(t *testing.T) {
		source := &fakeSource{}
		store := cache.NewMemoryStore()
		svc := NewService(source, &fakeClassifier{}, store, 0)

		assert.NoError(t, svc.Delete(ctx, "1"))
	})
}

func TestRank(t *testing.T) {
	entry := func(id, importance string, timeSensitive, responded bool) models.TriageReportEntry {
		return models.TriageReportEntry{
			Email: models.InboundEmail{ID: id},
			Verdict: models.ClassificationVerdict{
				EmailID:       id,
				Importance:    importance,
				TimeSensitive: timeSensitive,
			},
			AlreadyResponded: responded,
		}
	}

	ids := func(entries []models.TriageReportEntry) []string {
		out := make([]string, len(entries))
		for i, e := range entries {
			out[i] = e.Email.ID
		}
		return out
	}

	t.Run("unresponded before time-sensitive before important", func(t *testing.T) {
		entries := []models.TriageReportEntry{
			entry("responded-high", models.ImportanceHigh, true, true),
			entry("low", models.ImportanceLow, false, false),
			entry("high", models.ImportanceHigh, false, false),
			entry("medium-urgent", models.ImportanceMedium, true, false),
		}

		rank(entries)

		assert.Equal(t, []string{"medium-urgent", "high", "low", "responded-high"}, ids(entries))
	})

	t.Run("ties keep input order", func(t *testing.T) {
		entries := []models.TriageReportEntry{
			entry("first", models.ImportanceMedium, false, false),
			entry("second", models.ImportanceMedium, false, false),
			entry("third", models.ImportanceMedium, false, false),
		}

		rank(entries)

		assert.Equal(t, []string{"first", "second", "third"}, ids(entries))
	})
}

// failingStore errors on every operation, to verify cache errors never
// propagate out of the pipeline.
type failingStore struct{}

func (s *failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("store unavailable")
}

func (s *failingStore) Put(context.Context, string, []byte, time.Duration) error {
	return errors.New("store unavailable")
}

func (s *failingStore) Delete(context.Context, string) error {
	return errors.New("store unavailable")
}
