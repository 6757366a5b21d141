package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/mailpilot/backend/internal/models"
)

// bodySnippetLength caps each email body sent to the classifier, bounding the
// outbound payload regardless of mailbox content. The cap is per message and
// does not scale with batch size.
const bodySnippetLength = 2000

const defaultModel = "gemini-2.5-flash"

// ErrNoAPIKey indicates the classification credential is missing. This is a
// configuration error: it is not retried and surfaces as a 500.
var ErrNoAPIKey = errors.New("classification API key not configured")

// ClassificationError wraps any classification failure (network, provider,
// schema validation) with its cause. The whole batch fails together; there is
// no partial-batch success.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// Classifier produces one structured verdict per input email in a single
// batched call.
type Classifier interface {
	Classify(ctx context.Context, emails []models.InboundEmail) ([]models.ClassificationVerdict, error)
}

// generator is the narrow surface over the generative-AI SDK, substituted
// with a fake in tests.
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
}

// GeminiClassifier classifies email batches with a single Gemini call
// requesting a JSON array of verdicts.
type GeminiClassifier struct {
	apiKey string
	gen    generator
}

// NewGeminiClassifier creates a classifier using the given API key and model.
// A missing key is not an error here; Classify fails fast with ErrNoAPIKey so
// the rest of the server can run without a classification credential.
func NewGeminiClassifier(apiKey, model string) *GeminiClassifier {
	if model == "" {
		model = defaultModel
	}
	return &GeminiClassifier{
		apiKey: apiKey,
		gen:    &geminiGenerator{apiKey: apiKey, model: model},
	}
}

// classifierInput is the reduced shape of one email inside the prompt.
type classifierInput struct {
	ID          string `json:"id"`
	From        string `json:"from"`
	Subject     string `json:"subject"`
	BodySnippet string `json:"bodySnippet"`
}

// Classify sends the batch in one call and parses one verdict per email.
// An empty input returns an empty result without contacting the service.
func (c *GeminiClassifier) Classify(ctx context.Context, emails []models.InboundEmail) ([]models.ClassificationVerdict, error) {
	if len(emails) == 0 {
		return []models.ClassificationVerdict{}, nil
	}

	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	prompt, err := buildPrompt(emails)
	if err != nil {
		return nil, &ClassificationError{Err: err}
	}

	raw, err := c.gen.generate(ctx, prompt)
	if err != nil {
		return nil, &ClassificationError{Err: err}
	}

	verdicts, err := parseVerdicts(raw)
	if err != nil {
		return nil, &ClassificationError{Err: err}
	}

	return verdicts, nil
}

func buildPrompt(emails []models.InboundEmail) (string, error) {
	inputs := make([]classifierInput, 0, len(emails))
	for _, email := range emails {
		inputs = append(inputs, classifierInput{
			ID:          email.ID,
			From:        email.From,
			Subject:     email.Subject,
			BodySnippet: truncateBody(email.Body),
		})
	}

	encoded, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode classifier input: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are an email triage assistant. Classify each of the following emails.\n")
	b.WriteString("Respond with a JSON array containing exactly one object per input email, with fields:\n")
	b.WriteString(`  "emailId": the id copied verbatim from the input email,` + "\n")
	b.WriteString(`  "importance": one of "high", "medium" or "low",` + "\n")
	b.WriteString(`  "reason": a short explanation,` + "\n")
	b.WriteString(`  "needsResponse": boolean, whether the recipient should reply,` + "\n")
	b.WriteString(`  "timeSensitive": boolean, whether the email is time-sensitive,` + "\n")
	b.WriteString(`  "topics": 2 to 5 short topic strings.` + "\n")
	b.WriteString("Return only the JSON array, no prose.\n\nEmails:\n")
	b.Write(encoded)

	return b.String(), nil
}

// truncateBody caps a body at bodySnippetLength characters, appending an
// ellipsis marker when truncated. The cut is at a rune boundary so a
// multi-byte character at the cap never yields invalid UTF-8.
func truncateBody(body string) string {
	runes := []rune(body)
	if len(runes) <= bodySnippetLength {
		return body
	}
	return string(runes[:bodySnippetLength]) + "..."
}

// parseVerdicts decodes the model response, tolerating a fenced code block
// around the JSON. Importance outside the enum is a schema violation; the
// topics count is a hint only and is not enforced.
func parseVerdicts(raw string) ([]models.ClassificationVerdict, error) {
	cleaned := stripCodeFences(raw)

	var verdicts []models.ClassificationVerdict
	if err := json.Unmarshal([]byte(cleaned), &verdicts); err != nil {
		return nil, fmt.Errorf("failed to decode verdicts: %w", err)
	}

	for i := range verdicts {
		if verdicts[i].EmailID == "" {
			return nil, fmt.Errorf("verdict %d is missing emailId", i)
		}
		if !verdicts[i].ValidImportance() {
			return nil, fmt.Errorf("verdict for %s has invalid importance %q", verdicts[i].EmailID, verdicts[i].Importance)
		}
	}

	return verdicts, nil
}

func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// geminiGenerator performs the real Gemini call. The client is created on
// first use so the server can start without a credential.
type geminiGenerator struct {
	apiKey string
	model  string

	once    sync.Once
	client  *genai.Client
	initErr error
}

func (g *geminiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	g.once.Do(func() {
		g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if g.initErr != nil {
		return "", fmt.Errorf("failed to create genai client: %w", g.initErr)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response from gemini")
	}

	var result strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			result.WriteString(part.Text)
		}
	}

	return result.String(), nil
}
