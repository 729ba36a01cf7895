// Package suggest proposes ledger categories for classified transactions.
// Suggestions are best effort: a failed or disabled suggester never blocks a
// sync run, the transaction is simply stored without a category.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the model used when none is configured.
const DefaultModelName = "gemini-2.0-flash"

// Input is the classification context handed to a suggester.
type Input struct {
	Description string   `json:"description"`
	Merchant    string   `json:"merchant,omitempty"`
	Categories  []string `json:"provider_categories,omitempty"`
	Type        string   `json:"type"`
	Amount      float64  `json:"amount"`
}

// Suggester proposes a category id for a transaction.
type Suggester interface {
	SuggestCategory(ctx context.Context, in Input) (string, error)
}

// Noop is a Suggester that never suggests anything.
type Noop struct{}

// SuggestCategory implements Suggester.
func (Noop) SuggestCategory(context.Context, Input) (string, error) {
	return "", nil
}

// Gemini suggests categories with a generative model.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a model-backed suggester. Credentials come from the
// environment, same as the rest of the genai client configuration.
func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model == "" {
		model = DefaultModelName
	}
	return &Gemini{client: client, model: model}, nil
}

// SuggestCategory implements Suggester. It returns "" with no error when the
// model declines to pick a category.
func (g *Gemini) SuggestCategory(ctx context.Context, in Input) (string, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal suggestion input: %w", err)
	}

	prompt :=
		"You are a personal finance categorizer.\n\n" +
			"Task:\n" +
			"- Pick ONE category slug for the transaction below.\n" +
			"- Output STRICT JSON only: {\"category\": \"<slug>\"}.\n" +
			"- Use lowercase kebab-case slugs, e.g. \"groceries\", \"rent\", \"salary\".\n" +
			"- If no category fits, output {\"category\": \"\"}.\n\n" +
			"Transaction:\n" + string(payload) + "\n\n" +
			"Return ONLY valid raw JSON. Do NOT wrap the response in code fences.\n"

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", fmt.Errorf("empty response from model")
	}

	var out struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &out); err != nil {
		return "", fmt.Errorf("unmarshal suggestion: %w\nraw response: %s", err, rawText)
	}

	return strings.TrimSpace(out.Category), nil
}

// cleanModelJSON strips Markdown fences and surrounding junk when the model
// ignores the raw-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

// Ensure both suggesters implement the interface.
var (
	_ Suggester = (*Gemini)(nil)
	_ Suggester = Noop{}
)
