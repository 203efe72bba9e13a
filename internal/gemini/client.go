// Package gemini calls the Gemini API to extract a statement record from an
// analysis payload, and validates the response shape before it enters the
// store.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/dvloznov/statement-ledger/internal/extract"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// DefaultModelName is the default Gemini model used for extraction.
const DefaultModelName = "gemini-2.5-flash"

// SafetyBlockedError is returned when the model refuses the request or
// response on safety grounds. Carries the vendor's stated reason and is not
// retried automatically.
type SafetyBlockedError struct {
	Reason string
}

func (e *SafetyBlockedError) Error() string {
	return fmt.Sprintf("gemini: blocked by safety filter: %s", e.Reason)
}

// Client analyzes statement payloads with Gemini.
type Client struct {
	model  string
	client *genai.Client
}

// NewClient creates a Gemini client. Credentials come from the environment
// (GEMINI_API_KEY or application default credentials).
func NewClient(ctx context.Context, model string) (*Client, error) {
	if model == "" {
		model = DefaultModelName
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{model: model, client: c}, nil
}

// AnalyzeStatement sends one payload to the model and decodes the statement
// record from its response.
func (c *Client) AnalyzeStatement(ctx context.Context, p *extract.Payload) (*ledger.StatementRecord, error) {
	log := logger.FromContext(ctx)

	parts := []*genai.Part{{Text: p.Instruction}}
	if p.Text != "" {
		parts = append(parts, &genai.Part{Text: p.Text})
	}
	for _, img := range p.Images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: p.ImageMIME, Data: img},
		})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	log.Debug().
		Str("mode", string(p.Mode)).
		Int("images", len(p.Images)).
		Str("fingerprint", p.Fingerprint).
		Msg("dispatching inference call")

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}

	if reason := blockReason(resp); reason != "" {
		return nil, &SafetyBlockedError{Reason: reason}
	}

	raw := resp.Text()
	if raw == "" {
		return nil, errors.New("gemini: empty response from model")
	}

	return DecodeRecord(raw)
}

func blockReason(resp *genai.GenerateContentResponse) string {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return string(resp.PromptFeedback.BlockReason)
	}
	for _, cand := range resp.Candidates {
		if cand.FinishReason == genai.FinishReasonSafety {
			return string(cand.FinishReason)
		}
	}
	return ""
}
