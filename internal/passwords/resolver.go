// Package passwords resolves encrypted statement documents against preset
// candidate passwords, escalating to an interactive prompt when every preset
// fails.
package passwords

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-ledger/internal/document"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// ErrCanceled indicates the user declined the interactive password prompt.
// It terminates the document's pipeline and is not retryable.
var ErrCanceled = errors.New("passwords: password entry canceled")

// PromptFunc asks the user for a password. It returns the entered password,
// or ErrCanceled when the user declines. It may block on user input; the
// context covers abandonment of the whole operation.
type PromptFunc func(ctx context.Context) (string, error)

// Resolver opens possibly-encrypted documents.
type Resolver struct {
	codec   document.Codec
	presets []string
	prompt  PromptFunc
}

// NewResolver creates a resolver. prompt may be nil, in which case an
// encrypted document that no preset opens fails with ErrCanceled.
func NewResolver(codec document.Codec, presets []string, prompt PromptFunc) *Resolver {
	return &Resolver{codec: codec, presets: presets, prompt: prompt}
}

// Open yields a decrypted document handle for raw.
//
// It tries no password first, then each preset in order, then escalates to
// the interactive prompt until success or cancellation. Any failure that is
// not a wrong-password condition propagates immediately without further
// attempts.
func (r *Resolver) Open(ctx context.Context, raw []byte) (document.Document, error) {
	log := logger.FromContext(ctx)

	candidates := append([]string{""}, r.presets...)
	for _, pw := range candidates {
		doc, err := r.codec.Open(raw, pw)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, document.ErrWrongPassword) {
			return nil, err
		}
	}

	log.Debug().Int("presets", len(r.presets)).Msg("all preset passwords failed, escalating to prompt")

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.prompt == nil {
			return nil, ErrCanceled
		}

		pw, err := r.prompt(ctx)
		if err != nil {
			if errors.Is(err, ErrCanceled) {
				return nil, ErrCanceled
			}
			return nil, fmt.Errorf("passwords: prompt: %w", err)
		}

		doc, err := r.codec.Open(raw, pw)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, document.ErrWrongPassword) {
			return nil, err
		}
	}
}
