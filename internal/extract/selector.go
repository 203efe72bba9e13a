// Package extract decides, per document, between direct-text extraction and
// image-based extraction, and builds the analysis payload handed to the
// inference client.
package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/dvloznov/statement-ledger/internal/document"
	"github.com/dvloznov/statement-ledger/internal/imagenorm"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// Mode classifies a document by its dominant content.
type Mode string

const (
	// ModeText means the embedded text suffices for extraction.
	ModeText Mode = "text"
	// ModeImage means the document is scan-dominant and pages are rasterized.
	ModeImage Mode = "image"
)

// MeaningfulTextThreshold is the minimum count of meaningful characters for a
// document to qualify as text-dominant.
const MeaningfulTextThreshold = 150

// Payload is the opaque analysis request for one document: the instruction
// set plus text and/or page images. The inference client sends it without
// further knowledge of how it was assembled.
type Payload struct {
	Fingerprint string
	Mode        Mode
	Instruction string
	// Text is the redacted statement text in text mode, or the raw partial
	// text used as a recognition hint in image mode.
	Text string
	// Images holds normalized page renderings, in page order, image mode only.
	Images    [][]byte
	ImageMIME string
}

// PromptFunc builds the extraction instruction set. It is parameterized by
// the content fingerprint so the model can echo it back for result
// correlation.
type PromptFunc func(fingerprint string) string

// Selector builds analysis payloads.
type Selector struct {
	prompt PromptFunc
	scale  float64
}

// NewSelector creates a selector. scale is the rasterization scale factor for
// image-dominant documents.
func NewSelector(prompt PromptFunc, scale float64) *Selector {
	return &Selector{prompt: prompt, scale: scale}
}

// Build extracts text from every page, classifies the document and produces
// the payload for the inference call.
func (s *Selector) Build(ctx context.Context, doc document.Document, fp string) (*Payload, error) {
	log := logger.FromContext(ctx)

	var b strings.Builder
	pages := doc.PageCount()
	for page := 1; page <= pages; page++ {
		text, err := doc.PageText(page)
		if err != nil {
			return nil, fmt.Errorf("extract: page %d text: %w", page, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	text := b.String()

	meaningful := CountMeaningful(text)
	payload := &Payload{
		Fingerprint: fp,
		Instruction: s.prompt(fp),
	}

	if meaningful >= MeaningfulTextThreshold {
		payload.Mode = ModeText
		payload.Text = Redact(text)
		log.Debug().Int("meaningful_chars", meaningful).Msg("text-dominant document")
		return payload, nil
	}

	log.Debug().
		Int("meaningful_chars", meaningful).
		Int("pages", pages).
		Msg("image-dominant document, rasterizing pages")

	payload.Mode = ModeImage
	// Keep the sparse embedded text as a recognition hint.
	payload.Text = text
	payload.ImageMIME = imagenorm.MIMEType
	for page := 1; page <= pages; page++ {
		img, err := doc.RenderPage(page, s.scale)
		if err != nil {
			return nil, fmt.Errorf("extract: render page %d: %w", page, err)
		}
		data, err := imagenorm.Normalize(img)
		if err != nil {
			return nil, fmt.Errorf("extract: normalize page %d: %w", page, err)
		}
		payload.Images = append(payload.Images, data)
	}
	return payload, nil
}

// CountMeaningful counts characters that indicate real statement content.
// Statements in the target locale are dominated by CJK ideographs; latin
// boilerplate in scan headers does not count.
func CountMeaningful(s string) int {
	n := 0
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			n++
		}
	}
	return n
}
