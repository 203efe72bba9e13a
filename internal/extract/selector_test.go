package extract

import (
	"context"
	"fmt"
	"image"
	"strings"
	"testing"

	"github.com/dvloznov/statement-ledger/internal/document"
)

type fakeDoc struct {
	pages    []string
	rendered []int
	noRaster bool
}

func (d *fakeDoc) PageCount() int { return len(d.pages) }

func (d *fakeDoc) PageText(page int) (string, error) {
	return d.pages[page-1], nil
}

func (d *fakeDoc) RenderPage(page int, scale float64) (image.Image, error) {
	if d.noRaster {
		return nil, document.ErrNoRasterizer
	}
	d.rendered = append(d.rendered, page)
	return image.NewGray(image.Rect(0, 0, 4, 4)), nil
}

func (d *fakeDoc) Close() error { return nil }

func testPrompt(fp string) string {
	return "analyze statement " + fp
}

func TestBuild_TextDominant(t *testing.T) {
	doc := &fakeDoc{pages: []string{
		strings.Repeat("帳", 100),
		strings.Repeat("單", 100) + " card 4111-1111-1111-1111",
	}}
	sel := NewSelector(testPrompt, 2.0)

	p, err := sel.Build(context.Background(), doc, "fp-1")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if p.Mode != ModeText {
		t.Fatalf("Expected text mode, got %s", p.Mode)
	}
	if p.Fingerprint != "fp-1" {
		t.Errorf("Fingerprint = %q", p.Fingerprint)
	}
	if !strings.Contains(p.Instruction, "fp-1") {
		t.Error("Instruction must embed the fingerprint")
	}
	if len(p.Images) != 0 {
		t.Error("Text payload must not carry images")
	}
	if strings.Contains(p.Text, "4111-1111-1111-1111") {
		t.Error("Card number survived redaction")
	}
	if len(doc.rendered) != 0 {
		t.Error("Text-dominant document must not be rasterized")
	}
}

func TestBuild_ImageDominant(t *testing.T) {
	doc := &fakeDoc{pages: []string{"scan artifact", "more noise"}}
	sel := NewSelector(testPrompt, 2.0)

	p, err := sel.Build(context.Background(), doc, "fp-2")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if p.Mode != ModeImage {
		t.Fatalf("Expected image mode, got %s", p.Mode)
	}
	if len(p.Images) != 2 {
		t.Fatalf("Expected one image per page, got %d", len(p.Images))
	}
	if p.ImageMIME == "" {
		t.Error("Image payload must declare its MIME type")
	}
	// the partial embedded text rides along as a recognition hint
	if !strings.Contains(p.Text, "scan artifact") {
		t.Error("Expected embedded text as hint")
	}
	if fmt.Sprint(doc.rendered) != "[1 2]" {
		t.Errorf("Pages rendered out of order: %v", doc.rendered)
	}
}

func TestBuild_RasterizerUnavailable(t *testing.T) {
	doc := &fakeDoc{pages: []string{"scan"}, noRaster: true}
	sel := NewSelector(testPrompt, 2.0)

	if _, err := sel.Build(context.Background(), doc, "fp-3"); err == nil {
		t.Error("Expected error when rasterization is unavailable")
	}
}

func TestCountMeaningful(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"latin only", "Statement of Account 2025", 0},
		{"mixed", "本期應繳金額 1,234 元", 7},
		{"ideographs", strings.Repeat("帳", 150), 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountMeaningful(tt.in); got != tt.want {
				t.Errorf("CountMeaningful(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	tests := []struct {
		name string
		in   string
		gone string
	}{
		{"national id", "持卡人 A123456789 先生", "A123456789"},
		{"card number grouped", "卡號 4111-1111-1111-1111", "4111-1111-1111-1111"},
		{"card number plain", "4111111111111111", "4111111111111111"},
		{"phone", "聯絡電話 0912-345-678", "0912-345-678"},
		{"phone plain", "0912345678", "0912345678"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Redact(tt.in)
			if strings.Contains(out, tt.gone) {
				t.Errorf("Redact(%q) = %q, still contains %q", tt.in, out, tt.gone)
			}
			if !strings.Contains(out, redactedMark) {
				t.Errorf("Redact(%q) = %q, missing redaction mark", tt.in, out)
			}
		})
	}
}

func TestRedact_LeavesAmounts(t *testing.T) {
	in := "消費金額 1,234.56 入帳日 2025-03-10"
	if out := Redact(in); out != in {
		t.Errorf("Redact changed benign text: %q", out)
	}
}
