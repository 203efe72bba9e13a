// Package pdfcodec implements the document codec for PDF statements using
// github.com/ledongthuc/pdf for structure parsing and text extraction.
//
// Page rasterization is delegated to an injected Rasterizer because the
// rendering library is a deployment choice; without one, image-based
// extraction reports document.ErrNoRasterizer.
package pdfcodec

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/ledongthuc/pdf"

	"github.com/dvloznov/statement-ledger/internal/document"
)

// Rasterizer renders one 1-based page of a (possibly encrypted) PDF to an
// image at the given scale factor.
type Rasterizer func(raw []byte, password string, page int, scale float64) (image.Image, error)

// Codec opens PDF documents.
type Codec struct {
	rasterize Rasterizer
}

// New creates a PDF codec. rasterize may be nil.
func New(rasterize Rasterizer) *Codec {
	return &Codec{rasterize: rasterize}
}

// Open implements document.Codec.
func (c *Codec) Open(raw []byte, password string) (doc document.Document, err error) {
	// The underlying parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: parser panic: %v", document.ErrCorrupt, r)
		}
	}()

	reader := bytes.NewReader(raw)

	var r *pdf.Reader
	if password == "" {
		r, err = pdf.NewReader(reader, int64(len(raw)))
	} else {
		// NewReaderEncrypted calls the password func until it returns "";
		// handing it one candidate gives exactly one attempt.
		attempts := []string{password}
		r, err = pdf.NewReaderEncrypted(reader, int64(len(raw)), func() string {
			if len(attempts) == 0 {
				return ""
			}
			pw := attempts[0]
			attempts = attempts[1:]
			return pw
		})
	}
	if err != nil {
		return nil, classify(err)
	}

	return &pdfDocument{raw: raw, password: password, reader: r, rasterize: c.rasterize}, nil
}

func classify(err error) error {
	if errors.Is(err, pdf.ErrInvalidPassword) {
		return fmt.Errorf("%w: %v", document.ErrWrongPassword, err)
	}
	return fmt.Errorf("%w: %v", document.ErrCorrupt, err)
}

type pdfDocument struct {
	raw       []byte
	password  string
	reader    *pdf.Reader
	rasterize Rasterizer
}

func (d *pdfDocument) PageCount() int {
	return d.reader.NumPage()
}

func (d *pdfDocument) PageText(page int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: text extraction panic on page %d: %v", document.ErrCorrupt, page, r)
		}
	}()

	p := d.reader.Page(page)
	if p.V.IsNull() {
		return "", fmt.Errorf("%w: missing page %d", document.ErrCorrupt, page)
	}

	text, err = p.GetPlainText(nil)
	if err != nil {
		// A page without extractable text is not fatal; the mode selector
		// treats it as empty and falls back to image extraction.
		return "", nil
	}
	return text, nil
}

func (d *pdfDocument) RenderPage(page int, scale float64) (image.Image, error) {
	if d.rasterize == nil {
		return nil, document.ErrNoRasterizer
	}
	img, err := d.rasterize(d.raw, d.password, page, scale)
	if err != nil {
		return nil, fmt.Errorf("pdfcodec: render page %d: %w", page, err)
	}
	return img, nil
}

func (d *pdfDocument) Close() error {
	d.raw = nil
	d.reader = nil
	return nil
}
