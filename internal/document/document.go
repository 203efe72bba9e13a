// Package document defines the codec boundary for reading uploaded statement
// files. The concrete PDF implementation lives in the pdfcodec sub-package;
// the analysis pipeline only depends on the interfaces here.
package document

import (
	"errors"
	"image"
)

// ErrWrongPassword indicates the document is encrypted and the supplied
// password (possibly empty) did not open it. Callers are expected to retry
// with another password.
var ErrWrongPassword = errors.New("document: wrong or missing password")

// ErrCorrupt indicates the bytes are not a readable document of the expected
// format. Never retried with further passwords.
var ErrCorrupt = errors.New("document: corrupt or unsupported file")

// ErrNoRasterizer indicates the codec has no page rasterizer configured, so
// image-based extraction is unavailable for this process.
var ErrNoRasterizer = errors.New("document: page rasterizer not configured")

// Document is an opened, decrypted document handle.
type Document interface {
	// PageCount reports the number of pages.
	PageCount() int

	// PageText returns the embedded text of the 1-based page.
	PageText(page int) (string, error)

	// RenderPage rasterizes the 1-based page at the given scale factor.
	// Returns ErrNoRasterizer when rendering is not available.
	RenderPage(page int, scale float64) (image.Image, error)

	// Close releases resources held by the handle.
	Close() error
}

// Codec opens raw document bytes, optionally with a password.
// Open must fail with an error wrapping ErrWrongPassword for encryption
// failures and ErrCorrupt for structural failures, so the decryption resolver
// can tell the two apart.
type Codec interface {
	Open(raw []byte, password string) (Document, error)
}
