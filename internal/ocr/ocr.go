// Package ocr defines the text-recognition collaborator used to read the
// handwritten identity field, plus the Tesseract-backed implementation.
//
// The recognition engine itself is external: the pipeline only depends on
// the Reader contract of text plus a confidence value for a given region
// image.
package ocr

import (
	"context"
	"image"

	"github.com/rotisserie/eris"
)

// ErrUnavailable is returned when the recognition engine cannot be
// reached or fails outright. The caller treats it as an acquisition
// error: the sheet is still recorded, flagged for review.
var ErrUnavailable = eris.New("ocr: engine unavailable")

// Reader recognizes text in a region image and reports an aggregate
// confidence in [0,1].
type Reader interface {
	Read(ctx context.Context, region image.Image) (text string, confidence float64, err error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(ctx context.Context, region image.Image) (string, float64, error)

// Read calls the wrapped function.
func (f ReaderFunc) Read(ctx context.Context, region image.Image) (string, float64, error) {
	return f(ctx, region)
}
