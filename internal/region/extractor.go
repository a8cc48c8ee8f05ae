// Package region crops the fixed identity and answer-grid sub-images out
// of a captured sheet. Regions are configured as fractions of full width
// and height so the same layout works at any capture resolution.
package region

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/rotisserie/eris"

	"github.com/gradebot/sheetscan/internal/config"
)

// ErrOutOfBounds is returned when configured fractions place a region
// outside the captured frame or collapse it to an empty rectangle.
var ErrOutOfBounds = eris.New("region: crop outside image bounds")

// Regions holds the two sub-images every downstream stage consumes.
type Regions struct {
	Identity image.Image
	Grid     image.Image
}

// Extractor is a pure fractional-rectangle cropper.
type Extractor struct {
	cfg config.RegionConfig
}

// NewExtractor builds an extractor for the configured sheet layout.
func NewExtractor(cfg config.RegionConfig) *Extractor {
	return &Extractor{cfg: cfg}
}

// Extract crops the identity and grid regions from img. It has no side
// effects and never modifies img.
func (e *Extractor) Extract(img image.Image) (*Regions, error) {
	identity, err := cropFraction(img, e.cfg.Identity)
	if err != nil {
		return nil, eris.Wrap(err, "region: identity")
	}
	grid, err := cropFraction(img, e.cfg.Grid)
	if err != nil {
		return nil, eris.Wrap(err, "region: grid")
	}
	return &Regions{Identity: identity, Grid: grid}, nil
}

// cropFraction converts a fractional rect to pixels and crops.
func cropFraction(img image.Image, r config.FractionalRect) (image.Image, error) {
	bounds := img.Bounds()
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())

	x1 := bounds.Min.X + int(r.X*w)
	y1 := bounds.Min.Y + int(r.Y*h)
	x2 := bounds.Min.X + int((r.X+r.W)*w)
	y2 := bounds.Min.Y + int((r.Y+r.H)*h)

	if x1 < bounds.Min.X || y1 < bounds.Min.Y || x2 > bounds.Max.X || y2 > bounds.Max.Y {
		return nil, eris.Wrapf(ErrOutOfBounds, "(%d,%d)-(%d,%d) vs %v", x1, y1, x2, y2, bounds)
	}
	if x1 >= x2 || y1 >= y2 {
		return nil, eris.Wrapf(ErrOutOfBounds, "empty rect (%d,%d)-(%d,%d)", x1, y1, x2, y2)
	}

	return imaging.Crop(img, image.Rect(x1, y1, x2, y2)), nil
}
