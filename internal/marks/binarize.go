package marks

import (
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/segment"
)

// binarize converts the grid crop to an ink mask: mask[y][x] is true where
// the pixel is darker than the configured threshold.
//
// A light Gaussian blur runs first to knock out single-pixel sensor noise
// before thresholding. The threshold is fixed, not auto-detected;
// consistent lighting is an external assumption of the capture station.
func binarize(img image.Image, threshold uint8) [][]bool {
	blurred := blur.Gaussian(img, 1.0)
	bin := segment.Threshold(blurred, threshold)

	bounds := bin.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	mask := make([][]bool, h)
	for y := 0; y < h; y++ {
		mask[y] = make([]bool, w)
		for x := 0; x < w; x++ {
			// Threshold maps pixels at or above the level to white;
			// ink is whatever stayed black.
			mask[y][x] = bin.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y == 0
		}
	}
	return mask
}
