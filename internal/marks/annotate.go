package marks

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/gradebot/sheetscan/internal/model"
)

// Overlay palette. Hex values are parsed once at init; a bad literal here
// is a programming error.
var (
	overlayFilled     = mustHex("#2e9e4f") // selected choice
	overlayEmpty      = mustHex("#8a8a8a") // detected but unfilled
	overlayAmbiguous  = mustHex("#d43d3d") // multiple fills in the row
	overlayUnanswered = mustHex("#d4a13d") // row with no fill
)

func mustHex(s string) color.RGBA {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Annotate renders a classification overlay onto a copy of the grid crop:
// every candidate bubble gets a ring colored by its row's outcome. The
// overlay is a debug artifact written next to the capture when enabled;
// nothing downstream consumes it.
func Annotate(grid image.Image, set *model.AnswerSet, fillThreshold float64) *image.RGBA {
	bounds := grid.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, grid, bounds.Min, draw.Src)

	for i, group := range set.Groups {
		answer := set.Answers[i]
		for _, b := range group.Bubbles {
			ring := ringColor(answer, b.FillRatio >= fillThreshold)
			radius := int(math.Sqrt(float64(b.Area)/math.Pi)) + 2
			drawRing(out, bounds.Min.X+int(b.CX), bounds.Min.Y+int(b.CY), radius, ring)
		}
	}
	return out
}

func ringColor(answer model.Answer, filled bool) color.RGBA {
	switch answer.Kind {
	case model.AnswerAmbiguous:
		return overlayAmbiguous
	case model.AnswerUnanswered:
		return overlayUnanswered
	default:
		if filled {
			return overlayFilled
		}
		return overlayEmpty
	}
}

// drawRing draws a circle outline using the midpoint algorithm.
func drawRing(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	x := radius
	y := 0
	err := 0

	for x >= y {
		img.SetRGBA(cx+x, cy+y, c)
		img.SetRGBA(cx+y, cy+x, c)
		img.SetRGBA(cx-y, cy+x, c)
		img.SetRGBA(cx-x, cy+y, c)
		img.SetRGBA(cx-x, cy-y, c)
		img.SetRGBA(cx-y, cy-x, c)
		img.SetRGBA(cx+y, cy-x, c)
		img.SetRGBA(cx+x, cy-y, c)

		if err <= 0 {
			y++
			err += 2*y + 1
		}
		if err > 0 {
			x--
			err -= 2*x + 1
		}
	}
}
