package marks

import (
	"image"
	"image/color"
	"testing"

	"github.com/gradebot/sheetscan/internal/config"
	"github.com/gradebot/sheetscan/internal/model"
)

func testMarksConfig() config.MarksConfig {
	return config.MarksConfig{
		BinarizeThreshold:    128,
		MinArea:              80,
		MaxArea:              5000,
		CircularityThreshold: 0.60,
		FillThreshold:        0.30,
		RowTolerance:         0.5,
	}
}

// newGridImage creates a white canvas.
func newGridImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

// drawRingAt draws an empty bubble outline two pixels thick, so the
// denoising blur in binarize does not erase it.
func drawRingAt(img *image.RGBA, cx, cy, radius int) {
	drawCircleAt(img, cx, cy, radius)
	drawCircleAt(img, cx, cy, radius-1)
}

// drawCircleAt plots a single-pixel circle using the midpoint algorithm.
func drawCircleAt(img *image.RGBA, cx, cy, radius int) {
	x := radius
	y := 0
	err := 0

	for x >= y {
		img.Set(cx+x, cy+y, color.Black)
		img.Set(cx+y, cy+x, color.Black)
		img.Set(cx-y, cy+x, color.Black)
		img.Set(cx-x, cy+y, color.Black)
		img.Set(cx-x, cy-y, color.Black)
		img.Set(cx-y, cy-x, color.Black)
		img.Set(cx+y, cy-x, color.Black)
		img.Set(cx+x, cy-y, color.Black)

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

// drawDiscAt draws a filled bubble.
func drawDiscAt(img *image.RGBA, cx, cy, radius int) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				img.Set(cx+dx, cy+dy, color.Black)
			}
		}
	}
}

const (
	bubbleRadius = 18
	rowPitch     = 60
	colPitch     = 60
	originX      = 40
	originY      = 40
)

// drawGrid lays out rows of bubbles and fills the given choice per row.
// filled[i] == -1 leaves row i completely empty.
func drawGrid(img *image.RGBA, rows, cols int, filled []int) {
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cx := originX + c*colPitch
			cy := originY + r*rowPitch
			if filled != nil && filled[r] == c {
				drawDiscAt(img, cx, cy, bubbleRadius)
			} else {
				drawRingAt(img, cx, cy, bubbleRadius)
			}
		}
	}
}

func TestExtractKnownPositions(t *testing.T) {
	img := newGridImage(280, 220)
	drawGrid(img, 3, 4, []int{0, 2, 3}) // A, C, D

	e := NewExtractor(testMarksConfig(), 3, 4)
	set, err := e.Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if set.Incomplete {
		t.Error("complete grid flagged incomplete")
	}
	if len(set.Answers) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(set.Answers))
	}

	want := []string{"A", "C", "D"}
	for i, w := range want {
		if got := set.Answers[i].String(); got != w {
			t.Errorf("question %d: got %q, want %q", i+1, got, w)
		}
	}
}

func TestExtractUnansweredRow(t *testing.T) {
	img := newGridImage(280, 220)
	drawGrid(img, 3, 4, []int{1, -1, 0})

	e := NewExtractor(testMarksConfig(), 3, 4)
	set, err := e.Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if set.Answers[1].Kind != model.AnswerUnanswered {
		t.Errorf("empty row classified as %v, want unanswered", set.Answers[1])
	}
	if set.Answers[0].String() != "B" || set.Answers[2].String() != "A" {
		t.Errorf("neighboring rows misclassified: %v, %v", set.Answers[0], set.Answers[2])
	}
}

func TestExtractAmbiguousRowNeverTieBroken(t *testing.T) {
	img := newGridImage(280, 160)
	// Row 1: two choices filled. Row 2: single fill as control.
	for c := 0; c < 4; c++ {
		cx := originX + c*colPitch
		if c == 1 || c == 3 {
			drawDiscAt(img, cx, originY, bubbleRadius)
		} else {
			drawRingAt(img, cx, originY, bubbleRadius)
		}
		if c == 2 {
			drawDiscAt(img, cx, originY+rowPitch, bubbleRadius)
		} else {
			drawRingAt(img, cx, originY+rowPitch, bubbleRadius)
		}
	}

	e := NewExtractor(testMarksConfig(), 2, 4)
	set, err := e.Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if set.Answers[0].Kind != model.AnswerAmbiguous {
		t.Errorf("double-filled row classified as %v, want ambiguous", set.Answers[0])
	}
	if set.Answers[1].String() != "C" {
		t.Errorf("control row classified as %v, want C", set.Answers[1])
	}
}

func TestExtractRowCountMismatchFlagsIncomplete(t *testing.T) {
	img := newGridImage(280, 220)
	drawGrid(img, 3, 4, []int{0, 1, 2})

	// Configured for 4 questions but only 3 rows printed.
	e := NewExtractor(testMarksConfig(), 4, 4)
	set, err := e.Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if !set.Incomplete {
		t.Error("row count mismatch not flagged incomplete")
	}
	if len(set.Answers) != 4 {
		t.Fatalf("expected 4 answers, got %d", len(set.Answers))
	}
	if set.Answers[3].Kind != model.AnswerUnanswered {
		t.Errorf("missing question 4 classified as %v, want unanswered", set.Answers[3])
	}
	// The recovered rows still map monotonically.
	if set.Answers[0].String() != "A" || set.Answers[1].String() != "B" || set.Answers[2].String() != "C" {
		t.Errorf("recovered rows misclassified: %v", set.Answers[:3])
	}
}

func TestExtractRejectsNoiseAndSmears(t *testing.T) {
	img := newGridImage(280, 160)
	drawGrid(img, 2, 4, []int{0, 1})

	// Noise speck: enclosed area below min_area.
	drawDiscAt(img, 250, 20, 3)
	// Smear: long thin line, fails the circularity gate.
	for x := 30; x < 250; x++ {
		img.Set(x, 140, color.Black)
		img.Set(x, 141, color.Black)
	}

	e := NewExtractor(testMarksConfig(), 2, 4)
	set, err := e.Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if set.Incomplete {
		t.Error("noise/smear disturbed row recovery")
	}
	if set.Answers[0].String() != "A" || set.Answers[1].String() != "B" {
		t.Errorf("answers misclassified with noise present: %v", set.Answers)
	}
}

func TestExtractMalformedImage(t *testing.T) {
	e := NewExtractor(testMarksConfig(), 10, 4)

	if _, err := e.Extract(nil); err == nil {
		t.Error("nil image did not fail")
	}

	tiny := newGridImage(2, 2)
	if _, err := e.Extract(tiny); err == nil {
		t.Error("2x2 image did not fail")
	}
}

func TestContourGeometry(t *testing.T) {
	img := newGridImage(60, 60)
	drawDiscAt(img, 30, 30, 10)

	mask := binarize(img, 128)
	contours := findContours(mask)
	if len(contours) != 1 {
		t.Fatalf("expected 1 contour, got %d", len(contours))
	}

	c := contours[0]
	if c.fillRatio() < 0.95 {
		t.Errorf("solid disc fill ratio %.2f, want ~1.0", c.fillRatio())
	}
	if c.circularity() < 0.8 {
		t.Errorf("disc circularity %.2f, want near 1.0", c.circularity())
	}
	if c.cx < 29 || c.cx > 31 || c.cy < 29 || c.cy > 31 {
		t.Errorf("centroid (%.1f, %.1f), want near (30, 30)", c.cx, c.cy)
	}
}

func TestContourRingEnclosesDisc(t *testing.T) {
	img := newGridImage(80, 80)
	drawRingAt(img, 40, 40, 18)

	mask := binarize(img, 128)
	contours := findContours(mask)
	if len(contours) != 1 {
		t.Fatalf("expected 1 contour, got %d", len(contours))
	}

	c := contours[0]
	if c.enclosed <= c.ink {
		t.Errorf("ring interior not closed: enclosed %d, ink %d", c.enclosed, c.ink)
	}
	if c.fillRatio() >= 0.30 {
		t.Errorf("empty ring fill ratio %.2f, want below fill threshold", c.fillRatio())
	}
	if c.circularity() < 0.8 {
		t.Errorf("ring circularity %.2f, want near 1.0", c.circularity())
	}
}
