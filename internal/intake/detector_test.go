package intake

import (
	"image"
	"image/color"
	"testing"
)

// uniformFrame creates a frame filled with a single gray level. The
// BT.601 luminance of gray (g, g, g) is g, so the level doubles as
// expected brightness.
func uniformFrame(level uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 9, 9))
	for y := 0; y < 9; y++ {
		for x := 0; x < 9; x++ {
			img.Set(x, y, color.RGBA{level, level, level, 255})
		}
	}
	return img
}

// borderFrame fills the center at one level and the border at another.
func borderFrame(center, border uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 9, 9))
	for y := 0; y < 9; y++ {
		for x := 0; x < 9; x++ {
			level := border
			if x >= 3 && x < 6 && y >= 3 && y < 6 {
				level = center
			}
			img.Set(x, y, color.RGBA{level, level, level, 255})
		}
	}
	return img
}

func TestBrightnessUniform(t *testing.T) {
	got := Brightness(uniformFrame(120))
	if got < 119 || got > 121 {
		t.Errorf("brightness %f, want ~120", got)
	}
}

func TestBrightnessIgnoresBorder(t *testing.T) {
	// A bright border around a dark center must not raise the reading.
	got := Brightness(borderFrame(40, 250))
	if got < 39 || got > 41 {
		t.Errorf("brightness %f, want ~40 (center only)", got)
	}
}

func TestDetectorFirstFrameOnlyBaselines(t *testing.T) {
	d := NewDetector(30)

	if d.SheetPresent(uniformFrame(200)) {
		t.Error("first frame triggered; it must only set the baseline")
	}
	if baseline, ok := d.Baseline(); !ok || baseline < 199 || baseline > 201 {
		t.Errorf("baseline %f (set=%v), want ~200", baseline, ok)
	}
}

func TestDetectorEdgeTrigger(t *testing.T) {
	d := NewDetector(30)

	d.SheetPresent(uniformFrame(50)) // baseline
	if d.SheetPresent(uniformFrame(70)) {
		t.Error("delta 20 triggered below edge threshold 30")
	}
	if !d.SheetPresent(uniformFrame(120)) {
		t.Error("delta 70 did not trigger")
	}
}

func TestDetectorSheetAlreadyPresentNeverTriggers(t *testing.T) {
	d := NewDetector(30)

	// A sheet left on the platen at startup becomes the baseline; a
	// steady bright level is not an edge.
	d.SheetPresent(uniformFrame(220))
	for i := 0; i < 5; i++ {
		if d.SheetPresent(uniformFrame(220)) {
			t.Fatal("steady level triggered; only an edge may trigger")
		}
	}
}

func TestDetectorDarkeningNeverTriggers(t *testing.T) {
	d := NewDetector(30)

	d.SheetPresent(uniformFrame(200))
	if d.SheetPresent(uniformFrame(40)) {
		t.Error("brightness drop triggered; only a rise is an insertion edge")
	}
}

func TestDetectorReset(t *testing.T) {
	d := NewDetector(30)

	d.SheetPresent(uniformFrame(50))
	d.Reset()

	if _, ok := d.Baseline(); ok {
		t.Error("baseline survived Reset")
	}
	// Post-reset, a bright frame only re-baselines.
	if d.SheetPresent(uniformFrame(200)) {
		t.Error("first frame after Reset triggered")
	}
	if !d.SheetPresent(uniformFrame(240)) {
		t.Error("edge over the re-sampled baseline did not trigger")
	}
}
