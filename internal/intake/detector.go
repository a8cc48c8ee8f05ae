package intake

import "image"

// Detector classifies "insertion edge" versus "steady/empty" from the
// brightness of a fixed center region of consecutive frames.
//
// A sheet sliding over the dark platen raises the region's mean
// brightness well above the rolling baseline. Comparing against a
// baseline rather than an absolute level rejects sheets already present
// when the loop starts and tolerates slow ambient-light drift: only an
// edge triggers, never a level.
//
// Detector is stateless apart from the baseline; it is owned and driven
// by a single Machine and is not safe for concurrent use.
type Detector struct {
	edgeDelta   float64
	baseline    float64
	hasBaseline bool
}

// NewDetector builds a detector that fires when brightness exceeds the
// baseline by more than edgeDelta (0-255 scale).
func NewDetector(edgeDelta float64) *Detector {
	return &Detector{edgeDelta: edgeDelta}
}

// SheetPresent reports whether frame shows an insertion edge. The first
// frame after construction or Reset only establishes the baseline and
// never triggers.
func (d *Detector) SheetPresent(frame image.Image) bool {
	brightness := Brightness(frame)
	if !d.hasBaseline {
		d.baseline = brightness
		d.hasBaseline = true
		return false
	}
	return brightness-d.baseline > d.edgeDelta
}

// Reset drops the baseline; the next frame re-establishes it. Called on
// cooldown expiry so lighting changes during a scan don't poison the
// next detection.
func (d *Detector) Reset() {
	d.hasBaseline = false
}

// Baseline returns the current rolling baseline and whether one is set.
func (d *Detector) Baseline() (float64, bool) {
	return d.baseline, d.hasBaseline
}

// Brightness computes the mean luminance of the center third of the
// frame. The border is excluded so hands and shadows at the platen edge
// don't disturb the measurement.
func Brightness(frame image.Image) float64 {
	bounds := frame.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	x1 := bounds.Min.X + w/3
	x2 := bounds.Min.X + 2*w/3
	y1 := bounds.Min.Y + h/3
	y2 := bounds.Min.Y + 2*h/3
	if x2 <= x1 {
		x2 = x1 + 1
	}
	if y2 <= y1 {
		y2 = y1 + 1
	}

	var sum float64
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			r, g, b, _ := frame.At(x, y).RGBA()
			// ITU-R BT.601 luminance weights.
			sum += float64(r>>8)*0.299 + float64(g>>8)*0.587 + float64(b>>8)*0.114
		}
	}
	return sum / float64((x2-x1)*(y2-y1))
}
