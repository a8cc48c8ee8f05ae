package ocr

import (
	"context"
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	"github.com/rotisserie/eris"

	"github.com/gradebot/sheetscan/internal/config"
)

// Tesseract reads the identity region through a local Tesseract install
// via gosseract. Tesseract wants a file path, so each read round-trips
// the crop through a temp PNG.
type Tesseract struct {
	cfg config.OCRConfig
}

// NewTesseract builds a reader for the configured language.
func NewTesseract(cfg config.OCRConfig) *Tesseract {
	return &Tesseract{cfg: cfg}
}

// Read recognizes the region and returns the raw text with the mean
// word-level confidence.
//
// Narrow crops are upscaled to cfg.MinWidth before recognition;
// handwriting in a small name box recognizes noticeably better at higher
// resolution. If word-level confidence extraction fails the text is still
// returned with confidence 0.
func (t *Tesseract) Read(ctx context.Context, region image.Image) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	prepared := region
	if w := region.Bounds().Dx(); t.cfg.MinWidth > 0 && w < t.cfg.MinWidth {
		scale := float64(t.cfg.MinWidth) / float64(w)
		prepared = imaging.Resize(region, t.cfg.MinWidth, int(float64(region.Bounds().Dy())*scale), imaging.Lanczos)
	}

	tmp, err := os.CreateTemp("", "sheetscan-ocr-*.png")
	if err != nil {
		return "", 0, eris.Wrap(err, "ocr: create temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := png.Encode(tmp, prepared); err != nil {
		tmp.Close()
		return "", 0, eris.Wrap(err, "ocr: encode temp image")
	}
	tmp.Close()

	client := gosseract.NewClient()
	defer client.Close()

	if t.cfg.Language != "" {
		if err := client.SetLanguage(t.cfg.Language); err != nil {
			return "", 0, eris.Wrap(ErrUnavailable, err.Error())
		}
	}
	if err := client.SetImage(tmpPath); err != nil {
		return "", 0, eris.Wrap(ErrUnavailable, err.Error())
	}

	text, err := client.Text()
	if err != nil {
		return "", 0, eris.Wrap(ErrUnavailable, err.Error())
	}
	text = strings.TrimSpace(text)

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Text still came back; surface it without a confidence claim.
		return text, 0, nil
	}

	var sum float64
	var n int
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		sum += float64(box.Confidence) / 100.0
		n++
	}
	if n == 0 {
		return text, 0, nil
	}
	return text, sum / float64(n), nil
}
