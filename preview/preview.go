// Package preview builds the before/after comparison written next to a
// calibration result.
package preview

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// DefaultQuality is the JPEG/WebP quality used for saved previews
const DefaultQuality = 90

// SideBySide places left and right next to each other on one canvas,
// top-aligned. When maxWidth > 0 the result is scaled down to fit it.
func SideBySide(left, right image.Image, maxWidth int) *image.NRGBA {
	lb, rb := left.Bounds(), right.Bounds()
	h := lb.Dy()
	if rb.Dy() > h {
		h = rb.Dy()
	}

	canvas := imaging.New(lb.Dx()+rb.Dx(), h, image.Black)
	canvas = imaging.Paste(canvas, left, image.Pt(0, 0))
	canvas = imaging.Paste(canvas, right, image.Pt(lb.Dx(), 0))

	if maxWidth > 0 && canvas.Bounds().Dx() > maxWidth {
		canvas = imaging.Resize(canvas, maxWidth, 0, imaging.Lanczos)
	}
	return canvas
}

// Save writes img to path, choosing the encoder from the extension
func Save(img image.Image, path string, quality int) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webp":
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "create %s", path)
		}
		defer f.Close()
		if err := webp.Encode(f, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return errors.Wrapf(err, "encode %s", path)
		}
		return nil
	case ".png":
		return errors.Wrapf(imaging.Save(img, path), "save %s", path)
	default:
		return errors.Wrapf(imaging.Save(img, path, imaging.JPEGQuality(quality)), "save %s", path)
	}
}
