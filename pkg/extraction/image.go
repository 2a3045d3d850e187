package extraction

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	_ "image/jpeg"

	"github.com/nfnt/resize"

	"github.com/waqedi/platform/pkg/faults"
)

// contrastBoost is the mild linear contrast factor applied before OCR.
const contrastBoost = 1.15

// preprocessImage prepares a photo or scan for OCR: decode, RGB conversion,
// bounded Lanczos resize, mild contrast boost, PNG re-encode. Deterministic,
// so failures here are never retried.
func preprocessImage(blob []byte, maxEdge int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, faults.Terminalf("IMAGE_UNDECODABLE", err, "decode image")
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxEdge || bounds.Dy() > maxEdge {
		img = resize.Thumbnail(uint(maxEdge), uint(maxEdge), img, resize.Lanczos3)
	}

	img = boostContrast(img, contrastBoost)

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, faults.Terminalf("IMAGE_ENCODE_FAILED", err, "encode png")
	}
	return out.Bytes(), nil
}

// boostContrast stretches channel values linearly around mid-gray.
func boostContrast(img image.Image, factor float64) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			out.SetNRGBA(x, y, color.NRGBA{
				R: stretch(uint8(r>>8), factor),
				G: stretch(uint8(g>>8), factor),
				B: stretch(uint8(b>>8), factor),
				A: uint8(a >> 8),
			})
		}
	}
	return out
}

func stretch(v uint8, factor float64) uint8 {
	f := (float64(v)-128)*factor + 128
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f)
}
