package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"

	_ "golang.org/x/image/bmp" // register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	apperrors "github.com/lueurxax/phrase-relay-bot/internal/core/errors"
)

// Prepared is a decoded and re-encoded image ready for any engine.
type Prepared struct {
	PNG          []byte
	SourceFormat string
	Width        int
	Height       int
	Scaled       bool
}

// Limits bound the work Prepare does on untrusted input. Zero disables a limit.
type Limits struct {
	MaxBytes     int
	MaxPixels    int64
	MaxDimension int
}

// Prepare decodes an image in any supported format, shrinks it so neither side
// exceeds MaxDimension and re-encodes it as PNG.
//
// The header is read first so an image whose pixel count exceeds MaxPixels is
// rejected before any pixel buffer is allocated.
func Prepare(data []byte, limits Limits) (Prepared, error) {
	if limits.MaxBytes > 0 && len(data) > limits.MaxBytes {
		return Prepared{}, fmt.Errorf("%w: %d bytes, limit %d", apperrors.ErrImageTooLarge, len(data), limits.MaxBytes)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Prepared{}, fmt.Errorf("%w: %w", apperrors.ErrUnsupportedImage, err)
	}

	if pixels := int64(cfg.Width) * int64(cfg.Height); limits.MaxPixels > 0 && pixels > limits.MaxPixels {
		return Prepared{}, fmt.Errorf("%w: %dx%d pixels, limit %d", apperrors.ErrImageTooLarge, cfg.Width, cfg.Height, limits.MaxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Prepared{}, fmt.Errorf("%w: %w", apperrors.ErrUnsupportedImage, err)
	}

	out := Prepared{SourceFormat: format}

	img := src
	if w, h, ok := fitWithin(src.Bounds(), limits.MaxDimension); ok {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		img = dst
		out.Scaled = true
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Prepared{}, fmt.Errorf("encode png: %w", err)
	}

	out.PNG = buf.Bytes()
	out.Width = img.Bounds().Dx()
	out.Height = img.Bounds().Dy()

	return out, nil
}

// fitWithin returns the scaled size that keeps the aspect ratio with both sides
// at most maxDim. ok is false when no scaling is needed.
func fitWithin(b image.Rectangle, maxDim int) (w, h int, ok bool) {
	w, h = b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h, false
	}

	if w >= h {
		h = max(1, h*maxDim/w)
		w = maxDim
	} else {
		w = max(1, w*maxDim/h)
		h = maxDim
	}

	return w, h, true
}
