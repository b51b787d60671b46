package ocr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	apperrors "github.com/lueurxax/phrase-relay-bot/internal/core/errors"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	return img
}

func encodeWith(t *testing.T, enc func(*bytes.Buffer, image.Image) error, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, enc(&buf, img))

	return buf.Bytes()
}

func TestPrepare_Formats(t *testing.T) {
	img := testImage(40, 20)

	tests := []struct {
		name   string
		data   []byte
		format string
	}{
		{
			name:   "png",
			data:   encodeWith(t, func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) }, img),
			format: "png",
		},
		{
			name:   "jpeg",
			data:   encodeWith(t, func(b *bytes.Buffer, i image.Image) error { return jpeg.Encode(b, i, nil) }, img),
			format: "jpeg",
		},
		{
			name:   "bmp",
			data:   encodeWith(t, func(b *bytes.Buffer, i image.Image) error { return bmp.Encode(b, i) }, img),
			format: "bmp",
		},
		{
			name:   "tiff",
			data:   encodeWith(t, func(b *bytes.Buffer, i image.Image) error { return tiff.Encode(b, i, nil) }, img),
			format: "tiff",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Prepare(tt.data, Limits{})
			require.NoError(t, err)

			assert.Equal(t, tt.format, got.SourceFormat)
			assert.Equal(t, 40, got.Width)
			assert.Equal(t, 20, got.Height)
			assert.False(t, got.Scaled)

			decoded, format, err := image.Decode(bytes.NewReader(got.PNG))
			require.NoError(t, err)
			assert.Equal(t, "png", format)
			assert.Equal(t, image.Rect(0, 0, 40, 20), decoded.Bounds())
		})
	}
}

func TestPrepare_Downscales(t *testing.T) {
	data := encodeWith(t, func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) }, testImage(200, 100))

	got, err := Prepare(data, Limits{MaxDimension: 50})
	require.NoError(t, err)

	assert.True(t, got.Scaled)
	assert.Equal(t, 50, got.Width)
	assert.Equal(t, 25, got.Height)
}

func TestPrepare_TooLarge(t *testing.T) {
	data := encodeWith(t, func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) }, testImage(10, 10))

	_, err := Prepare(data, Limits{MaxBytes: len(data) - 1})
	assert.True(t, errors.Is(err, apperrors.ErrImageTooLarge), "err = %v", err)
}

// pngHeader returns a PNG that is valid up to its IHDR chunk. DecodeConfig
// accepts it while a full decode would have to allocate w*h pixels.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 0 // grayscale

	chunk := append([]byte("IHDR"), ihdr...)

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))

	return buf.Bytes()
}

func TestPrepare_PixelBudget(t *testing.T) {
	t.Run("huge dimensions rejected before decoding", func(t *testing.T) {
		data := pngHeader(60000, 60000)

		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		require.Equal(t, 60000, cfg.Width)

		_, err = Prepare(data, Limits{MaxBytes: 20 << 20, MaxPixels: 40_000_000, MaxDimension: 4096})
		assert.True(t, errors.Is(err, apperrors.ErrImageTooLarge), "err = %v", err)
	})

	t.Run("small image over a tight budget", func(t *testing.T) {
		data := encodeWith(t, func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) }, testImage(40, 20))

		_, err := Prepare(data, Limits{MaxPixels: 799})
		assert.True(t, errors.Is(err, apperrors.ErrImageTooLarge), "err = %v", err)

		got, err := Prepare(data, Limits{MaxPixels: 800})
		require.NoError(t, err)
		assert.Equal(t, 40, got.Width)
	})
}

func TestPrepare_Garbage(t *testing.T) {
	_, err := Prepare([]byte("definitely not an image"), Limits{})
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedImage), "err = %v", err)
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		name         string
		w, h, maxDim int
		wantW, wantH int
		wantOK       bool
	}{
		{name: "disabled", w: 5000, h: 100, maxDim: 0, wantW: 5000, wantH: 100},
		{name: "already fits", w: 100, h: 80, maxDim: 100, wantW: 100, wantH: 80},
		{name: "landscape", w: 400, h: 100, maxDim: 200, wantW: 200, wantH: 50, wantOK: true},
		{name: "portrait", w: 100, h: 400, maxDim: 200, wantW: 50, wantH: 200, wantOK: true},
		{name: "thin strip keeps one pixel", w: 10000, h: 1, maxDim: 100, wantW: 100, wantH: 1, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, ok := fitWithin(image.Rect(0, 0, tt.w, tt.h), tt.maxDim)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
