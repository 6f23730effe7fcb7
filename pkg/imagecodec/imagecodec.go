// Package imagecodec turns request payloads into decoded rasters and back into
// compact encodings for remote detectors.
package imagecodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels matches the usual decompression-bomb ceiling of about 89M
// pixels (1 GiB of 24-bit RGB at 4 bytes per pixel).
const DefaultMaxPixels = 1024 * 1024 * 1024 / 4 / 3

var (
	ErrEmptyImage    = errors.New("empty image data")
	ErrTooManyPixels = errors.New("image exceeds pixel limit")
)

// StripDataURI drops a "data:<mime>;base64," header. Anything up to the first
// comma is treated as the header.
func StripDataURI(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[i+1:]
	}
	return s
}

// DecodeBase64 accepts padded or unpadded standard base64, with or without a
// data URI header. Embedded whitespace is ignored.
func DecodeBase64(s string) ([]byte, error) {
	payload := strings.Join(strings.Fields(StripDataURI(s)), "")
	if payload == "" {
		return nil, ErrEmptyImage
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err == nil {
		return data, nil
	}

	if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); rawErr == nil {
		return raw, nil
	}

	return nil, fmt.Errorf("invalid base64 image data: %w", err)
}

// Decode returns the raster and the registered format name, refusing images
// larger than DefaultMaxPixels.
func Decode(data []byte) (image.Image, string, error) {
	return DecodeWithLimit(data, DefaultMaxPixels)
}

// DecodeWithLimit reads the header first and rejects images whose declared
// size exceeds maxPixels before any pixel buffer is allocated. maxPixels <= 0
// means DefaultMaxPixels.
func DecodeWithLimit(data []byte, maxPixels int64) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("cannot identify image file: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d is %d pixels, limit %d", ErrTooManyPixels, cfg.Width, cfg.Height, pixels, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("cannot identify image file: %w", err)
	}

	return img, format, nil
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PrepareForModel shrinks img so neither side exceeds maxDim and re-encodes it
// as JPEG. maxDim <= 0 keeps the original size.
func PrepareForModel(img image.Image, maxDim int, quality int) ([]byte, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	if quality <= 0 || quality > 100 {
		quality = 85
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
