package imagecodec

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), 200, uint8(y), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestStripDataURI(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"data:image/png;base64,QUJD", "QUJD"},
		{"data:image/jpeg;base64,", ""},
		{"QUJD", "QUJD"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := StripDataURI(tt.in); got != tt.want {
			t.Errorf("StripDataURI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeBase64(t *testing.T) {
	raw := pngBytes(t, 1, 1)
	padded := base64.StdEncoding.EncodeToString(raw)
	unpadded := base64.RawStdEncoding.EncodeToString(raw)

	for name, in := range map[string]string{
		"plain":    padded,
		"data uri": "data:image/png;base64," + padded,
		"unpadded": unpadded,
		"wrapped":  padded[:8] + "\n" + padded[8:],
	} {
		got, err := DecodeBase64(in)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
			continue
		}
		if !bytes.Equal(got, raw) {
			t.Errorf("%s: decoded bytes differ from source", name)
		}
	}
}

func TestDecodeBase64Rejects(t *testing.T) {
	if _, err := DecodeBase64(""); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("empty input: expected ErrEmptyImage, got %v", err)
	}
	if _, err := DecodeBase64("data:image/png;base64,"); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("header only: expected ErrEmptyImage, got %v", err)
	}
	if _, err := DecodeBase64("not*base64!"); err == nil {
		t.Error("expected error for malformed base64")
	}
}

func TestDecode(t *testing.T) {
	img, format, err := Decode(pngBytes(t, 3, 2))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if format != "png" {
		t.Errorf("expected format png, got %s", format)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Errorf("expected 3x2 image, got %dx%d", b.Dx(), b.Dy())
	}

	if _, _, err := Decode([]byte("definitely not an image")); err == nil {
		t.Error("expected error for non-image bytes")
	}
	if _, _, err := Decode(nil); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("expected ErrEmptyImage, got %v", err)
	}
}

func TestPrepareForModelResizes(t *testing.T) {
	img, _, err := Decode(pngBytes(t, 200, 100))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}

	out, err := PrepareForModel(img, 50, 90)
	if err != nil {
		t.Fatalf("PrepareForModel returned error: %v", err)
	}

	resized, format, err := Decode(out)
	if err != nil {
		t.Fatalf("decode prepared image: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg output, got %s", format)
	}
	if b := resized.Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("expected 50x25, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestPrepareForModelKeepsSmallImages(t *testing.T) {
	img, _, _ := Decode(pngBytes(t, 20, 10))

	out, err := PrepareForModel(img, 50, 0)
	if err != nil {
		t.Fatalf("PrepareForModel returned error: %v", err)
	}
	kept, _, err := Decode(out)
	if err != nil {
		t.Fatalf("decode prepared image: %v", err)
	}
	if b := kept.Bounds(); b.Dx() != 20 || b.Dy() != 10 {
		t.Errorf("expected 20x10, got %dx%d", b.Dx(), b.Dy())
	}
}

// withDeclaredSize rewrites the IHDR dimensions of a PNG and fixes its CRC, so
// the header claims a size the pixel data never backs.
func withDeclaredSize(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	if string(out[12:16]) != "IHDR" {
		t.Fatalf("fixture does not start with IHDR")
	}
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestDecodeRejectsOversizedHeader(t *testing.T) {
	bomb := withDeclaredSize(t, pngBytes(t, 1, 1), 30000, 30000)

	_, _, err := Decode(bomb)
	if !errors.Is(err, ErrTooManyPixels) {
		t.Fatalf("expected ErrTooManyPixels, got %v", err)
	}
}

func TestDecodeWithLimit(t *testing.T) {
	data := pngBytes(t, 4, 4)

	if _, _, err := DecodeWithLimit(data, 15); !errors.Is(err, ErrTooManyPixels) {
		t.Errorf("expected 16 pixels to exceed a limit of 15, got %v", err)
	}
	if _, _, err := DecodeWithLimit(data, 16); err != nil {
		t.Errorf("expected 16 pixels to fit a limit of 16, got %v", err)
	}
	if _, _, err := DecodeWithLimit(data, 0); err != nil {
		t.Errorf("expected zero limit to fall back to the default, got %v", err)
	}
}
