package imageprep

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
)

func encodeTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestCheck(t *testing.T) {
	data := encodeTestJPEG(t, 64, 48)

	width, height, err := Check(data)
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if width != 64 || height != 48 {
		t.Errorf("Check() = %dx%d, want 64x48", width, height)
	}
}

func TestCheckRejectsNonImage(t *testing.T) {
	if _, _, err := Check([]byte("definitely not a jpeg")); err == nil {
		t.Error("Check() must reject non-image payloads")
	}
}

func TestPreparePassThrough(t *testing.T) {
	data := encodeTestJPEG(t, 100, 80)

	prepared, err := Prepare(data, 512, 90)
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	if !bytes.Equal(prepared, data) {
		t.Error("images within the envelope must pass through unchanged")
	}
}

func TestPrepareDownscales(t *testing.T) {
	data := encodeTestJPEG(t, 800, 400)

	prepared, err := Prepare(data, 200, 90)
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}

	width, height, err := Check(prepared)
	if err != nil {
		t.Fatalf("prepared image not decodable: %v", err)
	}
	if width != 200 || height != 100 {
		t.Errorf("prepared dimensions = %dx%d, want 200x100 (aspect preserved)", width, height)
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	data := encodeTestJPEG(t, 32, 32)

	url := EncodeDataURL(data)
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Fatalf("EncodeDataURL prefix wrong: %s", url[:30])
	}

	decoded, err := DecodeDataURL(url)
	if err != nil {
		t.Fatalf("DecodeDataURL() error: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Error("data URL round trip must recover the original bytes")
	}
}

func TestDecodeDataURLRejectsNonImage(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"wrong media type", "data:text/plain;base64,aGVsbG8="},
		{"missing comma", "data:image/jpeg;base64"},
		{"bad base64", "data:image/jpeg;base64,!!!not-base64!!!"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeDataURL(tc.input); err == nil {
				t.Errorf("DecodeDataURL(%q) expected error", tc.input)
			}
		})
	}
}
