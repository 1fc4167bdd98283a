// Package imageprep validates and normalizes captured or uploaded photos
// before they are sent to the analysis endpoint: EXIF orientation correction,
// downscaling to the transfer envelope and data-URL encoding.
package imageprep

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/apex/log"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
)

const dataURLPrefix = "data:image/jpeg;base64,"

// ErrNotAnImage rejects payloads whose header does not decode as a supported
// raster format.
var ErrNotAnImage = errors.New("payload is not a decodable image")

// Orientation extracts the EXIF orientation from JPEG data. Missing or
// unreadable EXIF yields the default orientation 1.
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	value, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return value
}

// correctOrientation applies the EXIF orientation to the decoded image.
func correctOrientation(img image.Image, orientation int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	switch orientation {
	case 2: // Flip horizontal
		out := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Set(width-1-x, y, img.At(x, y))
			}
		}
		return out
	case 3: // Rotate 180
		out := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Set(width-1-x, height-1-y, img.At(x, y))
			}
		}
		return out
	case 4: // Flip vertical
		out := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Set(x, height-1-y, img.At(x, y))
			}
		}
		return out
	case 6: // Rotate 90 clockwise
		out := image.NewRGBA(image.Rect(0, 0, height, width))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Set(height-1-y, x, img.At(x, y))
			}
		}
		return out
	case 8: // Rotate 90 counter-clockwise
		out := image.NewRGBA(image.Rect(0, 0, height, width))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Set(y, width-1-x, img.At(x, y))
			}
		}
		return out
	default: // Orientation 1 or unknown
		return img
	}
}

// Check verifies the payload header decodes as an image and returns its
// dimensions.
func Check(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Prepare orients the photo upright and scales it to fit within maxDimension
// while preserving aspect ratio, re-encoding as JPEG with the given quality.
// Payloads already upright and within the envelope pass through unchanged.
func Prepare(data []byte, maxDimension, quality int) ([]byte, error) {
	orientation := Orientation(data)

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}

	if orientation != 1 {
		img = correctOrientation(img, orientation)
		log.Infof("Applied orientation correction: %d", orientation)
	}

	bounds := img.Bounds()
	originalWidth := bounds.Dx()
	originalHeight := bounds.Dy()

	if orientation == 1 && originalWidth <= maxDimension && originalHeight <= maxDimension {
		return data, nil
	}

	newWidth, newHeight := originalWidth, originalHeight
	if originalWidth > maxDimension || originalHeight > maxDimension {
		scaleX := float64(maxDimension) / float64(originalWidth)
		scaleY := float64(maxDimension) / float64(originalHeight)
		scale := scaleX
		if scaleY < scaleX {
			scale = scaleY
		}
		newWidth = int(float64(originalWidth) * scale)
		newHeight = int(float64(originalHeight) * scale)
	}

	out := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), img, img.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode prepared image: %w", err)
	}

	prepared := buf.Bytes()
	log.Infof("Image prepared: %d bytes -> %d bytes (original: %dx%d, new: %dx%d, orientation: %d)",
		len(data), len(prepared), originalWidth, originalHeight, newWidth, newHeight, orientation)
	return prepared, nil
}

// EncodeDataURL wraps JPEG bytes in the data-URL form the analysis endpoint
// expects.
func EncodeDataURL(data []byte) string {
	return dataURLPrefix + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL extracts raw image bytes from a data-URL payload. Raw base64
// without a prefix is accepted for convenience.
func DecodeDataURL(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 {
			return nil, errors.New("malformed data URL: missing comma")
		}
		if !strings.HasPrefix(s, "data:image/") {
			return nil, errors.New("malformed data URL: not an image media type")
		}
		s = s[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image payload: %w", err)
	}
	return data, nil
}
