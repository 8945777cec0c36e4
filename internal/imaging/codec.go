package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log/slog"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// pngSignature is the fixed 8-byte prefix of every PNG stream.
var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// HasPNGSignature checks whether the provided data begins with a valid PNG signature.
func HasPNGSignature(data []byte) bool {
	return len(data) >= 8 && bytes.Equal(data[:8], pngSignature)
}

// Decode parses a raster image from its compressed byte form. Supported
// formats are PNG, JPEG, GIF, BMP, TIFF and WebP via the registered decoders.
func Decode(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	slog.Debug("Codec: decoded image",
		"format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())
	return img, nil
}

// DecodeMask parses a single-channel mask raster. Multi-channel input is
// reduced to grayscale so threshold comparisons stay meaningful.
func DecodeMask(data []byte) (*image.Gray, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if gray, ok := img.(*image.Gray); ok {
		return gray, nil
	}

	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray, nil
}

// EncodePNG serializes an image to PNG bytes. PNG encoding is deterministic,
// so identical input produces byte-identical output.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// ToPNG normalizes arbitrary raster input to PNG bytes. PNG input is returned
// unchanged; other formats are decoded and re-encoded.
func ToPNG(data []byte) ([]byte, error) {
	if HasPNGSignature(data) {
		return data, nil
	}
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}
