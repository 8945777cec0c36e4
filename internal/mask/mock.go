package mask

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
)

// mockRegion places one synthetic mask proportionally within the image.
type mockRegion struct {
	xRatio float64
	yRatio float64
	wRatio float64
	hRatio float64
	score  float64
}

// mockRegions is the fixed layout of the synthetic mask collection. Scores
// decrease monotonically so the first region is always the most confident.
var mockRegions = []mockRegion{
	{xRatio: 0.10, yRatio: 0.20, wRatio: 0.30, hRatio: 0.40, score: 0.95},
	{xRatio: 0.45, yRatio: 0.15, wRatio: 0.40, hRatio: 0.50, score: 0.92},
	{xRatio: 0.70, yRatio: 0.25, wRatio: 0.25, hRatio: 0.35, score: 0.88},
	{xRatio: 0.20, yRatio: 0.05, wRatio: 0.60, hRatio: 0.15, score: 0.85},
	{xRatio: 0.30, yRatio: 0.65, wRatio: 0.40, hRatio: 0.30, score: 0.82},
	{xRatio: 0.15, yRatio: 0.35, wRatio: 0.15, hRatio: 0.25, score: 0.78},
	{xRatio: 0.55, yRatio: 0.30, wRatio: 0.15, hRatio: 0.20, score: 0.75},
	{xRatio: 0.40, yRatio: 0.45, wRatio: 0.12, hRatio: 0.20, score: 0.72},
}

// Synthesize deterministically derives a mask collection from image dimensions
// alone. It is used whenever no real segmentation result is available and
// always succeeds for positive dimensions. Each mask is a filled rectangle, so
// its area is exactly w*h.
func Synthesize(width, height int) ([]Mask, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("image dimensions must be positive, got %dx%d", width, height)
	}

	masks := make([]Mask, 0, len(mockRegions))
	for i, region := range mockRegions {
		w := int(math.Round(region.wRatio * float64(width)))
		h := int(math.Round(region.hRatio * float64(height)))
		x := clamp(int(math.Round(region.xRatio*float64(width))), 0, width-w)
		y := clamp(int(math.Round(region.yRatio*float64(height))), 0, height-h)

		bitmap, err := rectangleBitmap(width, height, x, y, w, h)
		if err != nil {
			return nil, fmt.Errorf("failed to build mock mask %d: %w", i+1, err)
		}

		masks = append(masks, Mask{
			ID:     i + 1,
			Bitmap: bitmap,
			BBox:   BBox{XMin: x, YMin: y, XMax: x + w, YMax: y + h},
			Area:   w * h,
			Score:  region.score,
		})
	}

	return masks, nil
}

// rectangleBitmap encodes a full-resolution grayscale raster that is white
// inside the rectangle and black elsewhere.
func rectangleBitmap(width, height, x, y, w, h int) ([]byte, error) {
	bitmap := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(bitmap, image.Rect(x, y, x+w, y+h), image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, bitmap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clamp(value, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
