package mask

import (
	"bytes"
	"image"
	"image/png"
	"testing"
)

func TestSynthesize_ProducesEightBoundedMasks(t *testing.T) {
	const width, height = 400, 300

	masks, err := Synthesize(width, height)
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if len(masks) != 8 {
		t.Fatalf("expected 8 masks, got %d", len(masks))
	}

	for i, m := range masks {
		x := m.BBox.XMin
		y := m.BBox.YMin
		w := m.BBox.XMax - m.BBox.XMin
		h := m.BBox.YMax - m.BBox.YMin

		if x < 0 || y < 0 {
			t.Errorf("mask %d: negative origin (%d, %d)", i, x, y)
		}
		if x+w > width || y+h > height {
			t.Errorf("mask %d: rectangle (%d,%d %dx%d) exceeds %dx%d", i, x, y, w, h, width, height)
		}
		if m.Area != w*h {
			t.Errorf("mask %d: area %d does not match rectangle %dx%d", i, m.Area, w, h)
		}
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	first, err := Synthesize(640, 480)
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	second, err := Synthesize(640, 480)
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}

	for i := range first {
		if first[i].BBox != second[i].BBox || first[i].Area != second[i].Area {
			t.Errorf("mask %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
		if !bytes.Equal(first[i].Bitmap, second[i].Bitmap) {
			t.Errorf("mask %d bitmap differs between runs", i)
		}
	}
}

func TestSynthesize_UniqueDescendingScores(t *testing.T) {
	masks, err := Synthesize(100, 100)
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}

	seen := make(map[int]bool)
	for i, m := range masks {
		if seen[m.ID] {
			t.Errorf("duplicate mask id %d", m.ID)
		}
		seen[m.ID] = true
		if i > 0 && m.Score >= masks[i-1].Score {
			t.Errorf("mask %d score %v not below previous %v", i, m.Score, masks[i-1].Score)
		}
	}
}

func TestSynthesize_BitmapMatchesRectangle(t *testing.T) {
	masks, err := Synthesize(40, 30)
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}

	m := masks[0]
	img, err := png.Decode(bytes.NewReader(m.Bitmap))
	if err != nil {
		t.Fatalf("failed to decode mock bitmap: %v", err)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("expected grayscale bitmap, got %T", img)
	}
	if gray.Bounds().Dx() != 40 || gray.Bounds().Dy() != 30 {
		t.Fatalf("expected full-resolution bitmap, got %v", gray.Bounds())
	}

	covered := 0
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			if gray.GrayAt(x, y).Y > CoverageThreshold {
				covered++
				if !m.BBox.Contains(x, y) {
					t.Fatalf("covered pixel (%d, %d) outside bbox %+v", x, y, m.BBox)
				}
			}
		}
	}
	if covered != m.Area {
		t.Errorf("covered pixel count %d does not match area %d", covered, m.Area)
	}
}

func TestSynthesize_RejectsNonPositiveDimensions(t *testing.T) {
	if _, err := Synthesize(0, 100); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := Synthesize(100, -1); err == nil {
		t.Error("expected error for negative height")
	}
}
