package mask

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// CoverageThreshold is the luminance value above which a mask pixel counts as
// covered. Masks are conceptually binary but arrive as 8-bit grayscale rasters.
const CoverageThreshold = 128

// BBox is an axis-aligned bounding rectangle in image-pixel coordinates.
// Containment checks are inclusive on all four edges.
type BBox struct {
	XMin int
	YMin int
	XMax int
	YMax int
}

// Contains reports whether the point (x, y) lies within the box, edges included.
func (b BBox) Contains(x, y int) bool {
	return b.XMin <= x && x <= b.XMax && b.YMin <= y && y <= b.YMax
}

// MarshalJSON encodes the box as the wire-format array [xMin, yMin, xMax, yMax].
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.XMin, b.YMin, b.XMax, b.YMax})
}

// UnmarshalJSON accepts the wire-format array. Extra elements beyond the first
// four are ignored to tolerate upstream services that append extra fields.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("bbox must be an integer array: %w", err)
	}
	if len(values) < 4 {
		return fmt.Errorf("bbox must contain at least 4 values, got %d", len(values))
	}
	b.XMin, b.YMin, b.XMax, b.YMax = values[0], values[1], values[2], values[3]
	return nil
}

// Mask is a single segmented region of an image. Bitmap holds a PNG-encoded
// single-channel raster whose resolution may differ from the image's; it is
// immutable once created and resampled on demand at render time. Area is the
// covered pixel count, not the bbox area, and serves as the specificity metric
// for point resolution.
type Mask struct {
	ID     int
	Bitmap []byte
	BBox   BBox
	Area   int
	Score  float64
}

// Record binds an uploaded image to its mask collection. The mask slice is
// replaced as a whole by a segmentation cycle, never merged.
type Record struct {
	ImageID   string
	ImagePNG  []byte
	Width     int
	Height    int
	CreatedAt time.Time
	Masks     []Mask
}

// persistedMask and persistedRecord mirror the flat storage shape owned by the
// storage collaborator. Records must round-trip through exactly this shape.
type persistedMask struct {
	ID      int     `json:"id"`
	MaskB64 string  `json:"mask_b64"`
	BBox    BBox    `json:"bbox"`
	Area    int     `json:"area"`
	Score   float64 `json:"score,omitempty"`
}

type persistedRecord struct {
	OriginalImageB64 string          `json:"original_image_b64"`
	Masks            []persistedMask `json:"masks"`
	Width            int             `json:"width"`
	Height           int             `json:"height"`
	CreatedAt        string          `json:"created_at"`
}

// EncodeRecord serializes a record into the persisted JSON shape.
func EncodeRecord(record *Record) ([]byte, error) {
	persisted := persistedRecord{
		OriginalImageB64: base64.StdEncoding.EncodeToString(record.ImagePNG),
		Masks:            make([]persistedMask, 0, len(record.Masks)),
		Width:            record.Width,
		Height:           record.Height,
		CreatedAt:        record.CreatedAt.Format(time.RFC3339Nano),
	}
	for _, m := range record.Masks {
		persisted.Masks = append(persisted.Masks, persistedMask{
			ID:      m.ID,
			MaskB64: base64.StdEncoding.EncodeToString(m.Bitmap),
			BBox:    m.BBox,
			Area:    m.Area,
			Score:   m.Score,
		})
	}
	return json.Marshal(persisted)
}

// DecodeRecord parses the persisted JSON shape back into a record. The image
// id is not part of the persisted payload and must be supplied by the caller.
func DecodeRecord(imageID string, data []byte) (*Record, error) {
	var persisted persistedRecord
	if err := json.Unmarshal(data, &persisted); err != nil {
		return nil, fmt.Errorf("failed to parse stored record for %s: %w", imageID, err)
	}

	imagePNG, err := base64.StdEncoding.DecodeString(persisted.OriginalImageB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored image for %s: %w", imageID, err)
	}

	record := &Record{
		ImageID:  imageID,
		ImagePNG: imagePNG,
		Width:    persisted.Width,
		Height:   persisted.Height,
		Masks:    make([]Mask, 0, len(persisted.Masks)),
	}

	if persisted.CreatedAt != "" {
		createdAt, err := time.Parse(time.RFC3339Nano, persisted.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for %s: %w", imageID, err)
		}
		record.CreatedAt = createdAt
	}

	for _, m := range persisted.Masks {
		bitmap, err := base64.StdEncoding.DecodeString(m.MaskB64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode bitmap of mask %d for %s: %w", m.ID, imageID, err)
		}
		record.Masks = append(record.Masks, Mask{
			ID:     m.ID,
			Bitmap: bitmap,
			BBox:   m.BBox,
			Area:   m.Area,
			Score:  m.Score,
		})
	}

	return record, nil
}

// RenderInstruction selects one mask for compositing. A nil Color reveals the
// original image pixels under the mask instead of painting a flat color.
type RenderInstruction struct {
	MaskID int
	Color  *Color
}
