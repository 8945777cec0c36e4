package store

import (
	"crypto/rand"
	"fmt"
	"time"
)

// NewImageID generates an image id of the form img_<timestamp>_<8 hex chars>.
// The timestamp keeps ids roughly sortable by creation time; the random suffix
// makes them unique.
func NewImageID() (string, error) {
	var suffix [4]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", fmt.Errorf("failed to generate image id: %w", err)
	}
	return fmt.Sprintf("img_%s_%x", time.Now().Format("20060102_150405"), suffix), nil
}
