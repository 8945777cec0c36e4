package mask

import (
	"fmt"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an 8-bit RGBA paint color for render instructions.
type Color struct {
	R uint8
	G uint8
	B uint8
	A uint8
}

// RGBA returns a fully opaque color.
func RGBA(r, g, b, a uint8) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// ParseHexColor normalizes a #RRGGBB or #RRGGBBAA hex string into a Color.
// A six-digit string yields a fully opaque color.
func ParseHexColor(value string) (Color, error) {
	if len(value) != 7 && len(value) != 9 {
		return Color{}, fmt.Errorf("invalid color %q: expected #RRGGBB or #RRGGBBAA", value)
	}

	parsed, err := colorful.Hex(value[:7])
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", value, err)
	}
	r, g, b := parsed.RGB255()

	alpha := uint8(255)
	if len(value) == 9 {
		a, err := strconv.ParseUint(value[7:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("invalid alpha in color %q: %w", value, err)
		}
		alpha = uint8(a)
	}

	return Color{R: r, G: g, B: b, A: alpha}, nil
}
