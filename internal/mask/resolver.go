package mask

import "sort"

// ContainingMasks returns the ids of all masks whose bounding box contains
// (x, y), ordered from most to least specific (ascending covered area).
// Masks with equal area keep their collection order, so repeated calls with
// the same input produce the same ordering.
func ContainingMasks(masks []Mask, x, y int) []int {
	type candidate struct {
		id   int
		area int
	}

	var containing []candidate
	for _, m := range masks {
		if m.BBox.Contains(x, y) {
			containing = append(containing, candidate{id: m.ID, area: m.Area})
		}
	}

	sort.SliceStable(containing, func(i, j int) bool {
		return containing[i].area < containing[j].area
	})

	ids := make([]int, 0, len(containing))
	for _, c := range containing {
		ids = append(ids, c.id)
	}
	return ids
}

// ResolveMaskAt returns the id of the smallest-area mask whose bounding box
// contains (x, y). The second return value is false when no mask contains the
// point, which is a normal outcome rather than an error. Coordinates must be
// validated against the image bounds by the caller.
func ResolveMaskAt(masks []Mask, x, y int) (int, bool) {
	best := -1
	for i, m := range masks {
		if !m.BBox.Contains(x, y) {
			continue
		}
		if best == -1 || m.Area < masks[best].Area {
			best = i
		}
	}
	if best == -1 {
		return 0, false
	}
	return masks[best].ID, true
}
