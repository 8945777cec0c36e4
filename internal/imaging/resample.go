package imaging

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// ResampleMask scales a mask raster to the target dimensions using
// nearest-neighbor sampling. Hard binary edges must survive resampling so that
// threshold comparisons stay meaningful, which rules out smoothing filters.
// When the source already has the target dimensions the input is returned
// unchanged, so repeated calls cannot drift.
func ResampleMask(src *image.Gray, width, height int) *image.Gray {
	bounds := src.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return src
	}

	dst := image.NewGray(image.Rect(0, 0, width, height))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, bounds, xdraw.Src, nil)
	return dst
}

// ResampleImage scales color imagery to the target dimensions with a smooth
// Catmull-Rom filter and normalizes the result to NRGBA. A source that already
// matches the target dimensions is converted without resampling.
func ResampleImage(src image.Image, width, height int) *image.NRGBA {
	bounds := src.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return ToNRGBA(src)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Src, nil)
	return dst
}

// ToNRGBA returns the image as NRGBA pixels, copying only when necessary.
func ToNRGBA(src image.Image) *image.NRGBA {
	if nrgba, ok := src.(*image.NRGBA); ok && nrgba.Bounds().Min == (image.Point{}) {
		return nrgba
	}

	bounds := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, bounds.Min, xdraw.Src)
	return dst
}
