package render

import (
	"fmt"
	"image"
	"log/slog"

	"maskframe/internal/imaging"
	"maskframe/internal/mask"
)

// MaskDecodeError reports corrupt bitmap bytes for a mask that was selected by
// a render instruction. It aborts the whole render; partial results are never
// returned.
type MaskDecodeError struct {
	MaskID int
	Err    error
}

func (e *MaskDecodeError) Error() string {
	return fmt.Sprintf("failed to decode bitmap of mask %d: %v", e.MaskID, e.Err)
}

func (e *MaskDecodeError) Unwrap() error {
	return e.Err
}

// Compositor flattens ordered render instructions into a single PNG image.
// Instructions follow the painter's algorithm: later instructions composite on
// top of earlier ones. Pixel work within one instruction is spread across
// worker goroutines by row; the instruction list itself stays sequential so
// each instruction sees the effects of the previous one.
type Compositor struct {
	workers int
}

// NewCompositor creates a compositor. A non-positive worker count defers to
// GOMAXPROCS at render time.
func NewCompositor(workers int) *Compositor {
	return &Compositor{workers: workers}
}

// RenderOverlay paints the instructions onto a fully transparent canvas of the
// requested size. Pixels no instruction covers stay transparent.
func (c *Compositor) RenderOverlay(base image.Image, masks []mask.Mask, instructions []mask.RenderInstruction, width, height int) ([]byte, error) {
	return c.render(base, masks, instructions, width, height, false)
}

// RenderFlatten paints the instructions over the base image and discards
// transparency in the final output, producing a fully opaque image.
func (c *Compositor) RenderFlatten(base image.Image, masks []mask.Mask, instructions []mask.RenderInstruction, width, height int) ([]byte, error) {
	return c.render(base, masks, instructions, width, height, true)
}

func (c *Compositor) render(base image.Image, masks []mask.Mask, instructions []mask.RenderInstruction, width, height int, flatten bool) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("output dimensions must be positive, got %dx%d", width, height)
	}

	// The base is needed at output resolution in both modes: flatten starts
	// from it, and nil-color instructions reveal its pixels.
	baseCanvas := imaging.ResampleImage(base, width, height)

	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	if flatten {
		copy(canvas.Pix, baseCanvas.Pix)
	}

	bitmaps := make(map[int][]byte, len(masks))
	for _, m := range masks {
		bitmaps[m.ID] = m.Bitmap
	}

	slog.Debug("Compositor: rendering instructions",
		"instructions", len(instructions),
		"masks", len(masks),
		"width", width,
		"height", height,
		"flatten", flatten)

	for _, instruction := range instructions {
		bitmap, ok := bitmaps[instruction.MaskID]
		if !ok {
			// Unknown ids are skipped, not fatal.
			slog.Debug("Compositor: skipping unknown mask id", "mask_id", instruction.MaskID)
			continue
		}

		gray, err := imaging.DecodeMask(bitmap)
		if err != nil {
			return nil, &MaskDecodeError{MaskID: instruction.MaskID, Err: err}
		}
		gray = imaging.ResampleMask(gray, width, height)

		c.applyInstruction(canvas, baseCanvas, gray, instruction.Color, width, height)
	}

	if flatten {
		// Discard alpha: the flattened result is opaque by contract.
		for i := 3; i < len(canvas.Pix); i += 4 {
			canvas.Pix[i] = 255
		}
	}

	return imaging.EncodePNG(canvas)
}

// applyInstruction paints one instruction onto the canvas. Rows are processed
// in parallel; there is no cross-pixel dependency within an instruction.
func (c *Compositor) applyInstruction(canvas, baseCanvas *image.NRGBA, gray *image.Gray, color *mask.Color, width, height int) {
	parallelRows(height, c.workers, func(y int) {
		rowStart := y * canvas.Stride
		for x := 0; x < width; x++ {
			if gray.GrayAt(x, y).Y <= mask.CoverageThreshold {
				continue
			}

			offset := rowStart + x*4
			pixel := canvas.Pix[offset : offset+4 : offset+4]

			if color == nil {
				// Reveal the original image under this mask.
				copy(pixel, baseCanvas.Pix[offset:offset+4])
				continue
			}

			switch color.A {
			case 255:
				pixel[0], pixel[1], pixel[2], pixel[3] = color.R, color.G, color.B, 255
			case 0:
				// Fully transparent paint leaves the pixel untouched.
			default:
				// Linear blend per channel. Any blend with alpha > 0 leaves
				// the destination opaque; renders depend on this.
				a := int(color.A)
				pixel[0] = uint8((int(color.R)*a + int(pixel[0])*(255-a)) / 255)
				pixel[1] = uint8((int(color.G)*a + int(pixel[1])*(255-a)) / 255)
				pixel[2] = uint8((int(color.B)*a + int(pixel[2])*(255-a)) / 255)
				pixel[3] = 255
			}
		}
	})
}
