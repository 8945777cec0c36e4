// Package segmentation produces mask collections for uploaded images. Sources
// are tried in a fixed order so a failing remote service degrades to the
// deterministic mock source instead of failing the upload.
package segmentation

import (
	"context"
	"fmt"
	"log/slog"

	"maskframe/internal/mask"
)

// Source produces a mask collection for an image. Implementations must not
// mutate the image bytes.
type Source interface {
	Name() string
	GenerateMasks(ctx context.Context, imagePNG []byte, width, height int) ([]mask.Mask, error)
}

// Chain tries each source in order and returns the first successful result.
type Chain struct {
	sources []Source
}

func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources}
}

func (c *Chain) GenerateMasks(ctx context.Context, imagePNG []byte, width, height int) ([]mask.Mask, error) {
	if len(c.sources) == 0 {
		return nil, fmt.Errorf("no mask sources configured")
	}

	var lastErr error
	for _, source := range c.sources {
		masks, err := source.GenerateMasks(ctx, imagePNG, width, height)
		if err == nil {
			slog.Info("segmentation source produced masks",
				"source", source.Name(), "masks", len(masks))
			return masks, nil
		}
		slog.Error("segmentation source failed, trying next",
			"source", source.Name(), "error", err)
		lastErr = err
	}
	return nil, fmt.Errorf("all mask sources failed: %w", lastErr)
}

// MockSource adapts the deterministic synthesizer to the Source interface.
type MockSource struct{}

func (MockSource) Name() string {
	return "mock"
}

func (MockSource) GenerateMasks(_ context.Context, _ []byte, width, height int) ([]mask.Mask, error) {
	return mask.Synthesize(width, height)
}
