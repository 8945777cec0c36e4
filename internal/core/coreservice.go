package core

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"maskframe/internal/imaging"
	"maskframe/internal/mask"
	"maskframe/internal/render"
	"maskframe/internal/segmentation"
	"maskframe/internal/store"
)

// ErrImageExists is returned when an upload names an image id that is already
// stored. Replacing an existing collection requires deleting the record first.
var ErrImageExists = errors.New("image id already exists")

// ErrInvalidCoordinates is returned for point queries outside the image bounds.
var ErrInvalidCoordinates = errors.New("coordinates outside image bounds")

// maskSource abstracts the segmentation chain for tests.
type maskSource interface {
	GenerateMasks(ctx context.Context, imagePNG []byte, width, height int) ([]mask.Mask, error)
}

// CoreService wires the store, the segmentation source chain and the
// compositor behind the operations the API exposes.
type CoreService struct {
	config     *ServiceConfig
	store      store.Store
	source     maskSource
	compositor *render.Compositor
}

func NewCoreService(config *ServiceConfig) *CoreService {
	recordStore, err := store.NewStore(config.Store.Type, config.Store.ConnectionString)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		panic(err)
	}

	return &CoreService{
		config:     config,
		store:      recordStore,
		source:     newSourceChain(config),
		compositor: render.NewCompositor(config.RenderWorkers),
	}
}

// newSourceChain builds the ordered mask-source list: the remote service when
// configured, always followed by the deterministic mock fallback.
func newSourceChain(config *ServiceConfig) *segmentation.Chain {
	var sources []segmentation.Source
	if config.Segmentation.Endpoint != "" {
		sources = append(sources, segmentation.NewClient(
			config.Segmentation.Endpoint,
			config.Segmentation.Token,
			time.Duration(config.Segmentation.TimeoutSeconds)*time.Second,
		))
	}
	sources = append(sources, segmentation.MockSource{})
	return segmentation.NewChain(sources...)
}

// newCoreServiceWith assembles a service from pre-built parts, for tests.
func newCoreServiceWith(config *ServiceConfig, recordStore store.Store, source maskSource) *CoreService {
	return &CoreService{
		config:     config,
		store:      recordStore,
		source:     source,
		compositor: render.NewCompositor(config.RenderWorkers),
	}
}

// GenerateAndStore ingests a base64 image, produces its mask collection via
// the source chain and stores the complete record atomically. When imageID is
// empty a unique id is generated; an explicit id must not already exist.
func (s *CoreService) GenerateAndStore(ctx context.Context, imageID, imageB64 string) (*mask.Record, error) {
	imageB64 = stripDataURLPrefix(imageB64)
	imageData, err := base64.StdEncoding.DecodeString(imageB64)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image data: %w", err)
	}

	imagePNG, err := imaging.ToPNG(imageData)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(imagePNG)
	if err != nil {
		return nil, err
	}
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	if imageID == "" {
		imageID, err = store.NewImageID()
		if err != nil {
			return nil, err
		}
	} else if _, err := s.store.Get(ctx, imageID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrImageExists, imageID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	masks, err := s.source.GenerateMasks(ctx, imagePNG, width, height)
	if err != nil {
		return nil, fmt.Errorf("mask generation failed: %w", err)
	}

	record := &mask.Record{
		ImageID:   imageID,
		ImagePNG:  imagePNG,
		Width:     width,
		Height:    height,
		CreatedAt: time.Now().UTC(),
		Masks:     masks,
	}
	if err := s.store.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store record %s: %w", imageID, err)
	}

	slog.Info("CoreService: stored image with masks",
		"image_id", imageID, "width", width, "height", height, "masks", len(masks))
	return record, nil
}

// RenderMasks composites the given instructions for a stored image. Overlay
// mode paints onto a transparent canvas; flatten mode paints over the original
// image and discards transparency. The result is a PNG at the image's native
// resolution.
func (s *CoreService) RenderMasks(ctx context.Context, imageID string, instructions []mask.RenderInstruction, flatten bool) ([]byte, error) {
	record, err := s.recordWithMasks(ctx, imageID)
	if err != nil {
		return nil, err
	}

	base, err := imaging.Decode(record.ImagePNG)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored image %s: %w", imageID, err)
	}

	if flatten {
		return s.compositor.RenderFlatten(base, record.Masks, instructions, record.Width, record.Height)
	}
	return s.compositor.RenderOverlay(base, record.Masks, instructions, record.Width, record.Height)
}

// ResolveResult reports the outcome of a point query. MaskID is nil when no
// mask contains the point, which is a normal outcome.
type ResolveResult struct {
	MaskID     *int
	Area       int
	BBox       mask.BBox
	Containing []int
}

// ResolveMaskAt finds the most specific mask covering (x, y). Out-of-bounds
// coordinates are rejected with ErrInvalidCoordinates before the resolver runs.
func (s *CoreService) ResolveMaskAt(ctx context.Context, imageID string, x, y int) (*ResolveResult, error) {
	record, err := s.recordWithMasks(ctx, imageID)
	if err != nil {
		return nil, err
	}

	if x < 0 || x >= record.Width || y < 0 || y >= record.Height {
		return nil, fmt.Errorf("%w: (%d, %d) not in %dx%d", ErrInvalidCoordinates, x, y, record.Width, record.Height)
	}

	containing := mask.ContainingMasks(record.Masks, x, y)
	if len(containing) == 0 {
		return &ResolveResult{}, nil
	}

	result := &ResolveResult{
		MaskID:     &containing[0],
		Containing: containing,
	}
	for _, m := range record.Masks {
		if m.ID == containing[0] {
			result.Area = m.Area
			result.BBox = m.BBox
			break
		}
	}
	return result, nil
}

// GetRecord returns the full stored record for an image id.
func (s *CoreService) GetRecord(ctx context.Context, imageID string) (*mask.Record, error) {
	return s.store.Get(ctx, imageID)
}

// ListImages returns one summary per stored record.
func (s *CoreService) ListImages(ctx context.Context) ([]store.Summary, error) {
	return s.store.List(ctx)
}

// DeleteImage removes an image and its mask collection together.
func (s *CoreService) DeleteImage(ctx context.Context, imageID string) error {
	return s.store.Delete(ctx, imageID)
}

func (s *CoreService) Close() error {
	return s.store.Close()
}

// recordWithMasks loads a record and distinguishes "image unknown" from
// "image present but masks pending".
func (s *CoreService) recordWithMasks(ctx context.Context, imageID string) (*mask.Record, error) {
	record, err := s.store.Get(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if len(record.Masks) == 0 {
		return nil, fmt.Errorf("%w: %s", store.ErrNoMasks, imageID)
	}
	return record, nil
}

// stripDataURLPrefix removes a leading data:image/...;base64, header if present.
func stripDataURLPrefix(imageB64 string) string {
	if strings.HasPrefix(imageB64, "data:image/") {
		if comma := strings.Index(imageB64, ","); comma != -1 {
			return imageB64[comma+1:]
		}
	}
	return imageB64
}
