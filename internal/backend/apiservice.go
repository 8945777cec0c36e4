package backend

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"maskframe/internal/core"
	"maskframe/internal/mask"
	"maskframe/internal/render"
	"maskframe/internal/store"
)

type APIService struct {
	config      *core.ServiceConfig
	coreService *core.CoreService
}

func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService) *APIService {
	return &APIService{
		config:      config,
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "API Service is running")
	})

	e.POST("/images", s.generateAndStoreHandler)
	e.GET("/images", s.listImagesHandler)
	e.GET("/images/:id", s.getImageInfoHandler)
	e.GET("/images/:id/status", s.statusHandler)
	e.GET("/images/:id/mask_at_point", s.maskAtPointHandler)
	e.POST("/images/:id/render", s.renderHandler)
	e.POST("/images/:id/flatten", s.flattenHandler)
	e.DELETE("/images/:id", s.deleteImageHandler)
}

type generateRequest struct {
	OriginalImageB64 string `json:"original_image_b64" validate:"required"`
}

func (s *APIService) generateAndStoreHandler(c echo.Context) error {
	var request generateRequest
	if err := c.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	imageID := c.QueryParam("image_id")
	record, err := s.coreService.GenerateAndStore(c.Request().Context(), imageID, request.OriginalImageB64)
	if err != nil {
		slog.Error("generateAndStoreHandler: failed", "image_id", imageID, "error", err)
		if errors.Is(err, core.ErrImageExists) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	maskIDs := make([]int, 0, len(record.Masks))
	for _, m := range record.Masks {
		maskIDs = append(maskIDs, m.ID)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":    fmt.Sprintf("Masks generated and stored successfully for image_id: %s", record.ImageID),
		"image_id":   record.ImageID,
		"mask_count": len(record.Masks),
		"image_dimensions": map[string]int{
			"width":  record.Width,
			"height": record.Height,
		},
		"mask_ids": maskIDs,
	})
}

// renderInstructionDTO carries one wire-format instruction. Color accepts
// null, an [r,g,b,a] array or a "#RRGGBB"/"#RRGGBBAA" hex string; hex is
// normalized to RGBA here, before the compositor is involved.
type renderInstructionDTO struct {
	MaskID int        `json:"mask_id"`
	Color  colorValue `json:"color"`
}

type colorValue struct {
	color *mask.Color
}

func (v *colorValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		v.color = nil
		return nil
	}

	var hex string
	if err := json.Unmarshal(data, &hex); err == nil {
		parsed, err := mask.ParseHexColor(hex)
		if err != nil {
			return err
		}
		v.color = &parsed
		return nil
	}

	var channels []int
	if err := json.Unmarshal(data, &channels); err != nil {
		return fmt.Errorf("color must be null, a hex string or an [r,g,b,a] array")
	}
	if len(channels) != 4 {
		return fmt.Errorf("color array must contain exactly 4 values, got %d", len(channels))
	}
	for _, channel := range channels {
		if channel < 0 || channel > 255 {
			return fmt.Errorf("color channel %d out of range [0, 255]", channel)
		}
	}
	v.color = &mask.Color{
		R: uint8(channels[0]),
		G: uint8(channels[1]),
		B: uint8(channels[2]),
		A: uint8(channels[3]),
	}
	return nil
}

type renderRequest struct {
	RenderInstructions []renderInstructionDTO `json:"render_instructions" validate:"required"`
}

func (s *APIService) renderHandler(c echo.Context) error {
	return s.handleRender(c, false)
}

func (s *APIService) flattenHandler(c echo.Context) error {
	return s.handleRender(c, true)
}

func (s *APIService) handleRender(c echo.Context, flatten bool) error {
	imageID := c.Param("id")

	var request renderRequest
	if err := c.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	instructions := make([]mask.RenderInstruction, 0, len(request.RenderInstructions))
	for _, dto := range request.RenderInstructions {
		instructions = append(instructions, mask.RenderInstruction{
			MaskID: dto.MaskID,
			Color:  dto.Color.color,
		})
	}

	rendered, err := s.coreService.RenderMasks(c.Request().Context(), imageID, instructions, flatten)
	if err != nil {
		slog.Error("handleRender: failed", "image_id", imageID, "flatten", flatten, "error", err)
		var decodeErr *render.MaskDecodeError
		switch {
		case errors.Is(err, store.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Image with ID '%s' not found", imageID))
		case errors.Is(err, store.ErrNoMasks):
			return echo.NewHTTPError(http.StatusConflict, "Masks are still being generated. Please wait.")
		case errors.As(err, &decodeErr):
			return echo.NewHTTPError(http.StatusBadRequest, decodeErr.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message":            "Image rendered successfully with specified masks and colors",
		"rendered_image_b64": base64.StdEncoding.EncodeToString(rendered),
	})
}

func (s *APIService) maskAtPointHandler(c echo.Context) error {
	imageID := c.Param("id")

	x, err := strconv.Atoi(c.QueryParam("x"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter x must be an integer")
	}
	y, err := strconv.Atoi(c.QueryParam("y"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter y must be an integer")
	}

	result, err := s.coreService.ResolveMaskAt(c.Request().Context(), imageID, x, y)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Image with ID '%s' not found", imageID))
		case errors.Is(err, store.ErrNoMasks):
			return echo.NewHTTPError(http.StatusConflict, "Masks are still being generated. Please wait.")
		case errors.Is(err, core.ErrInvalidCoordinates):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			slog.Error("maskAtPointHandler: failed", "image_id", imageID, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	if result.MaskID == nil {
		return c.JSON(http.StatusOK, map[string]any{
			"message": fmt.Sprintf("No mask found containing point (%d, %d)", x, y),
			"point":   map[string]int{"x": x, "y": y},
			"mask_id": nil,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message":                fmt.Sprintf("Found mask containing point (%d, %d)", x, y),
		"point":                  map[string]int{"x": x, "y": y},
		"mask_id":                *result.MaskID,
		"mask_area":              result.Area,
		"mask_bbox":              result.BBox,
		"total_containing_masks": len(result.Containing),
		"all_containing_masks":   result.Containing,
	})
}

func (s *APIService) getImageInfoHandler(c echo.Context) error {
	imageID := c.Param("id")

	record, err := s.coreService.GetRecord(c.Request().Context(), imageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Image with ID '%s' not found", imageID))
		}
		slog.Error("getImageInfoHandler: failed", "image_id", imageID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	masks := make([]map[string]any, 0, len(record.Masks))
	for _, m := range record.Masks {
		masks = append(masks, map[string]any{
			"id":       m.ID,
			"area":     m.Area,
			"bbox":     m.BBox,
			"mask_b64": base64.StdEncoding.EncodeToString(m.Bitmap),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"image_id":           record.ImageID,
		"width":              record.Width,
		"height":             record.Height,
		"created_at":         record.CreatedAt.Format(time.RFC3339Nano),
		"original_image_b64": base64.StdEncoding.EncodeToString(record.ImagePNG),
		"available_masks":    masks,
	})
}

func (s *APIService) statusHandler(c echo.Context) error {
	imageID := c.Param("id")

	record, err := s.coreService.GetRecord(c.Request().Context(), imageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Image with ID '%s' not found", imageID))
		}
		slog.Error("statusHandler: failed", "image_id", imageID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	status := "ready"
	if len(record.Masks) == 0 {
		status = "pending"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"image_id":   record.ImageID,
		"status":     status,
		"mask_count": len(record.Masks),
		"image_info": map[string]int{
			"width":  record.Width,
			"height": record.Height,
		},
	})
}

func (s *APIService) listImagesHandler(c echo.Context) error {
	summaries, err := s.coreService.ListImages(c.Request().Context())
	if err != nil {
		slog.Error("listImagesHandler: failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	images := make([]map[string]any, 0, len(summaries))
	for _, summary := range summaries {
		images = append(images, map[string]any{
			"image_id":   summary.ImageID,
			"width":      summary.Width,
			"height":     summary.Height,
			"created_at": summary.CreatedAt.Format(time.RFC3339Nano),
			"mask_count": summary.MaskCount,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"images": images})
}

func (s *APIService) deleteImageHandler(c echo.Context) error {
	imageID := c.Param("id")

	if err := s.coreService.DeleteImage(c.Request().Context(), imageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Image with ID '%s' not found", imageID))
		}
		slog.Error("deleteImageHandler: failed", "image_id", imageID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message":  fmt.Sprintf("Image '%s' deleted successfully", imageID),
		"image_id": imageID,
	})
}
