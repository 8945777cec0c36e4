package segmentation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"maskframe/internal/mask"
)

// Client calls an external SAM-style segmentation service. The service is an
// opaque black box that accepts a base64 image and returns per-region masks as
// PNG-compatible single-channel rasters with trusted bbox and area values.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func NewClient(endpoint, token string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string {
	return "remote"
}

type segmentRequest struct {
	Image string `json:"image"`
}

type segmentResponseMask struct {
	ID      int       `json:"id"`
	MaskB64 string    `json:"mask_b64"`
	BBox    mask.BBox `json:"bbox"`
	Area    int       `json:"area"`
	Score   float64   `json:"score"`
}

type segmentResponse struct {
	ProcessedMasks []segmentResponseMask `json:"processed_masks"`
	Width          int                   `json:"width"`
	Height         int                   `json:"height"`
}

func (c *Client) GenerateMasks(ctx context.Context, imagePNG []byte, width, height int) ([]mask.Mask, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("segmentation endpoint not configured")
	}

	payload, err := json.Marshal(segmentRequest{
		Image: base64.StdEncoding.EncodeToString(imagePNG),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build segmentation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build segmentation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	slog.Debug("Client: calling segmentation service", "endpoint", c.endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("segmentation request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("segmentation service returned status %d: %s", resp.StatusCode, body)
	}

	var parsed segmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("invalid segmentation response: %w", err)
	}
	if len(parsed.ProcessedMasks) == 0 {
		return nil, fmt.Errorf("segmentation response contained no masks")
	}

	masks := make([]mask.Mask, 0, len(parsed.ProcessedMasks))
	for i, m := range parsed.ProcessedMasks {
		bitmap, err := base64.StdEncoding.DecodeString(m.MaskB64)
		if err != nil {
			return nil, fmt.Errorf("invalid bitmap for mask %d: %w", m.ID, err)
		}
		id := m.ID
		if id == 0 {
			id = i + 1
		}
		masks = append(masks, mask.Mask{
			ID:     id,
			Bitmap: bitmap,
			BBox:   m.BBox,
			Area:   m.Area,
			Score:  m.Score,
		})
	}
	return masks, nil
}
