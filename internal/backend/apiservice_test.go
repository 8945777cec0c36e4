package backend

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"maskframe/internal/common"
	"maskframe/internal/core"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	config := &core.ServiceConfig{
		Port:          8080,
		Store:         core.StoreConfig{Type: "memory"},
		RenderWorkers: 1,
	}
	coreService := core.NewCoreService(config)
	t.Cleanup(func() { _ = coreService.Close() })

	e := echo.New()
	e.Validator = common.NewRequestValidator()
	NewAPIService(config, coreService).SetRoutes(e)
	return e
}

func testImagePayload(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.NRGBA{R: 1, G: 2, B: 3, A: 255}), image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func doJSON(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func uploadTestImage(t *testing.T, e *echo.Echo, imageID string) string {
	t.Helper()

	target := "/images"
	if imageID != "" {
		target += "?image_id=" + imageID
	}
	body := fmt.Sprintf(`{"original_image_b64": %q}`, testImagePayload(t, 400, 300))
	rec := doJSON(e, http.MethodPost, target, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload failed with status %d: %s", rec.Code, rec.Body.String())
	}

	var response struct {
		ImageID   string `json:"image_id"`
		MaskCount int    `json:"mask_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("invalid upload response: %v", err)
	}
	if response.MaskCount != 8 {
		t.Fatalf("expected 8 mock masks, got %d", response.MaskCount)
	}
	return response.ImageID
}

func TestHealthz(t *testing.T) {
	e := newTestServer(t)
	rec := doJSON(e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestGenerateAndStoreEndpoint(t *testing.T) {
	e := newTestServer(t)

	imageID := uploadTestImage(t, e, "")
	if imageID == "" {
		t.Fatal("expected generated image id")
	}

	// Duplicate explicit ids are rejected.
	uploadTestImage(t, e, "img_dup")
	body := fmt.Sprintf(`{"original_image_b64": %q}`, testImagePayload(t, 400, 300))
	rec := doJSON(e, http.MethodPost, "/images?image_id=img_dup", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for duplicate id, got %d", rec.Code)
	}
}

func TestGenerateAndStoreEndpoint_Validation(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/images", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing image payload, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/images", `{"original_image_b64": "not base64 at all!!"}`)
	if rec.Code != http.StatusInternalServerError && rec.Code != http.StatusBadRequest {
		t.Errorf("expected failure status for undecodable payload, got %d", rec.Code)
	}
}

func TestGetImageInfoEndpoint(t *testing.T) {
	e := newTestServer(t)
	imageID := uploadTestImage(t, e, "")

	rec := doJSON(e, http.MethodGet, "/images/"+imageID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response struct {
		ImageID          string `json:"image_id"`
		Width            int    `json:"width"`
		Height           int    `json:"height"`
		OriginalImageB64 string `json:"original_image_b64"`
		AvailableMasks   []struct {
			ID      int    `json:"id"`
			Area    int    `json:"area"`
			BBox    []int  `json:"bbox"`
			MaskB64 string `json:"mask_b64"`
		} `json:"available_masks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("invalid info response: %v", err)
	}
	if response.ImageID != imageID || response.Width != 400 || response.Height != 300 {
		t.Errorf("unexpected info %+v", response)
	}
	if len(response.AvailableMasks) != 8 {
		t.Fatalf("expected 8 masks, got %d", len(response.AvailableMasks))
	}
	if len(response.AvailableMasks[0].BBox) != 4 {
		t.Errorf("bbox must serialize as a 4-element array, got %v", response.AvailableMasks[0].BBox)
	}
	if response.OriginalImageB64 == "" || response.AvailableMasks[0].MaskB64 == "" {
		t.Error("expected base64 payloads in the info response")
	}

	rec = doJSON(e, http.MethodGet, "/images/unknown", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown image, got %d", rec.Code)
	}
}

func TestMaskAtPointEndpoint(t *testing.T) {
	e := newTestServer(t)
	imageID := uploadTestImage(t, e, "")

	rec := doJSON(e, http.MethodGet, "/images/"+imageID+"/mask_at_point?x=200&y=50", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var response struct {
		MaskID               *int  `json:"mask_id"`
		TotalContainingMasks int   `json:"total_containing_masks"`
		AllContainingMasks   []int `json:"all_containing_masks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if response.MaskID == nil {
		t.Fatal("expected a containing mask at (200, 50)")
	}
	if response.TotalContainingMasks != len(response.AllContainingMasks) {
		t.Error("containing mask count mismatch")
	}

	// A point inside the image not covered by any mock mask.
	rec = doJSON(e, http.MethodGet, "/images/"+imageID+"/mask_at_point?x=399&y=0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("uncovered point must not error, got %d", rec.Code)
	}
	var missResponse struct {
		MaskID *int `json:"mask_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &missResponse); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if missResponse.MaskID != nil {
		t.Errorf("expected null mask_id for uncovered point, got %d", *missResponse.MaskID)
	}

	// Out-of-bounds and malformed coordinates are invalid arguments.
	for _, query := range []string{"x=400&y=50", "x=-1&y=50", "x=10&y=300", "x=abc&y=1", "y=1"} {
		rec = doJSON(e, http.MethodGet, "/images/"+imageID+"/mask_at_point?"+query, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("query %q: expected 400, got %d", query, rec.Code)
		}
	}
}

func TestRenderEndpoint(t *testing.T) {
	e := newTestServer(t)
	imageID := uploadTestImage(t, e, "")

	// One instruction per supported color form.
	body := `{"render_instructions": [
		{"mask_id": 1, "color": [255, 0, 0, 255]},
		{"mask_id": 2, "color": "#00FF0080"},
		{"mask_id": 3, "color": null}
	]}`

	for _, path := range []string{"/render", "/flatten"} {
		rec := doJSON(e, http.MethodPost, "/images/"+imageID+path, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}

		var response struct {
			RenderedImageB64 string `json:"rendered_image_b64"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
			t.Fatalf("%s: invalid response: %v", path, err)
		}
		rendered, err := base64.StdEncoding.DecodeString(response.RenderedImageB64)
		if err != nil {
			t.Fatalf("%s: rendered image is not base64: %v", path, err)
		}
		img, err := png.Decode(bytes.NewReader(rendered))
		if err != nil {
			t.Fatalf("%s: rendered image is not PNG: %v", path, err)
		}
		if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 300 {
			t.Errorf("%s: unexpected output size %v", path, img.Bounds())
		}
	}
}

func TestRenderEndpoint_Errors(t *testing.T) {
	e := newTestServer(t)
	imageID := uploadTestImage(t, e, "")

	rec := doJSON(e, http.MethodPost, "/images/unknown/render", `{"render_instructions": []}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown image, got %d", rec.Code)
	}

	for _, body := range []string{
		`{"render_instructions": [{"mask_id": 1, "color": [300, 0, 0, 255]}]}`,
		`{"render_instructions": [{"mask_id": 1, "color": [1, 2, 3]}]}`,
		`{"render_instructions": [{"mask_id": 1, "color": "#XYZ"}]}`,
		`{"render_instructions": [{"mask_id": 1, "color": {"r": 1}}]}`,
		`{}`,
	} {
		rec := doJSON(e, http.MethodPost, "/images/"+imageID+"/render", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestListAndStatusEndpoints(t *testing.T) {
	e := newTestServer(t)
	imageID := uploadTestImage(t, e, "")

	rec := doJSON(e, http.MethodGet, "/images", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var listing struct {
		Images []struct {
			ImageID   string `json:"image_id"`
			MaskCount int    `json:"mask_count"`
		} `json:"images"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("invalid listing: %v", err)
	}
	if len(listing.Images) != 1 || listing.Images[0].ImageID != imageID {
		t.Errorf("unexpected listing %+v", listing)
	}

	rec = doJSON(e, http.MethodGet, "/images/"+imageID+"/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status struct {
		Status    string `json:"status"`
		MaskCount int    `json:"mask_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid status: %v", err)
	}
	if status.Status != "ready" || status.MaskCount != 8 {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	e := newTestServer(t)
	imageID := uploadTestImage(t, e, "")

	rec := doJSON(e, http.MethodDelete, "/images/"+imageID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = doJSON(e, http.MethodDelete, "/images/"+imageID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on double delete, got %d", rec.Code)
	}
	rec = doJSON(e, http.MethodGet, "/images/"+imageID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}
