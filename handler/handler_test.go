package handler

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/typesetter/export"
	"github.com/ByLCY/typesetter/imageio"
	"github.com/ByLCY/typesetter/mask"
	"github.com/ByLCY/typesetter/model"
	"github.com/ByLCY/typesetter/renderer"
)

type stubStrategy struct {
	methods []model.ExportMethod
}

func (s *stubStrategy) Render(_ context.Context, rec model.ImageRecord, opts model.ExportOptions) ([]byte, error) {
	s.methods = append(s.methods, opts.Method())
	if rec.ID == "bad" {
		return nil, errors.New("render failed")
	}
	return []byte("png:" + rec.ID), nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *stubStrategy) {
	t.Helper()
	st := &stubStrategy{}
	set := renderer.NewSet().Register(model.ExportCanvas, st)
	exp := NewExportHandler(export.New(set), model.ExportOptions{ExportMethod: model.ExportCanvas})
	return NewRouter(gin.TestMode, exp, NewMaskHandler(), NewColorHandler()), st
}

func post(t *testing.T, r http.Handler, url string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func pageSource(t *testing.T, w, h int, fill color.Color) model.Source {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}
	data, err := imageio.EncodePNG(img)
	require.NoError(t, err)
	return model.Source{Data: imageio.DataURL("image/png", data)}
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestExportReturnsPNGAttachment(t *testing.T) {
	r, st := newTestRouter(t)
	w := post(t, r, "/api/v1/export", ExportRequest{Image: model.ImageRecord{ID: "p1", Name: "page01.jpg"}})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="typeset_page01.png"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "png:p1", w.Body.String())
	assert.Equal(t, []model.ExportMethod{model.ExportCanvas}, st.methods)
}

func TestExportUnknownMethodIsBadRequest(t *testing.T) {
	r, _ := newTestRouter(t)
	w := post(t, r, "/api/v1/export", ExportRequest{
		Image:   model.ImageRecord{ID: "p1", Name: "a.png"},
		Options: &model.ExportOptions{ExportMethod: model.ExportScreenshot},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestExportRejectsMalformedBody(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/export", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchSkipsFailedImages(t *testing.T) {
	r, _ := newTestRouter(t)
	w := post(t, r, "/api/v1/export/batch", BatchRequest{Images: []model.ImageRecord{
		{ID: "a", Name: "001.jpg"},
		{ID: "bad", Name: "002.jpg"},
		{ID: "c", Name: "003.webp"},
	}})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Equal(t, "2", w.Header().Get("X-Exported"))
	assert.Equal(t, "1", w.Header().Get("X-Failed"))

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"typeset_manga/001.png", "typeset_manga/003.png"}, names)
}

func TestBatchAllFailedIsUnprocessable(t *testing.T) {
	r, _ := newTestRouter(t)
	w := post(t, r, "/api/v1/export/batch", BatchRequest{Images: []model.ImageRecord{{ID: "bad", Name: "x.png"}}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestOptionsFillFromDefaults(t *testing.T) {
	feather := 40.0
	h := NewExportHandler(nil, model.ExportOptions{ExportMethod: model.ExportScreenshot, DefaultMaskShape: model.ShapeRounded})
	got := h.options(&model.ExportOptions{DefaultMaskFeather: &feather})
	assert.Equal(t, model.ExportScreenshot, got.ExportMethod)
	assert.Equal(t, model.ShapeRounded, got.DefaultMaskShape)
	assert.Equal(t, 40.0, *got.DefaultMaskFeather)
	assert.Equal(t, h.defaults, h.options(nil))
}

func maskedRecord(t *testing.T) model.ImageRecord {
	src := pageSource(t, 100, 80, color.RGBA{0, 0, 255, 255})
	return model.ImageRecord{
		ID: "p", Name: "p.png", Width: 100, Height: 80,
		Original: src, Current: src,
		Masks: []model.MaskRegion{
			{ID: "m1", X: 25, Y: 25, Width: 20, Height: 20, Method: model.MethodInpaint},
			{ID: "m2", X: 75, Y: 75, Width: 10, Height: 10, Method: model.MethodFill},
		},
	}
}

func TestInpaintMask(t *testing.T) {
	r, _ := newTestRouter(t)
	w := post(t, r, "/api/v1/mask/inpaint", MaskRequest{Image: maskedRecord(t)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 80), img.Bounds())
	gray := color.GrayModel.Convert(img.At(25, 20)).(color.Gray)
	assert.Equal(t, uint8(255), gray.Y)
	gray = color.GrayModel.Convert(img.At(5, 5)).(color.Gray)
	assert.Equal(t, uint8(0), gray.Y)
}

func TestInpaintMaskUnknownRegion(t *testing.T) {
	r, _ := newTestRouter(t)
	w := post(t, r, "/api/v1/mask/inpaint", MaskRequest{Image: maskedRecord(t), Filter: mask.Filter{RegionID: "nope"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPreviewKinds(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := maskedRecord(t)

	w := post(t, r, "/api/v1/mask/preview", MaskRequest{Image: rec})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	w = post(t, r, "/api/v1/mask/preview", MaskRequest{Image: rec, Kind: "masked"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = post(t, r, "/api/v1/mask/preview", MaskRequest{Image: rec, Kind: "sepia"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	rec.Original = model.Source{Data: "data:image/png;base64,AAAA"}
	w = post(t, r, "/api/v1/mask/preview", MaskRequest{Image: rec})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRestore(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := maskedRecord(t)
	rec.Current = pageSource(t, 100, 80, color.RGBA{255, 255, 255, 255})

	w := post(t, r, "/api/v1/mask/restore", MaskRequest{Image: rec, RegionID: "m1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	_, _, b, _ := img.At(25, 20).RGBA()
	assert.Equal(t, uint32(0xffff), b)
	cr, _, _, _ := img.At(25, 20).RGBA()
	assert.Equal(t, uint32(0), cr)
	cr, _, _, _ = img.At(90, 5).RGBA()
	assert.Equal(t, uint32(0xffff), cr)

	w = post(t, r, "/api/v1/mask/restore", MaskRequest{Image: rec, RegionID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestColorDetect(t *testing.T) {
	r, _ := newTestRouter(t)
	w := post(t, r, "/api/v1/color", ColorRequest{
		Source: pageSource(t, 200, 200, color.RGBA{0, 0, 0, 255}),
		X:      50, Y: 50, Width: 20, Height: 20,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "#000000", resp.Data["color"])
}

func TestRegionsAppendsNewRegions(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := model.ImageRecord{ID: "p", Name: "p.png", Masks: []model.MaskRegion{{ID: "m1", X: 10, Y: 10, Width: 5, Height: 5}}}
	w := post(t, r, "/api/v1/mask/regions", MaskRequest{Image: rec, Regions: []model.MaskRegion{{X: 40, Y: 60, Width: 20, Height: 10}}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data model.ImageRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Masks, 2)
	assert.Equal(t, "m1", resp.Data.Masks[0].ID)
	added := resp.Data.Masks[1]
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, model.MethodInpaint, added.Method)
	assert.Equal(t, 40.0, added.X)

	w = post(t, r, "/api/v1/mask/regions", MaskRequest{Image: rec})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
