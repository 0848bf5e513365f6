package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	xdraw "golang.org/x/image/draw"

	"github.com/xob0t/GoCarousel/internal/config"
	"github.com/xob0t/GoCarousel/pkg/render"
	"github.com/xob0t/GoCarousel/pkg/slicer"
)

func testSettings(t *testing.T) config.Settings {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("server.export_interval", 0)
	v.Set("server.export_burst", 100)
	s, err := config.Load(v)
	require.NoError(t, err)
	return s
}

func newTestServer(t *testing.T, cfg config.Settings) (*Server, http.Handler) {
	t.Helper()
	r, err := render.NewRenderer(render.WithInterpolator(xdraw.NearestNeighbor))
	require.NoError(t, err)
	s := New(cfg, r, zaptest.NewLogger(t))
	h, err := s.Handler()
	require.NoError(t, err)
	return s, h
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createProject(t *testing.T, h http.Handler, body any) projectView {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/projects", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[projectView](t, rec)
}

func uploadImage(t *testing.T, h http.Handler, projectID string, w, hgt int, placement string) *httptest.ResponseRecorder {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, hgt))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 255, 255
	}
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "red.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBuf.Bytes())
	require.NoError(t, err)
	if placement != "" {
		require.NoError(t, mw.WriteField("placement", placement))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/projects/"+projectID+"/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestProjectLifecycle(t *testing.T) {
	_, h := newTestServer(t, testSettings(t))

	p := createProject(t, h, map[string]any{"size": "portrait", "slideCount": 3})
	assert.Equal(t, 3240, p.CanvasWidth)
	assert.Equal(t, 1350, p.CanvasHeight)
	assert.Equal(t, "idle", p.Export)

	rec := uploadImage(t, h, p.ID, 20, 10, `{"x":-50,"y":0,"width":200,"height":100}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	layer := decode[layerView](t, rec)
	assert.Equal(t, "red.png", layer.Name)
	assert.Equal(t, 20, layer.NaturalWidth)

	rec = do(t, h, http.MethodPatch, "/api/projects/"+p.ID+"/images/"+layer.ID, map[string]any{"rotation": 15})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 15.0, decode[layerView](t, rec).Rotation)

	rec = do(t, h, http.MethodGet, "/api/projects/"+p.ID+"/slices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	slices := decode[[]slicer.Slice](t, rec)
	require.Len(t, slices, 3)
	assert.Equal(t, []int{0, 1080, 2160}, []int{slices[0].X, slices[1].X, slices[2].X})

	rec = do(t, h, http.MethodGet, "/api/projects/"+p.ID+"/preview.png?guides=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	cfg, err := png.DecodeConfig(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 3240, cfg.Width)

	rec = do(t, h, http.MethodDelete, "/api/projects/"+p.ID+"/images/"+layer.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/projects/"+p.ID+"/images/"+layer.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettingsAreAtomic(t *testing.T) {
	_, h := newTestServer(t, testSettings(t))
	p := createProject(t, h, nil)

	rec := do(t, h, http.MethodPut, "/api/projects/"+p.ID+"/settings", map[string]any{
		"slideCount": 5,
		"background": "not-a-color",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	got := decode[projectView](t, do(t, h, http.MethodGet, "/api/projects/"+p.ID, nil))
	assert.Equal(t, 3, got.SlideCount)

	rec = do(t, h, http.MethodPut, "/api/projects/"+p.ID+"/settings", map[string]any{
		"slideCount": 5,
		"background": "#000000",
		"gap":        10,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = decode[projectView](t, rec)
	assert.Equal(t, 5, got.SlideCount)
	assert.Equal(t, "#000000", got.Background)
	assert.Equal(t, 10, got.Gap)
}

func TestReorderEndpoint(t *testing.T) {
	_, h := newTestServer(t, testSettings(t))
	p := createProject(t, h, nil)

	var ids []string
	for range 3 {
		rec := uploadImage(t, h, p.ID, 4, 4, "")
		require.Equal(t, http.StatusCreated, rec.Code)
		ids = append(ids, decode[layerView](t, rec).ID)
	}

	rec := do(t, h, http.MethodPost, "/api/projects/"+p.ID+"/images/"+ids[0]+"/order", map[string]any{"direction": "front"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[projectView](t, rec)
	assert.Equal(t, ids[0], got.Images[2].ID)

	rec = do(t, h, http.MethodPost, "/api/projects/"+p.ID+"/images/"+ids[0]+"/order", map[string]any{"index": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ids[0], decode[projectView](t, rec).Images[0].ID)

	rec = do(t, h, http.MethodPost, "/api/projects/"+p.ID+"/images/"+ids[0]+"/order", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectsUndecodableImage(t *testing.T) {
	_, h := newTestServer(t, testSettings(t))
	p := createProject(t, h, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	fw.Write([]byte("hello"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/projects/"+p.ID+"/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "notes.txt")
}

func TestExportDownload(t *testing.T) {
	_, h := newTestServer(t, testSettings(t))
	p := createProject(t, h, map[string]any{"size": "landscape", "slideCount": 2})

	rec := do(t, h, http.MethodPost, "/api/projects/"+p.ID+"/export", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	require.Equal(t, http.StatusCreated, uploadImage(t, h, p.ID, 8, 8, "").Code)

	rec = do(t, h, http.MethodPost, "/api/projects/"+p.ID+"/export", map[string]any{"scaleFactor": 2, "folder": "deck"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), `attachment; filename="carousel-`))

	data := rec.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "deck/slide-1.png", zr.File[0].Name)
	assert.Equal(t, "deck/slide-2.png", zr.File[1].Name)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	img, err := png.Decode(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2160, 1132), img.Bounds())

	rec = do(t, h, http.MethodPost, "/api/projects/"+p.ID+"/export", map[string]any{"scaleFactor": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportRateLimited(t *testing.T) {
	cfg := testSettings(t)
	cfg.Server.ExportInterval = 1 << 40
	cfg.Server.ExportBurst = 1
	_, h := newTestServer(t, cfg)
	p := createProject(t, h, map[string]any{"size": "landscape", "slideCount": 1})
	require.Equal(t, http.StatusCreated, uploadImage(t, h, p.ID, 8, 8, "").Code)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/projects/"+p.ID+"/export", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodPost, "/api/projects/"+p.ID+"/export", nil).Code)
}

func TestExportWebsocketStreamsProgressThenArchive(t *testing.T) {
	_, h := newTestServer(t, testSettings(t))
	srv := httptest.NewServer(h)
	defer srv.Close()

	p := createProject(t, h, map[string]any{"size": "landscape", "slideCount": 3})
	require.Equal(t, http.StatusCreated, uploadImage(t, h, p.ID, 8, 8, "").Code)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/projects/" + p.ID + "/export/ws?format=jpeg"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var progress []int
	var done wsMessage
	for {
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == "progress" {
			progress = append(progress, msg.Progress.Done)
			continue
		}
		done = msg
		break
	}
	require.Equal(t, "done", done.Type, done.Error)
	assert.Equal(t, []int{1, 2, 3}, progress)
	assert.Equal(t, []string{"slide-1.jpg", "slide-2.jpg", "slide-3.jpg"}, done.Files)

	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Len(t, zr.File, 3)
}

func TestCancelWithoutRunningExport(t *testing.T) {
	_, h := newTestServer(t, testSettings(t))
	p := createProject(t, h, nil)

	rec := do(t, h, http.MethodDelete, "/api/projects/"+p.ID+"/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.Equal(t, false, got["cancelled"])
	assert.Equal(t, "idle", got["state"])
}

func TestUnknownProject(t *testing.T) {
	_, h := newTestServer(t, testSettings(t))
	for _, path := range []string{"/api/projects/nope", "/api/projects/nope/slices", "/api/projects/nope/preview.png"} {
		rec := do(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestStaticUIAndMetrics(t *testing.T) {
	_, h := newTestServer(t, testSettings(t))

	rec := do(t, h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "GoCarousel")

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "carousel_active_sessions")
}

func TestPreviewPixels(t *testing.T) {
	_, h := newTestServer(t, testSettings(t))
	p := createProject(t, h, map[string]any{"slideCount": 1, "background": "#0000ff"})
	require.Equal(t, http.StatusCreated, uploadImage(t, h, p.ID, 4, 4, `{"x":0,"y":0,"width":100,"height":100}`).Code)

	rec := do(t, h, http.MethodGet, "/api/projects/"+p.ID+"/preview.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBAModel.Convert(color.RGBA{R: 255, A: 255}), color.NRGBAModel.Convert(img.At(50, 50)))
	assert.Equal(t, color.NRGBAModel.Convert(color.RGBA{B: 255, A: 255}), color.NRGBAModel.Convert(img.At(500, 500)))
}
