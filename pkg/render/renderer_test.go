package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xdraw "golang.org/x/image/draw"

	"github.com/xob0t/GoCarousel/pkg/carousel"
)

var (
	red         = color.RGBA{R: 255, A: 255}
	blue        = color.RGBA{B: 255, A: 255}
	transparent = color.RGBA{}
)

func solidSource(t *testing.T, w, h int, c color.Color) *carousel.Source {
	t.Helper()
	src, err := carousel.NewSource(NewSolidImage(w, h, c), "png")
	require.NoError(t, err)
	return src
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(WithInterpolator(xdraw.NearestNeighbor))
	require.NoError(t, err)
	return r
}

func transparentConfig(slides int) carousel.Config {
	return carousel.Config{
		SlideCount: slides,
		Size:       carousel.SizeSquare,
		Layout:     carousel.LayoutFreeform,
	}
}

func TestRenderVirtualCanvasSize(t *testing.T) {
	r := newTestRenderer(t)
	cfg := transparentConfig(3)
	cfg.Size = carousel.SizePortrait

	img, err := r.RenderVirtualCanvas(cfg)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3240, 1350), img.Bounds())
}

func TestRenderBackgroundFill(t *testing.T) {
	r := newTestRenderer(t)
	cfg := transparentConfig(1)
	cfg.Background = "#336699"

	img, err := r.RenderVirtualCanvas(cfg)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x33, G: 0x66, B: 0x99, A: 255}, img.RGBAAt(500, 500))
}

func TestRenderLayerBoundsTolerance(t *testing.T) {
	r := newTestRenderer(t)
	cfg := transparentConfig(1)
	cfg.Images = []carousel.ImageLayer{{
		ID:        "a",
		Source:    solidSource(t, 10, 10, red),
		Placement: carousel.Placement{X: -50, Y: 0, Width: 200, Height: 100},
	}}

	img, err := r.RenderVirtualCanvas(cfg)
	require.NoError(t, err)

	assert.Equal(t, red, img.RGBAAt(0, 50))
	assert.Equal(t, red, img.RGBAAt(149, 50))
	assert.Equal(t, transparent, img.RGBAAt(150, 50))
	assert.Equal(t, transparent, img.RGBAAt(10, 100))

	visible := 0
	for x := 0; x < 1080; x++ {
		if img.RGBAAt(x, 50) == red {
			visible++
		}
	}
	assert.Equal(t, 150, visible)
}

func TestRenderLayerFullyOutside(t *testing.T) {
	r := newTestRenderer(t)
	cfg := transparentConfig(1)
	cfg.Images = []carousel.ImageLayer{{
		ID:        "a",
		Source:    solidSource(t, 10, 10, red),
		Placement: carousel.Placement{X: 5000, Y: -9000, Width: 200, Height: 100},
	}}

	img, err := r.RenderVirtualCanvas(cfg)
	require.NoError(t, err)
	for _, px := range img.Pix {
		require.Zero(t, px)
	}
}

func TestRenderZOrderBackToFront(t *testing.T) {
	r := newTestRenderer(t)
	cfg := transparentConfig(1)
	cfg.Images = []carousel.ImageLayer{
		{ID: "bottom", Source: solidSource(t, 4, 4, red), Placement: carousel.Placement{Width: 100, Height: 100}},
		{ID: "top", Source: solidSource(t, 4, 4, blue), Placement: carousel.Placement{X: 50, Width: 100, Height: 100}},
	}

	img, err := r.RenderVirtualCanvas(cfg)
	require.NoError(t, err)
	assert.Equal(t, red, img.RGBAAt(25, 50))
	assert.Equal(t, blue, img.RGBAAt(75, 50))
	assert.Equal(t, blue, img.RGBAAt(125, 50))
}

func TestRenderSourceOverBlending(t *testing.T) {
	r := newTestRenderer(t)
	cfg := transparentConfig(1)
	cfg.Background = "#ffffff"
	cfg.Images = []carousel.ImageLayer{{
		ID:        "half",
		Source:    solidSource(t, 2, 2, color.NRGBA{A: 128}),
		Placement: carousel.Placement{Width: 100, Height: 100},
	}}

	img, err := r.RenderVirtualCanvas(cfg)
	require.NoError(t, err)
	px := img.RGBAAt(50, 50)
	assert.Equal(t, uint8(255), px.A)
	assert.InDelta(t, 127, int(px.R), 2)
	assert.Equal(t, px.R, px.G)
}

func TestRenderRotationAboutCenter(t *testing.T) {
	r := newTestRenderer(t)
	cfg := transparentConfig(1)
	// A 400x100 bar centered at (500, 500), rotated 90° becomes 100x400.
	cfg.Images = []carousel.ImageLayer{{
		ID:        "bar",
		Source:    solidSource(t, 40, 10, red),
		Placement: carousel.Placement{X: 300, Y: 450, Width: 400, Height: 100, Rotation: 90},
	}}

	img, err := r.RenderVirtualCanvas(cfg)
	require.NoError(t, err)
	assert.Equal(t, red, img.RGBAAt(500, 500))
	assert.Equal(t, red, img.RGBAAt(500, 320))
	assert.Equal(t, red, img.RGBAAt(500, 680))
	assert.Equal(t, transparent, img.RGBAAt(350, 500))
	assert.Equal(t, transparent, img.RGBAAt(650, 500))
}

func TestRenderIsDeterministic(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	cfg := transparentConfig(2)
	cfg.Background = "#fafafa"
	cfg.Images = []carousel.ImageLayer{
		{ID: "a", Source: solidSource(t, 37, 23, red), Placement: carousel.Placement{X: 800, Y: 120, Width: 700, Height: 410, Rotation: 17.5}},
		{ID: "b", Source: solidSource(t, 5, 9, color.NRGBA{G: 200, A: 90}), Placement: carousel.Placement{X: -30, Y: 600, Width: 333, Height: 777, Rotation: -40}},
	}

	first, err := r.RenderVirtualCanvas(cfg)
	require.NoError(t, err)
	second, err := r.RenderVirtualCanvas(cfg)
	require.NoError(t, err)
	assert.Equal(t, first.Pix, second.Pix)
}

func TestRenderRegionSupersampled(t *testing.T) {
	r := newTestRenderer(t)
	cfg := transparentConfig(3)
	cfg.Size = carousel.SizePortrait
	cfg.Images = []carousel.ImageLayer{{
		ID:        "a",
		Source:    solidSource(t, 10, 10, red),
		Placement: carousel.Placement{X: 1000, Y: 0, Width: 200, Height: 200},
	}}

	img, err := r.RenderRegion(cfg, image.Rect(1080, 0, 2160, 1350), 2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2160, 2700), img.Bounds())
	// Virtual x 1080..1200 maps to 0..240 at 2×.
	assert.Equal(t, red, img.RGBAAt(100, 100))
	assert.Equal(t, transparent, img.RGBAAt(260, 100))
	assert.Equal(t, transparent, img.RGBAAt(100, 420))
}

func TestRenderRegionRejectsBadScale(t *testing.T) {
	r := newTestRenderer(t)
	cfg := transparentConfig(1)

	for _, s := range []float64{0, -1, MaxScale + 1} {
		_, err := r.RenderRegion(cfg, cfg.Canvas(), s)
		assert.ErrorIs(t, err, carousel.ErrInvalidConfig, "scale %g", s)
	}
}

func TestRenderPreviewGuidesDoNotTouchCanvasRender(t *testing.T) {
	r := newTestRenderer(t)
	cfg := transparentConfig(2)
	cfg.Background = "#ffffff"
	cfg.Gap = 20

	plain, err := r.RenderVirtualCanvas(cfg)
	require.NoError(t, err)
	preview, err := r.RenderPreview(cfg, Guides{Dividers: true, Labels: true})
	require.NoError(t, err)

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	assert.Equal(t, white, plain.RGBAAt(1080, 500))
	assert.NotEqual(t, white, preview.RGBAAt(1080, 500))
	assert.NotEqual(t, white, preview.RGBAAt(1075, 500))
	assert.Equal(t, white, preview.RGBAAt(1060, 500))
	assert.Equal(t, plain.Bounds(), preview.Bounds())
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#ff000080")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, A: 128}, c)

	c, err = ParseHexColor("")
	require.NoError(t, err)
	assert.Zero(t, c.A)

	_, err = ParseHexColor("#12")
	assert.Error(t, err)
	_, err = ParseHexColor("#gg0000")
	assert.Error(t, err)
}

func TestParseHexColorMatchesModelGrammar(t *testing.T) {
	for _, s := range []string{"336699", "33669980", "#336699 ", "##336699"} {
		_, err := ParseHexColor(s)
		assert.Error(t, err, s)
		assert.ErrorIs(t, carousel.New().SetBackground(s), carousel.ErrInvalidConfig, s)
	}
	for _, s := range []string{"#336699", "#33669980", "#AbCdEf"} {
		_, err := ParseHexColor(s)
		assert.NoError(t, err, s)
		assert.NoError(t, carousel.New().SetBackground(s), s)
	}
}

func TestParseInterpolator(t *testing.T) {
	i, err := ParseInterpolator("nearest")
	require.NoError(t, err)
	assert.Equal(t, xdraw.NearestNeighbor, i)

	_, err = ParseInterpolator("lanczos")
	assert.Error(t, err)
}
