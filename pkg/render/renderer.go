// renderer.go - Virtual canvas compositing for carousel configs.
// Draws the background, then every layer back to front: each layer is
// resampled into its footprint, rotated about the footprint center and
// alpha-composited (source-over) in a single affine transform.
package render

import (
	"fmt"
	"image"
	"math"
	"strings"

	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/xob0t/GoCarousel/pkg/carousel"
)

// MaxScale bounds the supersampling factor.
const MaxScale = 4.0

// Renderer composites carousel configs into RGBA buffers. It holds no
// per-render state and is safe for concurrent use.
type Renderer struct {
	interp   xdraw.Interpolator
	fonts    *FontManager
	fontPath string
	fontData []byte
	logger   *zap.Logger
	dpi      float64
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithInterpolator selects the resampling kernel.
func WithInterpolator(i xdraw.Interpolator) Option {
	return func(r *Renderer) { r.interp = i }
}

// WithFontPath loads a custom TTF for preview labels.
func WithFontPath(path string) Option {
	return func(r *Renderer) { r.fontPath = path }
}

// WithFontData uses in-memory TTF data for preview labels.
func WithFontData(data []byte) Option {
	return func(r *Renderer) { r.fontData = data }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// ParseInterpolator maps a kernel name to an x/image interpolator.
func ParseInterpolator(name string) (xdraw.Interpolator, error) {
	switch strings.ToLower(name) {
	case "", "catmullrom":
		return xdraw.CatmullRom, nil
	case "bilinear":
		return xdraw.BiLinear, nil
	case "approxbilinear":
		return xdraw.ApproxBiLinear, nil
	case "nearest":
		return xdraw.NearestNeighbor, nil
	default:
		return nil, fmt.Errorf("unknown interpolator %q (use nearest, bilinear, approxbilinear, catmullrom)", name)
	}
}

// NewRenderer creates a renderer. CatmullRom resampling is the default.
func NewRenderer(opts ...Option) (*Renderer, error) {
	r := &Renderer{
		interp: xdraw.CatmullRom,
		dpi:    72,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}

	var err error
	if r.fontData != nil {
		r.fonts, err = NewFontManagerFromBytes(r.fontData)
	} else {
		r.fonts, err = NewFontManager(r.fontPath, r.logger)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// RenderVirtualCanvas renders the full (slideCount*slideWidth) × slideHeight
// canvas at 1× resolution.
func (r *Renderer) RenderVirtualCanvas(cfg carousel.Config) (*image.RGBA, error) {
	return r.RenderRegion(cfg, cfg.Canvas(), 1)
}

// RenderRegion renders only rect of the virtual canvas at scale× resolution,
// straight from the source layers. The result is
// round(rect.Dx()*scale) × round(rect.Dy()*scale) with its origin at rect.Min.
func (r *Renderer) RenderRegion(cfg carousel.Config, rect image.Rectangle, scale float64) (*image.RGBA, error) {
	if math.IsNaN(scale) || scale <= 0 || scale > MaxScale {
		return nil, fmt.Errorf("%w: scale %g outside (0, %g]", carousel.ErrInvalidConfig, scale, MaxScale)
	}
	if rect.Empty() {
		return nil, fmt.Errorf("%w: empty render region", carousel.ErrInvalidConfig)
	}

	w := int(math.Round(float64(rect.Dx()) * scale))
	h := int(math.Round(float64(rect.Dy()) * scale))
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: region %v at scale %g is empty", carousel.ErrInvalidConfig, rect, scale)
	}

	bg, err := ParseHexColor(cfg.Background)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", carousel.ErrInvalidConfig, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if bg.A > 0 {
		xdraw.Draw(dst, dst.Bounds(), &image.Uniform{bg}, image.Point{}, xdraw.Src)
	}

	for _, layer := range cfg.Images {
		r.drawLayer(dst, layer, rect.Min, scale)
	}
	return dst, nil
}

// drawLayer composites one layer. Layers partly or fully outside dst only
// contribute their intersection.
func (r *Renderer) drawLayer(dst *image.RGBA, l carousel.ImageLayer, origin image.Point, scale float64) {
	if l.Source == nil || l.Source.Image == nil || l.Width <= 0 || l.Height <= 0 {
		return
	}
	sb := l.Source.Image.Bounds()
	if sb.Empty() {
		return
	}

	m := layerTransform(l.Placement, sb, origin, scale)
	r.interp.Transform(dst, m, l.Source.Image, sb, xdraw.Over, nil)
}

// layerTransform maps source pixels to destination pixels:
// scale into the footprint, rotate about its center, move to the layer
// position, shift by the region origin, then supersample.
func layerTransform(p carousel.Placement, sb image.Rectangle, origin image.Point, s float64) f64.Aff3 {
	kx := p.Width / float64(sb.Dx())
	ky := p.Height / float64(sb.Dy())
	mx, my := float64(sb.Min.X), float64(sb.Min.Y)

	rad := p.Rotation * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)

	cx := p.X + p.Width/2 - float64(origin.X)
	cy := p.Y + p.Height/2 - float64(origin.Y)

	return f64.Aff3{
		s * cos * kx, -s * sin * ky, s * (-cos*kx*mx + sin*ky*my - cos*p.Width/2 + sin*p.Height/2 + cx),
		s * sin * kx, s * cos * ky, s * (-sin*kx*mx - cos*ky*my - sin*p.Width/2 - cos*p.Height/2 + cy),
	}
}
