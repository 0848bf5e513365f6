// preview.go - Editor preview: the virtual canvas plus display-only slide
// guides (dividers, gap band, slide numbers). Guides never reach exports.
package render

import (
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/xob0t/GoCarousel/pkg/carousel"
)

// Guides selects which overlays RenderPreview draws.
type Guides struct {
	Dividers bool
	Labels   bool
}

var (
	dividerColor = color.NRGBA{R: 0, G: 0, B: 0, A: 96}
	gapColor     = color.NRGBA{R: 255, G: 64, B: 129, A: 72}
	labelBgColor = color.NRGBA{R: 0, G: 0, B: 0, A: 160}
	labelColor   = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// RenderPreview renders the virtual canvas and overlays guides. When the
// config has a gap, the divider is drawn as a band of that width centered on
// the slide boundary.
func (r *Renderer) RenderPreview(cfg carousel.Config, g Guides) (*image.RGBA, error) {
	img, err := r.RenderVirtualCanvas(cfg)
	if err != nil {
		return nil, err
	}

	sw, sh := cfg.SlideWidth(), cfg.SlideHeight()

	if g.Dividers {
		band := max(cfg.Gap, 2)
		col := dividerColor
		if cfg.Gap > 0 {
			col = gapColor
		}
		for i := 1; i < cfg.SlideCount; i++ {
			x := i * sw
			rect := image.Rect(x-band/2, 0, x-band/2+band, sh)
			xdraw.Draw(img, rect, &image.Uniform{col}, image.Point{}, xdraw.Over)
		}
	}

	if g.Labels {
		if err := r.drawLabels(img, cfg.SlideCount, sw, sh); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// drawLabels puts "i/N" in the top-left corner of each slide.
func (r *Renderer) drawLabels(img *image.RGBA, n, sw, sh int) error {
	size := float64(sh) / 30
	face, err := r.fonts.GetFace(size, r.dpi)
	if err != nil {
		return err
	}
	defer face.Close()

	pad := int(size / 2)
	for i := 0; i < n; i++ {
		text := fmt.Sprintf("%d/%d", i+1, n)
		adv := font.MeasureString(face, text).Ceil()
		x := i*sw + pad
		y := pad

		bg := image.Rect(x, y, x+adv+pad*2, y+int(size)+pad*2)
		xdraw.Draw(img, bg, &image.Uniform{labelBgColor}, image.Point{}, xdraw.Over)
		r.drawString(img, text, x+pad, y+pad+int(size*0.85), labelColor, face)
	}
	return nil
}

// drawString draws text with its baseline at (x, y).
func (r *Renderer) drawString(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}
