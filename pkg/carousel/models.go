// Package carousel holds the composition model of a multi-slide carousel:
// the ordered image layers placed on one wide virtual canvas plus the
// layout settings the canvas is derived from.
package carousel

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// MaxSlides is the largest carousel Instagram accepts in the editor.
const MaxSlides = 10

// MaxGap bounds the display-only slide gap guide, in pixels.
const MaxGap = 100

// ── Size presets ──

// SizePreset names a target slide resolution.
type SizePreset string

const (
	SizeSquare    SizePreset = "square"
	SizePortrait  SizePreset = "portrait"
	SizeLandscape SizePreset = "landscape"
	SizeStory     SizePreset = "story"
)

// Presets maps preset names to [width, height].
var Presets = map[SizePreset][2]int{
	SizeSquare:    {1080, 1080},
	SizePortrait:  {1080, 1350},
	SizeLandscape: {1080, 566},
	SizeStory:     {1080, 1920},
}

// presetAliases accepts the dimension strings used by older project files.
var presetAliases = map[string]SizePreset{
	"1080x1080":           SizeSquare,
	"instagram_square":    SizeSquare,
	"1080x1350":           SizePortrait,
	"instagram_portrait":  SizePortrait,
	"1080x566":            SizeLandscape,
	"instagram_landscape": SizeLandscape,
	"instagram_story":     SizeStory,
}

// ResolvePreset normalizes a preset name or alias.
func ResolvePreset(name string) (SizePreset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if _, ok := Presets[SizePreset(key)]; ok {
		return SizePreset(key), nil
	}
	if p, ok := presetAliases[key]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown size preset %q", ErrInvalidConfig, name)
}

// Dimensions returns the slide width and height for the preset.
// Unknown presets fall back to square.
func (p SizePreset) Dimensions() (w, h int) {
	dims, ok := Presets[p]
	if !ok {
		dims = Presets[SizeSquare]
	}
	return dims[0], dims[1]
}

// ── Layouts ──

// Layout controls how the slide count reacts to the number of images.
type Layout string

const (
	LayoutFreeform Layout = "freeform"
	LayoutGrid     Layout = "grid"
	LayoutCollage  Layout = "collage"
	LayoutSplit    Layout = "split"
)

// ParseLayout validates a layout name. Empty means freeform.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return LayoutFreeform, nil
	case LayoutFreeform, LayoutGrid, LayoutCollage, LayoutSplit:
		return l, nil
	default:
		return "", fmt.Errorf("%w: unknown layout %q", ErrInvalidConfig, s)
	}
}

// ── Layers ──

// Source is decoded pixel data for one user image. It is immutable once
// created and shared between the live config and export snapshots.
type Source struct {
	Image  image.Image
	Width  int    // natural width
	Height int    // natural height
	Format string // decoder name ("png", "jpeg", "webp", ...)
}

// Placement is a layer transform in virtual-canvas pixels. X/Y is the
// top-left corner of the unrotated footprint; Rotation is in degrees,
// clockwise, about the footprint center.
type Placement struct {
	X        float64 `json:"x" yaml:"x"`
	Y        float64 `json:"y" yaml:"y"`
	Width    float64 `json:"width" yaml:"width"`
	Height   float64 `json:"height" yaml:"height"`
	Rotation float64 `json:"rotation" yaml:"rotation"`
}

// Bounds returns the axis-aligned bounding box of the rotated footprint.
func (p Placement) Bounds() (minX, minY, maxX, maxY float64) {
	cx, cy := p.X+p.Width/2, p.Y+p.Height/2
	rad := p.Rotation * math.Pi / 180
	cos, sin := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	hw := (p.Width*cos + p.Height*sin) / 2
	hh := (p.Width*sin + p.Height*cos) / 2
	return cx - hw, cy - hh, cx + hw, cy + hh
}

func (p Placement) validate() error {
	for _, v := range []float64{p.X, p.Y, p.Width, p.Height, p.Rotation} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite placement value", ErrInvalidConfig)
		}
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: layer size must be positive, got %gx%g", ErrInvalidConfig, p.Width, p.Height)
	}
	return nil
}

// ImageLayer is one user image placed on the virtual canvas.
// Its z-order is its position in Config.Images (back to front).
type ImageLayer struct {
	ID     string
	Name   string
	Source *Source
	Placement
}

// LayerPatch is a partial update. Only non-nil fields are applied.
type LayerPatch struct {
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
	Name     *string  `json:"name,omitempty"`
}

// ── Config ──

// Config is the complete state of one carousel project.
// Canvas dimensions are always derived, never stored.
type Config struct {
	SlideCount int
	Size       SizePreset
	Layout     Layout
	Background string // "#rrggbb" / "#rrggbbaa"; empty = transparent
	Gap        int    // display-only guide between slides
	Images     []ImageLayer
}

// SlideWidth returns the per-slide width in pixels.
func (c Config) SlideWidth() int {
	w, _ := c.Size.Dimensions()
	return w
}

// SlideHeight returns the per-slide height in pixels.
func (c Config) SlideHeight() int {
	_, h := c.Size.Dimensions()
	return h
}

// CanvasWidth is SlideCount slides laid out horizontally with no gap.
func (c Config) CanvasWidth() int { return c.SlideCount * c.SlideWidth() }

// CanvasHeight equals the slide height.
func (c Config) CanvasHeight() int { return c.SlideHeight() }

// Canvas returns the virtual canvas rectangle.
func (c Config) Canvas() image.Rectangle {
	return image.Rect(0, 0, c.CanvasWidth(), c.CanvasHeight())
}

// clone copies the layer slice so later list mutations don't leak into
// the copy. Sources are shared read-only.
func (c Config) clone() Config {
	out := c
	out.Images = make([]ImageLayer, len(c.Images))
	copy(out.Images, c.Images)
	return out
}

// Snapshot is an immutable copy of a Config taken at export start.
type Snapshot struct {
	Config
}
