// color.go - Hex color parsing and solid image creation.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"
)

// ParseHexColor parses "#rrggbb" or "#rrggbbaa". The empty string is
// fully transparent.
func ParseHexColor(s string) (color.NRGBA, error) {
	if s == "" {
		return color.NRGBA{}, nil
	}

	hex, ok := strings.CutPrefix(s, "#")
	if !ok || (len(hex) != 6 && len(hex) != 8) {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: expected #rrggbb or #rrggbbaa", s)
	}

	var ch [4]uint8
	ch[3] = 255
	for i := 0; i < len(hex)/2; i++ {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid channel %d in %q: %w", i, s, err)
		}
		ch[i] = uint8(v)
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

// NewSolidImage creates a uniform solid-color image using draw.Draw.
func NewSolidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}
