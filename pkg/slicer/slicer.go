// Package slicer maps a carousel's virtual canvas to per-slide crop
// rectangles.
package slicer

import (
	"fmt"
	"image"

	"github.com/xob0t/GoCarousel/pkg/carousel"
)

// Slice is the region of the virtual canvas that becomes one slide.
type Slice struct {
	Index  int `json:"index"`
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect returns the slice as an image.Rectangle in virtual-canvas pixels.
func (s Slice) Rect() image.Rectangle {
	return image.Rect(s.X, s.Y, s.X+s.Width, s.Y+s.Height)
}

// FileName returns the 1-based archive name, e.g. "slide-1.png".
func (s Slice) FileName(ext string) string {
	return fmt.Sprintf("slide-%d.%s", s.Index+1, ext)
}

// Compute returns slideCount slices ordered left to right. Slices abut with
// no gap or overlap and exactly tile a (slideCount*w) × h canvas.
func Compute(slideCount, slideWidth, slideHeight int) ([]Slice, error) {
	if slideCount < 1 {
		return nil, fmt.Errorf("%w: slide count %d < 1", carousel.ErrInvalidConfig, slideCount)
	}
	if slideWidth <= 0 || slideHeight <= 0 {
		return nil, fmt.Errorf("%w: slide size %dx%d", carousel.ErrInvalidConfig, slideWidth, slideHeight)
	}

	slices := make([]Slice, slideCount)
	for i := range slices {
		slices[i] = Slice{
			Index:  i,
			X:      i * slideWidth,
			Y:      0,
			Width:  slideWidth,
			Height: slideHeight,
		}
	}
	return slices, nil
}

// ComputeSlices derives the slices for a config.
func ComputeSlices(cfg carousel.Config) ([]Slice, error) {
	return Compute(cfg.SlideCount, cfg.SlideWidth(), cfg.SlideHeight())
}
