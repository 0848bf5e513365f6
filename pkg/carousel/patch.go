// patch.go - Merge partial layer updates onto existing layers.
package carousel

import "math"

// applyPatch overlays the non-nil patch fields onto a copy of the layer.
// The id and source are never patchable.
func applyPatch(base ImageLayer, p LayerPatch) ImageLayer {
	if p.X != nil {
		base.X = *p.X
	}
	if p.Y != nil {
		base.Y = *p.Y
	}
	if p.Width != nil {
		base.Width = *p.Width
	}
	if p.Height != nil {
		base.Height = *p.Height
	}
	if p.Rotation != nil {
		base.Rotation = normalizeRotation(*p.Rotation)
	}
	if p.Name != nil {
		base.Name = *p.Name
	}
	return base
}

// normalizeRotation folds degrees into (-360, 360), matching the editor's
// drag-to-rotate behaviour.
func normalizeRotation(deg float64) float64 {
	return math.Mod(deg, 360)
}

// defaultPlacement positions a fresh upload the way the editor does:
// 80% of the slide height, aspect preserved, left edge, 10% from the top.
func defaultPlacement(src *Source, slideHeight int) Placement {
	h := float64(slideHeight) * 0.8
	w := h * float64(src.Width) / float64(src.Height)
	return Placement{
		X:      0,
		Y:      float64(slideHeight) * 0.1,
		Width:  w,
		Height: h,
	}
}
