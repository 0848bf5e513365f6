// validate.go - Non-fatal project checks.
package carousel

import "fmt"

// ValidateProject reports problems that don't stop a project from loading:
// duplicate or missing ids, layers without a source path, and layers that
// lie entirely outside the virtual canvas. It never returns errors.
func ValidateProject(p *Project) []string {
	if p == nil {
		return nil
	}

	size, err := ResolvePreset(p.Size)
	if err != nil {
		return []string{err.Error()}
	}
	w, h := size.Dimensions()
	canvasW := float64(p.SlideCount * w)

	var warnings []string
	seen := make(map[string]struct{}, len(p.Images))
	for i, img := range p.Images {
		if img.Src == "" {
			warnings = append(warnings, fmt.Sprintf("image %d has no src", i))
		}
		if img.ID != "" {
			if _, dup := seen[img.ID]; dup {
				warnings = append(warnings, fmt.Sprintf("image %d reuses id %q - a new id is assigned", i, img.ID))
			}
			seen[img.ID] = struct{}{}
		}
		if img.Width == 0 && img.Height == 0 {
			continue
		}
		minX, minY, maxX, maxY := img.Placement.Bounds()
		if maxX <= 0 || maxY <= 0 || minX >= canvasW || minY >= float64(h) {
			warnings = append(warnings, fmt.Sprintf("image %d (%s) lies outside the canvas and will not be visible", i, img.Src))
		}
	}
	return warnings
}
