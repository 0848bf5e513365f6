// project.go - Project file parsing (JSON/YAML) and example generation.
package carousel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ── Project file types ──

// Project is the on-disk form of a Config. Layers reference image files
// instead of holding pixels.
type Project struct {
	SlideCount int            `json:"slideCount" yaml:"slideCount"`
	Size       string         `json:"size" yaml:"size"`
	Layout     string         `json:"layout,omitempty" yaml:"layout,omitempty"`
	Background *string        `json:"background,omitempty" yaml:"background,omitempty"` // nil = white
	Gap        int            `json:"gap,omitempty" yaml:"gap,omitempty"`
	Images     []ProjectImage `json:"images" yaml:"images"`
}

// ProjectImage is one layer entry. A zero width and height means
// "use the default placement"; when only one side is set the other follows
// the image's aspect ratio.
type ProjectImage struct {
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Src       string `json:"src" yaml:"src"`
	Placement `yaml:",inline"`
}

// ParseProject decodes project data. format is "json" or "yaml".
func ParseProject(data []byte, format string) (*Project, error) {
	var p Project
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse project YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse project JSON: %w", err)
		}
	}
	if p.SlideCount == 0 {
		p.SlideCount = 3
	}
	if p.Size == "" {
		p.Size = string(SizeSquare)
	}
	return &p, nil
}

// ParseProjectFile reads a standalone project file. The format follows the
// file extension.
func ParseProjectFile(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}
	return ParseProject(data, strings.TrimPrefix(filepath.Ext(path), "."))
}

// LoadProjectFile parses a project file and decodes every referenced image
// relative to the project's directory. Images that fail to decode are
// skipped and reported as warnings; the rest of the composition loads.
func LoadProjectFile(path string) (*Composition, []string, error) {
	p, err := ParseProjectFile(path)
	if err != nil {
		return nil, nil, err
	}
	return p.Build(filepath.Dir(path))
}

// Build resolves asset paths against baseDir, decodes them and returns the
// validated composition with any per-image warnings.
func (p *Project) Build(baseDir string) (*Composition, []string, error) {
	size, err := ResolvePreset(p.Size)
	if err != nil {
		return nil, nil, err
	}
	layout, err := ParseLayout(p.Layout)
	if err != nil {
		return nil, nil, err
	}

	cfg := Config{
		SlideCount: p.SlideCount,
		Size:       size,
		Layout:     layout,
		Background: "#ffffff",
		Gap:        p.Gap,
	}
	if p.Background != nil {
		cfg.Background = *p.Background
	}

	warnings := ValidateProject(p)
	seen := make(map[string]struct{}, len(p.Images))

	for i, pi := range p.Images {
		src, err := loadSourceFile(resolvePath(baseDir, pi.Src))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("image %d (%s): %v - skipped", i, pi.Src, err))
			continue
		}

		id := pi.ID
		if _, dup := seen[id]; id == "" || dup {
			id = uuid.NewString()
		}
		seen[id] = struct{}{}

		placement := pi.Placement
		aspect := float64(src.Width) / float64(src.Height)
		switch {
		case placement.Width == 0 && placement.Height == 0:
			def := defaultPlacement(src, cfg.SlideHeight())
			placement.Width, placement.Height = def.Width, def.Height
			if placement.X == 0 && placement.Y == 0 {
				placement.X, placement.Y = def.X, def.Y
			}
		case placement.Height == 0:
			placement.Height = placement.Width / aspect
		case placement.Width == 0:
			placement.Width = placement.Height * aspect
		}
		placement.Rotation = normalizeRotation(placement.Rotation)

		name := pi.Name
		if name == "" {
			name = filepath.Base(pi.Src)
		}
		cfg.Images = append(cfg.Images, ImageLayer{
			ID:        id,
			Name:      name,
			Source:    src,
			Placement: placement,
		})
	}

	comp, err := FromConfig(cfg)
	if err != nil {
		return nil, warnings, err
	}
	return comp, warnings, nil
}

// ProjectFromConfig converts a config back to its file form. assetPath
// names the file each layer's pixels are stored under.
func ProjectFromConfig(cfg Config, assetPath func(ImageLayer) string) *Project {
	bg := cfg.Background
	p := &Project{
		SlideCount: cfg.SlideCount,
		Size:       string(cfg.Size),
		Layout:     string(cfg.Layout),
		Background: &bg,
		Gap:        cfg.Gap,
		Images:     make([]ProjectImage, 0, len(cfg.Images)),
	}
	for _, l := range cfg.Images {
		p.Images = append(p.Images, ProjectImage{
			ID:        l.ID,
			Name:      l.Name,
			Src:       assetPath(l),
			Placement: l.Placement,
		})
	}
	return p
}

func loadSourceFile(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer f.Close()
	return DecodeSource(f)
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// ExampleProject returns a sample project.yaml for carousel init.
func ExampleProject() string {
	return `# Carousel project. Coordinates are virtual-canvas pixels: the canvas is
# slideCount slides wide, laid out left to right with no gap.
slideCount: 3
size: portrait        # square | portrait | landscape | story
layout: freeform      # freeform | grid | collage | split
background: "#ffffff"
gap: 0                # preview guide only, never exported
images:
  - name: panorama
    src: images/panorama.jpg
    x: 0
    y: 135
    width: 3240
    height: 1080
  - name: logo
    src: images/logo.png
    x: 2900
    y: 40
    width: 300
    height: 300
    rotation: -12
`
}
