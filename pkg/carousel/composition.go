// composition.go - Owned, mutable carousel state with named mutations.
package carousel

import (
	"fmt"
	"io"
	"regexp"
	"sync"

	"github.com/google/uuid"
)

// Direction is a relative z-order move.
type Direction string

const (
	Front    Direction = "front"
	Back     Direction = "back"
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

// maxIDAttempts bounds retries when the id generator collides.
const maxIDAttempts = 8

var hexColorRe = regexp.MustCompile(`^#([0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Composition is the single owner of a Config. All changes go through its
// methods; a failed mutation leaves the state untouched.
type Composition struct {
	mu    sync.RWMutex
	cfg   Config
	newID func() string
}

// Option configures a new Composition.
type Option func(*Composition)

// WithIDGenerator overrides layer id generation (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(c *Composition) { c.newID = fn }
}

// withConfig seeds the composition from a config already checked by
// FromConfig.
func withConfig(cfg Config) Option {
	return func(c *Composition) { c.cfg = cfg.clone() }
}

// New creates an empty composition with the editor defaults:
// three square slides on a white background.
func New(opts ...Option) *Composition {
	c := &Composition{
		cfg: Config{
			SlideCount: 3,
			Size:       SizeSquare,
			Layout:     LayoutFreeform,
			Background: "#ffffff",
		},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig validates cfg and wraps it in a Composition.
func FromConfig(cfg Config, opts ...Option) (*Composition, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return New(append([]Option{withConfig(cfg)}, opts...)...), nil
}

// Validate checks the config the same way FromConfig does.
func (c Config) Validate() error {
	return validateConfig(c)
}

func validateConfig(cfg Config) error {
	if cfg.SlideCount < 1 || cfg.SlideCount > MaxSlides {
		return fmt.Errorf("%w: slide count %d outside [1, %d]", ErrInvalidConfig, cfg.SlideCount, MaxSlides)
	}
	if _, ok := Presets[cfg.Size]; !ok {
		return fmt.Errorf("%w: unknown size preset %q", ErrInvalidConfig, cfg.Size)
	}
	if _, err := ParseLayout(string(cfg.Layout)); err != nil {
		return err
	}
	if cfg.Background != "" && !hexColorRe.MatchString(cfg.Background) {
		return fmt.Errorf("%w: background %q is not #rrggbb or #rrggbbaa", ErrInvalidConfig, cfg.Background)
	}
	if cfg.Gap < 0 || cfg.Gap > MaxGap {
		return fmt.Errorf("%w: gap %d outside [0, %d]", ErrInvalidConfig, cfg.Gap, MaxGap)
	}
	seen := make(map[string]struct{}, len(cfg.Images))
	for _, l := range cfg.Images {
		if l.ID == "" {
			return fmt.Errorf("%w: layer without id", ErrInvalidConfig)
		}
		if _, dup := seen[l.ID]; dup {
			return fmt.Errorf("%w: duplicate layer id %q", ErrInvalidConfig, l.ID)
		}
		seen[l.ID] = struct{}{}
		if !l.Source.valid() {
			return fmt.Errorf("%w: layer %q has no decoded source", ErrDecode, l.ID)
		}
		if err := l.Placement.validate(); err != nil {
			return fmt.Errorf("layer %q: %w", l.ID, err)
		}
	}
	return nil
}

// ── Read-only projections ──

// Config returns a copy of the current state.
func (c *Composition) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.clone()
}

// Snapshot returns an immutable copy for export. Edits made after this
// call never affect the snapshot.
func (c *Composition) Snapshot() Snapshot {
	return Snapshot{Config: c.Config()}
}

// Len returns the number of layers.
func (c *Composition) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cfg.Images)
}

// Layer returns the layer with the given id.
func (c *Composition) Layer(id string) (ImageLayer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := c.indexOf(id)
	if i < 0 {
		return ImageLayer{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.cfg.Images[i], nil
}

// ── Layer mutations ──

// AddImage appends a layer on top of the z-order. A nil placement uses the
// editor's default placement for the current slide size.
func (c *Composition) AddImage(src *Source, placement *Placement) (ImageLayer, error) {
	return c.add(src, "", placement)
}

// AddImageData decodes r and adds it as a new layer named name.
func (c *Composition) AddImageData(r io.Reader, name string, placement *Placement) (ImageLayer, error) {
	src, err := DecodeSource(r)
	if err != nil {
		if name != "" {
			return ImageLayer{}, fmt.Errorf("%s: %w", name, err)
		}
		return ImageLayer{}, err
	}
	return c.add(src, name, placement)
}

func (c *Composition) add(src *Source, name string, placement *Placement) (ImageLayer, error) {
	if !src.valid() {
		return ImageLayer{}, fmt.Errorf("%w: source is not a decoded raster image", ErrDecode)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := defaultPlacement(src, c.cfg.SlideHeight())
	if placement != nil {
		p = *placement
		p.Rotation = normalizeRotation(p.Rotation)
	}
	if err := p.validate(); err != nil {
		return ImageLayer{}, err
	}

	id := c.newID()
	for tries := 1; c.indexOf(id) >= 0; tries++ {
		if tries >= maxIDAttempts {
			return ImageLayer{}, fmt.Errorf("%w: id generator returned taken id %q %d times", ErrInvalidConfig, id, tries)
		}
		id = c.newID()
	}

	layer := ImageLayer{ID: id, Name: name, Source: src, Placement: p}
	c.cfg.Images = append(c.cfg.Images, layer)

	if c.cfg.Layout == LayoutGrid {
		c.cfg.SlideCount = clampSlides(max(c.cfg.SlideCount, len(c.cfg.Images)))
	}
	return layer, nil
}

// UpdateImage merges patch into the layer with the given id.
func (c *Composition) UpdateImage(id string, patch LayerPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	updated := applyPatch(c.cfg.Images[i], patch)
	if err := updated.Placement.validate(); err != nil {
		return err
	}
	c.cfg.Images[i] = updated
	return nil
}

// DeleteImage removes the layer with the given id.
func (c *Composition) DeleteImage(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	images := make([]ImageLayer, 0, len(c.cfg.Images)-1)
	images = append(images, c.cfg.Images[:i]...)
	images = append(images, c.cfg.Images[i+1:]...)
	c.cfg.Images = images
	return nil
}

// ReorderImage moves a layer to newIndex, shifting the others.
// newIndex is clamped to [0, len-1].
func (c *Composition) ReorderImage(id string, newIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reorderLocked(id, newIndex)
}

// MoveImage moves a layer one step or all the way in the z-order.
func (c *Composition) MoveImage(id string, dir Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	switch dir {
	case Front:
		return c.reorderLocked(id, len(c.cfg.Images)-1)
	case Back:
		return c.reorderLocked(id, 0)
	case Forward:
		return c.reorderLocked(id, i+1)
	case Backward:
		return c.reorderLocked(id, i-1)
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidConfig, dir)
	}
}

func (c *Composition) reorderLocked(id string, newIndex int) error {
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	newIndex = min(max(newIndex, 0), len(c.cfg.Images)-1)
	if newIndex == i {
		return nil
	}

	layer := c.cfg.Images[i]
	images := make([]ImageLayer, 0, len(c.cfg.Images))
	images = append(images, c.cfg.Images[:i]...)
	images = append(images, c.cfg.Images[i+1:]...)
	images = append(images[:newIndex], append([]ImageLayer{layer}, images[newIndex:]...)...)
	c.cfg.Images = images
	return nil
}

// ── Layout settings ──

// SetSlideCount sets the number of output slides.
func (c *Composition) SetSlideCount(n int) error {
	if n < 1 || n > MaxSlides {
		return fmt.Errorf("%w: slide count %d outside [1, %d]", ErrInvalidConfig, n, MaxSlides)
	}
	c.mu.Lock()
	c.cfg.SlideCount = n
	c.mu.Unlock()
	return nil
}

// SetSizePreset sets the slide resolution from a preset name or alias.
func (c *Composition) SetSizePreset(name string) error {
	p, err := ResolvePreset(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.cfg.Size = p
	c.mu.Unlock()
	return nil
}

// SetLayout switches layout mode and recalculates the slide count:
// grid gets one slide per image, split gets at least three slides.
func (c *Composition) SetLayout(name string) error {
	l, err := ParseLayout(name)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if l == c.cfg.Layout {
		return nil
	}
	c.cfg.Layout = l
	switch l {
	case LayoutGrid:
		c.cfg.SlideCount = clampSlides(max(1, len(c.cfg.Images)))
	case LayoutSplit:
		if c.cfg.SlideCount < 2 {
			c.cfg.SlideCount = 3
		}
	}
	return nil
}

// SetBackground sets the canvas fill. Empty means transparent.
func (c *Composition) SetBackground(hex string) error {
	if hex != "" && !hexColorRe.MatchString(hex) {
		return fmt.Errorf("%w: background %q is not #rrggbb or #rrggbbaa", ErrInvalidConfig, hex)
	}
	c.mu.Lock()
	c.cfg.Background = hex
	c.mu.Unlock()
	return nil
}

// SetGap sets the display-only slide gap guide.
func (c *Composition) SetGap(px int) error {
	if px < 0 || px > MaxGap {
		return fmt.Errorf("%w: gap %d outside [0, %d]", ErrInvalidConfig, px, MaxGap)
	}
	c.mu.Lock()
	c.cfg.Gap = px
	c.mu.Unlock()
	return nil
}

func (c *Composition) indexOf(id string) int {
	for i := range c.cfg.Images {
		if c.cfg.Images[i].ID == id {
			return i
		}
	}
	return -1
}

func clampSlides(n int) int {
	return min(max(n, 1), MaxSlides)
}
