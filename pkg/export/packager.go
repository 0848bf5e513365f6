// Package export turns a carousel snapshot into a ZIP of per-slide images.
// Slides render in parallel, straight from the source layers at the
// requested scale, and are assembled in slide order.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xob0t/GoCarousel/pkg/carousel"
	"github.com/xob0t/GoCarousel/pkg/render"
	"github.com/xob0t/GoCarousel/pkg/slicer"
)

// Options controls one export.
type Options struct {
	ScaleFactor float64 `json:"scaleFactor,omitempty"` // 0 means 1
	Format      Format  `json:"format,omitempty"`
	Quality     int     `json:"quality,omitempty"` // JPEG only
	Folder      string  `json:"folder,omitempty"`  // optional directory inside the archive
	Workers     int     `json:"workers,omitempty"` // 0 means runtime.NumCPU()
}

// Progress reports one finished slide.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
	Index int `json:"index"`
}

// ProgressFunc is called once per finished slide, never concurrently.
type ProgressFunc func(Progress)

// Archive is a finished export.
type Archive struct {
	Name  string   // download name, e.g. carousel-1700000000000.zip
	Files []string // entries in slide order
	Data  []byte
}

// Packager renders and packages carousel exports. It is safe for
// concurrent use.
type Packager struct {
	renderer *render.Renderer
	logger   *zap.Logger
	encode   EncodeFunc
	now      func() time.Time
}

// PackagerOption configures a Packager.
type PackagerOption func(*Packager)

// WithEncoder replaces the slide encoder.
func WithEncoder(fn EncodeFunc) PackagerOption {
	return func(p *Packager) { p.encode = fn }
}

// WithClock sets the time source used for archive names and entry dates.
func WithClock(now func() time.Time) PackagerOption {
	return func(p *Packager) { p.now = now }
}

// NewPackager creates a packager using r for slide rendering.
func NewPackager(r *render.Renderer, logger *zap.Logger, opts ...PackagerOption) *Packager {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Packager{
		renderer: r,
		logger:   logger,
		encode:   Encode,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Export renders every slice of snap at opts.ScaleFactor and returns the
// archive. The snapshot is validated before any rendering starts.
func (p *Packager) Export(ctx context.Context, snap carousel.Snapshot, opts Options, progress ProgressFunc) (*Archive, error) {
	opts, err := normalizeOptions(opts)
	if err != nil {
		return nil, err
	}
	cfg := snap.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Images) == 0 {
		return nil, carousel.ErrEmptyComposition
	}
	slices, err := slicer.ComputeSlices(cfg)
	if err != nil {
		return nil, err
	}

	start := p.now()
	p.logger.Info("export started",
		zap.Int("slides", len(slices)),
		zap.Float64("scale", opts.ScaleFactor),
		zap.String("format", string(opts.Format)),
		zap.Int("workers", opts.Workers))

	encoded, err := p.run(ctx, slices, opts, progress, func(s slicer.Slice) (image.Image, error) {
		return p.renderer.RenderRegion(cfg, s.Rect(), opts.ScaleFactor)
	})
	if err != nil {
		return nil, err
	}

	a, err := p.assemble(slices, encoded, opts)
	if err != nil {
		return nil, err
	}
	p.logger.Info("export finished",
		zap.String("archive", a.Name),
		zap.Int("bytes", len(a.Data)),
		zap.Duration("took", p.now().Sub(start)))
	return a, nil
}

// ExportCanvas crops slices out of an already rendered 1× virtual canvas.
// Supersampling needs a re-render from the sources, so any scale other than
// 1 is rejected.
func (p *Packager) ExportCanvas(ctx context.Context, canvas image.Image, slices []slicer.Slice, opts Options, progress ProgressFunc) (*Archive, error) {
	opts, err := normalizeOptions(opts)
	if err != nil {
		return nil, err
	}
	if opts.ScaleFactor != 1 {
		return nil, fmt.Errorf("%w: canvas export cannot supersample (scale %g), render from sources instead",
			carousel.ErrInvalidConfig, opts.ScaleFactor)
	}
	if canvas == nil {
		return nil, fmt.Errorf("%w: nil canvas", carousel.ErrInvalidConfig)
	}
	if len(slices) == 0 {
		return nil, fmt.Errorf("%w: no slices", carousel.ErrInvalidConfig)
	}
	b := canvas.Bounds()
	for _, s := range slices {
		if !s.Rect().In(b) {
			return nil, fmt.Errorf("%w: slice %d %v outside canvas %v", carousel.ErrInvalidConfig, s.Index+1, s.Rect(), b)
		}
	}

	encoded, err := p.run(ctx, slices, opts, progress, func(s slicer.Slice) (image.Image, error) {
		return imaging.Crop(canvas, s.Rect()), nil
	})
	if err != nil {
		return nil, err
	}
	return p.assemble(slices, encoded, opts)
}

// run produces and encodes every slice on a bounded worker group. Each
// task writes only its own result slot.
func (p *Packager) run(ctx context.Context, slices []slicer.Slice, opts Options, progress ProgressFunc,
	produce func(slicer.Slice) (image.Image, error)) ([][]byte, error) {

	results := make([][]byte, len(slices))

	var (
		mu   sync.Mutex
		done int
	)
	report := func(index int) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if progress != nil {
			progress(Progress{Done: done, Total: len(slices), Index: index})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i, s := range slices {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			img, err := produce(s)
			if err != nil {
				return fmt.Errorf("slide %d: %w", s.Index+1, err)
			}
			if err := gctx.Err(); err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := p.encode(&buf, img, opts.Format, opts.Quality); err != nil {
				return fmt.Errorf("%w: slide %d: %v", carousel.ErrEncoding, s.Index+1, err)
			}
			results[i] = buf.Bytes()

			p.logger.Debug("slide encoded",
				zap.Int("slide", s.Index+1),
				zap.Int("bytes", buf.Len()))
			report(s.Index)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			p.logger.Info("export cancelled")
			return nil, ctxErr
		}
		if !errors.Is(err, context.Canceled) {
			p.logger.Error("export failed", zap.Error(err))
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// assemble writes the encoded slides into a zip in slide order.
func (p *Packager) assemble(slices []slicer.Slice, encoded [][]byte, opts Options) (*Archive, error) {
	now := p.now()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	files := make([]string, 0, len(slices))
	for i, s := range slices {
		name := s.FileName(opts.Format.Ext())
		if opts.Folder != "" {
			name = path.Join(opts.Folder, name)
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return nil, fmt.Errorf("archive entry %s: %w", name, err)
		}
		if _, err := w.Write(encoded[i]); err != nil {
			return nil, fmt.Errorf("archive entry %s: %w", name, err)
		}
		files = append(files, name)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	return &Archive{
		Name:  fmt.Sprintf("carousel-%d.zip", now.UnixMilli()),
		Files: files,
		Data:  buf.Bytes(),
	}, nil
}

func normalizeOptions(opts Options) (Options, error) {
	if opts.ScaleFactor == 0 {
		opts.ScaleFactor = 1
	}
	if math.IsNaN(opts.ScaleFactor) || opts.ScaleFactor < 0 || opts.ScaleFactor > render.MaxScale {
		return opts, fmt.Errorf("%w: scale factor %g outside (0, %g]", carousel.ErrInvalidConfig, opts.ScaleFactor, render.MaxScale)
	}

	f, err := ParseFormat(string(opts.Format))
	if err != nil {
		return opts, err
	}
	opts.Format = f

	if opts.Quality == 0 {
		opts.Quality = DefaultQuality
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		return opts, fmt.Errorf("%w: quality %d outside [1, 100]", carousel.ErrInvalidConfig, opts.Quality)
	}

	if opts.Folder != "" {
		folder := path.Clean(strings.ReplaceAll(opts.Folder, "\\", "/"))
		if path.IsAbs(folder) || folder == ".." || strings.HasPrefix(folder, "../") {
			return opts, fmt.Errorf("%w: archive folder %q escapes the archive root", carousel.ErrInvalidConfig, opts.Folder)
		}
		if folder == "." {
			folder = ""
		}
		opts.Folder = folder
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return opts, nil
}
