// Package generator writes rendered carousels to disk.
//
// All output follows one pipeline: render slides to image.Image first, then
// encode them as a ZIP of slides, a single stitched PNG, or an MJPEG AVI reel.
// Files are written atomically.
package generator

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/xob0t/GoCarousel/pkg/carousel"
)

// Config holds output parameters for Generate.
type Config struct {
	Reel ReelOptions
}

// Generate writes slides to output. The format is inferred from the file
// extension:
//   - ".zip" → slide-N.png entries
//   - ".png" → all slides stitched left to right (the virtual canvas)
//   - ".avi" → MJPEG reel, Reel.SecondsPerSlide per slide
func Generate(output string, slides []image.Image, cfg Config) error {
	var buf bytes.Buffer
	if err := GenerateToWriter(&buf, filepath.Ext(output), slides, cfg); err != nil {
		return err
	}
	return WriteFile(output, buf.Bytes())
}

// GenerateToWriter writes media to w. The format is specified by ext
// (".zip", ".png" or ".avi"). This is useful for in-memory generation
// (e.g., WASM).
func GenerateToWriter(w io.Writer, ext string, slides []image.Image, cfg Config) error {
	if len(slides) == 0 {
		return fmt.Errorf("%w: no slides to write", carousel.ErrInvalidConfig)
	}

	switch ext = strings.ToLower(ext); ext {
	case ".zip":
		return writeSlideZip(w, slides)
	case ".png":
		return imaging.Encode(w, stitch(slides), imaging.PNG)
	case ".avi":
		return WriteReel(w, slides, cfg.Reel)
	default:
		return fmt.Errorf("unsupported format %q: use .zip, .png or .avi", ext)
	}
}

// WriteFile writes data to path via a temp file in the same directory and a
// rename, so readers never observe a partial file.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	tmpName := tmp.Name()

	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func writeSlideZip(w io.Writer, slides []image.Image) error {
	zw := zip.NewWriter(w)
	for i, img := range slides {
		fw, err := zw.Create(fmt.Sprintf("slide-%d.png", i+1))
		if err != nil {
			return err
		}
		if err := imaging.Encode(fw, img, imaging.PNG); err != nil {
			return fmt.Errorf("%w: slide %d: %v", carousel.ErrEncoding, i+1, err)
		}
	}
	return zw.Close()
}

// stitch lays slides out left to right, top aligned.
func stitch(slides []image.Image) image.Image {
	if len(slides) == 1 {
		return slides[0]
	}
	w, h := 0, 0
	for _, s := range slides {
		w += s.Bounds().Dx()
		h = max(h, s.Bounds().Dy())
	}
	dst := imaging.New(w, h, color.Transparent)
	x := 0
	for _, s := range slides {
		dst = imaging.Paste(dst, s, image.Pt(x, 0))
		x += s.Bounds().Dx()
	}
	return dst
}
