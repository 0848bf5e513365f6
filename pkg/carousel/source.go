// source.go - Decode user-supplied raster files into layer sources.
package carousel

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// MaxSourcePixels caps the declared size of an input image. The header is
// checked before any pixel buffer is allocated.
const MaxSourcePixels = 50_000_000

// DecodeSource decodes a PNG/JPEG/GIF/BMP/TIFF/WebP stream. JPEG EXIF
// orientation is applied so the natural dimensions match what the user sees.
func DecodeSource(r io.Reader) (*Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrDecode, err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty %s image", ErrDecode, format)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return nil, fmt.Errorf("%w: %dx%d %s image exceeds %d pixels",
			ErrDecode, cfg.Width, cfg.Height, format, int64(MaxSourcePixels))
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return NewSource(img, format)
}

// NewSource wraps an already decoded image.
func NewSource(img image.Image, format string) (*Source, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrDecode)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return &Source{
		Image:  img,
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: format,
	}, nil
}

func (s *Source) valid() bool {
	return s != nil && s.Image != nil && s.Width > 0 && s.Height > 0
}
