// format.go - Slide file formats and the default imaging-based encoder.
package export

import (
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/xob0t/GoCarousel/pkg/carousel"
)

// Format is the file format of exported slides.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// DefaultQuality is the JPEG quality used when none is given.
const DefaultQuality = 95

// ParseFormat validates a format name. Empty means PNG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "bmp":
		return FormatBMP, nil
	case "tiff", "tif":
		return FormatTIFF, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", carousel.ErrInvalidConfig, s)
	}
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case "":
		return "png"
	default:
		return string(f)
	}
}

// EncodeFunc writes img to w in the given format.
type EncodeFunc func(w io.Writer, img image.Image, f Format, quality int) error

// Encode is the default EncodeFunc.
func Encode(w io.Writer, img image.Image, f Format, quality int) error {
	var imgFmt imaging.Format
	switch f {
	case FormatPNG, "":
		imgFmt = imaging.PNG
	case FormatJPEG:
		imgFmt = imaging.JPEG
	case FormatBMP:
		imgFmt = imaging.BMP
	case FormatTIFF:
		imgFmt = imaging.TIFF
	default:
		return fmt.Errorf("unsupported format %q", f)
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return imaging.Encode(w, img, imgFmt, imaging.JPEGQuality(quality))
}
