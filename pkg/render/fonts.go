// fonts.go - Font loading for preview guide labels. Uses
// golang.org/x/image/font for OpenType rendering and falls back to the
// embedded Go Regular font when no custom font is given or it fails to load.
package render

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontManager handles font loading with fallback.
type FontManager struct {
	parsed *opentype.Font
}

// NewFontManager creates a font manager with the specified font.
// If customPath is empty or invalid, uses embedded Go font.
func NewFontManager(customPath string, logger *zap.Logger) (*FontManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var fontData []byte
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			logger.Warn("Could not load custom font, using default",
				zap.String("path", customPath), zap.Error(err))
		} else {
			fontData = data
		}
	}
	return NewFontManagerFromBytes(fontData)
}

// NewFontManagerFromBytes parses TTF/OTF data; nil selects the embedded font.
func NewFontManagerFromBytes(data []byte) (*FontManager, error) {
	if data == nil {
		data = goregular.TTF
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &FontManager{parsed: parsed}, nil
}

// GetFace returns a font.Face at the specified size.
func (fm *FontManager) GetFace(size float64, dpi float64) (font.Face, error) {
	if dpi <= 0 {
		dpi = 72
	}

	face, err := opentype.NewFace(fm.parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}

	return face, nil
}
