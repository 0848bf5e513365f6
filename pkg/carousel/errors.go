// errors.go - Error taxonomy shared by the model, renderer and export packager.
package carousel

import "errors"

var (
	// ErrDecode is returned when a supplied image cannot be decoded.
	ErrDecode = errors.New("image decode failed")

	// ErrNotFound is returned when a mutation references a layer id that
	// no longer exists (e.g. a stale UI callback after deletion).
	ErrNotFound = errors.New("layer not found")

	// ErrInvalidConfig is returned when slide count, preset, layout or
	// layer geometry is out of range.
	ErrInvalidConfig = errors.New("invalid carousel config")

	// ErrEncoding is returned when a slide fails to encode during export.
	ErrEncoding = errors.New("slide encoding failed")

	// ErrEmptyComposition is returned when an export is requested for a
	// composition without layers.
	ErrEmptyComposition = errors.New("composition has no images")
)
