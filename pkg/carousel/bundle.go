// bundle.go - Load and write .gscarousel (ZIP) bundles: project.json plus
// the layer images under assets/.
package carousel

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// BundleExt is the file extension of carousel bundles.
const BundleExt = ".gscarousel"

const bundleManifest = "project.json"

// LoadBundle opens a .gscarousel ZIP, extracts it to a temp directory and
// builds the composition from project.json. Sources are decoded into
// memory, so the temp directory is removed before returning.
func LoadBundle(path string) (*Composition, []string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	tmpDir, err := os.MkdirTemp("", "gscarousel-*")
	if err != nil {
		return nil, nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := extractZip(&r.Reader, tmpDir); err != nil {
		return nil, nil, fmt.Errorf("extract %s: %w", path, err)
	}

	p, err := ParseProjectFile(filepath.Join(tmpDir, bundleManifest))
	if err != nil {
		return nil, nil, err
	}
	return p.Build(tmpDir)
}

// WriteBundle writes cfg as a bundle. Layer pixels are stored as PNG.
func WriteBundle(w io.Writer, cfg Config) error {
	zw := zip.NewWriter(w)

	assetPath := func(l ImageLayer) string { return "assets/" + l.ID + ".png" }
	for _, l := range cfg.Images {
		aw, err := zw.Create(assetPath(l))
		if err != nil {
			return fmt.Errorf("bundle asset %s: %w", l.ID, err)
		}
		if err := imaging.Encode(aw, l.Source.Image, imaging.PNG); err != nil {
			return fmt.Errorf("encode asset %s: %w", l.ID, err)
		}
	}

	pw, err := zw.Create(bundleManifest)
	if err != nil {
		return fmt.Errorf("bundle manifest: %w", err)
	}
	enc := json.NewEncoder(pw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ProjectFromConfig(cfg, assetPath)); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	return zw.Close()
}

// extractZip extracts all files from a zip reader into destDir.
func extractZip(r *zip.Reader, destDir string) error {
	for _, f := range r.File {
		target := filepath.Join(destDir, f.Name)

		// Guard against zip slip.
		if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("illegal path in zip: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

// extractFile writes a single zip entry to disk.
func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
