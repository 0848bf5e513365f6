package main

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(viper.New())
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-style", "noop"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestInitThenExport(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "project.yaml")

	out, err := runCLI(t, "init", "-d", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Created:")

	_, err = runCLI(t, "init", "-d", dir)
	require.Error(t, err, "init must not overwrite an existing project")

	zipPath := filepath.Join(dir, "out.zip")
	out, err = runCLI(t, "export", "-p", project, "-o", zipPath, "--format", "jpg", "--folder", "deck", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Done: "+zipPath)
	assert.Contains(t, out, "(3/3)")

	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"deck/slide-1.jpg", "deck/slide-2.jpg", "deck/slide-3.jpg"}, names)
}

func TestSlicesAndPreview(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "project.yaml")
	_, err := runCLI(t, "init", "-d", dir)
	require.NoError(t, err)

	out, err := runCLI(t, "slices", "-p", project)
	require.NoError(t, err)
	assert.Contains(t, out, "Canvas 3240x1350")
	assert.Contains(t, out, "slide-3.png")
	assert.Contains(t, out, "2160")

	preview := filepath.Join(dir, "preview.png")
	_, err = runCLI(t, "preview", "-p", project, "-o", preview)
	require.NoError(t, err)
	img, err := imaging.Open(preview)
	require.NoError(t, err)
	assert.Equal(t, 3240, img.Bounds().Dx())
	assert.Equal(t, 1350, img.Bounds().Dy())
}

func TestReelAndBundle(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "project.yaml")
	_, err := runCLI(t, "init", "-d", dir)
	require.NoError(t, err)

	stitched := filepath.Join(dir, "strip.png")
	out, err := runCLI(t, "reel", "-p", project, "-o", stitched)
	require.NoError(t, err)
	assert.Contains(t, out, "(3 slides)")
	img, err := imaging.Open(stitched)
	require.NoError(t, err)
	assert.Equal(t, 3240, img.Bounds().Dx())

	bundle := filepath.Join(dir, "project.gscarousel")
	_, err = runCLI(t, "bundle", "-p", project, "-o", bundle)
	require.NoError(t, err)

	out, err = runCLI(t, "slices", "-p", bundle)
	require.NoError(t, err)
	assert.Contains(t, out, "Canvas 3240x1350")
}

func TestExportErrors(t *testing.T) {
	_, err := runCLI(t, "export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-p")

	dir := t.TempDir()
	_, err = runCLI(t, "init", "-d", dir)
	require.NoError(t, err)
	_, err = runCLI(t, "export", "-p", filepath.Join(dir, "project.yaml"), "--format", "gif")
	require.Error(t, err)

	_, err = runCLI(t, "--config", filepath.Join(dir, "missing.yaml"), "slices", "-p", filepath.Join(dir, "project.yaml"))
	require.Error(t, err)
}
