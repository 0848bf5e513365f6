// serve.go - Web editor and sample project scaffolding.
package main

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/xob0t/GoCarousel/clients/server"
	"github.com/xob0t/GoCarousel/pkg/carousel"
	"github.com/xob0t/GoCarousel/pkg/generator"
	"github.com/xob0t/GoCarousel/pkg/render"
)

// ── serve ──

func newServeCmd(a *app) *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web editor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.RunServe(ctx, a.settings, a.logger.Named("server"), !noBrowser)
		},
	}

	cmd.Flags().Int("port", 8080, "HTTP port")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "don't open a browser window")
	mustBindPFlag(a.v, "server.port", cmd.Flags().Lookup("port"))
	return cmd
}

// ── init ──

func newInitCmd(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample project with placeholder images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeSampleProject(cmd.OutOrStdout(), dir)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory to write project.yaml and images/ into")
	return cmd
}

func writeSampleProject(out io.Writer, dir string) error {
	projectPath := filepath.Join(dir, "project.yaml")
	if _, err := os.Stat(projectPath); err == nil {
		return fmt.Errorf("%s already exists", projectPath)
	}
	if err := os.MkdirAll(filepath.Join(dir, "images"), 0o755); err != nil {
		return fmt.Errorf("create images dir: %w", err)
	}

	// One color band per slide makes the seams easy to check.
	panorama := image.NewNRGBA(image.Rect(0, 0, 3240, 1080))
	bands := []color.NRGBA{
		{R: 0x26, G: 0x46, B: 0x53, A: 0xff},
		{R: 0x2a, G: 0x9d, B: 0x8f, A: 0xff},
		{R: 0xe9, G: 0xc4, B: 0x6a, A: 0xff},
	}
	for i, c := range bands {
		panorama = imaging.Paste(panorama, render.NewSolidImage(1080, 1080, c), image.Pt(i*1080, 0))
	}
	logo := imaging.Overlay(
		render.NewSolidImage(300, 300, color.NRGBA{R: 0xe7, G: 0x6f, B: 0x51, A: 0xff}),
		render.NewSolidImage(200, 200, color.White),
		image.Pt(50, 50), 1.0)

	if err := imaging.Save(panorama, filepath.Join(dir, "images", "panorama.jpg"), imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("write panorama: %w", err)
	}
	if err := imaging.Save(logo, filepath.Join(dir, "images", "logo.png")); err != nil {
		return fmt.Errorf("write logo: %w", err)
	}
	if err := generator.WriteFile(projectPath, []byte(carousel.ExampleProject())); err != nil {
		return err
	}

	fmt.Fprintf(out, "Created: %s, %s\n", projectPath, filepath.Join(dir, "images"))
	fmt.Fprintf(out, "Run: carousel export -p %s --scale 2\n", projectPath)
	return nil
}
