// commands.go - Project commands: export, preview, slices, reel, bundle.
package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xob0t/GoCarousel/pkg/carousel"
	"github.com/xob0t/GoCarousel/pkg/export"
	"github.com/xob0t/GoCarousel/pkg/generator"
	"github.com/xob0t/GoCarousel/pkg/render"
	"github.com/xob0t/GoCarousel/pkg/slicer"
)

func addProjectFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "project", "p", "", "project file (.yaml, .json or .gscarousel)")
}

// ── export ──

func newExportCmd(a *app) *cobra.Command {
	var project, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render every slide and write them as a ZIP archive",
		Example: `  carousel export -p project.yaml
  carousel export -p project.yaml -o out.zip --scale 2 --format jpeg --quality 90`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := a.loadProject(project)
			if err != nil {
				return err
			}
			r, err := a.renderer()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := a.settings.Export
			p := export.NewPackager(r, a.logger.Named("export"))
			out := cmd.OutOrStdout()
			archive, err := p.Export(ctx, comp.Snapshot(), opts, func(pr export.Progress) {
				fmt.Fprintf(out, "Rendered slide %d (%d/%d)\n", pr.Index+1, pr.Done, pr.Total)
			})
			if err != nil {
				return err
			}

			if output == "" {
				output = archive.Name
			}
			if err := generator.WriteFile(output, archive.Data); err != nil {
				return err
			}
			a.logger.Info("export written",
				zap.String("path", output),
				zap.Int("slides", len(archive.Files)),
				zap.Float64("scale", opts.ScaleFactor),
				zap.String("format", string(opts.Format)))
			fmt.Fprintf(out, "Done: %s\n", output)
			return nil
		},
	}

	addProjectFlag(cmd, &project)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output ZIP path (default carousel-<timestamp>.zip)")
	cmd.Flags().Float64("scale", 1, "supersampling factor, 1 to 4")
	cmd.Flags().String("format", "png", "slide format: png, jpeg, bmp or tiff")
	cmd.Flags().Int("quality", export.DefaultQuality, "JPEG quality, 1 to 100")
	cmd.Flags().Int("workers", 0, "parallel slide renders (0 = one per CPU)")
	cmd.Flags().String("folder", "", "directory for slides inside the archive")
	mustBindPFlag(a.v, "export.scale", cmd.Flags().Lookup("scale"))
	mustBindPFlag(a.v, "export.format", cmd.Flags().Lookup("format"))
	mustBindPFlag(a.v, "export.quality", cmd.Flags().Lookup("quality"))
	mustBindPFlag(a.v, "export.workers", cmd.Flags().Lookup("workers"))
	mustBindPFlag(a.v, "export.folder", cmd.Flags().Lookup("folder"))
	return cmd
}

// ── preview ──

func newPreviewCmd(a *app) *cobra.Command {
	var (
		project, output string
		guides          bool
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the whole virtual canvas to one image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := a.loadProject(project)
			if err != nil {
				return err
			}
			r, err := a.renderer()
			if err != nil {
				return err
			}
			img, err := r.RenderPreview(comp.Config(), render.Guides{Dividers: guides, Labels: guides})
			if err != nil {
				return err
			}

			format, err := imaging.FormatFromFilename(output)
			if err != nil {
				return fmt.Errorf("output %s: %w", output, err)
			}
			var buf bytes.Buffer
			if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(a.settings.Export.Quality)); err != nil {
				return err
			}
			if err := generator.WriteFile(output, buf.Bytes()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Done: %s (%dx%d)\n", output, img.Bounds().Dx(), img.Bounds().Dy())
			return nil
		},
	}

	addProjectFlag(cmd, &project)
	cmd.Flags().StringVarP(&output, "output", "o", "preview.png", "output image path")
	cmd.Flags().BoolVar(&guides, "guides", false, "draw slide dividers and numbers")
	return cmd
}

// ── slices ──

func newSlicesCmd(a *app) *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "slices",
		Short: "Print the crop rectangle of every slide",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := a.loadProject(project)
			if err != nil {
				return err
			}
			cfg := comp.Config()
			slices, err := slicer.ComputeSlices(cfg)
			if err != nil {
				return err
			}

			format := a.settings.Export.Format
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Canvas %dx%d, %d x %s\n", cfg.CanvasWidth(), cfg.CanvasHeight(), cfg.SlideCount, cfg.Size)
			fmt.Fprintln(tw, "FILE\tX\tY\tWIDTH\tHEIGHT")
			for _, s := range slices {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", s.FileName(format.Ext()), s.X, s.Y, s.Width, s.Height)
			}
			return tw.Flush()
		},
	}

	addProjectFlag(cmd, &project)
	return cmd
}

// ── reel ──

func newReelCmd(a *app) *cobra.Command {
	var (
		project, output string
		reel            generator.ReelOptions
	)

	cmd := &cobra.Command{
		Use:   "reel",
		Short: "Write the slides as a video reel, a stitched PNG or a plain ZIP",
		Long: `Render every slide at 1x and write them in the format given by the
output extension:
  .avi  MJPEG reel, each slide held for --seconds
  .png  all slides stitched left to right
  .zip  slide-N.png entries`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := a.loadProject(project)
			if err != nil {
				return err
			}
			r, err := a.renderer()
			if err != nil {
				return err
			}
			slides, err := renderSlides(cmd.Context(), r, comp.Config())
			if err != nil {
				return err
			}
			if err := generator.Generate(output, slides, generator.Config{Reel: reel}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Done: %s (%d slides)\n", output, len(slides))
			return nil
		},
	}

	addProjectFlag(cmd, &project)
	cmd.Flags().StringVarP(&output, "output", "o", "reel.avi", "output path (.avi, .png or .zip)")
	cmd.Flags().IntVar(&reel.SecondsPerSlide, "seconds", 2, "seconds each slide is shown, at most 60 (.avi)")
	cmd.Flags().IntVar(&reel.FPS, "fps", 15, "frames per second, at most 60 (.avi)")
	cmd.Flags().IntVar(&reel.Quality, "quality", export.DefaultQuality, "JPEG frame quality (.avi)")
	return cmd
}

func renderSlides(ctx context.Context, r *render.Renderer, cfg carousel.Config) ([]image.Image, error) {
	if len(cfg.Images) == 0 {
		return nil, carousel.ErrEmptyComposition
	}
	slices, err := slicer.ComputeSlices(cfg)
	if err != nil {
		return nil, err
	}
	out := make([]image.Image, len(slices))
	for i, s := range slices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := r.RenderRegion(cfg, s.Rect(), 1)
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", i+1, err)
		}
		out[i] = img
	}
	return out, nil
}

// ── bundle ──

func newBundleCmd(a *app) *cobra.Command {
	var project, output string

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Pack a project and its images into one .gscarousel file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := a.loadProject(project)
			if err != nil {
				return err
			}
			if output == "" {
				base := filepath.Base(project)
				output = base[:len(base)-len(filepath.Ext(base))] + ".gscarousel"
			}
			var buf bytes.Buffer
			if err := carousel.WriteBundle(&buf, comp.Config()); err != nil {
				return err
			}
			if err := generator.WriteFile(output, buf.Bytes()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Done: %s (%d images)\n", output, comp.Len())
			return nil
		},
	}

	addProjectFlag(cmd, &project)
	cmd.Flags().StringVarP(&output, "output", "o", "", "bundle path (default <project>.gscarousel)")
	return cmd
}
