// GoCarousel - Seamless Instagram carousel slicer.
//
// Usage:
//
//	carousel export -p project.yaml -o carousel.zip [--scale 2] [--format jpeg]
//	carousel preview -p project.yaml -o preview.png [--guides]
//	carousel slices -p project.yaml
//	carousel reel -p project.yaml -o reel.avi
//	carousel bundle -p project.yaml -o project.gscarousel
//	carousel serve [--port 8080]
//	carousel init
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xob0t/GoCarousel/internal/config"
	"github.com/xob0t/GoCarousel/pkg/carousel"
	"github.com/xob0t/GoCarousel/pkg/logging"
	"github.com/xob0t/GoCarousel/pkg/render"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is the state shared by every subcommand once flags and config are
// resolved.
type app struct {
	v        *viper.Viper
	cfgFile  string
	settings config.Settings
	logger   *zap.Logger
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	a := &app{v: v, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "carousel",
		Short: "Slice a wide composition into seamless Instagram carousel slides",
		Long: `Compose images on one wide virtual canvas and cut it into equally
sized slides that line up when swiped.

Examples:
  # Write a sample project
  carousel init

  # Export slides at 2x supersampling
  carousel export -p project.yaml -o carousel.zip --scale 2

  # Open the web editor
  carousel serve`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file path (e.g. carousel.yaml)")
	root.PersistentFlags().String("log-level", "info", "logging level (debug, info, warn, error)")
	root.PersistentFlags().String("log-style", "terminal", "logging output style (terminal, json, noop)")
	mustBindPFlag(v, "log.level", root.PersistentFlags().Lookup("log-level"))
	mustBindPFlag(v, "log.style", root.PersistentFlags().Lookup("log-style"))

	root.AddCommand(
		newExportCmd(a),
		newPreviewCmd(a),
		newSlicesCmd(a),
		newReelCmd(a),
		newBundleCmd(a),
		newServeCmd(a),
		newInitCmd(a),
	)

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\nRun '%s --help' for usage", err, cmd.CommandPath())
	})
	return root
}

func (a *app) init() error {
	used, err := config.Init(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	s, err := config.Load(a.v)
	if err != nil {
		return err
	}
	if _, err := logging.ParseLevel(s.Log.Level); err != nil {
		return err
	}
	a.settings = s
	a.logger = logging.NewLogger(&s.Log)
	if used != "" {
		a.logger.Debug("using config file", zap.String("path", used))
	}
	return nil
}

func (a *app) renderer() (*render.Renderer, error) {
	interp, err := render.ParseInterpolator(a.settings.Render.Interpolator)
	if err != nil {
		return nil, err
	}
	return render.NewRenderer(
		render.WithInterpolator(interp),
		render.WithFontPath(a.settings.Render.FontPath),
		render.WithLogger(a.logger.Named("render")),
	)
}

// loadProject opens a .gscarousel bundle or a standalone JSON/YAML project
// and logs any load warnings.
func (a *app) loadProject(path string) (*carousel.Composition, error) {
	if path == "" {
		return nil, fmt.Errorf("project file is required (-p)")
	}

	var (
		comp     *carousel.Composition
		warnings []string
		err      error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gscarousel":
		comp, warnings, err = carousel.LoadBundle(path)
	default:
		comp, warnings, err = carousel.LoadProjectFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	for _, w := range warnings {
		a.logger.Warn(w, zap.String("project", path))
	}
	return comp, nil
}

func mustBindPFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}
