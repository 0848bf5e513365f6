// Package config loads carousel settings from flags, a YAML config file and
// CAROUSEL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xob0t/GoCarousel/pkg/export"
	"github.com/xob0t/GoCarousel/pkg/logging"
)

// EnvPrefix is prepended to environment overrides, e.g. CAROUSEL_SERVER_PORT.
const EnvPrefix = "CAROUSEL"

// Settings is the resolved configuration.
type Settings struct {
	Log    logging.Config
	Export export.Options
	Render RenderSettings
	Server ServerSettings
}

// RenderSettings selects the resampling kernel and optional label font.
type RenderSettings struct {
	Interpolator string
	FontPath     string
}

// ServerSettings configures the HTTP editor server.
type ServerSettings struct {
	Port                 int
	SessionTTL           time.Duration
	ExportInterval       time.Duration // minimum spacing between export admissions
	ExportBurst          int
	MaxConcurrentExports int64
	MaxUploadMB          int64
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.style", "terminal")

	v.SetDefault("export.format", "png")
	v.SetDefault("export.scale", 1.0)
	v.SetDefault("export.quality", export.DefaultQuality)
	v.SetDefault("export.workers", 0)
	v.SetDefault("export.folder", "")

	v.SetDefault("render.interpolator", "catmullrom")
	v.SetDefault("render.font", "")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.session_ttl", 30*time.Minute)
	v.SetDefault("server.export_interval", time.Second)
	v.SetDefault("server.export_burst", 2)
	v.SetDefault("server.max_concurrent_exports", 2)
	v.SetDefault("server.max_upload_mb", 20)
}

// Init wires env overrides and reads the config file. With an explicit
// cfgFile a missing or unreadable file is an error; otherwise carousel.yaml
// in the working directory or ~/.carousel.yaml is used when present.
// It returns the file used, if any.
func Init(v *viper.Viper, cfgFile string) (string, error) {
	SetDefaults(v)

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return "", fmt.Errorf("config file not found: %s", cfgFile)
		}
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName("carousel")
	}

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
	}
	return v.ConfigFileUsed(), nil
}

// Load resolves Settings from v.
func Load(v *viper.Viper) (Settings, error) {
	format, err := export.ParseFormat(v.GetString("export.format"))
	if err != nil {
		return Settings{}, err
	}

	s := Settings{
		Log: logging.Config{
			Level: logging.Level(v.GetString("log.level")),
			Style: logging.Style(v.GetString("log.style")),
		},
		Export: export.Options{
			ScaleFactor: v.GetFloat64("export.scale"),
			Format:      format,
			Quality:     v.GetInt("export.quality"),
			Folder:      v.GetString("export.folder"),
			Workers:     v.GetInt("export.workers"),
		},
		Render: RenderSettings{
			Interpolator: v.GetString("render.interpolator"),
			FontPath:     v.GetString("render.font"),
		},
		Server: ServerSettings{
			Port:                 v.GetInt("server.port"),
			SessionTTL:           v.GetDuration("server.session_ttl"),
			ExportInterval:       v.GetDuration("server.export_interval"),
			ExportBurst:          v.GetInt("server.export_burst"),
			MaxConcurrentExports: v.GetInt64("server.max_concurrent_exports"),
			MaxUploadMB:          v.GetInt64("server.max_upload_mb"),
		},
	}

	if s.Server.Port < 1 || s.Server.Port > 65535 {
		return Settings{}, fmt.Errorf("server.port %d out of range", s.Server.Port)
	}
	if s.Server.MaxConcurrentExports < 1 {
		return Settings{}, fmt.Errorf("server.max_concurrent_exports must be at least 1")
	}
	if s.Server.SessionTTL <= 0 {
		return Settings{}, fmt.Errorf("server.session_ttl must be positive")
	}
	return s, nil
}
