package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xob0t/GoCarousel/pkg/export"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "info", string(s.Log.Level))
	assert.Equal(t, "terminal", string(s.Log.Style))
	assert.Equal(t, export.FormatPNG, s.Export.Format)
	assert.Equal(t, 1.0, s.Export.ScaleFactor)
	assert.Equal(t, 95, s.Export.Quality)
	assert.Equal(t, "catmullrom", s.Render.Interpolator)
	assert.Equal(t, 8080, s.Server.Port)
	assert.Equal(t, 30*time.Minute, s.Server.SessionTTL)
	assert.Equal(t, int64(2), s.Server.MaxConcurrentExports)
}

func TestInitReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "carousel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
export:
  format: jpg
  scale: 2
server:
  port: 9000
  session_ttl: 5m
`), 0644))

	t.Setenv("CAROUSEL_SERVER_PORT", "9100")
	t.Setenv("CAROUSEL_LOG_LEVEL", "debug")

	v := viper.New()
	used, err := Init(v, path)
	require.NoError(t, err)
	assert.Equal(t, path, used)

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, export.FormatJPEG, s.Export.Format)
	assert.Equal(t, 2.0, s.Export.ScaleFactor)
	assert.Equal(t, 9100, s.Server.Port)
	assert.Equal(t, 5*time.Minute, s.Server.SessionTTL)
	assert.Equal(t, "debug", string(s.Log.Level))
}

func TestInitMissingExplicitFile(t *testing.T) {
	_, err := Init(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "not found")
}

func TestLoadRejectsBadValues(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("export.format", "gif")
	_, err := Load(v)
	assert.Error(t, err)

	v = viper.New()
	SetDefaults(v)
	v.Set("server.port", 0)
	_, err = Load(v)
	assert.Error(t, err)
}
