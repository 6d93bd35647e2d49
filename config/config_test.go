package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/typesetter/model"
)

func TestLoadMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "server:\n  port: \":9090\"\nexport:\n  method: screenshot\n  default_mask_feather: 40\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, DefaultStylesheetURL, cfg.Fonts.StylesheetURL)
	assert.Equal(t, 15*time.Second, cfg.Fonts.Timeout)
	assert.Equal(t, "typeset_manga/${stem}.png", cfg.Export.EntryName)

	opts := cfg.Export.Options()
	assert.Equal(t, model.ExportScreenshot, opts.Method())
	require.NotNil(t, opts.DefaultMaskFeather)
	assert.Equal(t, 40.0, *opts.DefaultMaskFeather)
	assert.Equal(t, model.ShapeEllipse, opts.DefaultMaskShape)
}

func TestNewFallsBackToDefaults(t *testing.T) {
	cfg := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, Default(), cfg)
}
