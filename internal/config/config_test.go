package config

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 2, cfg.Audio.Channels)
	assert.True(t, cfg.Export.DeletePartialOnFailure)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
concurrency: 2
project:
  width: 1280
  height: 720
  fps: 24
export:
  quality: high
stickers:
  heart: /tmp/heart.png
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, ProjectConfig{Width: 1280, Height: 720, FPS: 24}, cfg.Project)
	assert.Equal(t, "high", cfg.Export.Quality)
	assert.Equal(t, "1080p", cfg.Export.Resolution, "unset keys keep defaults")
	assert.Equal(t, "/tmp/heart.png", cfg.Stickers["heart"])
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Project, cfg.Project)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"channels":   "audio:\n  channels: 6\n",
		"size":       "project:\n  width: 0\n",
		"text color": "text:\n  color: \"#zzz\"\n",
		"yaml":       "project: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Concurrency = 7

	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Concurrency)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"", color.NRGBA{}},
		{"#fff", color.NRGBA{R: 255, G: 255, B: 255, A: 255}},
		{"#FF8000", color.NRGBA{R: 255, G: 128, A: 255}},
		{"00000080", color.NRGBA{A: 128}},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseColor("#12345")
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	assert.Equal(t, Default().Project, FromContext(context.Background()).Project)

	cfg := Default()
	cfg.WorkDir = "/elsewhere"
	ctx := WithConfig(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
}
