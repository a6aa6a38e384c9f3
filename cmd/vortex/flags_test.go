package main

import (
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keagan/vortex/internal/background"
	"github.com/keagan/vortex/internal/config"
	"github.com/keagan/vortex/internal/effects"
)

func TestParseFilter(t *testing.T) {
	f, err := parseFilter("sepia:0.4")
	require.NoError(t, err)
	assert.Equal(t, filterSpec{Kind: effects.KindSepia, Intensity: 0.4}, f)

	f, err = parseFilter("vignette")
	require.NoError(t, err)
	assert.Equal(t, effects.KindVignette, f.Kind)
	assert.Equal(t, effects.DefaultIntensity(effects.KindVignette), f.Intensity)

	_, err = parseFilter("sepia:lots")
	assert.Error(t, err)
	_, err = parseFilter("sparkle")
	assert.Error(t, err)
}

func TestParseTrack(t *testing.T) {
	tests := []struct {
		in   string
		want trackSpec
	}{
		{"music.wav", trackSpec{Path: "music.wav", Volume: 1}},
		{"music.wav@1500", trackSpec{Path: "music.wav", Start: 1500 * time.Millisecond, HasStart: true, Volume: 1}},
		{"music.wav:0.5", trackSpec{Path: "music.wav", Volume: 0.5}},
		{"a/b@c.wav@250:1.8", trackSpec{Path: "a/b@c.wav", Start: 250 * time.Millisecond, HasStart: true, Volume: 1.8}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTrack(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"music.wav@soon", "@100", "x@-5"} {
		_, err := parseTrack(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseTransition(t *testing.T) {
	kind, d, err := parseTransition("dissolve:750")
	require.NoError(t, err)
	assert.Equal(t, "dissolve", kind)
	assert.Equal(t, 750*time.Millisecond, d)

	kind, d, err = parseTransition("fade")
	require.NoError(t, err)
	assert.Equal(t, "fade", kind)
	assert.Equal(t, time.Second, d)

	kind, _, err = parseTransition("")
	require.NoError(t, err)
	assert.Empty(t, kind)

	_, _, err = parseTransition("fade:0")
	assert.Error(t, err)
}

func TestParseBackground(t *testing.T) {
	opts, err := parseBackground("", "#fff", "", 0)
	require.NoError(t, err)
	assert.Nil(t, opts)

	opts, err = parseBackground("solid_color", "#0000ff", "", 0)
	require.NoError(t, err)
	assert.Equal(t, background.SolidColor, opts.Mode)
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, opts.Color)

	_, err = parseBackground("image", "", "", 0)
	assert.Error(t, err)
	_, err = parseBackground("confetti", "", "", 0)
	assert.Error(t, err)
}

func TestTextStyleFromConfig(t *testing.T) {
	c := config.Default().Text
	c.FontSize = 32
	c.Color = "#ff0000"
	c.Background = "#00000080"

	style, err := textStyle(c)
	require.NoError(t, err)
	assert.Equal(t, 32.0, style.FontSize)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, style.Color)
	assert.Equal(t, color.NRGBA{A: 128}, style.Background)

	c.StrokeColor = "nope"
	_, err = textStyle(c)
	assert.Error(t, err)
}
