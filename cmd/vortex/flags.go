package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/keagan/vortex/internal/background"
	"github.com/keagan/vortex/internal/config"
	"github.com/keagan/vortex/internal/effects"
)

// filterSpec is a --filter value: kind[:intensity].
type filterSpec struct {
	Kind      effects.Kind
	Intensity float64
}

func parseFilter(s string) (filterSpec, error) {
	name, value, hasValue := strings.Cut(s, ":")
	kind, err := effects.ParseKind(name)
	if err != nil {
		return filterSpec{}, err
	}
	f := filterSpec{Kind: kind, Intensity: effects.DefaultIntensity(kind)}
	if hasValue {
		if f.Intensity, err = strconv.ParseFloat(value, 64); err != nil {
			return filterSpec{}, fmt.Errorf("invalid intensity in %q", s)
		}
	}
	return f, nil
}

func parseFilters(values []string) ([]filterSpec, error) {
	out := make([]filterSpec, 0, len(values))
	for _, v := range values {
		f, err := parseFilter(v)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// trackSpec is a --track or --clip value: path[@startMs][:volume].
type trackSpec struct {
	Path     string
	Start    time.Duration
	HasStart bool
	Volume   float64
}

func parseTrack(s string) (trackSpec, error) {
	t := trackSpec{Path: s, Volume: 1}

	if i := strings.LastIndex(t.Path, ":"); i >= 0 && i > strings.LastIndex(t.Path, "@") {
		if v, err := strconv.ParseFloat(t.Path[i+1:], 64); err == nil {
			t.Volume = v
			t.Path = t.Path[:i]
		}
	}
	if i := strings.LastIndex(t.Path, "@"); i >= 0 {
		ms, err := strconv.ParseInt(t.Path[i+1:], 10, 64)
		if err != nil || ms < 0 {
			return trackSpec{}, fmt.Errorf("invalid start in %q", s)
		}
		t.Path = t.Path[:i]
		t.Start, t.HasStart = time.Duration(ms)*time.Millisecond, true
	}

	if t.Path == "" {
		return trackSpec{}, fmt.Errorf("missing path in %q", s)
	}
	return t, nil
}

// parseBackground reads a --background mode with its --background-* values.
func parseBackground(mode, colorHex, image string, blur int) (*background.Options, error) {
	if mode == "" {
		return nil, nil
	}
	m, err := background.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	c, err := config.ParseColor(colorHex)
	if err != nil {
		return nil, err
	}
	if m == background.Image && image == "" {
		return nil, fmt.Errorf("background mode %s needs --background-image", m)
	}
	return &background.Options{Mode: m, Color: c, BlurRadius: blur, ImagePath: image}, nil
}

// newBar draws a 0..100 progress bar on stderr.
func newBar(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
