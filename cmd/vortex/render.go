package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/keagan/vortex/internal/editor"
	"github.com/keagan/vortex/internal/pipeline"
)

var renderFlags struct {
	clips      []string
	tracks     []string
	filters    []string
	transition string
	text       string
	bitrate    int
	width      int
	height     int
	fps        float64
}

var renderCmd = &cobra.Command{
	Use:   "render [output]",
	Short: "Render a timeline of clips and soundtracks",
	Long: "Places each --clip on the main video track, back to back unless a start is given, " +
		"joins them with an optional transition and mixes every --track into the soundtrack.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(renderFlags.clips) == 0 {
			return errors.New("at least one --clip is required")
		}
		return withApp(cmd.Context(), func(a *app) error {
			return runRender(cmd.Context(), a, args)
		})
	},
}

func init() {
	f := renderCmd.Flags()
	f.StringArrayVarP(&renderFlags.clips, "clip", "c", nil, "video clip as path[@startMs][:volume], repeatable")
	f.StringArrayVarP(&renderFlags.tracks, "track", "t", nil, "soundtrack as path[@startMs][:volume], repeatable")
	f.StringArrayVarP(&renderFlags.filters, "filter", "f", nil, "filter for every clip as kind[:intensity]")
	f.StringVar(&renderFlags.transition, "transition", "", "transition between clips as kind[:ms]")
	f.StringVar(&renderFlags.text, "text", "", "title shown over the first seconds")
	f.IntVar(&renderFlags.bitrate, "bitrate", 0, "video bitrate in bits/s (default from resolution)")
	f.IntVar(&renderFlags.width, "width", 0, "output width (default project width)")
	f.IntVar(&renderFlags.height, "height", 0, "output height (default project height)")
	f.Float64Var(&renderFlags.fps, "fps", 0, "output frame rate (default project fps)")
	f.BoolVarP(&quiet, "quiet", "q", false, "no progress bar")
}

func runRender(ctx context.Context, a *app, args []string) error {
	output := ""
	if len(args) == 1 {
		output = args[0]
	} else {
		var err error
		if output, err = a.defaultOutput(); err != nil {
			return err
		}
	}

	arena, err := a.arena()
	if err != nil {
		return err
	}
	defer arena.Close()

	ctrl, err := editor.NewController(a.logger, arena)
	if err != nil {
		return err
	}
	defer ctrl.Release()

	if err := buildTimeline(ctx, ctrl); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	final := runWithBar("Rendering", func(onState func(pipeline.State)) pipeline.State {
		var last pipeline.State = pipeline.Cancelled{}
		ctrl.Export(ctx, output, renderFlags.width, renderFlags.height, renderFlags.fps, renderFlags.bitrate, func(s pipeline.State) {
			last = s
			if onState != nil {
				onState(s)
			}
		})
		return last
	})
	return reportExport(final)
}

// buildTimeline applies the render flags to ctrl.
func buildTimeline(ctx context.Context, ctrl *editor.Controller) error {
	filters, err := parseFilters(renderFlags.filters)
	if err != nil {
		return err
	}
	kind, length, err := parseTransition(renderFlags.transition)
	if err != nil {
		return err
	}

	var ids []int
	for _, v := range renderFlags.clips {
		spec, err := parseTrack(v)
		if err != nil {
			return err
		}
		if err := requireFile(spec.Path); err != nil {
			return err
		}
		start := ctrl.Duration()
		if spec.HasStart {
			start = spec.Start
		}
		clip, err := ctrl.AddClip(ctx, spec.Path, 0, start)
		if err != nil {
			return err
		}
		if err := ctrl.SetClipVolume(clip.ID, spec.Volume); err != nil {
			return err
		}
		for _, f := range filters {
			if _, err := ctrl.AddFilter(clip.ID, string(f.Kind), f.Intensity); err != nil {
				return err
			}
		}
		ids = append(ids, clip.ID)
	}
	if kind != "" {
		for _, id := range ids[:len(ids)-1] {
			if err := ctrl.SetTransition(id, kind, length); err != nil {
				return err
			}
		}
	}

	for _, v := range renderFlags.tracks {
		spec, err := parseTrack(v)
		if err != nil {
			return err
		}
		if err := requireFile(spec.Path); err != nil {
			return err
		}
		t, err := ctrl.AddAudioTrack(spec.Path, spec.Start)
		if err != nil {
			return err
		}
		if err := ctrl.SetTrackVolume(t.ID, spec.Volume); err != nil {
			return err
		}
	}

	if renderFlags.text != "" {
		t, err := ctrl.AddText(renderFlags.text, 0.5, 0.5, 0, 3*time.Second)
		if err != nil {
			return err
		}
		if err := ctrl.SetOverlayAnimation(t.ID, "fade_in_out", 500*time.Millisecond); err != nil {
			return err
		}
	}

	s := ctrl.State()
	cliLog.Info().
		Int("clips", len(s.Clips)).
		Int("tracks", s.AudioTracks).
		Dur("duration", s.Duration).
		Msg("timeline ready")
	return nil
}

// parseTransition reads kind[:ms]; the length defaults to one second.
func parseTransition(s string) (string, time.Duration, error) {
	if s == "" {
		return "", 0, nil
	}
	kind, ms, ok := strings.Cut(s, ":")
	if !ok {
		return kind, time.Second, nil
	}
	n, err := strconv.Atoi(ms)
	if err != nil || n <= 0 {
		return "", 0, fmt.Errorf("invalid transition length in %q", s)
	}
	return kind, time.Duration(n) * time.Millisecond, nil
}
