package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/keagan/vortex/internal/audio"
	"github.com/keagan/vortex/pkg/util"
)

var mixFlags struct {
	tracks   []string
	duration string
	pan      []float64
	fadeIn   int64
	fadeOut  int64
	effects  []string
}

var mixCmd = &cobra.Command{
	Use:   "mix [output.wav]",
	Short: "Mix audio tracks into one 16-bit PCM WAV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(mixFlags.tracks) == 0 {
			return errors.New("at least one --track is required")
		}
		return withApp(cmd.Context(), func(a *app) error {
			return runMix(cmd.Context(), a, args[0])
		})
	},
}

func init() {
	f := mixCmd.Flags()
	f.StringArrayVarP(&mixFlags.tracks, "track", "t", nil, "track as path[@startMs][:volume], repeatable")
	f.StringVarP(&mixFlags.duration, "duration", "d", "", "mix length, e.g. 30 or 00:01:30 (default: end of the last track)")
	f.Float64SliceVar(&mixFlags.pan, "pan", nil, "pan per track in order, -1 left to 1 right")
	f.Int64Var(&mixFlags.fadeIn, "fade-in", 0, "fade-in ms applied to every track")
	f.Int64Var(&mixFlags.fadeOut, "fade-out", 0, "fade-out ms applied to every track")
	f.StringArrayVarP(&mixFlags.effects, "effect", "e", nil, "effect as kind[:amount] applied to every track in order, repeatable")
	f.BoolVarP(&quiet, "quiet", "q", false, "no progress bar")
}

func runMix(ctx context.Context, a *app, output string) error {
	m := a.mixer()

	chain := make([]audio.TrackEffect, 0, len(mixFlags.effects))
	for _, v := range mixFlags.effects {
		e, err := audio.ParseTrackEffect(v)
		if err != nil {
			return err
		}
		chain = append(chain, e)
	}

	var end int64
	for i, v := range mixFlags.tracks {
		spec, err := parseTrack(v)
		if err != nil {
			return err
		}
		if err := requireFile(spec.Path); err != nil {
			return err
		}
		t := m.AddTrack(spec.Path, spec.Start.Milliseconds())
		m.SetVolume(t.ID, spec.Volume)
		m.SetFadeIn(t.ID, mixFlags.fadeIn)
		m.SetFadeOut(t.ID, mixFlags.fadeOut)
		if i < len(mixFlags.pan) {
			m.SetPan(t.ID, mixFlags.pan[i])
		}
		for _, e := range chain {
			m.AddEffect(t.ID, e)
		}

		d, err := a.exec.Duration(ctx, spec.Path)
		if err != nil {
			return err
		}
		end = max(end, spec.Start.Milliseconds()+d.Milliseconds())
	}

	durationMs := end
	if mixFlags.duration != "" {
		d, err := util.ParseTimestamp(mixFlags.duration)
		if err != nil {
			return err
		}
		durationMs = d.Milliseconds()
	}
	if durationMs <= 0 {
		return fmt.Errorf("mix duration must be positive")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stream := m.Start(ctx, output, durationMs)
	var bar interface{ Set(int) error }
	if !quiet {
		pb := newBar("Mixing")
		defer fmt.Fprintln(os.Stderr)
		bar = pb
	}
	last, _ := stream.Drain(context.Background(), func(e audio.Event) {
		if bar != nil {
			bar.Set(e.Percent)
		}
	})

	switch last.Status {
	case audio.StatusCompleted:
		cliLog.Info().
			Str("output", last.OutputPath).
			Int("tracks", len(m.Tracks())).
			Int64("duration_ms", durationMs).
			Msg("mix complete")
		return nil
	case audio.StatusCancelled:
		os.Remove(output)
		return errors.New("mix cancelled")
	default:
		return fmt.Errorf("mix failed: %w", last.Err)
	}
}
