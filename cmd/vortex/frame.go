package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/keagan/vortex/internal/editor"
	"github.com/keagan/vortex/internal/gui"
	"github.com/keagan/vortex/internal/imaging"
	"github.com/keagan/vortex/pkg/util"
)

var frameFlags struct {
	at      string
	out     string
	filters []string
	text    string
}

var frameCmd = &cobra.Command{
	Use:   "frame [input]",
	Short: "Compose one frame of a video to PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd.Context(), args[0], func(ctrl *editor.Controller, at time.Duration) error {
			img, err := ctrl.RenderFrame(cmd.Context(), at)
			if err != nil {
				return err
			}
			if err := imaging.SavePNG(frameFlags.out, img); err != nil {
				return err
			}
			cliLog.Info().Str("output", frameFlags.out).Str("at", util.FormatDuration(at)).Msg("frame written")
			return nil
		})
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview [input]",
	Short: "Show composed frames of a video in a window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd.Context(), args[0], func(ctrl *editor.Controller, at time.Duration) error {
			gui.Run(log.Logger, ctrl, at)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{frameCmd, previewCmd} {
		f := c.Flags()
		f.StringVar(&frameFlags.at, "at", "0", "position, e.g. 1.5 or 00:00:01.500")
		f.StringArrayVarP(&frameFlags.filters, "filter", "f", nil, "filter as kind[:intensity], repeatable")
		f.StringVar(&frameFlags.text, "text", "", "caption")
	}
	frameCmd.Flags().StringVarP(&frameFlags.out, "out", "o", "frame.png", "output PNG")
}

// withController opens a one-clip session on input.
func withController(ctx context.Context, input string, fn func(ctrl *editor.Controller, at time.Duration) error) error {
	if err := requireFile(input); err != nil {
		return err
	}
	at, err := util.ParseTimestamp(frameFlags.at)
	if err != nil {
		return err
	}
	filters, err := parseFilters(frameFlags.filters)
	if err != nil {
		return err
	}

	return withApp(ctx, func(a *app) error {
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

		clip, err := ctrl.AddClip(ctx, input, 0, 0)
		if err != nil {
			return err
		}
		for _, f := range filters {
			if _, err := ctrl.AddFilter(clip.ID, string(f.Kind), f.Intensity); err != nil {
				return err
			}
		}
		if frameFlags.text != "" {
			if _, err := ctrl.AddText(frameFlags.text, 0.5, 0.85, 0, clip.EffectiveDuration()); err != nil {
				return err
			}
		}
		return fn(ctrl, at)
	})
}
