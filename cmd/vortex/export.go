package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/keagan/vortex/internal/background"
	"github.com/keagan/vortex/internal/compositor"
	"github.com/keagan/vortex/internal/overlays"
	"github.com/keagan/vortex/internal/pipeline"
	"github.com/keagan/vortex/internal/timeline"
)

var exportFlags struct {
	resolution    string
	filters       []string
	text          string
	textAnimation string
	sticker       string
	background    string
	bgColor       string
	bgImage       string
	bgBlur        int
}

// quiet turns off progress bars.
var quiet bool

var exportCmd = &cobra.Command{
	Use:   "export [input] [output]",
	Short: "Transcode one video through filters, background and overlays",
	Long: "Decodes the input, composes every frame (filters, background replacement, " +
		"text and sticker overlays), re-encodes it to H.264 and copies the audio track. " +
		"Ctrl-C cancels and removes the partial output.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			return runExport(cmd.Context(), a, args)
		})
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportFlags.resolution, "resolution", "r", "", "720p, 1080p or 4k (default from config)")
	f.StringArrayVarP(&exportFlags.filters, "filter", "f", nil, "filter as kind[:intensity], repeatable")
	f.StringVar(&exportFlags.text, "text", "", "caption shown for the whole video")
	f.StringVar(&exportFlags.textAnimation, "text-animation", "fade_in", "caption animation")
	f.StringVar(&exportFlags.sticker, "sticker", "", "sticker name or image path shown top right")
	f.StringVar(&exportFlags.background, "background", "", "background mode: transparent, solid_color, blur or image")
	f.StringVar(&exportFlags.bgColor, "background-color", "#00FF00", "solid_color background")
	f.StringVar(&exportFlags.bgImage, "background-image", "", "image background")
	f.IntVar(&exportFlags.bgBlur, "background-blur", background.DefaultBlurRadius, "blur background radius")
	f.BoolVarP(&quiet, "quiet", "q", false, "no progress bar")
}

func runExport(ctx context.Context, a *app, args []string) error {
	input := args[0]
	if err := requireFile(input); err != nil {
		return err
	}
	output := ""
	if len(args) == 2 {
		output = args[1]
	} else {
		var err error
		if output, err = a.defaultOutput(); err != nil {
			return err
		}
	}

	cfg, err := a.exportConfig(exportFlags.resolution)
	if err != nil {
		return err
	}
	hook, err := exportHook(ctx, a, input, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	final := runWithBar("Exporting", func(onState func(pipeline.State)) pipeline.State {
		return a.exporter().Run(ctx, pipeline.Request{
			Input:  input,
			Output: output,
			Config: cfg,
			Hook:   hook,
		}, onState)
	})
	return reportExport(final)
}

// exportHook composes decoded frames as a one-clip timeline. It returns nil
// when no per-frame work was asked for.
func exportHook(ctx context.Context, a *app, input string, cfg pipeline.ExportConfig) (pipeline.FrameHook, error) {
	filters, err := parseFilters(exportFlags.filters)
	if err != nil {
		return nil, err
	}
	bg, err := parseBackground(exportFlags.background, exportFlags.bgColor, exportFlags.bgImage, exportFlags.bgBlur)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 && bg == nil && exportFlags.text == "" && exportFlags.sticker == "" {
		return nil, nil
	}

	duration, err := a.exec.Duration(ctx, input)
	if err != nil {
		return nil, err
	}
	w, h := cfg.Size()
	project := timeline.NewProject(w, h, cfg.FPS)
	clip, err := project.AddClip(input, duration, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, f := range filters {
		if _, err := project.AddFilter(clip.ID, f.Kind, f.Intensity); err != nil {
			return nil, err
		}
	}
	if err := project.SetBackground(clip.ID, bg); err != nil {
		return nil, err
	}
	clip, _ = project.Clip(clip.ID)

	opts, err := a.engineOptions()
	if err != nil {
		return nil, err
	}
	mgr := overlays.NewManager(opts.Stickers, opts.TextStyle)
	if exportFlags.text != "" {
		anim, err := overlays.ParseAnimation(exportFlags.textAnimation)
		if err != nil {
			return nil, err
		}
		t := mgr.AddText(exportFlags.text, 0.5, 0.85, 0, duration)
		if err := mgr.SetAnimation(t.ID, anim, overlays.DefaultAnimDuration); err != nil {
			return nil, err
		}
	}
	if exportFlags.sticker != "" {
		if _, ok := opts.Stickers.Get(exportFlags.sticker); ok {
			_, err = mgr.AddNamedSticker(exportFlags.sticker, 0.85, 0.15, 0, duration)
		} else {
			_, err = mgr.AddStickerFile(exportFlags.sticker, 0.85, 0.15, 0, duration)
		}
		if err != nil {
			return nil, err
		}
	}

	comp := compositor.New(a.logger, a.exec, a.deps().Segmenter, compositor.Options{Concurrency: a.cfg.Concurrency})
	scene := compositor.Scene{Project: project, Overlays: mgr}
	cliLog.Debug().Int("filters", len(filters)).Bool("background", bg != nil).Int("overlays", mgr.Len()).Msg("frame hook ready")

	return func(ctx context.Context, frame *image.NRGBA, pts time.Duration) (*image.NRGBA, error) {
		return comp.ComposeDecoded(ctx, scene, clip, frame, pts)
	}, nil
}

// runWithBar drives a progress bar from export states unless --quiet.
func runWithBar(description string, run func(onState func(pipeline.State)) pipeline.State) pipeline.State {
	if quiet {
		return run(nil)
	}
	bar := newBar(description)
	final := run(func(s pipeline.State) {
		bar.Set(int(pipeline.Percent(s)))
	})
	if _, ok := final.(pipeline.Completed); ok {
		bar.Finish()
	}
	fmt.Fprintln(os.Stderr)
	return final
}

func reportExport(final pipeline.State) error {
	switch s := final.(type) {
	case pipeline.Completed:
		cliLog.Info().Str("output", s.OutputPath).Int64("bytes", s.FileSize).Msg("export complete")
		return nil
	case pipeline.Failed:
		return fmt.Errorf("export failed (%s): %s", s.Kind, s.Message)
	case pipeline.Cancelled:
		return errors.New("export cancelled")
	}
	return fmt.Errorf("export ended in state %v", final)
}
