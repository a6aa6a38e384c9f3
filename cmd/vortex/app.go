package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/keagan/vortex/internal/ai"
	"github.com/keagan/vortex/internal/audio"
	"github.com/keagan/vortex/internal/config"
	"github.com/keagan/vortex/internal/engine"
	"github.com/keagan/vortex/internal/ffmpeg"
	"github.com/keagan/vortex/internal/mediastore"
	"github.com/keagan/vortex/internal/overlays"
	"github.com/keagan/vortex/internal/pipeline"
	"github.com/keagan/vortex/pkg/util"
)

// app holds the collaborators a command needs, built from config.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	exec      *ffmpeg.Executor
	backend   *ffmpeg.Backend
	segmenter *ai.Segmenter
	store     *mediastore.Store
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, logger: log.Logger}

	for _, dir := range []string{cfg.WorkDir, cfg.TempDir} {
		if err := util.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	exec, err := ffmpeg.New(a.logger, ffmpeg.Options{
		FFmpegPath:  cfg.FFmpeg.BinaryPath,
		FFprobePath: cfg.FFmpeg.ProbePath,
		Threads:     cfg.FFmpeg.Threads,
		Preset:      cfg.FFmpeg.Preset,
	})
	if err != nil {
		return nil, err
	}
	a.exec = exec
	a.backend = ffmpeg.NewBackend(exec, ffmpeg.BackendOptions{
		WorkDir:      cfg.TempDir,
		AudioBitrate: cfg.Export.AudioBitrate,
	})

	if cfg.Segmentation.Enabled {
		segCfg := ai.DefaultSegmenterConfig()
		segCfg.ModelPath = cfg.Segmentation.ModelPath
		segCfg.LibraryPath = cfg.Segmentation.LibraryPath
		if cfg.Segmentation.InputSize > 0 {
			segCfg.InputSize = cfg.Segmentation.InputSize
		}
		if cfg.Segmentation.InputName != "" {
			segCfg.InputName = cfg.Segmentation.InputName
		}
		if cfg.Segmentation.OutputName != "" {
			segCfg.OutputName = cfg.Segmentation.OutputName
		}
		seg, err := ai.NewSegmenter(a.logger, segCfg)
		if err != nil {
			// clips with a background still render, unsegmented
			a.logger.Warn().Err(err).Msg("segmentation disabled")
		} else {
			a.segmenter = seg
		}
	}

	if cfg.MediaStore.Enabled && cfg.MediaStore.Path != "" {
		if err := util.EnsureDir(filepath.Dir(cfg.MediaStore.Path)); err != nil {
			a.Close()
			return nil, err
		}
		store, err := mediastore.Open(cfg.MediaStore.Path, a.logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
	}

	return a, nil
}

func (a *app) Close() {
	if a.segmenter != nil {
		a.segmenter.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// mediaStore avoids handing the pipeline a typed nil.
func (a *app) mediaStore() pipeline.MediaStore {
	if a.store == nil {
		return nil
	}
	return a.store
}

func (a *app) exporter() *pipeline.Exporter {
	return pipeline.NewExporter(a.logger, a.backend, pipeline.Options{
		Store:             a.mediaStore(),
		KeepPartialOutput: !a.cfg.Export.DeletePartialOnFailure,
	})
}

func (a *app) deps() engine.Deps {
	deps := engine.Deps{
		Frames:  a.exec,
		Backend: a.backend,
		Decoder: audio.DecoderFunc(a.exec.DecodePCM),
		Prober:  a.exec,
		Store:   a.mediaStore(),
	}
	if a.segmenter != nil {
		deps.Segmenter = a.segmenter
	}
	return deps
}

func (a *app) engineOptions() (engine.Options, error) {
	style, err := textStyle(a.cfg.Text)
	if err != nil {
		return engine.Options{}, err
	}
	quality, err := pipeline.ParseQuality(a.cfg.Export.Quality)
	if err != nil {
		return engine.Options{}, err
	}
	return engine.Options{
		Width:             a.cfg.Project.Width,
		Height:            a.cfg.Project.Height,
		FPS:               a.cfg.Project.FPS,
		WorkDir:           a.cfg.TempDir,
		Concurrency:       a.cfg.Concurrency,
		SampleRate:        a.cfg.Audio.SampleRate,
		Channels:          a.cfg.Audio.Channels,
		KeepPartialOutput: !a.cfg.Export.DeletePartialOnFailure,
		Quality:           quality,
		TextStyle:         style,
		Stickers:          stickerRegistry(a.cfg),
	}, nil
}

func (a *app) arena() (*engine.Arena, error) {
	opts, err := a.engineOptions()
	if err != nil {
		return nil, err
	}
	return engine.NewArena(a.logger, a.deps(), opts), nil
}

func (a *app) mixer() *audio.Mixer {
	return audio.NewMixer(a.logger, audio.DecoderFunc(a.exec.DecodePCM), audio.Options{
		SampleRate:  a.cfg.Audio.SampleRate,
		Channels:    a.cfg.Audio.Channels,
		Concurrency: a.cfg.Concurrency,
	})
}

// exportConfig builds the export settings from config, overridden by a
// non-empty resolution flag.
func (a *app) exportConfig(resolution string) (pipeline.ExportConfig, error) {
	if resolution == "" {
		resolution = a.cfg.Export.Resolution
	}
	res, err := pipeline.ParseResolution(resolution)
	if err != nil {
		return pipeline.ExportConfig{}, err
	}
	quality, err := pipeline.ParseQuality(a.cfg.Export.Quality)
	if err != nil {
		return pipeline.ExportConfig{}, err
	}
	cfg := pipeline.DefaultExportConfig()
	cfg.Resolution = res
	cfg.Quality = quality
	cfg.FPS = a.cfg.Export.FPS
	cfg.Preset = a.cfg.FFmpeg.Preset
	return cfg, nil
}

// defaultOutput names an export in the configured output dir.
func (a *app) defaultOutput() (string, error) {
	if err := util.EnsureDir(a.cfg.Export.OutputDir); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s.mp4", a.cfg.Export.FilePrefix, time.Now().Format("20060102_150405"))
	return filepath.Join(a.cfg.Export.OutputDir, name), nil
}

func textStyle(c config.TextConfig) (overlays.TextStyle, error) {
	style := overlays.DefaultTextStyle()
	if c.FontSize > 0 {
		style.FontSize = c.FontSize
	}
	style.StrokeWidth = c.StrokeWidth
	style.Shadow = c.Shadow

	var err error
	if c.Color != "" {
		if style.Color, err = config.ParseColor(c.Color); err != nil {
			return style, err
		}
	}
	if c.StrokeColor != "" {
		if style.StrokeColor, err = config.ParseColor(c.StrokeColor); err != nil {
			return style, err
		}
	}
	if style.Background, err = config.ParseColor(c.Background); err != nil {
		return style, err
	}
	return style, nil
}

func stickerRegistry(cfg *config.Config) *overlays.Registry {
	r := overlays.NewRegistry()
	for name, path := range cfg.Stickers {
		if !util.FileExists(path) {
			cliLog.Warn().Str("sticker", name).Str("path", path).Msg("sticker image missing")
		}
		r.Register(name, path)
	}
	return r
}

// withApp loads the app for a command and closes it afterwards.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := newApp(config.FromContext(ctx))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func requireFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("input %s: %w", path, err)
	}
	return nil
}
