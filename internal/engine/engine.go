// Package engine is the handle-based editing engine behind the editor UI:
// it owns a project, its overlays and audio tracks, a playback transport and
// the export of the whole timeline.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/vortex/internal/audio"
	"github.com/keagan/vortex/internal/background"
	"github.com/keagan/vortex/internal/compositor"
	"github.com/keagan/vortex/internal/effects"
	"github.com/keagan/vortex/internal/overlays"
	"github.com/keagan/vortex/internal/pipeline"
	"github.com/keagan/vortex/internal/timeline"
)

var (
	ErrNotInitialized  = errors.New("engine not initialized")
	ErrExportRunning   = errors.New("an export is already running")
	ErrUnknownDuration = errors.New("source duration unknown")
)

// Prober reports the duration of a media file.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, path string) (time.Duration, error)

// Duration implements Prober.
func (f ProberFunc) Duration(ctx context.Context, path string) (time.Duration, error) {
	return f(ctx, path)
}

// Deps are the collaborators an Engine drives.
type Deps struct {
	Frames    compositor.FrameSource
	Segmenter background.Segmenter // optional
	Backend   pipeline.Backend
	Decoder   audio.Decoder
	Prober    Prober
	Store     pipeline.MediaStore // optional
}

// Options configures an Engine.
type Options struct {
	Width  int
	Height int
	FPS    float64

	// WorkDir holds the mixed soundtrack during export; empty means the
	// system temp dir.
	WorkDir           string
	Concurrency       int
	SampleRate        int
	Channels          int
	KeepPartialOutput bool
	// Quality scales export bitrates; zero means pipeline.QualityMedium.
	Quality           float64
	TextStyle         overlays.TextStyle
	Stickers          *overlays.Registry

	// Now is the transport clock; nil means time.Now.
	Now func() time.Time
}

func (o *Options) defaults() {
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = 1920, 1080
	}
	if o.FPS <= 0 {
		o.FPS = 30
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Quality <= 0 {
		o.Quality = pipeline.QualityMedium
	}
	if o.TextStyle == (overlays.TextStyle{}) {
		o.TextStyle = overlays.DefaultTextStyle()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Engine is one editing session.
type Engine struct {
	logger zerolog.Logger
	deps   Deps
	opts   Options

	mu          sync.Mutex
	initialized bool
	project     *timeline.Project
	overlays    *overlays.Manager
	mixer       *audio.Mixer
	compositor  *compositor.Compositor
	exporter    *pipeline.Exporter
	transport   transport
	export      *pipeline.Export
}

// New creates an engine. It must be initialized before use.
func New(logger zerolog.Logger, deps Deps, opts Options) *Engine {
	opts.defaults()
	return &Engine{
		logger: logger.With().Str("component", "engine").Logger(),
		deps:   deps,
		opts:   opts,
	}
}

// Initialize prepares the engine with an empty default project. Calling it
// again is a no-op.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}
	if e.deps.Frames == nil || e.deps.Backend == nil {
		return fmt.Errorf("engine needs a frame source and a codec backend")
	}

	e.compositor = compositor.New(e.logger, e.deps.Frames, e.deps.Segmenter, compositor.Options{Concurrency: e.opts.Concurrency})
	e.exporter = pipeline.NewExporter(e.logger, e.deps.Backend, pipeline.Options{
		Store:             e.deps.Store,
		KeepPartialOutput: e.opts.KeepPartialOutput,
	})
	e.reset(e.opts.Width, e.opts.Height, e.opts.FPS)
	e.initialized = true

	e.logger.Info().Int("width", e.opts.Width).Int("height", e.opts.Height).Float64("fps", e.opts.FPS).Msg("engine initialized")
	return nil
}

func (e *Engine) reset(width, height int, fps float64) {
	e.project = timeline.NewProject(width, height, fps)
	e.overlays = overlays.NewManager(e.opts.Stickers, e.opts.TextStyle)
	e.mixer = audio.NewMixer(e.logger, e.deps.Decoder, audio.Options{
		SampleRate:  e.opts.SampleRate,
		Channels:    e.opts.Channels,
		Concurrency: e.opts.Concurrency,
	})
	e.transport = transport{}
}

// Release cancels any running export, waits for it and drops the session.
func (e *Engine) Release() {
	e.mu.Lock()
	job := e.export
	e.mu.Unlock()

	if job != nil {
		job.Cancel()
		job.Wait()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return
	}
	e.project, e.overlays, e.mixer = nil, nil, nil
	e.transport = transport{}
	e.initialized = false
	e.logger.Info().Msg("engine released")
}

// Initialized reports whether the engine is ready.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// CreateProject replaces the session with an empty project.
func (e *Engine) CreateProject(width, height int, fps float64) error {
	if width <= 0 || height <= 0 || fps <= 0 {
		return fmt.Errorf("invalid project format %dx%d@%g", width, height, fps)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return ErrNotInitialized
	}
	e.reset(width, height, fps)
	e.logger.Info().Int("width", width).Int("height", height).Float64("fps", fps).Msg("project created")
	return nil
}

// session returns the live model under the engine lock.
func (e *Engine) session() (*timeline.Project, *overlays.Manager, *audio.Mixer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil, nil, nil, ErrNotInitialized
	}
	return e.project, e.overlays, e.mixer, nil
}

// Project returns the live project.
func (e *Engine) Project() (*timeline.Project, error) {
	p, _, _, err := e.session()
	return p, err
}

// Overlays returns the live overlay manager.
func (e *Engine) Overlays() (*overlays.Manager, error) {
	_, o, _, err := e.session()
	return o, err
}

// Mixer returns the live audio mixer.
func (e *Engine) Mixer() (*audio.Mixer, error) {
	_, _, m, err := e.session()
	return m, err
}

// AddClip probes path and places it on track at position.
func (e *Engine) AddClip(ctx context.Context, path string, track int, position time.Duration) (timeline.Clip, error) {
	p, err := e.Project()
	if err != nil {
		return timeline.Clip{}, err
	}
	if e.deps.Prober == nil {
		return timeline.Clip{}, ErrUnknownDuration
	}
	d, err := e.deps.Prober.Duration(ctx, path)
	if err != nil {
		return timeline.Clip{}, fmt.Errorf("failed to probe %s: %w", path, err)
	}
	if d <= 0 {
		return timeline.Clip{}, fmt.Errorf("%w: %s", ErrUnknownDuration, path)
	}

	clip, err := p.AddClip(path, d, track, position)
	if err != nil {
		return timeline.Clip{}, err
	}
	e.logger.Debug().Int("clip", clip.ID).Str("path", path).Int("track", track).Dur("start", clip.Start).Msg("clip added")
	return clip, nil
}

// RemoveClip deletes a clip.
func (e *Engine) RemoveClip(id int) error {
	return e.edit(func(p *timeline.Project) error { return p.RemoveClip(id) })
}

// MoveClip moves a clip to track at position.
func (e *Engine) MoveClip(id, track int, position time.Duration) error {
	return e.edit(func(p *timeline.Project) error { return p.MoveClip(id, track, position) })
}

// TrimClip sets the source range of a clip.
func (e *Engine) TrimClip(id int, trimIn, trimOut time.Duration) error {
	return e.edit(func(p *timeline.Project) error { return p.TrimClip(id, trimIn, trimOut) })
}

// SplitClip cuts a clip at timeline position and returns the second half.
func (e *Engine) SplitClip(id int, position time.Duration) (timeline.Clip, error) {
	var second timeline.Clip
	err := e.edit(func(p *timeline.Project) (err error) {
		second, err = p.SplitClip(id, position)
		return err
	})
	return second, err
}

// SetClipSpeed sets playback speed.
func (e *Engine) SetClipSpeed(id int, speed float64) error {
	return e.edit(func(p *timeline.Project) error { return p.SetClipSpeed(id, speed) })
}

// SetClipVolume sets the clip's volume multiplier.
func (e *Engine) SetClipVolume(id int, volume float64) error {
	return e.edit(func(p *timeline.Project) error { return p.SetClipVolume(id, volume) })
}

// AddFilter appends a named filter to a clip.
func (e *Engine) AddFilter(id int, kind string, intensity float64) (effects.Filter, error) {
	k, err := effects.ParseKind(kind)
	if err != nil {
		return effects.Filter{}, err
	}
	var f effects.Filter
	err = e.edit(func(p *timeline.Project) (err error) {
		f, err = p.AddFilter(id, k, intensity)
		return err
	})
	return f, err
}

// RemoveFilter drops a filter from a clip.
func (e *Engine) RemoveFilter(id, filterID int) error {
	return e.edit(func(p *timeline.Project) error { return p.RemoveFilter(id, filterID) })
}

// SetTransition sets or clears the transition out of a clip.
func (e *Engine) SetTransition(id int, spec *timeline.TransitionSpec) error {
	return e.edit(func(p *timeline.Project) error { return p.SetTransition(id, spec) })
}

// SetBackground sets or clears background replacement on a clip.
func (e *Engine) SetBackground(id int, opts *background.Options) error {
	return e.edit(func(p *timeline.Project) error { return p.SetBackground(id, opts) })
}

func (e *Engine) edit(fn func(*timeline.Project) error) error {
	p, err := e.Project()
	if err != nil {
		return err
	}
	return fn(p)
}

// AddAudioTrack adds a soundtrack starting at position.
func (e *Engine) AddAudioTrack(path string, position time.Duration) (audio.Track, error) {
	m, err := e.Mixer()
	if err != nil {
		return audio.Track{}, err
	}
	return m.AddTrack(path, position.Milliseconds()), nil
}

// Duration is the length of the timeline, audio tracks excluded.
func (e *Engine) Duration() time.Duration {
	p, err := e.Project()
	if err != nil {
		return 0
	}
	return p.Duration()
}

// RenderFrame composes the timeline at t at project size.
func (e *Engine) RenderFrame(ctx context.Context, t time.Duration) (*image.NRGBA, error) {
	scene, err := e.scene()
	if err != nil {
		return nil, err
	}
	return e.compositor.RenderAt(ctx, scene, t)
}

func (e *Engine) scene() (compositor.Scene, error) {
	p, o, _, err := e.session()
	if err != nil {
		return compositor.Scene{}, err
	}
	return compositor.Scene{Project: p, Overlays: o}.Snapshot(), nil
}
