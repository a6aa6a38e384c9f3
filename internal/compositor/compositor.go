// Package compositor renders the timeline into finished frames. For one
// presentation time it runs, in this order: source fetch, the clip's filter
// chain, the outgoing transition, background replacement and overlays.
package compositor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/keagan/vortex/internal/background"
	"github.com/keagan/vortex/internal/effects"
	"github.com/keagan/vortex/internal/imaging"
	"github.com/keagan/vortex/internal/overlays"
	"github.com/keagan/vortex/internal/timeline"
	"github.com/keagan/vortex/internal/transitions"
)

// FrameSource decodes one frame of a media file at a source position,
// scaled to width x height.
type FrameSource interface {
	Frame(ctx context.Context, source string, at time.Duration, width, height int) (*image.NRGBA, error)
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func(ctx context.Context, source string, at time.Duration, width, height int) (*image.NRGBA, error)

// Frame implements FrameSource.
func (f FrameSourceFunc) Frame(ctx context.Context, source string, at time.Duration, width, height int) (*image.NRGBA, error) {
	return f(ctx, source, at, width, height)
}

// Scene is what gets rendered: a project and its overlays. Export renders a
// snapshot of both.
type Scene struct {
	Project  *timeline.Project
	Overlays *overlays.Manager
}

// Snapshot deep-copies the scene.
func (s Scene) Snapshot() Scene {
	out := Scene{Project: s.Project.Snapshot()}
	if s.Overlays != nil {
		out.Overlays = s.Overlays.Snapshot()
	}
	return out
}

// Options configures a Compositor.
type Options struct {
	// Concurrency bounds RenderBatch workers; zero means one per CPU.
	Concurrency int
}

// Compositor renders frames. It holds no per-frame state and is safe for
// concurrent use.
type Compositor struct {
	logger    zerolog.Logger
	source    FrameSource
	segmenter background.Segmenter
	opts      Options
}

// New creates a compositor. segmenter may be nil, in which case clips with
// background replacement render without it.
func New(logger zerolog.Logger, source FrameSource, segmenter background.Segmenter, opts Options) *Compositor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	return &Compositor{
		logger:    logger.With().Str("component", "compositor").Logger(),
		source:    source,
		segmenter: segmenter,
		opts:      opts,
	}
}

// RenderAt renders the project at t from the top-most video clip, or a
// black frame when no clip covers t.
func (c *Compositor) RenderAt(ctx context.Context, scene Scene, t time.Duration) (*image.NRGBA, error) {
	clip, ok := TopVideoClip(scene.Project, t)
	if !ok {
		p := scene.Project
		frame := imaging.Solid(p.Width, p.Height, color.NRGBA{A: 255})
		return c.overlay(scene, frame, t), nil
	}
	return c.Compose(ctx, scene, clip, t)
}

// RenderBatch renders many timestamps concurrently. Results follow the
// order of times.
func (c *Compositor) RenderBatch(ctx context.Context, scene Scene, times []time.Duration) ([]*image.NRGBA, error) {
	out := make([]*image.NRGBA, len(times))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	for i, t := range times {
		g.Go(func() error {
			frame, err := c.RenderAt(ctx, scene, t)
			if err != nil {
				return fmt.Errorf("render %s: %w", t, err)
			}
			out[i] = frame
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Compose renders clip at timeline time t.
func (c *Compositor) Compose(ctx context.Context, scene Scene, clip timeline.Clip, t time.Duration) (*image.NRGBA, error) {
	frame, err := c.clipFrame(ctx, scene.Project, clip, clip.SourceTime(t))
	if err != nil {
		return nil, err
	}

	frame, err = c.transition(ctx, scene.Project, clip, frame, t)
	if err != nil {
		return nil, err
	}

	frame, err = c.background(ctx, clip, frame)
	if err != nil {
		return nil, err
	}
	return c.overlay(scene, frame, t), nil
}

// ComposeDecoded finishes a frame that was already decoded for clip: filters,
// background and overlays. Transitions need a second source and are skipped.
func (c *Compositor) ComposeDecoded(ctx context.Context, scene Scene, clip timeline.Clip, frame *image.NRGBA, t time.Duration) (*image.NRGBA, error) {
	out, err := effects.ApplyChain(frame, clip.Filters)
	if err != nil {
		return nil, err
	}
	out, err = c.background(ctx, clip, out)
	if err != nil {
		return nil, err
	}
	return c.overlay(scene, out, t), nil
}

// clipFrame fetches the source frame at sourceAt and runs the filter chain.
func (c *Compositor) clipFrame(ctx context.Context, p *timeline.Project, clip timeline.Clip, sourceAt time.Duration) (*image.NRGBA, error) {
	frame, err := c.source.Frame(ctx, clip.Source, sourceAt, p.Width, p.Height)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch frame of clip %d at %s: %w", clip.ID, sourceAt, err)
	}
	b := frame.Bounds()
	if b.Dx() != p.Width || b.Dy() != p.Height {
		frame = imaging.Resize(frame, p.Width, p.Height)
	}
	return effects.ApplyChain(frame, clip.Filters)
}

// TransitionWindow returns where the clip's outgoing transition starts and
// how long it lasts. ok is false when the clip has none.
func TransitionWindow(clip timeline.Clip) (start, length time.Duration, ok bool) {
	if clip.Transition == nil || clip.Transition.Duration <= 0 {
		return 0, 0, false
	}
	length = min(clip.Transition.Duration, clip.EffectiveDuration())
	return clip.End() - length, length, true
}

func (c *Compositor) transition(ctx context.Context, p *timeline.Project, clip timeline.Clip, frame *image.NRGBA, t time.Duration) (*image.NRGBA, error) {
	start, length, ok := TransitionWindow(clip)
	if !ok || t < start {
		return frame, nil
	}
	next, ok := p.NextClip(clip.ID)
	if !ok {
		return frame, nil
	}

	to, err := c.clipFrame(ctx, p, next, next.TrimIn)
	if err != nil {
		return nil, err
	}
	progress := float64(t-start) / float64(length)
	out, err := transitions.Apply(frame, to, progress, clip.Transition.Kind)
	if err != nil {
		return nil, fmt.Errorf("transition of clip %d: %w", clip.ID, err)
	}
	return out, nil
}

func (c *Compositor) background(ctx context.Context, clip timeline.Clip, frame *image.NRGBA) (*image.NRGBA, error) {
	if clip.Background == nil {
		return frame, nil
	}
	if c.segmenter == nil {
		c.logger.Warn().Int("clip", clip.ID).Msg("background replacement requested but no segmenter is configured")
		return frame, nil
	}
	out, err := background.Process(ctx, c.segmenter, frame, *clip.Background)
	if err != nil {
		return nil, fmt.Errorf("background of clip %d: %w", clip.ID, err)
	}
	return out, nil
}

func (c *Compositor) overlay(scene Scene, frame *image.NRGBA, t time.Duration) *image.NRGBA {
	if scene.Overlays == nil {
		return frame
	}
	return scene.Overlays.Render(frame, t)
}

// TopVideoClip returns the clip on the highest-index video track at t.
func TopVideoClip(p *timeline.Project, t time.Duration) (timeline.Clip, bool) {
	clips := p.ClipsAt(t)
	for i := len(clips) - 1; i >= 0; i-- {
		if kind, ok := p.TrackKind(clips[i].TrackIndex); ok && kind == timeline.VideoTrack {
			return clips[i], true
		}
	}
	return timeline.Clip{}, false
}
