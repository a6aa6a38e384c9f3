// Package editor is the single controller a UI drives. It owns one engine
// handle and publishes a view of the session after every change.
package editor

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
	"github.com/keagan/vortex/internal/effects"
	"github.com/keagan/vortex/internal/engine"
	"github.com/keagan/vortex/internal/overlays"
	"github.com/keagan/vortex/internal/pipeline"
	"github.com/keagan/vortex/internal/progress"
	"github.com/keagan/vortex/internal/timeline"
	"github.com/keagan/vortex/internal/transitions"
)

var ErrReleased = errors.New("editor released")

// State is what a UI shows of the session.
type State struct {
	Initialized bool
	Playing     bool
	Position    time.Duration
	Duration    time.Duration
	Clips       []timeline.Clip
	Overlays    int
	AudioTracks int

	ProjectWidth  int
	ProjectHeight int
	ProjectFPS    float64

	Exporting      bool
	ExportProgress float64
}

// Controller wraps one engine of an arena.
type Controller struct {
	logger zerolog.Logger
	arena  *engine.Arena
	handle engine.Handle
	eng    *engine.Engine

	updates *progress.Stream[State]

	mu       sync.Mutex
	percent  float64
	released bool
}

// NewController creates and initializes an engine in arena.
func NewController(logger zerolog.Logger, arena *engine.Arena) (*Controller, error) {
	h := arena.Create()
	eng, _ := arena.Get(h)
	if err := eng.Initialize(); err != nil {
		arena.Destroy(h)
		return nil, err
	}
	c := &Controller{
		logger:  logger.With().Str("component", "editor").Int64("handle", int64(h)).Logger(),
		arena:   arena,
		handle:  h,
		eng:     eng,
		updates: progress.New[State](),
	}
	c.publish()
	return c, nil
}

// Handle is the engine handle.
func (c *Controller) Handle() engine.Handle { return c.handle }

// Updates streams the latest State. It ends on Release.
func (c *Controller) Updates() *progress.Stream[State] { return c.updates }

// State builds a fresh view of the session.
func (c *Controller) State() State {
	c.mu.Lock()
	percent, released := c.percent, c.released
	c.mu.Unlock()
	if released {
		return State{}
	}

	s := State{
		Initialized:    c.eng.Initialized(),
		Playing:        c.eng.IsPlaying(),
		Position:       c.eng.CurrentPosition(),
		Duration:       c.eng.Duration(),
		Exporting:      c.eng.Exporting(),
		ExportProgress: percent,
	}
	if p, err := c.eng.Project(); err == nil {
		s.Clips = p.Clips()
		s.ProjectWidth, s.ProjectHeight, s.ProjectFPS = p.Width, p.Height, p.FPS
	}
	if o, err := c.eng.Overlays(); err == nil {
		s.Overlays = o.Len()
	}
	if m, err := c.eng.Mixer(); err == nil {
		s.AudioTracks = len(m.Tracks())
	}
	return s
}

func (c *Controller) publish() {
	c.updates.Publish(c.State())
}

// changed publishes after a successful edit and passes err through.
func (c *Controller) changed(err error) error {
	if err != nil {
		c.logger.Debug().Err(err).Msg("edit rejected")
		return err
	}
	c.publish()
	return nil
}

func (c *Controller) live() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrReleased
	}
	return nil
}

// Release destroys the engine and ends Updates. Calling it twice is safe.
func (c *Controller) Release() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	c.mu.Unlock()

	c.arena.Destroy(c.handle)
	c.updates.Close()
	c.logger.Info().Msg("editor released")
}

// CreateProject starts over with an empty project.
func (c *Controller) CreateProject(width, height int, fps float64) error {
	if err := c.live(); err != nil {
		return err
	}
	return c.changed(c.eng.CreateProject(width, height, fps))
}

// AddClip appends media to a track at position.
func (c *Controller) AddClip(ctx context.Context, path string, track int, position time.Duration) (timeline.Clip, error) {
	if err := c.live(); err != nil {
		return timeline.Clip{}, err
	}
	clip, err := c.eng.AddClip(ctx, path, track, position)
	return clip, c.changed(err)
}

func (c *Controller) RemoveClip(id int) error {
	if err := c.live(); err != nil {
		return err
	}
	return c.changed(c.eng.RemoveClip(id))
}

func (c *Controller) MoveClip(id, track int, position time.Duration) error {
	if err := c.live(); err != nil {
		return err
	}
	return c.changed(c.eng.MoveClip(id, track, position))
}

func (c *Controller) TrimClip(id int, trimIn, trimOut time.Duration) error {
	if err := c.live(); err != nil {
		return err
	}
	return c.changed(c.eng.TrimClip(id, trimIn, trimOut))
}

// SplitClip cuts at a timeline position and returns the new second clip.
func (c *Controller) SplitClip(id int, position time.Duration) (timeline.Clip, error) {
	if err := c.live(); err != nil {
		return timeline.Clip{}, err
	}
	clip, err := c.eng.SplitClip(id, position)
	return clip, c.changed(err)
}

func (c *Controller) SetClipSpeed(id int, speed float64) error {
	if err := c.live(); err != nil {
		return err
	}
	return c.changed(c.eng.SetClipSpeed(id, speed))
}

func (c *Controller) SetClipVolume(id int, volume float64) error {
	if err := c.live(); err != nil {
		return err
	}
	return c.changed(c.eng.SetClipVolume(id, volume))
}

// AddFilter appends a filter by name, e.g. "sepia".
func (c *Controller) AddFilter(clipID int, kind string, intensity float64) (effects.Filter, error) {
	if err := c.live(); err != nil {
		return effects.Filter{}, err
	}
	f, err := c.eng.AddFilter(clipID, kind, intensity)
	return f, c.changed(err)
}

func (c *Controller) RemoveFilter(clipID, filterID int) error {
	if err := c.live(); err != nil {
		return err
	}
	return c.changed(c.eng.RemoveFilter(clipID, filterID))
}

// SetTransition blends the end of a clip into the next one. An empty kind
// clears it.
func (c *Controller) SetTransition(clipID int, kind string, duration time.Duration) error {
	if err := c.live(); err != nil {
		return err
	}
	if kind == "" {
		return c.changed(c.eng.SetTransition(clipID, nil))
	}
	k, err := transitions.ParseKind(kind)
	if err != nil {
		return err
	}
	return c.changed(c.eng.SetTransition(clipID, &timeline.TransitionSpec{Kind: k, Duration: duration}))
}

// SetBackground replaces the background of a clip. Nil clears it.
func (c *Controller) SetBackground(clipID int, opts *background.Options) error {
	if err := c.live(); err != nil {
		return err
	}
	return c.changed(c.eng.SetBackground(clipID, opts))
}

// AddText places a text overlay centered at normalized (x, y).
func (c *Controller) AddText(text string, x, y float64, start, duration time.Duration) (overlays.TextOverlay, error) {
	o, err := c.overlays()
	if err != nil {
		return overlays.TextOverlay{}, err
	}
	t := o.AddText(text, x, y, start, duration)
	c.publish()
	return t, nil
}

// AddSticker adds a sticker by registry name, or from an image file when
// the name is not registered.
func (c *Controller) AddSticker(nameOrPath string, x, y float64, start, duration time.Duration) (overlays.StickerOverlay, error) {
	o, err := c.overlays()
	if err != nil {
		return overlays.StickerOverlay{}, err
	}
	var s overlays.StickerOverlay
	if _, ok := o.Registry().Get(nameOrPath); ok {
		s, err = o.AddNamedSticker(nameOrPath, x, y, start, duration)
	} else {
		s, err = o.AddStickerFile(nameOrPath, x, y, start, duration)
	}
	if err != nil {
		return overlays.StickerOverlay{}, err
	}
	c.publish()
	return s, nil
}

// AddStickerImage adds an in-memory sticker.
func (c *Controller) AddStickerImage(img *image.NRGBA, x, y float64, start, duration time.Duration) (overlays.StickerOverlay, error) {
	o, err := c.overlays()
	if err != nil {
		return overlays.StickerOverlay{}, err
	}
	s := o.AddSticker(img, x, y, start, duration)
	c.publish()
	return s, nil
}

// SetOverlayAnimation sets an overlay's animation by name.
func (c *Controller) SetOverlayAnimation(id int, name string, duration time.Duration) error {
	o, err := c.overlays()
	if err != nil {
		return err
	}
	anim, err := overlays.ParseAnimation(name)
	if err != nil {
		return err
	}
	return c.changed(o.SetAnimation(id, anim, duration))
}

// SetOverlayTimeRange moves an overlay's window to [start, end).
func (c *Controller) SetOverlayTimeRange(id int, start, end time.Duration) error {
	o, err := c.overlays()
	if err != nil {
		return err
	}
	return c.changed(o.SetTimeRange(id, start, end))
}

func (c *Controller) RemoveOverlay(id int) error {
	o, err := c.overlays()
	if err != nil {
		return err
	}
	return c.changed(o.Remove(id))
}

func (c *Controller) overlays() (*overlays.Manager, error) {
	if err := c.live(); err != nil {
		return nil, err
	}
	return c.eng.Overlays()
}

// AddAudioTrack adds a soundtrack starting at position.
func (c *Controller) AddAudioTrack(path string, position time.Duration) (audio.Track, error) {
	if err := c.live(); err != nil {
		return audio.Track{}, err
	}
	t, err := c.eng.AddAudioTrack(path, position)
	return t, c.changed(err)
}

func (c *Controller) RemoveAudioTrack(id int) error {
	return c.mix(id, func(m *audio.Mixer) bool { return m.RemoveTrack(id) })
}

func (c *Controller) SetTrackVolume(id int, volume float64) error {
	return c.mix(id, func(m *audio.Mixer) bool { return m.SetVolume(id, volume) })
}

func (c *Controller) SetTrackPan(id int, pan float64) error {
	return c.mix(id, func(m *audio.Mixer) bool { return m.SetPan(id, pan) })
}

func (c *Controller) SetTrackFades(id int, fadeIn, fadeOut time.Duration) error {
	return c.mix(id, func(m *audio.Mixer) bool {
		return m.SetFadeIn(id, fadeIn.Milliseconds()) && m.SetFadeOut(id, fadeOut.Milliseconds())
	})
}

func (c *Controller) SetTrackMuted(id int, muted bool) error {
	return c.mix(id, func(m *audio.Mixer) bool { return m.SetMuted(id, muted) })
}

// AddTrackEffect appends an effect such as "echo" or "pitch_shift" to the
// track's chain. A zero amount takes the effect's default.
func (c *Controller) AddTrackEffect(id int, kind string, amount float64) (audio.TrackEffect, error) {
	e, err := audio.NewTrackEffect(kind, amount)
	if err != nil {
		return audio.TrackEffect{}, err
	}
	return e, c.mix(id, func(m *audio.Mixer) bool { return m.AddEffect(id, e) })
}

func (c *Controller) ClearTrackEffects(id int) error {
	return c.mix(id, func(m *audio.Mixer) bool { return m.ClearEffects(id) })
}

func (c *Controller) mix(id int, fn func(*audio.Mixer) bool) error {
	if err := c.live(); err != nil {
		return err
	}
	m, err := c.eng.Mixer()
	if err != nil {
		return err
	}
	if !fn(m) {
		return fmt.Errorf("%w: %d", audio.ErrTrackNotFound, id)
	}
	c.publish()
	return nil
}

// RenderFrame composes the timeline at t.
func (c *Controller) RenderFrame(ctx context.Context, t time.Duration) (*image.NRGBA, error) {
	if err := c.live(); err != nil {
		return nil, err
	}
	return c.eng.RenderFrame(ctx, t)
}

func (c *Controller) Play() {
	c.eng.Play()
	c.publish()
}

func (c *Controller) Pause() {
	c.eng.Pause()
	c.publish()
}

func (c *Controller) Stop() {
	c.eng.Stop()
	c.publish()
}

func (c *Controller) SeekTo(position time.Duration) {
	c.eng.SeekTo(position)
	c.publish()
}

func (c *Controller) CurrentPosition() time.Duration { return c.eng.CurrentPosition() }

func (c *Controller) Duration() time.Duration { return c.eng.Duration() }

func (c *Controller) IsPlaying() bool { return c.eng.IsPlaying() }

// Export renders the timeline to outputPath and blocks until done. Zero
// size, fps or bitrate use the project's. cb, when set, sees every state.
func (c *Controller) Export(ctx context.Context, outputPath string, width, height int, fps float64, bitrate int, cb engine.ExportCallback) bool {
	if err := c.live(); err != nil {
		if cb != nil {
			cb(pipeline.Failed{Message: err.Error(), Kind: pipeline.KindSource})
		}
		return false
	}
	c.setPercent(0)
	ok := c.eng.Export(ctx, outputPath, width, height, fps, bitrate, func(s pipeline.State) {
		c.setPercent(pipeline.Percent(s))
		c.publish()
		if cb != nil {
			cb(s)
		}
	})
	c.publish()
	return ok
}

// CancelExport stops a running export.
func (c *Controller) CancelExport() {
	c.eng.CancelExport()
}

// ExportProgress is the last reported export percentage.
func (c *Controller) ExportProgress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.percent
}

func (c *Controller) setPercent(p float64) {
	c.mu.Lock()
	c.percent = p
	c.mu.Unlock()
}
