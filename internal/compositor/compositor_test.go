package compositor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keagan/vortex/internal/background"
	"github.com/keagan/vortex/internal/effects"
	"github.com/keagan/vortex/internal/imaging"
	"github.com/keagan/vortex/internal/overlays"
	"github.com/keagan/vortex/internal/timeline"
	"github.com/keagan/vortex/internal/transitions"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	black = color.NRGBA{A: 255}
)

type fetch struct {
	source string
	at     time.Duration
}

// solidSource returns a solid frame per source name and records requests.
type solidSource struct {
	mu      sync.Mutex
	colors  map[string]color.NRGBA
	size    image.Point
	fetches []fetch
	fail    error
}

func (s *solidSource) Frame(_ context.Context, source string, at time.Duration, width, height int) (*image.NRGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches = append(s.fetches, fetch{source, at})
	if s.fail != nil {
		return nil, s.fail
	}
	if s.size != (image.Point{}) {
		width, height = s.size.X, s.size.Y
	}
	return imaging.Solid(width, height, s.colors[source]), nil
}

type fixedSegmenter struct {
	confidence float32
	calls      int
}

func (f *fixedSegmenter) Segment(_ context.Context, frame *image.NRGBA) (*background.Mask, error) {
	f.calls++
	m := background.NewMask(2, 2)
	for i := range m.Confidence {
		m.Confidence[i] = f.confidence
	}
	return m, nil
}

func newScene(t *testing.T) (Scene, *solidSource) {
	t.Helper()
	src := &solidSource{colors: map[string]color.NRGBA{"a.mp4": red, "b.mp4": blue, "c.mp4": green}}
	return Scene{Project: timeline.NewProject(8, 8, 30)}, src
}

func TestComposeMapsSourceTime(t *testing.T) {
	scene, src := newScene(t)
	clip, err := scene.Project.AddClip("a.mp4", 10*time.Second, 0, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, scene.Project.TrimClip(clip.ID, time.Second, 9*time.Second))
	require.NoError(t, scene.Project.SetClipSpeed(clip.ID, 2))
	clip, _ = scene.Project.Clip(clip.ID)

	c := New(zerolog.Nop(), src, nil, Options{})
	frame, err := c.Compose(context.Background(), scene, clip, 3*time.Second)
	require.NoError(t, err)

	assert.Equal(t, red, frame.NRGBAAt(0, 0))
	require.Len(t, src.fetches, 1)
	assert.Equal(t, fetch{"a.mp4", 3 * time.Second}, src.fetches[0])
}

func TestComposeFiltersInOrder(t *testing.T) {
	scene, src := newScene(t)
	clip, err := scene.Project.AddClip("a.mp4", 4*time.Second, 0, 0)
	require.NoError(t, err)
	_, err = scene.Project.AddFilter(clip.ID, effects.KindInvert, 1)
	require.NoError(t, err)
	clip, _ = scene.Project.Clip(clip.ID)

	c := New(zerolog.Nop(), src, nil, Options{})
	frame, err := c.Compose(context.Background(), scene, clip, time.Second)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{G: 255, B: 255, A: 255}, frame.NRGBAAt(3, 3))
}

func TestComposeResizesSourceFrames(t *testing.T) {
	scene, src := newScene(t)
	src.size = image.Pt(3, 5)
	clip, err := scene.Project.AddClip("c.mp4", 4*time.Second, 0, 0)
	require.NoError(t, err)

	c := New(zerolog.Nop(), src, nil, Options{})
	frame, err := c.Compose(context.Background(), scene, clip, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), frame.Bounds())
}

func TestComposeTransitionWindow(t *testing.T) {
	scene, src := newScene(t)
	a, err := scene.Project.AddClip("a.mp4", 2*time.Second, 0, 0)
	require.NoError(t, err)
	b, err := scene.Project.AddClip("b.mp4", 5*time.Second, 0, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, scene.Project.TrimClip(b.ID, 500*time.Millisecond, 5*time.Second))
	require.NoError(t, scene.Project.SetTransition(a.ID, &timeline.TransitionSpec{Kind: transitions.Fade, Duration: time.Second}))
	a, _ = scene.Project.Clip(a.ID)

	start, length, ok := TransitionWindow(a)
	require.True(t, ok)
	assert.Equal(t, time.Second, start)
	assert.Equal(t, time.Second, length)

	c := New(zerolog.Nop(), src, nil, Options{})
	ctx := context.Background()

	before, err := c.Compose(ctx, scene, a, 900*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, red, before.NRGBAAt(0, 0))
	assert.Len(t, src.fetches, 1, "no next clip fetched outside the window")

	atStart, err := c.Compose(ctx, scene, a, time.Second)
	require.NoError(t, err)
	assert.Equal(t, red, atStart.NRGBAAt(0, 0), "progress 0 is the outgoing clip")

	mid, err := c.Compose(ctx, scene, a, 1500*time.Millisecond)
	require.NoError(t, err)
	px := mid.NRGBAAt(4, 4)
	assert.InDelta(t, 128, int(px.R), 1)
	assert.InDelta(t, 128, int(px.B), 1)

	assert.Equal(t, fetch{"b.mp4", 500 * time.Millisecond}, src.fetches[len(src.fetches)-1],
		"next clip is fetched at its first frame")
}

func TestComposeTransitionWithoutNextClip(t *testing.T) {
	scene, src := newScene(t)
	a, err := scene.Project.AddClip("a.mp4", 2*time.Second, 0, 0)
	require.NoError(t, err)
	require.NoError(t, scene.Project.SetTransition(a.ID, &timeline.TransitionSpec{Kind: transitions.WipeLeft, Duration: time.Second}))
	a, _ = scene.Project.Clip(a.ID)

	c := New(zerolog.Nop(), src, nil, Options{})
	frame, err := c.Compose(context.Background(), scene, a, 1500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, red, frame.NRGBAAt(7, 7))
}

func TestComposeBackground(t *testing.T) {
	scene, src := newScene(t)
	clip, err := scene.Project.AddClip("a.mp4", 2*time.Second, 0, 0)
	require.NoError(t, err)
	require.NoError(t, scene.Project.SetBackground(clip.ID, &background.Options{Mode: background.SolidColor, Color: green}))
	clip, _ = scene.Project.Clip(clip.ID)

	seg := &fixedSegmenter{confidence: 0.2}
	c := New(zerolog.Nop(), src, seg, Options{})
	frame, err := c.Compose(context.Background(), scene, clip, 0)
	require.NoError(t, err)
	assert.Equal(t, green, frame.NRGBAAt(2, 2))
	assert.Equal(t, 1, seg.calls)

	seg.confidence = 0.9
	frame, err = c.Compose(context.Background(), scene, clip, 0)
	require.NoError(t, err)
	assert.Equal(t, red, frame.NRGBAAt(2, 2))

	noSeg := New(zerolog.Nop(), src, nil, Options{})
	frame, err = noSeg.Compose(context.Background(), scene, clip, 0)
	require.NoError(t, err)
	assert.Equal(t, red, frame.NRGBAAt(2, 2))
}

func TestRenderAtPicksTopVideoTrack(t *testing.T) {
	scene, src := newScene(t)
	_, err := scene.Project.AddClip("a.mp4", 4*time.Second, 0, 0)
	require.NoError(t, err)
	_, err = scene.Project.AddClip("b.mp4", time.Second, 1, time.Second)
	require.NoError(t, err)
	_, err = scene.Project.AddClip("c.mp4", 4*time.Second, 2, 0)
	require.NoError(t, err)

	c := New(zerolog.Nop(), src, nil, Options{})
	ctx := context.Background()

	tests := []struct {
		at   time.Duration
		want color.NRGBA
	}{
		{500 * time.Millisecond, red},
		{1500 * time.Millisecond, blue},
		{2500 * time.Millisecond, red},
		{5 * time.Second, black},
	}
	for _, tt := range tests {
		frame, err := c.RenderAt(ctx, scene, tt.at)
		require.NoError(t, err)
		assert.Equal(t, tt.want, frame.NRGBAAt(1, 1), "at %s", tt.at)
	}
}

func TestRenderAtDrawsOverlays(t *testing.T) {
	scene, src := newScene(t)
	scene.Overlays = overlays.NewManager(nil, overlays.DefaultTextStyle())
	scene.Overlays.AddSticker(imaging.Solid(8, 8, green), 0.5, 0.5, 0, time.Second)

	c := New(zerolog.Nop(), src, nil, Options{})
	frame, err := c.RenderAt(context.Background(), scene, 0)
	require.NoError(t, err)
	assert.Equal(t, green, frame.NRGBAAt(4, 4), "overlays draw over the black frame")

	frame, err = c.RenderAt(context.Background(), scene, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, black, frame.NRGBAAt(4, 4))
}

func TestRenderBatch(t *testing.T) {
	scene, src := newScene(t)
	_, err := scene.Project.AddClip("a.mp4", time.Second, 0, 0)
	require.NoError(t, err)
	_, err = scene.Project.AddClip("b.mp4", time.Second, 0, time.Second)
	require.NoError(t, err)

	c := New(zerolog.Nop(), src, nil, Options{Concurrency: 2})
	times := []time.Duration{1500 * time.Millisecond, 0, 3 * time.Second, 999 * time.Millisecond}
	frames, err := c.RenderBatch(context.Background(), scene, times)
	require.NoError(t, err)
	require.Len(t, frames, len(times))

	assert.Equal(t, blue, frames[0].NRGBAAt(0, 0))
	assert.Equal(t, red, frames[1].NRGBAAt(0, 0))
	assert.Equal(t, black, frames[2].NRGBAAt(0, 0))
	assert.Equal(t, red, frames[3].NRGBAAt(0, 0))
}

func TestRenderBatchError(t *testing.T) {
	scene, src := newScene(t)
	src.fail = errors.New("decoder gone")
	_, err := scene.Project.AddClip("a.mp4", time.Second, 0, 0)
	require.NoError(t, err)

	c := New(zerolog.Nop(), src, nil, Options{})
	_, err = c.RenderBatch(context.Background(), scene, []time.Duration{0, 500 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorContains(t, err, "decoder gone")
}

func TestComposeDecoded(t *testing.T) {
	scene, src := newScene(t)
	clip, err := scene.Project.AddClip("a.mp4", time.Second, 0, 0)
	require.NoError(t, err)
	_, err = scene.Project.AddFilter(clip.ID, effects.KindGrayscale, 1)
	require.NoError(t, err)
	clip, _ = scene.Project.Clip(clip.ID)

	c := New(zerolog.Nop(), src, nil, Options{})
	decoded := imaging.Solid(8, 8, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	frame, err := c.ComposeDecoded(context.Background(), scene, clip, decoded, 0)
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{R: 100, G: 100, B: 100, A: 255}, frame.NRGBAAt(0, 0))
	assert.Empty(t, src.fetches)
}

func TestSceneSnapshotIsIndependent(t *testing.T) {
	scene, _ := newScene(t)
	scene.Overlays = overlays.NewManager(nil, overlays.DefaultTextStyle())
	_, err := scene.Project.AddClip("a.mp4", time.Second, 0, 0)
	require.NoError(t, err)
	scene.Overlays.AddText("hi", 0.5, 0.5, 0, time.Second)

	snap := scene.Snapshot()
	scene.Project.Clear()
	scene.Overlays.Clear()

	assert.Len(t, snap.Project.Clips(), 1)
	assert.Equal(t, 1, snap.Overlays.Len())
}
