package overlays

import (
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keagan/vortex/internal/imaging"
)

const ms = time.Millisecond

func newTestManager() *Manager {
	return NewManager(nil, DefaultTextStyle())
}

func TestTextFadeInScenario(t *testing.T) {
	m := newTestManager()
	o := m.AddText("hello", 0.5, 0.5, 0, 1000*ms)
	require.NoError(t, m.SetAnimation(o.ID, AnimFadeIn, 500*ms))
	require.NoError(t, m.UpdateText(o.ID, func(t *TextOverlay) { t.Opacity = 0.8 }))
	o, _ = m.Text(o.ID)

	tests := []struct {
		at      time.Duration
		visible bool
		alpha   float64
	}{
		{0, true, 0},
		{250 * ms, true, 0.4},
		{500 * ms, true, 0.8},
		{999 * ms, true, 0.8},
		{1000 * ms, false, 0.8},
	}

	for _, tt := range tests {
		s := o.State(tt.at, 1280, 720)
		assert.Equal(t, tt.visible, s.Visible, "visible at %s", tt.at)
		assert.InDelta(t, tt.alpha, s.Alpha, 1e-9, "alpha at %s", tt.at)
	}
}

func TestWindowProgress(t *testing.T) {
	w := Window{Start: time.Second, End: 3 * time.Second, AnimDuration: 500 * ms}

	assert.Equal(t, 0.0, w.EntryProgress(0))
	assert.InDelta(t, 0.5, w.EntryProgress(1250*ms), 1e-9)
	assert.Equal(t, 1.0, w.EntryProgress(2*time.Second))

	assert.Equal(t, 0.0, w.ExitProgress(2*time.Second))
	assert.InDelta(t, 0.5, w.ExitProgress(2750*ms), 1e-9)
	assert.Equal(t, 1.0, w.ExitProgress(3*time.Second))

	w.AnimDuration = 0
	assert.Equal(t, 1.0, w.EntryProgress(time.Second))
	assert.Equal(t, 0.0, w.ExitProgress(2999*ms))
}

func TestEasing(t *testing.T) {
	assert.InDelta(t, 0, EaseOutBack(0), 1e-9)
	assert.InDelta(t, 1, EaseOutBack(1), 1e-9)
	assert.Greater(t, EaseOutBack(0.8), 1.0, "overshoots")

	assert.InDelta(t, 0, EaseInBack(0), 1e-9)
	assert.InDelta(t, 1, EaseInBack(1), 1e-9)
	assert.Less(t, EaseInBack(0.2), 0.0, "pulls back")
}

func TestTextAnimations(t *testing.T) {
	base := TextOverlay{
		Text:      "abcd",
		Placement: Placement{X: 0.5, Y: 0.5, Scale: 1, Opacity: 1},
		Window:    Window{End: 2 * time.Second, AnimDuration: time.Second},
		Style:     DefaultTextStyle(),
	}

	tests := []struct {
		anim  Animation
		at    time.Duration
		check func(t *testing.T, s State)
	}{
		{AnimTypewriter, 500 * ms, func(t *testing.T, s State) { assert.Equal(t, "ab", s.Text) }},
		{AnimTypewriter, 0, func(t *testing.T, s State) { assert.Equal(t, "", s.Text) }},
		{AnimSlideLeft, 0, func(t *testing.T, s State) { assert.Equal(t, 100.0, s.X) }},
		{AnimSlideLeft, time.Second, func(t *testing.T, s State) { assert.Equal(t, 50.0, s.X) }},
		{AnimSlideRight, 0, func(t *testing.T, s State) { assert.Equal(t, -100.0, s.X) }},
		{AnimSlideUp, 0, func(t *testing.T, s State) { assert.Equal(t, 100.0, s.Y) }},
		{AnimSlideDown, 0, func(t *testing.T, s State) { assert.Equal(t, -48.0, s.Y) }},
		{AnimScaleUp, 500 * ms, func(t *testing.T, s State) { assert.Equal(t, 0.5, s.Scale) }},
		{AnimScaleDown, 0, func(t *testing.T, s State) { assert.Equal(t, 2.0, s.Scale) }},
		{AnimBounce, 500 * ms, func(t *testing.T, s State) { assert.InDelta(t, 50-20, s.Y, 1e-9) }},
		{AnimFadeOut, 1500 * ms, func(t *testing.T, s State) { assert.InDelta(t, 0.5, s.Alpha, 1e-9) }},
		{AnimFadeInOut, 1750 * ms, func(t *testing.T, s State) { assert.InDelta(t, 0.25, s.Alpha, 1e-9) }},
	}

	for _, tt := range tests {
		t.Run(string(tt.anim), func(t *testing.T) {
			o := base
			o.Animation = tt.anim
			tt.check(t, o.State(tt.at, 100, 100))
		})
	}
}

func TestStickerAnimations(t *testing.T) {
	base := StickerOverlay{
		Image:     imaging.New(10, 10),
		Placement: Placement{X: 0.5, Y: 0.5, Scale: 2, Rotation: 15, Opacity: 1},
		Window:    Window{End: 2 * time.Second, AnimDuration: time.Second},
	}

	tests := []struct {
		anim  Animation
		at    time.Duration
		check func(t *testing.T, s State)
	}{
		{AnimPopIn, 0, func(t *testing.T, s State) { assert.InDelta(t, 0, s.Scale, 1e-9) }},
		{AnimPopIn, time.Second, func(t *testing.T, s State) { assert.InDelta(t, 2, s.Scale, 1e-9) }},
		{AnimPopOut, 2 * time.Second, func(t *testing.T, s State) { assert.InDelta(t, 0, s.Scale, 1e-9) }},
		{AnimSpin, 500 * ms, func(t *testing.T, s State) { assert.InDelta(t, 195, s.Rotation, 1e-9) }},
		{AnimShake, 50 * ms, func(t *testing.T, s State) { assert.InDelta(t, 50+10, s.X, 1e-9) }},
		{AnimPulse, 125 * ms, func(t *testing.T, s State) { assert.InDelta(t, 2.2, s.Scale, 1e-9) }},
		{AnimBounce, 500 * ms, func(t *testing.T, s State) { assert.InDelta(t, 50-30, s.Y, 1e-9) }},
		{AnimSlideDown, 0, func(t *testing.T, s State) { assert.Equal(t, -20.0, s.Y) }},
	}

	for _, tt := range tests {
		t.Run(string(tt.anim), func(t *testing.T) {
			o := base
			o.Animation = tt.anim
			tt.check(t, o.State(tt.at, 100, 100))
		})
	}
}

func TestRenderDrawOrderAndWindow(t *testing.T) {
	m := newTestManager()
	red := imaging.Solid(4, 4, color.NRGBA{R: 255, A: 255})
	blue := imaging.Solid(4, 4, color.NRGBA{B: 255, A: 255})

	m.AddSticker(red, 0.5, 0.5, 0, time.Second)
	top := m.AddSticker(blue, 0.5, 0.5, 0, 500*ms)

	frame := imaging.Solid(8, 8, color.NRGBA{A: 255})

	out := m.Render(frame, 100*ms)
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, out.NRGBAAt(4, 4))
	assert.Equal(t, color.NRGBA{A: 255}, frame.NRGBAAt(4, 4), "input untouched")

	out = m.Render(frame, 700*ms)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, out.NRGBAAt(4, 4))

	require.NoError(t, m.Remove(top.ID))
	assert.ErrorIs(t, m.Remove(top.ID), ErrOverlayNotFound)

	out = m.Render(frame, 2*time.Second)
	assert.Equal(t, frame.Pix, out.Pix)
}

func TestRenderText(t *testing.T) {
	m := newTestManager()
	o := m.AddText("Vortex", 0.5, 0.5, 0, time.Second)
	require.NoError(t, m.UpdateText(o.ID, func(t *TextOverlay) {
		t.Style.Background = color.NRGBA{R: 20, G: 20, B: 200, A: 255}
		t.Rotation = 10
	}))

	frame := imaging.Solid(320, 120, color.NRGBA{A: 255})
	out := m.Render(frame, 500*ms)
	assert.NotEqual(t, frame.Pix, out.Pix)

	out = m.Render(frame, time.Second)
	assert.Equal(t, frame.Pix, out.Pix)
}

func TestSharedIDSequence(t *testing.T) {
	m := newTestManager()
	a := m.AddText("a", 0, 0, 0, 0)
	b := m.AddSticker(imaging.New(1, 1), 0, 0, 0, 0)
	c := m.AddText("c", 0, 0, 0, 0)

	assert.Equal(t, []int{1, 2, 3}, []int{a.ID, b.ID, c.ID})
	assert.Equal(t, DefaultDuration, a.End-a.Start)

	list := m.List()
	require.Len(t, list, 3)
	for i, o := range list {
		assert.Equal(t, i+1, o.OverlayID())
	}

	assert.Error(t, m.UpdateSticker(a.ID, func(*StickerOverlay) {}))
	require.NoError(t, m.UpdateSticker(b.ID, func(s *StickerOverlay) { s.Scale = 50 }))
	s, _ := m.Sticker(b.ID)
	assert.Equal(t, MaxStickerScale, s.Scale)

	snap := m.Snapshot()
	m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 3, snap.Len())
	d := m.AddText("d", 0, 0, 0, 0)
	assert.Equal(t, 4, d.ID)
}

func TestNamedStickers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "star.png")
	require.NoError(t, imaging.SavePNG(path, imaging.Solid(6, 6, color.NRGBA{G: 255, A: 255})))

	reg := NewRegistry()
	reg.Register("star", path)
	reg.Register("heart", filepath.Join(t.TempDir(), "missing.png"))
	assert.Equal(t, []string{"heart", "star"}, reg.List())

	m := NewManager(reg, DefaultTextStyle())
	o, err := m.AddNamedSticker("star", 0.5, 0.5, 0, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "star", o.Name)
	assert.Equal(t, 6, o.Image.Bounds().Dx())

	_, err = m.AddNamedSticker("moon", 0.5, 0.5, 0, time.Second)
	assert.ErrorIs(t, err, ErrUnknownSticker)
	_, err = m.AddNamedSticker("heart", 0.5, 0.5, 0, time.Second)
	assert.Error(t, err)
}

func TestParseAnimation(t *testing.T) {
	a, err := ParseAnimation("POP_IN")
	require.NoError(t, err)
	assert.Equal(t, AnimPopIn, a)

	a, err = ParseAnimation("typewriter")
	require.NoError(t, err)
	assert.Equal(t, AnimTypewriter, a)

	_, err = ParseAnimation("wobble")
	assert.Error(t, err)

	assert.NotContains(t, StickerAnimations(), AnimTypewriter)
	assert.Contains(t, TextAnimations(), AnimTypewriter)
}

func TestSetAnimationChecksOverlayKind(t *testing.T) {
	m := newTestManager()
	txt := m.AddText("hi", 0.5, 0.5, 0, time.Second)
	st := m.AddSticker(imaging.Solid(2, 2, color.NRGBA{A: 255}), 0.5, 0.5, 0, time.Second)

	assert.ErrorIs(t, m.SetAnimation(txt.ID, AnimPopIn, 500*ms), ErrUnsupportedAnimation)
	assert.ErrorIs(t, m.SetAnimation(st.ID, AnimTypewriter, 500*ms), ErrUnsupportedAnimation)
	assert.ErrorIs(t, m.SetAnimation(99, AnimFadeIn, 500*ms), ErrOverlayNotFound)

	got, _ := m.Text(txt.ID)
	assert.Equal(t, AnimNone, got.Window.Animation)

	require.NoError(t, m.SetAnimation(txt.ID, AnimTypewriter, 500*ms))
	require.NoError(t, m.SetAnimation(st.ID, AnimSpin, 500*ms))
	sticker, _ := m.Sticker(st.ID)
	assert.Equal(t, AnimSpin, sticker.Window.Animation)
}
