package overlays

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Animation names an entry, exit or looping overlay animation.
type Animation string

const (
	AnimNone       Animation = "none"
	AnimFadeIn     Animation = "fade_in"
	AnimFadeOut    Animation = "fade_out"
	AnimFadeInOut  Animation = "fade_in_out"
	AnimSlideLeft  Animation = "slide_left"
	AnimSlideRight Animation = "slide_right"
	AnimSlideUp    Animation = "slide_up"
	AnimSlideDown  Animation = "slide_down"
	AnimScaleUp    Animation = "scale_up"
	AnimScaleDown  Animation = "scale_down"
	AnimTypewriter Animation = "typewriter"
	AnimBounce     Animation = "bounce"
	AnimPopIn      Animation = "pop_in"
	AnimPopOut     Animation = "pop_out"
	AnimSpin       Animation = "spin"
	AnimShake      Animation = "shake"
	AnimPulse      Animation = "pulse"
)

var (
	textAnimations = []Animation{
		AnimNone, AnimFadeIn, AnimFadeOut, AnimFadeInOut,
		AnimSlideLeft, AnimSlideRight, AnimSlideUp, AnimSlideDown,
		AnimScaleUp, AnimScaleDown, AnimTypewriter, AnimBounce,
	}
	stickerAnimations = []Animation{
		AnimNone, AnimFadeIn, AnimFadeOut, AnimFadeInOut,
		AnimSlideLeft, AnimSlideRight, AnimSlideUp, AnimSlideDown,
		AnimScaleUp, AnimScaleDown, AnimBounce,
		AnimPopIn, AnimPopOut, AnimSpin, AnimShake, AnimPulse,
	}
)

// TextAnimations lists the animations a text overlay accepts.
func TextAnimations() []Animation { return append([]Animation(nil), textAnimations...) }

// StickerAnimations lists the animations a sticker overlay accepts.
func StickerAnimations() []Animation { return append([]Animation(nil), stickerAnimations...) }

// ParseAnimation accepts names like "fade_in" or "FADE_IN".
func ParseAnimation(name string) (Animation, error) {
	a := Animation(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range stickerAnimations {
		if a == known {
			return a, nil
		}
	}
	if a == AnimTypewriter {
		return a, nil
	}
	return "", fmt.Errorf("unknown animation %q", name)
}

const (
	backC1 = 1.70158
	backC3 = backC1 + 1
)

// EaseOutBack overshoots slightly past 1 before settling.
func EaseOutBack(t float64) float64 {
	u := t - 1
	return 1 + backC3*u*u*u + backC1*u*u
}

// EaseInBack pulls back below 0 before accelerating.
func EaseInBack(t float64) float64 {
	return backC3*t*t*t - backC1*t*t
}

// Window is the time span and animation shared by every overlay.
type Window struct {
	Start        time.Duration `yaml:"start"`
	End          time.Duration `yaml:"end"`
	Animation    Animation     `yaml:"animation"`
	AnimDuration time.Duration `yaml:"anim_duration"`
}

// Active reports whether t falls inside [Start, End).
func (w Window) Active(t time.Duration) bool {
	return t >= w.Start && t < w.End
}

// EntryProgress runs from 0 at Start to 1 after AnimDuration.
func (w Window) EntryProgress(t time.Duration) float64 {
	if w.AnimDuration <= 0 {
		return 1
	}
	return clamp01(float64(t-w.Start) / float64(w.AnimDuration))
}

// ExitProgress runs from 0 to 1 over the last AnimDuration before End.
func (w Window) ExitProgress(t time.Duration) float64 {
	if w.AnimDuration <= 0 {
		return 0
	}
	return clamp01(1 - float64(w.End-t)/float64(w.AnimDuration))
}

// State is the resolved placement of an overlay at one instant.
type State struct {
	Visible  bool
	X, Y     float64 // frame pixels of the overlay center
	Scale    float64
	Rotation float64 // degrees clockwise
	Alpha    float64
	Text     string
}

// Placement is the un-animated pose of an overlay.
type Placement struct {
	X        float64 `yaml:"x"` // 0..1 of frame width
	Y        float64 `yaml:"y"` // 0..1 of frame height
	Scale    float64 `yaml:"scale"`
	Rotation float64 `yaml:"rotation"`
	Opacity  float64 `yaml:"opacity"`
}

// animate applies the animations common to text and stickers. extent is
// the overlay height used by slide-down to start just above the frame.
func animate(p Placement, w Window, t time.Duration, width, height, extent float64) State {
	s := State{
		Visible:  w.Active(t),
		X:        p.X * width,
		Y:        p.Y * height,
		Scale:    p.Scale,
		Rotation: p.Rotation,
		Alpha:    p.Opacity,
	}
	in := w.EntryProgress(t)

	switch w.Animation {
	case AnimFadeIn:
		s.Alpha = in * p.Opacity
	case AnimFadeOut:
		s.Alpha = (1 - w.ExitProgress(t)) * p.Opacity
	case AnimFadeInOut:
		s.Alpha = math.Min(in, 1-w.ExitProgress(t)) * p.Opacity
	case AnimSlideLeft:
		s.X = width + (p.X*width-width)*in
	case AnimSlideRight:
		s.X = -width + (p.X*width+width)*in
	case AnimSlideUp:
		s.Y = height + (p.Y*height-height)*in
	case AnimSlideDown:
		s.Y = -extent + (p.Y*height+extent)*in
	case AnimScaleUp:
		s.Scale = p.Scale * in
	case AnimScaleDown:
		s.Scale = p.Scale * (2 - in)
	}
	return s
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
