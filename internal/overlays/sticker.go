package overlays

import (
	"image"
	"math"
	"time"
)

const (
	MinStickerScale = 0.1
	MaxStickerScale = 5.0

	stickerBounce = 30.0
	shakeAmount   = 10.0
	pulseAmount   = 0.1
)

// StickerOverlay is an animated image placed on the frame.
type StickerOverlay struct {
	ID     int
	Name   string
	Source string
	Image  *image.NRGBA
	Placement
	Window
}

// OverlayID implements Overlay.
func (o *StickerOverlay) OverlayID() int { return o.ID }

// Active implements Overlay.
func (o *StickerOverlay) Active(t time.Duration) bool { return o.Window.Active(t) }

// State resolves the sticker at t on a frame of the given size.
func (o *StickerOverlay) State(t time.Duration, width, height int) State {
	extent := 0.0
	if o.Image != nil {
		extent = float64(o.Image.Bounds().Dy()) * o.Scale
	}
	s := animate(o.Placement, o.Window, t, float64(width), float64(height), extent)
	p := o.EntryProgress(t)

	switch o.Animation {
	case AnimPopIn:
		s.Scale = o.Scale * EaseOutBack(p)
	case AnimPopOut:
		s.Scale = o.Scale * (1 - EaseInBack(o.ExitProgress(t)))
	case AnimBounce:
		s.Y += -stickerBounce * math.Abs(math.Sin(p*math.Pi*3))
	case AnimSpin:
		s.Rotation = o.Rotation + 360*p
	case AnimShake:
		s.X += shakeAmount * math.Sin(p*math.Pi*10)
	case AnimPulse:
		s.Scale = o.Scale * (1 + pulseAmount*math.Sin(p*math.Pi*4))
	}
	return s
}

// Draw paints the sticker onto dst as it appears at t.
func (o *StickerOverlay) Draw(dst *image.NRGBA, t time.Duration) {
	if o.Image == nil {
		return
	}
	b := dst.Bounds()
	s := o.State(t, b.Dx(), b.Dy())
	if !s.Visible {
		return
	}
	drawLayer(dst, o.Image, s.X, s.Y, s.Scale, s.Rotation, s.Alpha)
}
