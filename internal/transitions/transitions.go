// Package transitions blends the outgoing and incoming frames of a clip
// boundary. Every transition reproduces from exactly at progress 0 and to
// exactly at progress 1.
package transitions

import (
	"fmt"
	"image"
	"math"
	"math/rand"
	"strings"

	"github.com/keagan/vortex/internal/imaging"
)

// Kind names a transition.
type Kind string

const (
	Fade        Kind = "fade"
	Dissolve    Kind = "dissolve"
	WipeLeft    Kind = "wipe_left"
	WipeRight   Kind = "wipe_right"
	WipeUp      Kind = "wipe_up"
	WipeDown    Kind = "wipe_down"
	SlideLeft   Kind = "slide_left"
	SlideRight  Kind = "slide_right"
	ZoomIn      Kind = "zoom_in"
	ZoomOut     Kind = "zoom_out"
	CircleOpen  Kind = "circle_open"
	CircleClose Kind = "circle_close"
	Blur        Kind = "blur"
)

// DissolveSeed fixes the dissolve threshold sequence so re-renders match.
const DissolveSeed = 42

const (
	zoomRange     = 0.3
	maxBlurRadius = 20
)

var allKinds = []Kind{
	Fade, Dissolve,
	WipeLeft, WipeRight, WipeUp, WipeDown,
	SlideLeft, SlideRight,
	ZoomIn, ZoomOut,
	CircleOpen, CircleClose,
	Blur,
}

// Kinds lists every transition.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// ParseKind accepts names like "wipe_left" or "WIPE_LEFT".
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range allKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown transition %q", name)
}

// Apply blends from into to. to is rescaled to from's size when needed and
// progress is clamped to [0,1].
func Apply(from, to *image.NRGBA, progress float64, kind Kind) (*image.NRGBA, error) {
	w, h := from.Bounds().Dx(), from.Bounds().Dy()
	if !imaging.SameSize(from, to) {
		to = imaging.Resize(to, w, h)
	}
	p := math.Max(0, math.Min(1, progress))

	switch kind {
	case Fade:
		return fade(from, to, p), nil
	case Dissolve:
		return dissolve(from, to, p), nil
	case WipeLeft:
		edge := int(float64(w) * p)
		return pick(from, to, func(x, _ int) bool { return x < edge }), nil
	case WipeRight:
		edge := w - int(float64(w)*p)
		return pick(from, to, func(x, _ int) bool { return x >= edge }), nil
	case WipeUp:
		edge := int(float64(h) * p)
		return pick(from, to, func(_, y int) bool { return y < edge }), nil
	case WipeDown:
		edge := h - int(float64(h)*p)
		return pick(from, to, func(_, y int) bool { return y >= edge }), nil
	case SlideLeft:
		return slide(from, to, int(float64(w)*p), true), nil
	case SlideRight:
		return slide(from, to, int(float64(w)*p), false), nil
	case ZoomIn:
		// from grows and fades out over to
		return zoom(to, from, 1+zoomRange*p, 1-p), nil
	case ZoomOut:
		// to shrinks from 130% and fades in over from
		return zoom(from, to, 1+zoomRange*(1-p), p), nil
	case CircleOpen:
		return circle(from, to, p), nil
	case CircleClose:
		return circle(to, from, 1-p), nil
	case Blur:
		if p < 0.5 {
			return imaging.BoxBlur(from, int(p*2*maxBlurRadius)), nil
		}
		return imaging.BoxBlur(to, int((1-(p-0.5)*2)*maxBlurRadius)), nil
	}
	return nil, fmt.Errorf("unknown transition %q", kind)
}

func fade(from, to *image.NRGBA, p float64) *image.NRGBA {
	dst := imaging.Clone(from)
	for i := range dst.Pix {
		dst.Pix[i] = imaging.Lerp(from.Pix[i], to.Pix[i], p)
	}
	return dst
}

// dissolve draws one threshold per pixel in row-major order from a
// generator seeded with DissolveSeed.
func dissolve(from, to *image.NRGBA, p float64) *image.NRGBA {
	rng := rand.New(rand.NewSource(DissolveSeed))
	return pick(from, to, func(_, _ int) bool {
		return p > float64(rng.Float32())
	})
}

// pick copies each pixel from to when useTo reports true, else from from.
// Pixels are visited in row-major order.
func pick(from, to *image.NRGBA, useTo func(x, y int) bool) *image.NRGBA {
	dst := imaging.Clone(from)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if useTo(x, y) {
				i := dst.PixOffset(x, y)
				copy(dst.Pix[i:i+4], to.Pix[to.PixOffset(x, y):to.PixOffset(x, y)+4])
			}
		}
	}
	return dst
}

// slide translates both frames by offset pixels. With leftward motion from
// exits to the left and to enters from the right.
func slide(from, to *image.NRGBA, offset int, leftward bool) *image.NRGBA {
	dst := imaging.Clone(from)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var src *image.NRGBA
			var sx int
			if leftward {
				if x < w-offset {
					src, sx = from, x+offset
				} else {
					src, sx = to, x-(w-offset)
				}
			} else {
				if x < offset {
					src, sx = to, x-offset+w
				} else {
					src, sx = from, x-offset
				}
			}
			si := src.PixOffset(sx, y)
			di := dst.PixOffset(x, y)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}

// zoom draws layer scaled by scale around the frame center on top of base,
// blended with weight alpha. Sampling is nearest-neighbour so that scale 1
// reproduces layer exactly.
func zoom(base, layer *image.NRGBA, scale, alpha float64) *image.NRGBA {
	dst := imaging.Clone(base)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	cx, cy := float64(w)/2, float64(h)/2

	for y := 0; y < h; y++ {
		sy := clampInt(int(math.Floor(cy+(float64(y)+0.5-cy)/scale)), 0, h-1)
		for x := 0; x < w; x++ {
			sx := clampInt(int(math.Floor(cx+(float64(x)+0.5-cx)/scale)), 0, w-1)
			di := dst.PixOffset(x, y)
			si := layer.PixOffset(sx, sy)
			for c := 0; c < 4; c++ {
				dst.Pix[di+c] = imaging.Lerp(base.Pix[di+c], layer.Pix[si+c], alpha)
			}
		}
	}
	return dst
}

// circle shows inner through a centered disk of radius frac*maxRadius over
// outer, where maxRadius is half the frame diagonal.
func circle(outer, inner *image.NRGBA, frac float64) *image.NRGBA {
	w, h := outer.Bounds().Dx(), outer.Bounds().Dy()
	maxRadius := math.Sqrt(float64(w*w+h*h)) / 2
	radius := frac * maxRadius
	cx, cy := float64(w)/2, float64(h)/2

	return pick(outer, inner, func(x, y int) bool {
		dx := float64(x) + 0.5 - cx
		dy := float64(y) + 0.5 - cy
		return math.Sqrt(dx*dx+dy*dy) < radius
	})
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
