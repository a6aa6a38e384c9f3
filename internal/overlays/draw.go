package overlays

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// drawLayer composites layer onto dst centered at (cx, cy), scaled and
// rotated about its center, with a uniform opacity.
func drawLayer(dst *image.NRGBA, layer image.Image, cx, cy, scale, rotation, alpha float64) {
	alpha = clamp01(alpha)
	if alpha == 0 || scale <= 0 {
		return
	}
	b := layer.Bounds()
	if b.Empty() {
		return
	}

	rad := rotation * math.Pi / 180
	cos, sin := math.Cos(rad)*scale, math.Sin(rad)*scale
	hw, hh := float64(b.Dx())/2, float64(b.Dy())/2

	// src -> dst: translate to center, scale+rotate, translate to (cx, cy)
	m := f64.Aff3{
		cos, -sin, cx - cos*(hw+float64(b.Min.X)) + sin*(hh+float64(b.Min.Y)),
		sin, cos, cy - sin*(hw+float64(b.Min.X)) - cos*(hh+float64(b.Min.Y)),
	}

	var opts *draw.Options
	if alpha < 1 {
		opts = &draw.Options{SrcMask: image.NewUniform(color.Alpha{A: uint8(alpha*255 + 0.5)})}
	}
	draw.BiLinear.Transform(dst, m, layer, b, draw.Over, opts)
}

// fillRoundedRect paints r with corners of the given radius. Pixels are set,
// not blended; callers use it on an empty layer.
func fillRoundedRect(dst *image.NRGBA, r image.Rectangle, radius float64, c color.NRGBA) {
	r = r.Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if outsideCorner(r, x, y, radius) {
				continue
			}
			dst.SetNRGBA(x, y, c)
		}
	}
}

func outsideCorner(r image.Rectangle, x, y int, radius float64) bool {
	px, py := float64(x)+0.5, float64(y)+0.5
	left, right := float64(r.Min.X)+radius, float64(r.Max.X)-radius
	top, bottom := float64(r.Min.Y)+radius, float64(r.Max.Y)-radius

	var cx, cy float64
	switch {
	case px < left:
		cx = left
	case px > right:
		cx = right
	default:
		return false
	}
	switch {
	case py < top:
		cy = top
	case py > bottom:
		cy = bottom
	default:
		return false
	}
	return math.Hypot(px-cx, py-cy) > radius
}
