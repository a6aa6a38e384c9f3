package effects

import (
	"image"
	"math"
	"math/rand/v2"

	"github.com/keagan/vortex/internal/imaging"
)

// Vignette darkens each pixel by 1 - intensity*(d/dmax)^2 where d is the
// distance from the frame center and dmax the center-to-corner distance.
func Vignette(src *image.NRGBA, intensity float64) *image.NRGBA {
	dst := imaging.Clone(src)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()

	cx, cy := float64(w)/2, float64(h)/2
	maxDist := math.Sqrt(cx*cx + cy*cy)
	if maxDist == 0 {
		return dst
	}

	for y := 0; y < h; y++ {
		dy := float64(y) - cy
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			dx := float64(x) - cx
			ratio := math.Sqrt(dx*dx+dy*dy) / maxDist
			factor := 1 - intensity*ratio*ratio

			i := x * 4
			row[i] = scaleTrunc(row[i], factor)
			row[i+1] = scaleTrunc(row[i+1], factor)
			row[i+2] = scaleTrunc(row[i+2], factor)
		}
	}
	return dst
}

func scaleTrunc(v uint8, f float64) uint8 {
	return truncClamp(float64(v) * f)
}

func truncClamp(s float64) uint8 {
	if s <= 0 {
		return 0
	}
	if s >= 255 {
		return 255
	}
	return uint8(s)
}

// Grain adds uniform noise in ±intensity*25 to the color channels. The same
// offset is applied to R, G and B of a pixel. The source is unseeded, so two
// calls on the same frame differ.
func Grain(src *image.NRGBA, intensity float64) *image.NRGBA {
	dst := imaging.Clone(src)
	p := dst.Pix
	for i := 0; i < len(p); i += 4 {
		noise := int((rand.Float64() - 0.5) * intensity * 50)
		p[i] = addClamp(p[i], noise)
		p[i+1] = addClamp(p[i+1], noise)
		p[i+2] = addClamp(p[i+2], noise)
	}
	return dst
}

func addClamp(v uint8, d int) uint8 {
	s := int(v) + d
	if s < 0 {
		return 0
	}
	if s > 255 {
		return 255
	}
	return uint8(s)
}

// Sharpen convolves the color channels with a 3x3 cross kernel whose center
// weight is 1+4*intensity. Border pixels and alpha are copied unchanged.
func Sharpen(src *image.NRGBA, intensity float64) *image.NRGBA {
	base := imaging.Clone(src)
	dst := imaging.Clone(src)
	w, h := base.Bounds().Dx(), base.Bounds().Dy()
	center := 1 + 4*intensity

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := base.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				sum := center*float64(base.Pix[i+c]) -
					intensity*float64(base.Pix[i-4+c]) -
					intensity*float64(base.Pix[i+4+c]) -
					intensity*float64(base.Pix[i-base.Stride+c]) -
					intensity*float64(base.Pix[i+base.Stride+c])
				dst.Pix[i+c] = imaging.ClampByte(sum)
			}
		}
	}
	return dst
}
