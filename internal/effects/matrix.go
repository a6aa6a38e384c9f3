package effects

import (
	"image"

	"github.com/keagan/vortex/internal/imaging"
)

// ColorMatrix is a 4x5 affine color transform in row-major order:
//
//	R' = m[0]*R + m[1]*G + m[2]*B + m[3]*A + m[4]
//
// and likewise for G', B', A'. Offsets are in 0..255 channel units.
type ColorMatrix [20]float64

// Identity returns the matrix that leaves every pixel unchanged.
func Identity() ColorMatrix {
	return ColorMatrix{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Then returns the matrix equivalent to applying m first and next second.
func (m ColorMatrix) Then(next ColorMatrix) ColorMatrix {
	var out ColorMatrix
	for i := 0; i < 4; i++ {
		for j := 0; j < 5; j++ {
			var v float64
			for k := 0; k < 4; k++ {
				v += next[i*5+k] * m[k*5+j]
			}
			if j == 4 {
				v += next[i*5+4]
			}
			out[i*5+j] = v
		}
	}
	return out
}

// Apply transforms every pixel of src and returns a new frame.
func (m ColorMatrix) Apply(src *image.NRGBA) *image.NRGBA {
	dst := imaging.Clone(src)
	p := dst.Pix
	for i := 0; i < len(p); i += 4 {
		r, g, b, a := float64(p[i]), float64(p[i+1]), float64(p[i+2]), float64(p[i+3])
		p[i] = imaging.ClampByte(m[0]*r + m[1]*g + m[2]*b + m[3]*a + m[4])
		p[i+1] = imaging.ClampByte(m[5]*r + m[6]*g + m[7]*b + m[8]*a + m[9])
		p[i+2] = imaging.ClampByte(m[10]*r + m[11]*g + m[12]*b + m[13]*a + m[14])
		p[i+3] = imaging.ClampByte(m[15]*r + m[16]*g + m[17]*b + m[18]*a + m[19])
	}
	return dst
}

// Rec.601 luma weights.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// BrightnessMatrix adds value (-100..100 typical) to each color channel.
func BrightnessMatrix(value float64) ColorMatrix {
	return ColorMatrix{
		1, 0, 0, 0, value,
		0, 1, 0, 0, value,
		0, 0, 1, 0, value,
		0, 0, 0, 1, 0,
	}
}

// ContrastMatrix scales color channels around the midpoint. 1 is neutral.
func ContrastMatrix(value float64) ColorMatrix {
	t := (-0.5*value + 0.5) * 255
	return ColorMatrix{
		value, 0, 0, 0, t,
		0, value, 0, 0, t,
		0, 0, value, 0, t,
		0, 0, 0, 1, 0,
	}
}

// SaturationMatrix interpolates toward luma. 0 is grayscale, 1 is neutral.
func SaturationMatrix(value float64) ColorMatrix {
	inv := 1 - value
	r, g, b := lumaR*inv, lumaG*inv, lumaB*inv
	return ColorMatrix{
		r + value, g, b, 0, 0,
		r, g + value, b, 0, 0,
		r, g, b + value, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// SepiaMatrix mixes the classic sepia transform with identity by intensity.
func SepiaMatrix(intensity float64) ColorMatrix {
	i := intensity
	return ColorMatrix{
		0.393*i + (1 - i), 0.769 * i, 0.189 * i, 0, 0,
		0.349 * i, 0.686*i + (1 - i), 0.168 * i, 0, 0,
		0.272 * i, 0.534 * i, 0.131*i + (1 - i), 0, 0,
		0, 0, 0, 1, 0,
	}
}

// GrayscaleMatrix removes all saturation.
func GrayscaleMatrix() ColorMatrix {
	return SaturationMatrix(0)
}

// InvertMatrix negates each color channel.
func InvertMatrix() ColorMatrix {
	return ColorMatrix{
		-1, 0, 0, 0, 255,
		0, -1, 0, 0, 255,
		0, 0, -1, 0, 255,
		0, 0, 0, 1, 0,
	}
}

// WarmthMatrix shifts toward red (positive) or blue (negative), -100..100.
func WarmthMatrix(value float64) ColorMatrix {
	return ColorMatrix{
		1 + value/100, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1 - value/100, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// TintMatrix shifts between green (negative) and magenta (positive).
func TintMatrix(value float64) ColorMatrix {
	return ColorMatrix{
		1, 0, 0, 0, value / 2,
		0, 1, 0, 0, -value / 2,
		0, 0, 1, 0, value / 2,
		0, 0, 0, 1, 0,
	}
}

// CoolMatrix is the fixed cool grade.
func CoolMatrix() ColorMatrix {
	return ColorMatrix{
		0.9, 0, 0, 0, 0,
		0, 0.95, 0, 0, 0,
		0, 0, 1.1, 0, 10,
		0, 0, 0, 1, 0,
	}
}

// WarmMatrix is the fixed warm grade.
func WarmMatrix() ColorMatrix {
	return ColorMatrix{
		1.1, 0, 0, 0, 10,
		0, 1.0, 0, 0, 5,
		0, 0, 0.9, 0, 0,
		0, 0, 0, 1, 0,
	}
}
