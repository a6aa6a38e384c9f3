package effects

import "image"

// Vintage: sepia 0.4, contrast 1.1, brightness -10, vignette 0.3.
func Vintage(src *image.NRGBA) *image.NRGBA {
	out := SepiaMatrix(0.4).Apply(src)
	out = ContrastMatrix(1.1).Apply(out)
	out = BrightnessMatrix(-10).Apply(out)
	return Vignette(out, 0.3)
}

// Dramatic: contrast 1.3, saturation 1.2, vignette 0.4.
func Dramatic(src *image.NRGBA) *image.NRGBA {
	out := ContrastMatrix(1.3).Apply(src)
	out = SaturationMatrix(1.2).Apply(out)
	return Vignette(out, 0.4)
}

// Fade: contrast 0.85, saturation 0.8, brightness +15.
func Fade(src *image.NRGBA) *image.NRGBA {
	out := ContrastMatrix(0.85).Apply(src)
	out = SaturationMatrix(0.8).Apply(out)
	return BrightnessMatrix(15).Apply(out)
}

// Noir: grayscale, contrast 1.4, vignette 0.5.
func Noir(src *image.NRGBA) *image.NRGBA {
	out := GrayscaleMatrix().Apply(src)
	out = ContrastMatrix(1.4).Apply(out)
	return Vignette(out, 0.5)
}
