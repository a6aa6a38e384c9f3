// Package effects implements the per-pixel video effects: color matrices,
// named presets and the spatial effects (vignette, grain, sharpen, blur).
// Every function returns a new frame and leaves its input untouched.
package effects

import (
	"fmt"
	"image"
	"sort"

	"github.com/keagan/vortex/internal/imaging"
)

// Kind identifies a video effect.
type Kind string

const (
	KindBrightness Kind = "brightness"
	KindContrast   Kind = "contrast"
	KindSaturation Kind = "saturation"
	KindSepia      Kind = "sepia"
	KindGrayscale  Kind = "grayscale"
	KindInvert     Kind = "invert"
	KindWarmth     Kind = "warmth"
	KindTint       Kind = "tint"
	KindVintage    Kind = "vintage"
	KindCool       Kind = "cool"
	KindWarm       Kind = "warm"
	KindDramatic   Kind = "dramatic"
	KindFade       Kind = "fade"
	KindNoir       Kind = "noir"
	KindVignette   Kind = "vignette"
	KindGrain      Kind = "grain"
	KindSharpen    Kind = "sharpen"
	KindBlur       Kind = "blur"
)

// kindInfo describes how a kind interprets Filter.Intensity.
type kindInfo struct {
	// mix kinds treat intensity as the 0..1 blend between source and result.
	mix       bool
	intensity float64
	apply     func(src *image.NRGBA, v float64) *image.NRGBA
}

var kinds = map[Kind]kindInfo{
	KindBrightness: {intensity: 0, apply: matrixOf(BrightnessMatrix)},
	KindContrast:   {intensity: 1, apply: matrixOf(ContrastMatrix)},
	KindSaturation: {intensity: 1, apply: matrixOf(SaturationMatrix)},
	KindSepia:      {intensity: 1, apply: matrixOf(SepiaMatrix)},
	KindWarmth:     {intensity: 0, apply: matrixOf(WarmthMatrix)},
	KindTint:       {intensity: 0, apply: matrixOf(TintMatrix)},
	KindGrayscale:  {mix: true, intensity: 1, apply: fixed(GrayscaleMatrix().Apply)},
	KindInvert:     {mix: true, intensity: 1, apply: fixed(InvertMatrix().Apply)},
	KindCool:       {mix: true, intensity: 1, apply: fixed(CoolMatrix().Apply)},
	KindWarm:       {mix: true, intensity: 1, apply: fixed(WarmMatrix().Apply)},
	KindVintage:    {mix: true, intensity: 1, apply: fixed(Vintage)},
	KindDramatic:   {mix: true, intensity: 1, apply: fixed(Dramatic)},
	KindFade:       {mix: true, intensity: 1, apply: fixed(Fade)},
	KindNoir:       {mix: true, intensity: 1, apply: fixed(Noir)},
	KindVignette:   {intensity: 0.5, apply: Vignette},
	KindGrain:      {intensity: 0.5, apply: Grain},
	KindSharpen:    {intensity: 0.5, apply: Sharpen},
	KindBlur: {intensity: 5, apply: func(src *image.NRGBA, v float64) *image.NRGBA {
		return imaging.BoxBlur(src, int(v))
	}},
}

func matrixOf(build func(float64) ColorMatrix) func(*image.NRGBA, float64) *image.NRGBA {
	return func(src *image.NRGBA, v float64) *image.NRGBA {
		return build(v).Apply(src)
	}
}

func fixed(fn func(*image.NRGBA) *image.NRGBA) func(*image.NRGBA, float64) *image.NRGBA {
	return func(src *image.NRGBA, _ float64) *image.NRGBA {
		return fn(src)
	}
}

// Filter is one entry of a clip's ordered filter chain.
type Filter struct {
	ID        int     `yaml:"id"`
	Kind      Kind    `yaml:"kind"`
	Intensity float64 `yaml:"intensity"`
}

// ParseKind validates a kind name.
func ParseKind(name string) (Kind, error) {
	k := Kind(name)
	if _, ok := kinds[k]; !ok {
		return "", fmt.Errorf("unknown filter %q", name)
	}
	return k, nil
}

// Kinds lists every supported filter kind in name order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DefaultIntensity returns the neutral-or-typical intensity for kind.
func DefaultIntensity(kind Kind) float64 {
	return kinds[kind].intensity
}

// Apply runs a single filter over src.
func Apply(src *image.NRGBA, f Filter) (*image.NRGBA, error) {
	info, ok := kinds[f.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown filter %q", f.Kind)
	}

	if !info.mix {
		return info.apply(src, f.Intensity), nil
	}

	amount := clamp01(f.Intensity)
	switch amount {
	case 0:
		return imaging.Clone(src), nil
	case 1:
		return info.apply(src, 1), nil
	}
	return mix(src, info.apply(src, 1), amount), nil
}

// ApplyChain runs filters over src in list order.
func ApplyChain(src *image.NRGBA, filters []Filter) (*image.NRGBA, error) {
	if len(filters) == 0 {
		return imaging.Clone(src), nil
	}

	out := src
	for _, f := range filters {
		next, err := Apply(out, f)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", f.ID, err)
		}
		out = next
	}
	return out, nil
}

func mix(a, b *image.NRGBA, w float64) *image.NRGBA {
	dst := imaging.Clone(a)
	for i := range dst.Pix {
		dst.Pix[i] = imaging.Lerp(a.Pix[i], b.Pix[i], w)
	}
	return dst
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
