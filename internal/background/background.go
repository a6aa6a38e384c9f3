// Package background replaces the background of a frame using a foreground
// confidence mask supplied by a Segmenter.
package background

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/keagan/vortex/internal/imaging"
)

// Mode selects what replaces the background.
type Mode string

const (
	Transparent Mode = "transparent"
	SolidColor  Mode = "solid_color"
	Blur        Mode = "blur"
	Image       Mode = "image"
)

// DefaultBlurRadius is used when Options.BlurRadius is zero.
const DefaultBlurRadius = 25

// ForegroundThreshold is the confidence above which a pixel counts as
// foreground in the hard-edged modes.
const ForegroundThreshold = 0.5

var ErrEmptyMask = errors.New("segmentation mask is empty")

// Mask holds per-cell foreground confidence in [0,1], row-major, at a
// resolution independent of the frame it is applied to.
type Mask struct {
	Width      int
	Height     int
	Confidence []float32
}

// NewMask allocates an all-background mask.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Confidence: make([]float32, width*height)}
}

// At returns the confidence of the cell nearest to frame pixel (x, y) of a
// frame sized w x h.
func (m *Mask) At(x, y, w, h int) float64 {
	mx := min(x*m.Width/w, m.Width-1)
	my := min(y*m.Height/h, m.Height-1)
	return float64(m.Confidence[my*m.Width+mx])
}

func (m *Mask) valid() bool {
	return m != nil && m.Width > 0 && m.Height > 0 && len(m.Confidence) >= m.Width*m.Height
}

// Segmenter produces a foreground mask for a frame.
type Segmenter interface {
	Segment(ctx context.Context, frame *image.NRGBA) (*Mask, error)
}

// Options configures background replacement for a clip.
type Options struct {
	Mode       Mode        `yaml:"mode"`
	Color      color.NRGBA `yaml:"-"`
	BlurRadius int         `yaml:"blur_radius"`
	ImagePath  string      `yaml:"image_path"`

	// Image is the replacement for Image mode, loaded from ImagePath when nil.
	Image *image.NRGBA `yaml:"-"`
}

// ParseMode accepts names like "blur" or "SOLID_COLOR".
func ParseMode(name string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(name)))
	switch m {
	case Transparent, SolidColor, Blur, Image:
		return m, nil
	}
	return "", fmt.Errorf("unknown background mode %q", name)
}

// Modes lists every background mode.
func Modes() []Mode {
	return []Mode{Transparent, SolidColor, Blur, Image}
}

// Apply composites frame against the background chosen by opts using mask.
// The input frame is never modified.
func Apply(frame *image.NRGBA, mask *Mask, opts Options) (*image.NRGBA, error) {
	if !mask.valid() {
		return nil, ErrEmptyMask
	}

	switch opts.Mode {
	case Transparent:
		return threshold(frame, mask, color.NRGBA{}), nil
	case SolidColor:
		return threshold(frame, mask, opts.Color), nil
	case Blur:
		radius := opts.BlurRadius
		if radius <= 0 {
			radius = DefaultBlurRadius
		}
		return blend(frame, mask, imaging.BoxBlur(frame, radius)), nil
	case Image:
		bg, err := opts.image()
		if err != nil {
			return nil, err
		}
		if bg == nil {
			return imaging.Clone(frame), nil
		}
		w, h := frame.Bounds().Dx(), frame.Bounds().Dy()
		return blend(frame, mask, imaging.Resize(bg, w, h)), nil
	}
	return nil, fmt.Errorf("unknown background mode %q", opts.Mode)
}

// Process segments frame and applies opts.
func Process(ctx context.Context, seg Segmenter, frame *image.NRGBA, opts Options) (*image.NRGBA, error) {
	mask, err := seg.Segment(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("segmentation failed: %w", err)
	}
	return Apply(frame, mask, opts)
}

func (o Options) image() (*image.NRGBA, error) {
	if o.Image != nil || o.ImagePath == "" {
		return o.Image, nil
	}
	img, err := imaging.Load(o.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load background image: %w", err)
	}
	return img, nil
}

// threshold keeps foreground pixels and paints the rest with bg.
func threshold(frame *image.NRGBA, mask *Mask, bg color.NRGBA) *image.NRGBA {
	dst := imaging.Clone(frame)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.At(x, y, w, h) > ForegroundThreshold {
				continue
			}
			i := dst.PixOffset(x, y)
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = bg.R, bg.G, bg.B, bg.A
		}
	}
	return dst
}

// blend mixes fg over bg weighted by confidence. The result is opaque.
func blend(fg *image.NRGBA, mask *Mask, bg *image.NRGBA) *image.NRGBA {
	dst := imaging.New(fg.Bounds().Dx(), fg.Bounds().Dy())
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := mask.At(x, y, w, h)
			c = max(0, min(1, c))
			fi := fg.PixOffset(x, y)
			bi := bg.PixOffset(x, y)
			di := dst.PixOffset(x, y)
			for k := 0; k < 3; k++ {
				dst.Pix[di+k] = uint8(float64(fg.Pix[fi+k])*c + float64(bg.Pix[bi+k])*(1-c))
			}
			dst.Pix[di+3] = 255
		}
	}
	return dst
}
