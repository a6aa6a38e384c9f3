package background

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keagan/vortex/internal/imaging"
)

// leftHalf marks the left half of a 2x1 mask as foreground.
func leftHalf() *Mask {
	return &Mask{Width: 2, Height: 1, Confidence: []float32{1, 0}}
}

type fixedSegmenter struct {
	mask *Mask
	err  error
}

func (s fixedSegmenter) Segment(context.Context, *image.NRGBA) (*Mask, error) {
	return s.mask, s.err
}

func TestMaskNearestNeighbour(t *testing.T) {
	m := &Mask{Width: 2, Height: 2, Confidence: []float32{0.1, 0.2, 0.3, 0.4}}

	assert.InDelta(t, 0.1, m.At(0, 0, 10, 10), 1e-6)
	assert.InDelta(t, 0.1, m.At(4, 4, 10, 10), 1e-6)
	assert.InDelta(t, 0.2, m.At(5, 0, 10, 10), 1e-6)
	assert.InDelta(t, 0.4, m.At(9, 9, 10, 10), 1e-6)
}

func TestTransparentAndSolid(t *testing.T) {
	frame := imaging.Solid(8, 4, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	out, err := Apply(frame, leftHalf(), Options{Mode: Transparent})
	require.NoError(t, err)
	assert.Equal(t, frame.NRGBAAt(1, 1), out.NRGBAAt(1, 1))
	assert.Equal(t, color.NRGBA{}, out.NRGBAAt(6, 1))

	green := color.NRGBA{G: 255, A: 255}
	out, err = Apply(frame, leftHalf(), Options{Mode: SolidColor, Color: green})
	require.NoError(t, err)
	assert.Equal(t, frame.NRGBAAt(3, 0), out.NRGBAAt(3, 0))
	assert.Equal(t, green, out.NRGBAAt(4, 0))
}

func TestThresholdIsStrict(t *testing.T) {
	frame := imaging.Solid(2, 2, color.NRGBA{R: 200, A: 255})
	mask := &Mask{Width: 1, Height: 1, Confidence: []float32{0.5}}

	out, err := Apply(frame, mask, Options{Mode: Transparent})
	require.NoError(t, err)
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).A)
}

func TestImageModeBlendsByConfidence(t *testing.T) {
	frame := imaging.Solid(4, 4, color.NRGBA{R: 200, A: 255})
	bg := imaging.Solid(2, 2, color.NRGBA{B: 100, A: 255})
	mask := &Mask{Width: 1, Height: 1, Confidence: []float32{0.25}}

	out, err := Apply(frame, mask, Options{Mode: Image, Image: bg})
	require.NoError(t, err)
	px := out.NRGBAAt(2, 2)
	assert.Equal(t, uint8(50), px.R)
	assert.InDelta(t, 75, int(px.B), 1)
	assert.Equal(t, uint8(255), px.A)
}

func TestImageModeWithoutImageCopiesFrame(t *testing.T) {
	frame := imaging.Solid(3, 3, color.NRGBA{R: 7, A: 255})
	out, err := Apply(frame, leftHalf(), Options{Mode: Image})
	require.NoError(t, err)
	assert.Equal(t, frame.Pix, out.Pix)
}

func TestImageModeLoadsFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bg.png")
	require.NoError(t, imaging.SavePNG(path, imaging.Solid(2, 2, color.NRGBA{B: 255, A: 255})))

	frame := imaging.Solid(4, 2, color.NRGBA{R: 255, A: 255})
	out, err := Apply(frame, leftHalf(), Options{Mode: Image, ImagePath: path})
	require.NoError(t, err)
	assert.Equal(t, uint8(255), out.NRGBAAt(0, 0).R)
	assert.GreaterOrEqual(t, out.NRGBAAt(3, 0).B, uint8(250))
}

func TestBlurKeepsForeground(t *testing.T) {
	frame := imaging.New(10, 10)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			frame.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 25), A: 255})
		}
	}
	mask := &Mask{Width: 1, Height: 1, Confidence: []float32{1}}

	out, err := Apply(frame, mask, Options{Mode: Blur, BlurRadius: 3})
	require.NoError(t, err)
	assert.Equal(t, frame.Pix, out.Pix)

	mask.Confidence[0] = 0
	out, err = Apply(frame, mask, Options{Mode: Blur})
	require.NoError(t, err)
	assert.NotEqual(t, frame.NRGBAAt(0, 0).R, out.NRGBAAt(0, 0).R)
}

func TestApplyErrors(t *testing.T) {
	frame := imaging.New(2, 2)

	_, err := Apply(frame, &Mask{}, Options{Mode: Transparent})
	assert.ErrorIs(t, err, ErrEmptyMask)

	_, err = Apply(frame, leftHalf(), Options{Mode: "sparkle"})
	assert.Error(t, err)
}

func TestProcess(t *testing.T) {
	frame := imaging.Solid(4, 2, color.NRGBA{R: 9, A: 255})

	out, err := Process(context.Background(), fixedSegmenter{mask: leftHalf()}, frame, Options{Mode: Transparent})
	require.NoError(t, err)
	assert.Equal(t, uint8(0), out.NRGBAAt(3, 1).A)

	boom := errors.New("model unavailable")
	_, err = Process(context.Background(), fixedSegmenter{err: boom}, frame, Options{Mode: Transparent})
	assert.ErrorIs(t, err, boom)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("SOLID_COLOR")
	require.NoError(t, err)
	assert.Equal(t, SolidColor, m)

	_, err = ParseMode("chroma")
	assert.Error(t, err)
	assert.Len(t, Modes(), 4)
}
