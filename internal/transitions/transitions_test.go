package transitions

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keagan/vortex/internal/imaging"
)

func pattern(w, h int, seed uint8) *image.NRGBA {
	img := imaging.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x*7) + seed, G: uint8(y*11) + seed, B: seed, A: 255})
		}
	}
	return img
}

func TestEndpointsAreExact(t *testing.T) {
	from := pattern(32, 18, 10)
	to := pattern(32, 18, 200)

	for _, kind := range Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			start, err := Apply(from, to, 0, kind)
			require.NoError(t, err)
			assert.Equal(t, from.Pix, start.Pix, "progress 0 must be the outgoing frame")

			end, err := Apply(from, to, 1, kind)
			require.NoError(t, err)
			assert.Equal(t, to.Pix, end.Pix, "progress 1 must be the incoming frame")
		})
	}
}

func TestProgressIsClamped(t *testing.T) {
	from := pattern(8, 8, 0)
	to := pattern(8, 8, 90)

	below, err := Apply(from, to, -3, Fade)
	require.NoError(t, err)
	assert.Equal(t, from.Pix, below.Pix)

	above, err := Apply(from, to, 7, Fade)
	require.NoError(t, err)
	assert.Equal(t, to.Pix, above.Pix)
}

func TestIncomingFrameIsRescaled(t *testing.T) {
	from := imaging.Solid(40, 20, color.NRGBA{A: 255})
	to := imaging.Solid(10, 5, color.NRGBA{R: 255, A: 255})

	out, err := Apply(from, to, 1, WipeLeft)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), out.Bounds())
	assert.GreaterOrEqual(t, out.NRGBAAt(39, 19).R, uint8(250))
}

func TestFadeMidpoint(t *testing.T) {
	from := imaging.Solid(4, 4, color.NRGBA{R: 0, A: 255})
	to := imaging.Solid(4, 4, color.NRGBA{R: 200, A: 255})

	out, err := Apply(from, to, 0.5, Fade)
	require.NoError(t, err)
	assert.Equal(t, uint8(100), out.NRGBAAt(2, 2).R)
}

func TestDissolveIsDeterministic(t *testing.T) {
	from := pattern(24, 24, 0)
	to := pattern(24, 24, 128)

	a, err := Apply(from, to, 0.4, Dissolve)
	require.NoError(t, err)
	b, err := Apply(from, to, 0.4, Dissolve)
	require.NoError(t, err)
	assert.Equal(t, a.Pix, b.Pix)

	// roughly 40% of pixels come from the incoming frame
	incoming := 0
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			if a.NRGBAAt(x, y) == to.NRGBAAt(x, y) {
				incoming++
			}
		}
	}
	assert.InDelta(t, 0.4, float64(incoming)/(24*24), 0.1)
}

func TestWipeDirections(t *testing.T) {
	black := imaging.Solid(10, 10, color.NRGBA{A: 255})
	white := imaging.Solid(10, 10, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	tests := []struct {
		kind   Kind
		toAt   image.Point
		fromAt image.Point
	}{
		{WipeLeft, image.Pt(0, 5), image.Pt(9, 5)},
		{WipeRight, image.Pt(9, 5), image.Pt(0, 5)},
		{WipeUp, image.Pt(5, 0), image.Pt(5, 9)},
		{WipeDown, image.Pt(5, 9), image.Pt(5, 0)},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			out, err := Apply(black, white, 0.5, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, uint8(255), out.NRGBAAt(tt.toAt.X, tt.toAt.Y).R)
			assert.Equal(t, uint8(0), out.NRGBAAt(tt.fromAt.X, tt.fromAt.Y).R)
		})
	}
}

func TestSlideMovesBothFrames(t *testing.T) {
	from := pattern(10, 2, 0)
	to := pattern(10, 2, 100)

	out, err := Apply(from, to, 0.3, SlideLeft)
	require.NoError(t, err)
	assert.Equal(t, from.NRGBAAt(3, 0), out.NRGBAAt(0, 0))
	assert.Equal(t, to.NRGBAAt(0, 0), out.NRGBAAt(7, 0))

	out, err = Apply(from, to, 0.3, SlideRight)
	require.NoError(t, err)
	assert.Equal(t, to.NRGBAAt(7, 0), out.NRGBAAt(0, 0))
	assert.Equal(t, from.NRGBAAt(0, 0), out.NRGBAAt(3, 0))
}

func TestCircleOpenRevealsCenterFirst(t *testing.T) {
	black := imaging.Solid(20, 20, color.NRGBA{A: 255})
	white := imaging.Solid(20, 20, color.NRGBA{R: 255, A: 255})

	out, err := Apply(black, white, 0.3, CircleOpen)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), out.NRGBAAt(10, 10).R)
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).R)

	out, err = Apply(black, white, 0.3, CircleClose)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), out.NRGBAAt(10, 10).R)
	assert.Equal(t, uint8(255), out.NRGBAAt(0, 0).R)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("CIRCLE_OPEN")
	require.NoError(t, err)
	assert.Equal(t, CircleOpen, k)

	_, err = ParseKind("spin")
	assert.Error(t, err)

	_, err = Apply(pattern(2, 2, 0), pattern(2, 2, 0), 0.5, Kind("spin"))
	assert.Error(t, err)
}
