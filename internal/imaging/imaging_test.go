package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checker(w, h int) *image.NRGBA {
	img := New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			img.SetNRGBA(x, y, color.NRGBA{v, v, v, 255})
		}
	}
	return img
}

func TestCloneIsDeep(t *testing.T) {
	src := checker(4, 4)
	dst := Clone(src)
	require.Equal(t, src.Pix, dst.Pix)

	dst.Pix[0] = 7
	assert.NotEqual(t, src.Pix[0], dst.Pix[0])
}

func TestCloneSubImageRebases(t *testing.T) {
	src := checker(8, 8)
	sub := src.SubImage(image.Rect(2, 2, 6, 6))
	dst := Clone(sub)

	assert.Equal(t, image.Rect(0, 0, 4, 4), dst.Bounds())
	assert.Equal(t, src.NRGBAAt(2, 2), dst.NRGBAAt(0, 0))
}

func TestResizeSameSizeIsExact(t *testing.T) {
	src := checker(6, 5)
	assert.Equal(t, src.Pix, Resize(src, 6, 5).Pix)
}

func TestResizeChangesBounds(t *testing.T) {
	out := Resize(checker(10, 10), 20, 5)
	assert.Equal(t, 20, out.Bounds().Dx())
	assert.Equal(t, 5, out.Bounds().Dy())
}

func TestBoxBlur(t *testing.T) {
	t.Run("zero radius copies", func(t *testing.T) {
		src := checker(5, 5)
		assert.Equal(t, src.Pix, BoxBlur(src, 0).Pix)
	})

	t.Run("uniform frame unchanged", func(t *testing.T) {
		src := Solid(9, 7, color.NRGBA{10, 120, 200, 255})
		assert.Equal(t, src.Pix, BoxBlur(src, 3).Pix)
	})

	t.Run("checker averages toward grey", func(t *testing.T) {
		out := BoxBlur(checker(16, 16), 2)
		c := out.NRGBAAt(8, 8)
		assert.InDelta(t, 127, int(c.R), 30)
	})
}

func TestClampByte(t *testing.T) {
	assert.Equal(t, uint8(0), ClampByte(-4))
	assert.Equal(t, uint8(255), ClampByte(300))
	assert.Equal(t, uint8(128), ClampByte(127.6))
}
