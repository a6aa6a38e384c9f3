// Package imaging holds the frame buffer helpers shared by the effect,
// transition, background and overlay stages. Every frame is an *image.NRGBA
// whose bounds start at the origin.
package imaging

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// New allocates a transparent frame of the given size.
func New(width, height int) *image.NRGBA {
	return image.NewNRGBA(image.Rect(0, 0, width, height))
}

// Clone returns a deep copy of src rebased to the origin.
func Clone(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := New(b.Dx(), b.Dy())

	if n, ok := src.(*image.NRGBA); ok {
		rowLen := b.Dx() * 4
		for y := 0; y < b.Dy(); y++ {
			si := n.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowLen], n.Pix[si:si+rowLen])
		}
		return dst
	}

	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// Resize scales src to width x height with bilinear filtering. A frame that
// already has the requested size is copied unchanged.
func Resize(src *image.NRGBA, width, height int) *image.NRGBA {
	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return Clone(src)
	}
	return Clone(resize.Resize(uint(width), uint(height), src, resize.Bilinear))
}

// SameSize reports whether two frames have identical dimensions.
func SameSize(a, b image.Image) bool {
	return a.Bounds().Dx() == b.Bounds().Dx() && a.Bounds().Dy() == b.Bounds().Dy()
}

// Fill paints every pixel of img with c.
func Fill(img *image.NRGBA, c color.NRGBA) {
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
}

// Solid returns a frame filled with c.
func Solid(width, height int, c color.NRGBA) *image.NRGBA {
	img := New(width, height)
	Fill(img, c)
	return img
}

// BoxBlur applies a separable box blur of the given radius to all four
// channels. Samples outside the frame are ignored, so edges average over
// fewer pixels. A radius <= 0 returns an unblurred copy.
func BoxBlur(src *image.NRGBA, radius int) *image.NRGBA {
	if radius <= 0 {
		return Clone(src)
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	base := Clone(src)
	tmp := New(w, h)
	out := New(w, h)

	// horizontal
	for y := 0; y < h; y++ {
		row := base.Pix[y*base.Stride:]
		dstRow := tmp.Pix[y*tmp.Stride:]
		blurLine(row, dstRow, w, 4, radius)
	}

	// vertical
	col := make([]uint8, h*4)
	colOut := make([]uint8, h*4)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			copy(col[y*4:y*4+4], tmp.Pix[y*tmp.Stride+x*4:y*tmp.Stride+x*4+4])
		}
		blurLine(col, colOut, h, 4, radius)
		for y := 0; y < h; y++ {
			copy(out.Pix[y*out.Stride+x*4:y*out.Stride+x*4+4], colOut[y*4:y*4+4])
		}
	}

	return out
}

// blurLine runs a sliding-window average over n pixels of stride bytes.
func blurLine(src, dst []uint8, n, stride, radius int) {
	var sum [4]int
	count := 0

	// prime the window with [0, radius]
	for i := 0; i <= radius && i < n; i++ {
		for c := 0; c < 4; c++ {
			sum[c] += int(src[i*stride+c])
		}
		count++
	}

	for i := 0; i < n; i++ {
		for c := 0; c < 4; c++ {
			dst[i*stride+c] = uint8((sum[c] + count/2) / count)
		}

		if out := i - radius; out >= 0 {
			for c := 0; c < 4; c++ {
				sum[c] -= int(src[out*stride+c])
			}
			count--
		}
		if in := i + radius + 1; in < n {
			for c := 0; c < 4; c++ {
				sum[c] += int(src[in*stride+c])
			}
			count++
		}
	}
}

// Load decodes a PNG or JPEG file into a frame.
func Load(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return Clone(img), nil
}

// SavePNG writes img to path as PNG.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// Lerp blends a towards b by weight w in [0,1] per channel.
func Lerp(a, b uint8, w float64) uint8 {
	return ClampByte(float64(a)*(1-w) + float64(b)*w)
}

// ClampByte rounds v and clamps it to [0,255].
func ClampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
