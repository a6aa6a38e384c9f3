package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/keagan/vortex/internal/imaging"
	"github.com/keagan/vortex/internal/pipeline"
	"github.com/keagan/vortex/pkg/util"
)

// rawVideoArgs decodes input to RGBA rawvideo on stdout, letterboxed to
// width x height.
func rawVideoArgs(input string, seek time.Duration, width, height int, fps float64, frames int) []string {
	var args []string
	if seek > 0 {
		args = append(args, "-ss", util.FormatDuration(seek))
	}
	args = append(args, "-i", input, "-map", "0:v:0", "-an", "-sn")

	vf := NewFilterBuilder().FPS(fps).Fit(width, height).Format(pixelFormat).Build()
	args = append(args, "-vf", vf)
	if frames > 0 {
		args = append(args, "-frames:v", fmt.Sprintf("%d", frames))
	}
	return append(args, "-f", "rawvideo", "-pix_fmt", pixelFormat, "pipe:1")
}

// Frame decodes the picture at position at. It implements
// compositor.FrameSource.
func (e *Executor) Frame(ctx context.Context, source string, at time.Duration, width, height int) (*image.NRGBA, error) {
	p, err := e.Start(ctx, rawVideoArgs(source, at, width, height, 0, 1), false)
	if err != nil {
		return nil, err
	}

	img := imaging.New(width, height)
	_, readErr := io.ReadFull(p.Stdout, img.Pix)
	if readErr != nil {
		_ = p.Kill()
	}
	if err := p.Wait(); err != nil && readErr == nil {
		return nil, fmt.Errorf("frame extraction failed: %w", err)
	}
	if readErr != nil {
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("no frame at %s in %s", at, source)
		}
		return nil, fmt.Errorf("failed to read frame: %w", readErr)
	}
	return img, nil
}

// FrameReader streams decoded frames of one video at a fixed rate. It
// implements pipeline.FrameDecoder.
type FrameReader struct {
	proc   *Process
	r      *bufio.Reader
	width  int
	height int
	fps    float64
	n      int
	done   bool
}

// OpenFrames starts decoding input at fps, scaled to width x height.
func (e *Executor) OpenFrames(ctx context.Context, input string, width, height int, fps float64) (*FrameReader, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate %v", fps)
	}
	p, err := e.Start(ctx, rawVideoArgs(input, 0, width, height, fps, 0), false)
	if err != nil {
		return nil, err
	}
	return &FrameReader{
		proc:   p,
		r:      bufio.NewReaderSize(p.Stdout, width*height*4),
		width:  width,
		height: height,
		fps:    fps,
	}, nil
}

// Next returns the next frame, or io.EOF after the last one.
func (f *FrameReader) Next(ctx context.Context) (pipeline.Frame, error) {
	if f.done {
		return pipeline.Frame{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return pipeline.Frame{}, err
	}

	img := imaging.New(f.width, f.height)
	if _, err := io.ReadFull(f.r, img.Pix); err != nil {
		f.done = true
		if errors.Is(err, io.EOF) {
			if werr := f.proc.Wait(); werr != nil {
				return pipeline.Frame{}, werr
			}
			return pipeline.Frame{}, io.EOF
		}
		_ = f.proc.Kill()
		return pipeline.Frame{}, fmt.Errorf("failed to read frame %d: %w", f.n, err)
	}

	pts := time.Duration(float64(f.n) / f.fps * float64(time.Second))
	f.n++
	return pipeline.Frame{Image: img, PTS: pts}, nil
}

// Close stops the decoder.
func (f *FrameReader) Close() error {
	if f.done {
		return f.proc.Wait()
	}
	f.done = true
	return f.proc.Kill()
}
