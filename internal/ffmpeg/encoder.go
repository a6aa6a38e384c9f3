package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/keagan/vortex/internal/imaging"
	"github.com/keagan/vortex/internal/pipeline"
)

const readChunk = 64 << 10

// Encoder feeds RGBA frames to libx264 and collects the Annex-B H.264
// stream it produces. It implements pipeline.Encoder.
type Encoder struct {
	proc   *Process
	cfg    pipeline.EncoderConfig
	format pipeline.StreamFormat

	mu      sync.Mutex
	pending [][]byte
	readErr error
	done    chan struct{}

	lastPTS  time.Duration
	flushed  bool
	finished bool
}

// NewEncoder starts an encoder process.
func (e *Executor) NewEncoder(ctx context.Context, cfg pipeline.EncoderConfig) (*Encoder, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.FPS <= 0 {
		return nil, fmt.Errorf("invalid encoder config %dx%d@%v", cfg.Width, cfg.Height, cfg.FPS)
	}
	preset := cfg.Preset
	if preset == "" {
		preset = e.preset
	}

	args := []string{
		"-f", "rawvideo",
		"-pix_fmt", pixelFormat,
		"-s", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-framerate", fmt.Sprintf("%g", cfg.FPS),
		"-i", "pipe:0",
		"-an",
		"-c:v", DefaultVideoCodec,
		"-preset", preset,
		"-pix_fmt", "yuv420p",
		"-g", fmt.Sprintf("%d", max(1, int(cfg.FPS*2))),
	}
	if cfg.Bitrate > 0 {
		args = append(args,
			"-b:v", fmt.Sprintf("%d", cfg.Bitrate),
			"-maxrate", fmt.Sprintf("%d", cfg.Bitrate),
			"-bufsize", fmt.Sprintf("%d", cfg.Bitrate*2),
		)
	}
	args = append(args, "-f", "h264", "pipe:1")

	p, err := e.Start(ctx, args, true)
	if err != nil {
		return nil, err
	}

	enc := &Encoder{
		proc: p,
		cfg:  cfg,
		format: pipeline.StreamFormat{
			Codec:   "h264",
			Width:   cfg.Width,
			Height:  cfg.Height,
			FPS:     cfg.FPS,
			Bitrate: cfg.Bitrate,
		},
		done: make(chan struct{}),
	}
	go enc.collect()
	return enc, nil
}

// collect queues stdout without ever blocking ffmpeg.
func (enc *Encoder) collect() {
	defer close(enc.done)
	buf := make([]byte, readChunk)
	for {
		n, err := enc.proc.Stdout.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			enc.mu.Lock()
			enc.pending = append(enc.pending, chunk)
			enc.mu.Unlock()
		}
		if err != nil {
			if err != io.EOF {
				enc.mu.Lock()
				enc.readErr = err
				enc.mu.Unlock()
			}
			return
		}
	}
}

func (enc *Encoder) take(pts time.Duration) ([]pipeline.Packet, error) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	if enc.readErr != nil {
		return nil, enc.readErr
	}
	out := make([]pipeline.Packet, len(enc.pending))
	for i, b := range enc.pending {
		out[i] = pipeline.Packet{Data: b, PTS: pts}
	}
	enc.pending = nil
	return out, nil
}

// Encode writes one frame and returns whatever output is ready.
func (enc *Encoder) Encode(ctx context.Context, frame pipeline.Frame) ([]pipeline.Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := frame.Image
	if b := img.Bounds(); b.Dx() != enc.cfg.Width || b.Dy() != enc.cfg.Height {
		img = imaging.Resize(img, enc.cfg.Width, enc.cfg.Height)
	}
	if _, err := enc.proc.Stdin.Write(img.Pix); err != nil {
		return nil, fmt.Errorf("failed to write frame: %w", err)
	}
	enc.lastPTS = frame.PTS
	return enc.take(frame.PTS)
}

// Flush ends the input and returns the rest of the stream.
func (enc *Encoder) Flush(ctx context.Context) ([]pipeline.Packet, error) {
	if enc.flushed {
		return nil, nil
	}
	enc.flushed = true
	_ = enc.proc.Stdin.Close()

	select {
	case <-enc.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := enc.proc.Wait(); err != nil {
		return nil, err
	}
	enc.finished = true
	return enc.take(enc.lastPTS)
}

// Format reports the output stream format.
func (enc *Encoder) Format() pipeline.StreamFormat { return enc.format }

// Close releases the encoder process.
func (enc *Encoder) Close() error {
	if enc.finished {
		return nil
	}
	enc.flushed, enc.finished = true, true
	err := enc.proc.Kill()
	<-enc.done
	return err
}
