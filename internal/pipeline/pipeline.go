// Package pipeline runs exports: decode, per-frame compositing, encode and
// mux, reported as a stream of States.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keagan/vortex/internal/progress"
)

// Progress weights: video covers 10..90, audio passthrough 90..95.
const (
	videoBase  = 10.0
	videoSpan  = 80.0
	audioBase  = videoBase + videoSpan
	audioSpan  = 5.0
	audioEnd   = audioBase + audioSpan
	outputMIME = "video/mp4"
)

// Options configures an Exporter.
type Options struct {
	// Store receives finished exports; nil skips registration.
	Store MediaStore
	// KeepPartialOutput leaves the output file behind on error or cancel.
	KeepPartialOutput bool
}

// Request is one export.
type Request struct {
	Input  string
	Output string
	Config ExportConfig
	// Source replaces Backend.OpenSource(Input) when set. The export closes it.
	Source Source
	Hook   FrameHook
}

// Exporter runs exports against a Backend.
type Exporter struct {
	logger  zerolog.Logger
	backend Backend
	opts    Options
}

// NewExporter creates an exporter.
func NewExporter(logger zerolog.Logger, backend Backend, opts Options) *Exporter {
	return &Exporter{
		logger:  logger.With().Str("component", "pipeline").Logger(),
		backend: backend,
		opts:    opts,
	}
}

// Export is a running export job.
type Export struct {
	ID     string
	Output string

	stream    *progress.Stream[State]
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}

	mu    sync.Mutex
	final State

	// claimed is set by the worker once a muxer exists for Output. Until
	// then a file at Output belongs to someone else and is never removed.
	claimed bool
}

// Start runs req on a background worker.
func (x *Exporter) Start(ctx context.Context, req Request) *Export {
	ctx, cancel := context.WithCancel(ctx)
	job := &Export{
		ID:     uuid.NewString(),
		Output: req.Output,
		stream: progress.New[State](),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(job.done)
		defer cancel()
		final := x.run(ctx, job, req, job.stream.Publish)
		job.mu.Lock()
		job.final = final
		job.mu.Unlock()
		job.stream.Finish(final)
	}()
	return job
}

// Run exports synchronously, calling onState for every state including the
// terminal one, which is also returned.
func (x *Exporter) Run(ctx context.Context, req Request, onState func(State)) State {
	job := &Export{ID: uuid.NewString(), Output: req.Output}
	publish := func(s State) {
		if onState != nil {
			onState(s)
		}
	}
	final := x.run(ctx, job, req, publish)
	publish(final)
	return final
}

// Next waits for the next state. It returns false after the terminal state.
func (e *Export) Next(ctx context.Context) (State, bool) { return e.stream.Next(ctx) }

// Progress exposes the underlying stream.
func (e *Export) Progress() *progress.Stream[State] { return e.stream }

// Cancel asks the export to stop. The worker notices within one loop
// iteration.
func (e *Export) Cancel() {
	e.cancelled.Store(true)
	if e.cancel != nil {
		e.cancel()
	}
}

// Wait blocks until the export ends and returns its terminal state.
func (e *Export) Wait() State {
	<-e.done
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.final
}

// Done is closed when the worker has exited.
func (e *Export) Done() <-chan struct{} { return e.done }

func (e *Export) stopRequested(ctx context.Context) bool {
	return e.cancelled.Load() || ctx.Err() != nil
}

// run owns every resource of the export and releases them before returning.
func (x *Exporter) run(ctx context.Context, job *Export, req Request, publish func(State)) (final State) {
	log := x.logger.With().Str("job", job.ID).Str("output", req.Output).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("export panicked")
			final = x.fail(log, job, codecErr("export", fmt.Errorf("panic: %v", r)))
		}
	}()

	var last float64
	report := func(pct float64, stage string) {
		pct = max(last, min(pct, 100))
		last = pct
		publish(Encoding{Percent: pct, Stage: stage})
	}

	publish(Preparing{})
	log.Info().Str("input", req.Input).Msg("export started")

	err := x.export(ctx, job, req, log, publish, report)
	switch {
	case err == nil:
	case errors.Is(err, ErrCancelled) || (ctx.Err() != nil && errors.Is(err, ctx.Err())):
		log.Info().Msg("export cancelled")
		x.removePartial(log, job)
		return Cancelled{}
	default:
		return x.fail(log, job, err)
	}

	info, err := os.Stat(req.Output)
	if err != nil {
		return x.fail(log, job, codecErr("stat output", err))
	}

	if x.opts.Store != nil {
		if _, err := x.opts.Store.Register(ctx, req.Output, filepath.Base(req.Output), outputMIME); err != nil {
			log.Warn().Err(err).Msg("failed to register export in media store")
		}
	}

	report(100, "done")
	log.Info().Int64("bytes", info.Size()).Msg("export completed")
	return Completed{OutputPath: req.Output, FileSize: info.Size()}
}

func (x *Exporter) fail(log zerolog.Logger, job *Export, err error) State {
	log.Error().Err(err).Msg("export failed")
	x.removePartial(log, job)
	return Failed{Message: err.Error(), Kind: KindOf(err)}
}

func (x *Exporter) removePartial(log zerolog.Logger, job *Export) {
	if x.opts.KeepPartialOutput || !job.claimed || job.Output == "" {
		return
	}
	if err := os.Remove(job.Output); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to remove partial output")
	}
}

func (x *Exporter) export(ctx context.Context, job *Export, req Request, log zerolog.Logger, publish func(State), report func(float64, string)) (err error) {
	src := req.Source
	if src == nil {
		src, err = x.backend.OpenSource(ctx, req.Input)
		if err != nil {
			return sourceErr("open source", err)
		}
	}
	defer closeLogged(log, "source", src)

	video, audio := pickTracks(src.Tracks())
	if video == nil {
		return sourceErr("prepare", ErrNoVideoTrack)
	}

	cfg := req.Config
	width, height := cfg.Size()
	fps := cfg.frameRate()
	duration := src.Duration()

	dec, err := src.OpenVideo(ctx, *video, width, height, fps)
	if err != nil {
		return codecErr("open decoder", err)
	}
	defer closeLogged(log, "decoder", dec)

	enc, err := x.backend.NewEncoder(ctx, EncoderConfig{
		Width:   width,
		Height:  height,
		FPS:     fps,
		Bitrate: cfg.Bitrate(),
		Preset:  cfg.Preset,
	})
	if err != nil {
		return codecErr("open encoder", err)
	}
	defer closeLogged(log, "encoder", enc)

	var mux Muxer
	defer func() {
		if mux != nil {
			closeLogged(log, "muxer", mux)
		}
	}()

	writeVideo := func(pkts []Packet) error {
		for _, p := range pkts {
			if mux == nil {
				m, err := x.openMuxer(ctx, job, enc.Format(), audio)
				if err != nil {
					return err
				}
				mux = m
			}
			if err := mux.WriteVideo(p); err != nil {
				return codecErr("write video", err)
			}
		}
		return nil
	}

	log.Info().
		Int("width", width).
		Int("height", height).
		Float64("fps", fps).
		Int("bitrate", cfg.Bitrate()).
		Dur("duration", duration).
		Bool("audio", audio != nil).
		Msg("encoding")

	report(videoBase, "video")
	for {
		if job.stopRequested(ctx) {
			return ErrCancelled
		}

		frame, err := dec.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return codecErr("decode", err)
		}

		if req.Hook != nil {
			img, err := req.Hook(ctx, frame.Image, frame.PTS)
			if err != nil {
				return codecErr("composite", err)
			}
			frame.Image = img
		}

		pkts, err := enc.Encode(ctx, frame)
		if err != nil {
			return codecErr("encode", err)
		}
		if err := writeVideo(pkts); err != nil {
			return err
		}

		if duration > 0 {
			report(min(audioBase, videoBase+float64(frame.PTS)/float64(duration)*videoSpan), "video")
		}
	}

	pkts, err := enc.Flush(ctx)
	if err != nil {
		return codecErr("flush encoder", err)
	}
	if err := writeVideo(pkts); err != nil {
		return err
	}
	if mux == nil {
		return codecErr("encode", ErrNoOutput)
	}
	report(audioBase, "video")

	if audio != nil {
		if err := x.copyAudio(ctx, job, src, *audio, mux, report, log); err != nil {
			return err
		}
	}
	report(audioEnd, "audio")

	publish(Finalizing{})
	if err := mux.Stop(); err != nil {
		return codecErr("finalize output", err)
	}
	return nil
}

func (x *Exporter) openMuxer(ctx context.Context, job *Export, format StreamFormat, audio *TrackInfo) (Muxer, error) {
	mux, err := x.backend.NewMuxer(ctx, job.Output)
	if err != nil {
		return nil, codecErr("open muxer", err)
	}
	job.claimed = true
	fail := func(op string, err error) (Muxer, error) {
		_ = mux.Close()
		return nil, codecErr(op, err)
	}
	if err := mux.AddVideoTrack(format); err != nil {
		return fail("add video track", err)
	}
	if audio != nil {
		if err := mux.AddAudioTrack(*audio); err != nil {
			return fail("add audio track", err)
		}
	}
	if err := mux.Start(); err != nil {
		return fail("start muxer", err)
	}
	return mux, nil
}

func (x *Exporter) copyAudio(ctx context.Context, job *Export, src Source, track TrackInfo, mux Muxer, report func(float64, string), log zerolog.Logger) error {
	r, err := src.OpenAudio(ctx, track)
	if err != nil {
		return codecErr("open audio", err)
	}
	defer closeLogged(log, "audio reader", r)

	duration := track.Duration
	if duration <= 0 {
		duration = src.Duration()
	}
	for {
		if job.stopRequested(ctx) {
			return ErrCancelled
		}
		p, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return codecErr("read audio", err)
		}
		if err := mux.WriteAudio(p); err != nil {
			return codecErr("write audio", err)
		}
		if duration > 0 {
			report(min(audioEnd, audioBase+float64(p.PTS)/float64(duration)*audioSpan), "audio")
		}
	}
}

func pickTracks(tracks []TrackInfo) (video, audio *TrackInfo) {
	for i := range tracks {
		switch {
		case tracks[i].Kind == VideoTrack && video == nil:
			video = &tracks[i]
		case tracks[i].Kind == AudioTrack && audio == nil:
			audio = &tracks[i]
		}
	}
	return video, audio
}

func closeLogged(log zerolog.Logger, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Str("resource", what).Msg("release failed")
	}
}
