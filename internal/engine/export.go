package engine

import (
	"context"

	"github.com/keagan/vortex/internal/compositor"
	"github.com/keagan/vortex/internal/pipeline"
)

// ExportCallback receives every export state, the terminal one included.
type ExportCallback func(pipeline.State)

// Export renders the timeline to outputPath and blocks until the export
// ends. It reports success; failures are delivered to cb as a Failed state.
// Only one export runs at a time per engine.
func (e *Engine) Export(ctx context.Context, outputPath string, width, height int, fps float64, bitrate int, cb ExportCallback) bool {
	job, err := e.StartExport(ctx, outputPath, width, height, fps, bitrate)
	if err != nil {
		e.logger.Warn().Err(err).Msg("export rejected")
		if cb != nil {
			cb(pipeline.Failed{Message: err.Error(), Kind: pipeline.KindOf(err)})
		}
		return false
	}

	var final pipeline.State
	for {
		s, ok := job.Next(ctx)
		if !ok {
			break
		}
		if cb != nil {
			cb(s)
		}
		final = s
	}
	if final == nil || !final.Terminal() {
		// ctx ended before the worker did.
		job.Cancel()
		final = job.Wait()
		if cb != nil {
			cb(final)
		}
	}
	job.Wait()
	_, ok := final.(pipeline.Completed)
	return ok
}

// StartExport launches an export of a timeline snapshot and returns the
// running job. Zero width, height or fps fall back to the project's;
// a zero bitrate derives one from the frame size.
func (e *Engine) StartExport(ctx context.Context, outputPath string, width, height int, fps float64, bitrate int) (*pipeline.Export, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	if e.export != nil {
		select {
		case <-e.export.Done():
		default:
			return nil, ErrExportRunning
		}
	}

	p := e.project
	if width <= 0 || height <= 0 {
		width, height = p.Width, p.Height
	}
	if fps <= 0 {
		fps = p.FPS
	}

	scene := compositor.Scene{Project: p, Overlays: e.overlays}
	src := NewTimelineSource(e.logger, e.compositor, scene, e.mixer, e.opts.WorkDir, e.opts.Concurrency)

	cfg := pipeline.ExportConfig{
		Resolution:   pipeline.ResolutionFor(height),
		Quality:      e.opts.Quality,
		FPS:          fps,
		Width:        width,
		Height:       height,
		VideoBitrate: bitrate,
	}
	job := e.exporter.Start(ctx, pipeline.Request{Output: outputPath, Config: cfg, Source: src})
	e.export = job

	e.logger.Info().
		Str("job", job.ID).
		Str("output", outputPath).
		Int("width", width).
		Int("height", height).
		Float64("fps", fps).
		Int("bitrate", cfg.Bitrate()).
		Msg("export started")
	return job, nil
}

// CancelExport stops the running export, if any. The export notices within
// one frame.
func (e *Engine) CancelExport() {
	e.mu.Lock()
	job := e.export
	e.mu.Unlock()
	if job != nil {
		job.Cancel()
	}
}

// Exporting reports whether an export is running.
func (e *Engine) Exporting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.export == nil {
		return false
	}
	select {
	case <-e.export.Done():
		return false
	default:
		return true
	}
}
