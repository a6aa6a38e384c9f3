package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/keagan/vortex/internal/pipeline"
)

// BackendOptions configures the export backend.
type BackendOptions struct {
	// WorkDir holds intermediate streams; empty means the system temp dir.
	WorkDir      string
	AudioBitrate string
}

// Backend implements pipeline.Backend with ffmpeg processes.
type Backend struct {
	exec *Executor
	opts BackendOptions
}

// NewBackend wraps an executor.
func NewBackend(e *Executor, opts BackendOptions) *Backend {
	return &Backend{exec: e, opts: opts}
}

// OpenSource probes path.
func (b *Backend) OpenSource(ctx context.Context, path string) (pipeline.Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	info, err := b.exec.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Source{exec: b.exec, info: info, workDir: b.opts.WorkDir}, nil
}

// NewEncoder starts a libx264 encoder.
func (b *Backend) NewEncoder(ctx context.Context, cfg pipeline.EncoderConfig) (pipeline.Encoder, error) {
	return b.exec.NewEncoder(ctx, cfg)
}

// NewMuxer prepares the MP4 muxer.
func (b *Backend) NewMuxer(ctx context.Context, path string) (pipeline.Muxer, error) {
	return b.exec.NewMuxer(ctx, path, b.opts.WorkDir, b.opts.AudioBitrate)
}

// Source is a probed media file.
type Source struct {
	exec    *Executor
	info    *MediaInfo
	workDir string
}

// Info returns the probe result.
func (s *Source) Info() *MediaInfo { return s.info }

// Tracks lists the video and audio streams.
func (s *Source) Tracks() []pipeline.TrackInfo {
	var tracks []pipeline.TrackInfo
	for _, st := range s.info.Streams {
		t := pipeline.TrackInfo{
			Index:      st.Index,
			Codec:      st.Codec,
			Width:      st.Width,
			Height:     st.Height,
			FPS:        st.FPS,
			SampleRate: st.SampleRate,
			Channels:   st.Channels,
			Duration:   st.Duration,
		}
		switch st.Type {
		case "video":
			t.Kind = pipeline.VideoTrack
		case "audio":
			t.Kind = pipeline.AudioTrack
			t.Container = "matroska"
		default:
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks
}

// Duration is the container duration.
func (s *Source) Duration() time.Duration { return s.info.Duration }

// OpenVideo decodes the video track at the output size and rate.
func (s *Source) OpenVideo(ctx context.Context, _ pipeline.TrackInfo, width, height int, fps float64) (pipeline.FrameDecoder, error) {
	return s.exec.OpenFrames(ctx, s.info.FilePath, width, height, fps)
}

// OpenAudio copies the audio track out of the container without
// re-encoding and streams the copy.
func (s *Source) OpenAudio(ctx context.Context, track pipeline.TrackInfo) (pipeline.PacketReader, error) {
	f, err := os.CreateTemp(s.workDir, "vortex-audio-*.mka")
	if err != nil {
		return nil, fmt.Errorf("failed to create audio spool: %w", err)
	}
	path := f.Name()
	f.Close()

	if err := s.exec.ExtractAudio(ctx, s.info.FilePath, path, CopyFormat(), nil); err != nil {
		os.Remove(path)
		return nil, err
	}
	r, err := pipeline.OpenFileReader(path, track.Duration, true)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	s.exec.logger.Debug().Str("spool", filepath.Base(path)).Msg("audio track extracted")
	return r, nil
}

// Close releases nothing; decoders own their processes.
func (s *Source) Close() error { return nil }

var (
	_ pipeline.Backend      = (*Backend)(nil)
	_ pipeline.Source       = (*Source)(nil)
	_ pipeline.Encoder      = (*Encoder)(nil)
	_ pipeline.Muxer        = (*Muxer)(nil)
	_ pipeline.FrameDecoder = (*FrameReader)(nil)
)
