package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/keagan/vortex/internal/pipeline"
	"github.com/keagan/vortex/pkg/util"
)

// Muxer spools the elementary streams to a work directory and assembles the
// MP4 on Stop with a stream copy. PCM audio is encoded to AAC on the way in;
// everything else passes through. It implements pipeline.Muxer.
type Muxer struct {
	exec         *Executor
	ctx          context.Context
	output       string
	audioBitrate string

	dir     string
	video   *os.File
	audio   *os.File
	format  pipeline.StreamFormat
	track   *pipeline.TrackInfo
	started bool
}

// NewMuxer prepares a muxer writing output. workDir may be empty.
func (e *Executor) NewMuxer(ctx context.Context, output, workDir, audioBitrate string) (*Muxer, error) {
	if output == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if err := util.EnsureDir(filepath.Dir(output)); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	dir, err := os.MkdirTemp(workDir, "vortex-mux-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create mux directory: %w", err)
	}
	if audioBitrate == "" {
		audioBitrate = DefaultAudioRate
	}
	return &Muxer{exec: e, ctx: ctx, output: output, audioBitrate: audioBitrate, dir: dir}, nil
}

// AddVideoTrack registers the H.264 stream.
func (m *Muxer) AddVideoTrack(format pipeline.StreamFormat) error {
	if m.started {
		return errors.New("muxer already started")
	}
	if format.Codec != "h264" {
		return fmt.Errorf("unsupported video codec %q", format.Codec)
	}
	f, err := os.Create(filepath.Join(m.dir, "video.h264"))
	if err != nil {
		return err
	}
	m.video, m.format = f, format
	return nil
}

// AddAudioTrack registers the passthrough audio stream.
func (m *Muxer) AddAudioTrack(track pipeline.TrackInfo) error {
	if m.started {
		return errors.New("muxer already started")
	}
	f, err := os.Create(filepath.Join(m.dir, "audio"+audioExt(track.Container)))
	if err != nil {
		return err
	}
	m.audio, m.track = f, &track
	return nil
}

func audioExt(container string) string {
	switch container {
	case "wav":
		return ".wav"
	case "adts":
		return ".aac"
	default:
		return ".mka"
	}
}

// Start checks that a video track exists.
func (m *Muxer) Start() error {
	if m.video == nil {
		return errors.New("no video track added")
	}
	m.started = true
	return nil
}

// WriteVideo appends to the video stream.
func (m *Muxer) WriteVideo(p pipeline.Packet) error {
	if !m.started {
		return errors.New("muxer not started")
	}
	_, err := m.video.Write(p.Data)
	return err
}

// WriteAudio appends to the audio stream.
func (m *Muxer) WriteAudio(p pipeline.Packet) error {
	if !m.started || m.audio == nil {
		return errors.New("no audio track")
	}
	_, err := m.audio.Write(p.Data)
	return err
}

// Stop assembles the output file.
func (m *Muxer) Stop() error {
	if !m.started {
		return errors.New("muxer not started")
	}
	if err := m.closeFiles(); err != nil {
		return err
	}

	err := m.exec.Run(m.ctx, RunOptions{
		Args: m.args(),
		LogHandler: func(line string) {
			m.exec.logger.Debug().Str("ffmpeg", line).Msg("mux output")
		},
	})
	if err != nil {
		return fmt.Errorf("mux failed: %w", err)
	}
	m.exec.logger.Info().Str("output", m.output).Msg("mux completed")
	return nil
}

func (m *Muxer) args() []string {
	args := []string{
		"-f", "h264",
		"-framerate", fmt.Sprintf("%g", m.format.FPS),
		"-i", m.video.Name(),
	}
	if m.audio != nil {
		args = append(args, "-i", m.audio.Name())
	}
	args = append(args, "-map", "0:v:0", "-c:v", "copy")
	if m.audio != nil {
		args = append(args, "-map", "1:a:0")
		if isPCM(*m.track) {
			args = append(args, "-c:a", DefaultAudioCodec, "-b:a", m.audioBitrate)
		} else {
			args = append(args, "-c:a", "copy")
		}
	}
	return append(args, "-movflags", "+faststart", "-f", "mp4", m.output)
}

func isPCM(t pipeline.TrackInfo) bool {
	return t.Container == "wav" || strings.HasPrefix(t.Codec, "pcm_")
}

func (m *Muxer) closeFiles() error {
	var errs []error
	for _, f := range []*os.File{m.video, m.audio} {
		if f != nil {
			if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close removes the work directory.
func (m *Muxer) Close() error {
	_ = m.closeFiles()
	return os.RemoveAll(m.dir)
}
