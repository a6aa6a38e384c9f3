package engine

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/vortex/internal/audio"
	"github.com/keagan/vortex/internal/compositor"
	"github.com/keagan/vortex/internal/imaging"
	"github.com/keagan/vortex/internal/pipeline"
	"github.com/keagan/vortex/internal/timeline"
)

// TimelineSource presents a scene snapshot to the export pipeline as if it
// were a media file: its video track is rendered frame by frame through the
// compositor and its audio track is the mixer's soundtrack as WAV.
type TimelineSource struct {
	logger     zerolog.Logger
	compositor *compositor.Compositor
	scene      compositor.Scene
	mixer      *audio.Mixer
	workDir    string
	batch      int
}

// NewTimelineSource snapshots scene and mixer. mixer may be nil.
func NewTimelineSource(logger zerolog.Logger, c *compositor.Compositor, scene compositor.Scene, mixer *audio.Mixer, workDir string, batch int) *TimelineSource {
	s := &TimelineSource{
		logger:     logger,
		compositor: c,
		scene:      scene.Snapshot(),
		workDir:    workDir,
		batch:      max(1, batch),
	}
	if mixer != nil {
		s.mixer = mixer.Snapshot()
	}
	return s
}

// Duration is the timeline length.
func (s *TimelineSource) Duration() time.Duration {
	return s.scene.Project.Duration()
}

func (s *TimelineSource) hasVideo() bool {
	for _, c := range s.scene.Project.Clips() {
		if kind, _ := s.scene.Project.TrackKind(c.TrackIndex); kind == timeline.VideoTrack {
			return true
		}
	}
	return false
}

func (s *TimelineSource) hasAudio() bool {
	if s.mixer == nil {
		return false
	}
	for _, t := range s.mixer.Tracks() {
		if !t.Muted {
			return true
		}
	}
	return false
}

// Tracks lists a rendered video track when the timeline has video clips and
// a PCM track when any audio track is audible.
func (s *TimelineSource) Tracks() []pipeline.TrackInfo {
	p := s.scene.Project
	var tracks []pipeline.TrackInfo
	if s.hasVideo() {
		tracks = append(tracks, pipeline.TrackInfo{
			Index:    0,
			Kind:     pipeline.VideoTrack,
			Codec:    "rawvideo",
			Width:    p.Width,
			Height:   p.Height,
			FPS:      p.FPS,
			Duration: s.Duration(),
		})
	}
	if s.hasAudio() {
		tracks = append(tracks, pipeline.TrackInfo{
			Index:      1,
			Kind:       pipeline.AudioTrack,
			Codec:      "pcm_s16le",
			Container:  "wav",
			SampleRate: s.mixer.SampleRate(),
			Channels:   s.mixer.Channels(),
			Duration:   s.Duration(),
		})
	}
	return tracks
}

// OpenVideo renders the timeline at the output size and rate.
func (s *TimelineSource) OpenVideo(_ context.Context, _ pipeline.TrackInfo, width, height int, fps float64) (pipeline.FrameDecoder, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate %v", fps)
	}
	scene := s.scene.Snapshot()
	scene.Project.Width, scene.Project.Height = width, height
	return &renderer{
		compositor: s.compositor,
		scene:      scene,
		width:      width,
		height:     height,
		fps:        fps,
		duration:   s.Duration(),
		batch:      s.batch,
	}, nil
}

// OpenAudio mixes the soundtrack to a temporary WAV over the timeline
// length and streams it. The mix uses the mixer's own rate and layout.
func (s *TimelineSource) OpenAudio(ctx context.Context, track pipeline.TrackInfo) (pipeline.PacketReader, error) {
	f, err := os.CreateTemp(s.workDir, "vortex-mix-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create mix file: %w", err)
	}
	path := f.Name()
	f.Close()

	if err := s.mixer.MixToFile(ctx, path, track.Duration.Milliseconds()); err != nil {
		os.Remove(path)
		return nil, err
	}
	r, err := pipeline.OpenFileReader(path, track.Duration, true)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	s.logger.Debug().Str("path", path).Dur("duration", track.Duration).Msg("soundtrack mixed")
	return r, nil
}

// Close releases nothing; renderers and readers own their buffers.
func (s *TimelineSource) Close() error { return nil }

// renderer is the FrameDecoder of a TimelineSource. With batch > 1 it
// renders that many frames ahead concurrently.
type renderer struct {
	compositor *compositor.Compositor
	scene      compositor.Scene
	width      int
	height     int
	fps        float64
	duration   time.Duration
	batch      int

	n       int
	pending []pipeline.Frame
}

func (r *renderer) pts(n int) time.Duration {
	return time.Duration(float64(n) / r.fps * float64(time.Second))
}

func (r *renderer) Next(ctx context.Context) (pipeline.Frame, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Frame{}, err
	}
	if len(r.pending) == 0 {
		if err := r.fill(ctx); err != nil {
			return pipeline.Frame{}, err
		}
	}
	f := r.pending[0]
	r.pending[0] = pipeline.Frame{}
	r.pending = r.pending[1:]
	return f, nil
}

func (r *renderer) fill(ctx context.Context) error {
	var times []time.Duration
	for len(times) < r.batch && r.pts(r.n) < r.duration {
		times = append(times, r.pts(r.n))
		r.n++
	}
	if len(times) == 0 {
		return io.EOF
	}

	var frames []*image.NRGBA
	if len(times) == 1 {
		img, err := r.compositor.RenderAt(ctx, r.scene, times[0])
		if err != nil {
			return fmt.Errorf("render %s: %w", times[0], err)
		}
		frames = []*image.NRGBA{img}
	} else {
		imgs, err := r.compositor.RenderBatch(ctx, r.scene, times)
		if err != nil {
			return err
		}
		frames = imgs
	}

	for i, img := range frames {
		if b := img.Bounds(); b.Dx() != r.width || b.Dy() != r.height {
			img = imaging.Resize(img, r.width, r.height)
		}
		r.pending = append(r.pending, pipeline.Frame{Image: img, PTS: times[i]})
	}
	return nil
}

func (r *renderer) Close() error {
	r.pending = nil
	return nil
}

var (
	_ pipeline.Source       = (*TimelineSource)(nil)
	_ pipeline.FrameDecoder = (*renderer)(nil)
)
