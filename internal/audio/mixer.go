// Package audio implements the offline multi-track mixer, the 16-bit PCM
// effects and the WAV container.
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/keagan/vortex/internal/progress"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSampleRate = 44100
	DefaultChannels   = 2
)

var ErrTrackNotFound = errors.New("audio track not found")

// Track is one mixer input.
type Track struct {
	ID        int
	Path      string
	StartMs   int64
	Volume    float64 // 0..2
	Pan       float64 // -1 left .. 1 right
	FadeInMs  int64
	FadeOutMs int64
	Muted     bool
	Effects   []TrackEffect
}

// Options configures a Mixer.
type Options struct {
	SampleRate  int
	Channels    int
	Concurrency int
}

// Mixer sums tracks into one interleaved PCM buffer.
type Mixer struct {
	logger  zerolog.Logger
	decoder Decoder
	opts    Options

	mu     sync.Mutex
	tracks []*Track
	nextID int
}

// NewMixer creates a mixer that decodes sources through decoder.
func NewMixer(logger zerolog.Logger, decoder Decoder, opts Options) *Mixer {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.Channels <= 0 {
		opts.Channels = DefaultChannels
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	return &Mixer{
		logger:  logger.With().Str("component", "mixer").Logger(),
		decoder: decoder,
		opts:    opts,
		nextID:  1,
	}
}

// SampleRate returns the output rate.
func (m *Mixer) SampleRate() int { return m.opts.SampleRate }

// Channels returns the output channel count.
func (m *Mixer) Channels() int { return m.opts.Channels }

// AddTrack registers a source starting at startMs on the mix timeline.
func (m *Mixer) AddTrack(path string, startMs int64) Track {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &Track{
		ID:      m.nextID,
		Path:    path,
		StartMs: max(0, startMs),
		Volume:  1,
	}
	m.nextID++
	m.tracks = append(m.tracks, t)

	m.logger.Debug().Int("track", t.ID).Str("path", path).Int64("start_ms", t.StartMs).Msg("track added")
	return *t
}

// RemoveTrack deletes a track. It reports whether the track existed.
func (m *Mixer) RemoveTrack(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, t := range m.tracks {
		if t.ID == id {
			m.tracks = append(m.tracks[:i], m.tracks[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Mixer) update(id int, fn func(*Track)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tracks {
		if t.ID == id {
			fn(t)
			return true
		}
	}
	return false
}

// SetVolume sets the track gain, clamped to 0..2.
func (m *Mixer) SetVolume(id int, volume float64) bool {
	return m.update(id, func(t *Track) { t.Volume = clamp(volume, 0, 2) })
}

// SetPan sets the stereo position, clamped to -1..1.
func (m *Mixer) SetPan(id int, pan float64) bool {
	return m.update(id, func(t *Track) { t.Pan = clamp(pan, -1, 1) })
}

// SetFadeIn sets the fade-in length in milliseconds.
func (m *Mixer) SetFadeIn(id int, ms int64) bool {
	return m.update(id, func(t *Track) { t.FadeInMs = max(0, ms) })
}

// SetFadeOut sets the fade-out length in milliseconds.
func (m *Mixer) SetFadeOut(id int, ms int64) bool {
	return m.update(id, func(t *Track) { t.FadeOutMs = max(0, ms) })
}

// SetMuted excludes or includes a track in the mix.
func (m *Mixer) SetMuted(id int, muted bool) bool {
	return m.update(id, func(t *Track) { t.Muted = muted })
}

// AddEffect appends e to the track's effect chain.
func (m *Mixer) AddEffect(id int, e TrackEffect) bool {
	return m.update(id, func(t *Track) {
		t.Effects = append(append([]TrackEffect(nil), t.Effects...), e)
	})
}

// ClearEffects empties the track's effect chain.
func (m *Mixer) ClearEffects(id int) bool {
	return m.update(id, func(t *Track) { t.Effects = nil })
}

// Track returns a copy of the track with id.
func (m *Mixer) Track(id int) (Track, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tracks {
		if t.ID == id {
			return *t, true
		}
	}
	return Track{}, false
}

// Tracks returns copies of all tracks in insertion order.
func (m *Mixer) Tracks() []Track {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Track, len(m.tracks))
	for i, t := range m.tracks {
		out[i] = *t
	}
	return out
}

// Snapshot returns an independent mixer with copies of the current tracks,
// sharing the decoder.
func (m *Mixer) Snapshot() *Mixer {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := &Mixer{logger: m.logger, decoder: m.decoder, opts: m.opts, nextID: m.nextID}
	for _, t := range m.tracks {
		tr := *t
		cp.tracks = append(cp.tracks, &tr)
	}
	return cp
}

// EffectiveVolume is the track gain at elapsedMs into a source lasting
// durationMs, including fades.
func EffectiveVolume(t Track, elapsedMs, durationMs float64) float64 {
	v := t.Volume
	if t.FadeInMs > 0 {
		v *= math.Min(1, math.Max(0, elapsedMs)/float64(t.FadeInMs))
	}
	if t.FadeOutMs > 0 {
		remaining := math.Max(0, durationMs-elapsedMs)
		v *= math.Min(1, remaining/float64(t.FadeOutMs))
	}
	return v
}

// PanGains splits volume into left and right gains.
func PanGains(volume, pan float64) (left, right float64) {
	left = volume * (1 - math.Max(pan, 0))
	right = volume * (1 + math.Min(pan, 0))
	return left, right
}

// Mix decodes every unmuted track and sums it into a buffer holding
// durationMs of audio. Each addition saturates to the int16 range. Tracks are decoded concurrently; a track that fails
// to decode is skipped with a warning.
func (m *Mixer) Mix(ctx context.Context, durationMs int64) ([]int16, error) {
	return m.mix(ctx, durationMs, nil)
}

func (m *Mixer) mix(ctx context.Context, durationMs int64, onDecoded func(done, total int)) ([]int16, error) {
	if durationMs <= 0 {
		return nil, fmt.Errorf("invalid mix duration: %dms", durationMs)
	}

	var active []Track
	for _, t := range m.Tracks() {
		if !t.Muted {
			active = append(active, t)
		}
	}

	rate, ch := m.opts.SampleRate, m.opts.Channels
	frames := durationMs * int64(rate) / 1000
	acc := make([]int32, frames*int64(ch))

	m.logger.Info().
		Int("tracks", len(active)).
		Int64("duration_ms", durationMs).
		Int("sample_rate", rate).
		Msg("mixing")

	decoded := make([][]int16, len(active))
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Concurrency)
	for i, t := range active {
		g.Go(func() error {
			pcm, err := m.decoder.DecodePCM(gctx, t.Path, rate, ch)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				m.logger.Warn().Err(err).Int("track", t.ID).Str("path", t.Path).Msg("skipping undecodable track")
				pcm = nil
			}
			if pcm != nil && len(t.Effects) > 0 {
				pcm = ApplyEffects(pcm, t.Effects, rate, ch)
			}
			decoded[i] = pcm
			if onDecoded != nil {
				onDecoded(int(done.Add(1)), len(active))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, t := range active {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if decoded[i] != nil {
			mixInto(acc, decoded[i], t, rate, ch)
		}
	}

	return normalize(acc), nil
}

// mixInto adds one track at its start offset. Samples past the end of the
// buffer are dropped.
func mixInto(acc []int32, pcm []int16, t Track, rate, ch int) {
	start := int(t.StartMs*int64(rate)/1000) * ch
	frames := len(pcm) / ch
	durationMs := float64(frames) * 1000 / float64(rate)

	for f := 0; f < frames; f++ {
		out := start + f*ch
		if out+ch > len(acc) {
			break
		}

		vol := EffectiveVolume(t, float64(f)*1000/float64(rate), durationMs)
		if ch == 2 {
			left, right := PanGains(vol, t.Pan)
			acc[out] = addSat16(acc[out], float64(pcm[f*2])*left)
			acc[out+1] = addSat16(acc[out+1], float64(pcm[f*2+1])*right)
			continue
		}
		for c := 0; c < ch; c++ {
			acc[out+c] = addSat16(acc[out+c], float64(pcm[f*ch+c])*vol)
		}
	}
}

// addSat16 adds v to a and saturates to the int16 range, so overlapping
// loud tracks clip at the peaks instead of wrapping.
func addSat16(a int32, v float64) int32 {
	return int32(Saturate(int(a) + int(v)))
}

// normalize converts the accumulator to int16, scaling the whole buffer
// down uniformly when its peak exceeds 32767. Mixing already saturates, so
// only a full-scale negative sample triggers the rescale.
func normalize(acc []int32) []int16 {
	var peak int64
	for _, v := range acc {
		a := int64(v)
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}

	out := make([]int16, len(acc))
	if peak <= math.MaxInt16 {
		for i, v := range acc {
			out[i] = int16(v)
		}
		return out
	}

	gain := float64(math.MaxInt16) / float64(peak)
	for i, v := range acc {
		out[i] = Saturate(int(math.Round(float64(v) * gain)))
	}
	return out
}

// MixToFile mixes and writes a WAV file.
func (m *Mixer) MixToFile(ctx context.Context, path string, durationMs int64) error {
	samples, err := m.Mix(ctx, durationMs)
	if err != nil {
		return fmt.Errorf("mix failed: %w", err)
	}
	if err := WriteWAVFile(path, samples, m.opts.SampleRate, m.opts.Channels); err != nil {
		return err
	}

	m.logger.Info().Str("output", path).Int("samples", len(samples)).Msg("mix written")
	return nil
}

// Status tags a mix event.
type Status int

const (
	StatusDecoding Status = iota
	StatusSumming
	StatusWriting
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusDecoding:
		return "decoding"
	case StatusSumming:
		return "summing"
	case StatusWriting:
		return "writing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Event is one progress report from a background mix.
type Event struct {
	Status     Status
	Percent    int
	OutputPath string
	Err        error
}

// Terminal reports whether no further events follow.
func (e Event) Terminal() bool {
	return e.Status >= StatusCompleted
}

// Start runs MixToFile on a background goroutine and reports progress on
// the returned stream. The stream ends with a terminal event.
func (m *Mixer) Start(ctx context.Context, path string, durationMs int64) *progress.Stream[Event] {
	stream := progress.New[Event]()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				stream.Finish(Event{Status: StatusFailed, Err: fmt.Errorf("mixer panic: %v", r)})
			}
		}()

		stream.Publish(Event{Status: StatusDecoding})

		var mu sync.Mutex
		last := 0
		samples, err := m.mix(ctx, durationMs, func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			pct := done * 80 / total
			status := StatusDecoding
			if done == total {
				status = StatusSumming
			}
			if pct > last || status == StatusSumming {
				last = pct
				stream.Publish(Event{Status: status, Percent: pct})
			}
		})
		if err != nil {
			stream.Finish(failure(err))
			return
		}

		stream.Publish(Event{Status: StatusWriting, Percent: 90})
		if err := WriteWAVFile(path, samples, m.opts.SampleRate, m.opts.Channels); err != nil {
			stream.Finish(failure(err))
			return
		}

		stream.Finish(Event{Status: StatusCompleted, Percent: 100, OutputPath: path})
	}()

	return stream
}

func failure(err error) Event {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Event{Status: StatusCancelled, Err: err}
	}
	return Event{Status: StatusFailed, Err: err}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
