package audio

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticDecoder serves canned PCM by path.
type staticDecoder map[string][]int16

func (d staticDecoder) DecodePCM(_ context.Context, path string, _, _ int) ([]int16, error) {
	pcm, ok := d[path]
	if !ok {
		return nil, errors.New("no such source")
	}
	return pcm, nil
}

func ramp(frames int) []int16 {
	out := make([]int16, frames*2)
	for i := range out {
		out[i] = int16((i*37)%2000 - 1000)
	}
	return out
}

func newTestMixer(d Decoder) *Mixer {
	return NewMixer(zerolog.Nop(), d, Options{})
}

func TestMixSingleTrackIsIdentity(t *testing.T) {
	src := ramp(4410)
	m := newTestMixer(staticDecoder{"a.wav": src})
	m.AddTrack("a.wav", 0)

	out, err := m.Mix(context.Background(), 1000)
	require.NoError(t, err)
	require.Len(t, out, 44100*2)

	assert.Equal(t, src, out[:len(src)])
	for i := len(src); i < len(out); i++ {
		if out[i] != 0 {
			t.Fatalf("sample %d outside the source span is %d", i, out[i])
		}
	}
}

func TestMixStartOffset(t *testing.T) {
	src := []int16{100, -100, 200, -200}
	m := newTestMixer(staticDecoder{"a": src})
	m.AddTrack("a", 500)

	out, err := m.Mix(context.Background(), 1000)
	require.NoError(t, err)

	start := 22050 * 2
	assert.Equal(t, src, out[start:start+4])
	assert.Equal(t, int16(0), out[start-1])
}

func TestMixPeakNeverExceedsMax(t *testing.T) {
	loud := make([]int16, 2000)
	for i := range loud {
		if i%2 == 0 {
			loud[i] = math.MaxInt16
		} else {
			loud[i] = math.MinInt16
		}
	}

	tests := []struct {
		name   string
		tracks int
		volume float64
	}{
		{"one loud track", 1, 1},
		{"three tracks at full", 3, 1},
		{"five tracks boosted", 5, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMixer(staticDecoder{"loud": loud})
			for i := 0; i < tt.tracks; i++ {
				tr := m.AddTrack("loud", 0)
				m.SetVolume(tr.ID, tt.volume)
			}

			out, err := m.Mix(context.Background(), 100)
			require.NoError(t, err)
			assert.LessOrEqual(t, Peak(out), math.MaxInt16)
		})
	}
}

func TestMixOverlapSaturatesPeaksOnly(t *testing.T) {
	loud := []int16{30000, 10000, 20000, -15000}
	quiet := []int16{1000, -1000}
	m := newTestMixer(staticDecoder{"loud": loud, "quiet": quiet})
	m.AddTrack("loud", 0)
	m.AddTrack("loud", 0)
	m.AddTrack("quiet", 5)

	out, err := m.Mix(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, []int16{math.MaxInt16, 20000, math.MaxInt16, -30000}, out[:4])
	// samples away from the overlap keep their level
	q := 220 * 2
	assert.Equal(t, quiet, out[q:q+2])
}

func TestMixFullScaleNegativeIsRescaled(t *testing.T) {
	m := newTestMixer(staticDecoder{"a": {math.MinInt16, 10000}})
	m.AddTrack("a", 0)

	out, err := m.Mix(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int16(-math.MaxInt16), out[0])
	assert.Equal(t, int16(10000), out[1])
	assert.LessOrEqual(t, Peak(out), math.MaxInt16)
}

func TestMixMutedAndMissingTracks(t *testing.T) {
	m := newTestMixer(staticDecoder{"a": {1000, 1000}})
	muted := m.AddTrack("a", 0)
	m.SetMuted(muted.ID, true)
	m.AddTrack("missing", 0)

	out, err := m.Mix(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, Peak(out))
}

func TestMixPan(t *testing.T) {
	m := newTestMixer(staticDecoder{"a": {1000, 1000}})
	tr := m.AddTrack("a", 0)
	m.SetPan(tr.ID, 1)

	out, err := m.Mix(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int16(0), out[0])
	assert.Equal(t, int16(1000), out[1])
}

func TestEffectiveVolume(t *testing.T) {
	tr := Track{Volume: 0.8, FadeInMs: 1000}

	assert.Equal(t, 0.0, EffectiveVolume(tr, 0, 5000))
	assert.InDelta(t, 0.4, EffectiveVolume(tr, 500, 5000), 1e-9)
	assert.Equal(t, 0.8, EffectiveVolume(tr, 1000, 5000))
	assert.Equal(t, 0.8, EffectiveVolume(tr, 3000, 5000))

	tr = Track{Volume: 1, FadeOutMs: 1000}
	assert.Equal(t, 1.0, EffectiveVolume(tr, 0, 5000))
	assert.InDelta(t, 0.5, EffectiveVolume(tr, 4500, 5000), 1e-9)
	assert.Equal(t, 0.0, EffectiveVolume(tr, 5000, 5000))
}

func TestPanGains(t *testing.T) {
	l, r := PanGains(1, 0)
	assert.Equal(t, 1.0, l)
	assert.Equal(t, 1.0, r)

	l, r = PanGains(2, -0.5)
	assert.Equal(t, 2.0, l)
	assert.Equal(t, 1.0, r)
}

func TestTrackSettersClamp(t *testing.T) {
	m := newTestMixer(staticDecoder{})
	tr := m.AddTrack("x", -10)
	assert.Equal(t, 1, tr.ID)
	assert.Equal(t, int64(0), tr.StartMs)

	require.True(t, m.SetVolume(tr.ID, 5))
	require.True(t, m.SetPan(tr.ID, -3))
	got, ok := m.Track(tr.ID)
	require.True(t, ok)
	assert.Equal(t, 2.0, got.Volume)
	assert.Equal(t, -1.0, got.Pan)

	assert.False(t, m.SetVolume(99, 1))
	assert.True(t, m.RemoveTrack(tr.ID))
	assert.Empty(t, m.Tracks())
}

func TestStartWritesWAVAndReportsProgress(t *testing.T) {
	m := newTestMixer(staticDecoder{"a": ramp(100)})
	m.AddTrack("a", 0)

	out := filepath.Join(t.TempDir(), "mix.wav")
	stream := m.Start(context.Background(), out, 1000)

	var events []Event
	last, ok := stream.Drain(context.Background(), func(e Event) { events = append(events, e) })
	require.True(t, ok)
	require.NoError(t, last.Err)
	assert.Equal(t, StatusCompleted, last.Status)
	assert.Equal(t, 100, last.Percent)

	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Percent, events[i-1].Percent)
	}

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, int64(WAVHeaderSize+44100*2*2), info.Size())
}

func TestStartCancelled(t *testing.T) {
	m := newTestMixer(staticDecoder{"a": ramp(100)})
	m.AddTrack("a", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	last, _ := m.Start(ctx, filepath.Join(t.TempDir(), "x.wav"), 1000).Drain(context.Background(), nil)
	assert.Equal(t, StatusCancelled, last.Status)
	assert.True(t, last.Terminal())
}
