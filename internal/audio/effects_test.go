package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSaturate(t *testing.T) {
	assert.Equal(t, int16(math.MaxInt16), Saturate(40000))
	assert.Equal(t, int16(math.MinInt16), Saturate(-40000))
	assert.Equal(t, int16(12), Saturate(12))
}

func TestAdjustVolumeSaturates(t *testing.T) {
	out := AdjustVolume([]int16{20000, -20000, 100}, 2)
	assert.Equal(t, []int16{math.MaxInt16, math.MinInt16, 200}, out)
}

func TestFades(t *testing.T) {
	in := []int16{1000, 1000, 1000, 1000}

	assert.Equal(t, []int16{0, 500, 1000, 1000}, FadeIn(in, 2))
	assert.Equal(t, []int16{1000, 1000, 1000, 500}, FadeOut(in, 2))
	assert.Equal(t, []int16{1000, 1000, 1000, 1000}, in, "input untouched")
}

func TestReverseAndSpeed(t *testing.T) {
	assert.Equal(t, []int16{3, 2, 1}, Reverse([]int16{1, 2, 3}))
	assert.Equal(t, []int16{1, 3}, ChangeSpeed([]int16{1, 2, 3, 4}, 2))
	assert.Len(t, ChangeSpeed(make([]int16, 100), 0.5), 200)
}

func TestEcho(t *testing.T) {
	out := Echo([]int16{1000, 0, 0, 30000}, 3, 0.5)
	assert.Equal(t, []int16{1000, 0, 0, 30500}, out)

	out = Echo([]int16{30000, 0, 30000}, 2, 1)
	assert.Equal(t, int16(math.MaxInt16), out[2])
}

func TestReverbAddsTail(t *testing.T) {
	in := make([]int16, 2000)
	in[0] = 16000
	out := Reverb(in, 1)

	assert.Equal(t, int16(16000), out[0])
	// each tap contributes 16000*0.5/8
	assert.Equal(t, int16(1000), out[1116])
	assert.Equal(t, int16(1000), out[1557])
}

func TestBassAndTreble(t *testing.T) {
	dc := []int16{1000, 1000, 1000}
	assert.Equal(t, []int16{1100, 1190, 1271}, BassBoost(dc, 1))
	assert.Equal(t, dc, TrebleBoost(dc, 1), "no change on a flat signal")
	assert.Equal(t, []int16{0, 2000, -3000}, TrebleBoost([]int16{0, 1000, -1000}, 1))
}

func TestNormalize(t *testing.T) {
	out := Normalize([]int16{1000, -250})
	assert.Equal(t, int16(math.MaxInt16), out[0])
	assert.Equal(t, int16(-8192), out[1])

	assert.Equal(t, []int16{0, 0}, Normalize([]int16{0, 0}))
}

func TestTrimSilenceAndGate(t *testing.T) {
	in := []int16{1, -2, 900, 10, -800, 3}
	assert.Equal(t, []int16{900, 10, -800}, TrimSilence(in, 500))
	assert.Empty(t, TrimSilence([]int16{1, 2}, 500))
	assert.Equal(t, []int16{0, 0, 900, 0, -800, 0}, NoiseGate(in, 500))
}

func TestCompressPreservesSign(t *testing.T) {
	threshold := 0.5
	limit := int(math.MaxInt16 * threshold)
	out := Compress([]int16{30000, -30000, 1000}, 0.5, 4)

	want := int16(limit + (30000-limit)/4)
	assert.Equal(t, want, out[0])
	assert.Equal(t, -want, out[1])
	assert.Equal(t, int16(1000), out[2])
}

func TestPitchShift(t *testing.T) {
	in := make([]int16, 1200)
	assert.Len(t, PitchShift(in, 12), 600)
	assert.Len(t, Chipmunk(in), int(1200/math.Pow(2, 0.5)))
	assert.Greater(t, len(DeepVoice(in)), 1200)
}

func TestRobotVoiceStartsSilent(t *testing.T) {
	out := RobotVoice([]int16{10000, 10000}, 50, 44100)
	assert.Equal(t, int16(0), out[0])
}

func TestTelephoneStaysInRange(t *testing.T) {
	in := []int16{math.MaxInt16, math.MinInt16, math.MaxInt16, math.MinInt16}
	out := Telephone(in)
	assert.Len(t, out, len(in))
}
