package audio

import (
	"math"
)

// Saturate converts v to int16, clamping instead of wrapping.
func Saturate(v int) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

func scale(s int16, f float64) int16 {
	return Saturate(int(float64(s) * f))
}

// AdjustVolume multiplies every sample by volume.
func AdjustVolume(samples []int16, volume float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = scale(s, volume)
	}
	return out
}

// FadeIn ramps the first n samples linearly from silence.
func FadeIn(samples []int16, n int) []int16 {
	out := clone(samples)
	for i := 0; i < n && i < len(samples); i++ {
		out[i] = scale(samples[i], float64(i)/float64(n))
	}
	return out
}

// FadeOut ramps the last n samples linearly to silence.
func FadeOut(samples []int16, n int) []int16 {
	out := clone(samples)
	for i := max(0, len(samples)-n); i < len(samples); i++ {
		out[i] = scale(samples[i], float64(len(samples)-i)/float64(n))
	}
	return out
}

// Reverse returns the samples in reverse order.
func Reverse(samples []int16) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[len(samples)-1-i] = s
	}
	return out
}

// ChangeSpeed resamples by nearest index. Speeds above 1 shorten the buffer
// and raise pitch.
func ChangeSpeed(samples []int16, speed float64) []int16 {
	if speed <= 0 || len(samples) == 0 {
		return clone(samples)
	}
	n := int(float64(len(samples)) / speed)
	out := make([]int16, n)
	for i := range out {
		src := int(float64(i) * speed)
		if src >= len(samples) {
			src = len(samples) - 1
		}
		out[i] = samples[src]
	}
	return out
}

// Echo adds a copy delayed by delay samples and scaled by decay.
func Echo(samples []int16, delay int, decay float64) []int16 {
	out := clone(samples)
	if delay <= 0 {
		return out
	}
	for i := delay; i < len(samples); i++ {
		out[i] = Saturate(int(out[i]) + int(float64(samples[i-delay])*decay))
	}
	return out
}

var reverbTaps = [...]int{1557, 1617, 1491, 1422, 1277, 1356, 1188, 1116}

// Reverb sums eight comb taps whose delays and decay scale with roomSize.
// Each tap contributes one eighth of its decayed sample.
func Reverb(samples []int16, roomSize float64) []int16 {
	out := clone(samples)
	decay := 0.5 * roomSize

	for _, tap := range reverbTaps {
		delay := int(float64(tap) * roomSize)
		if delay <= 0 {
			continue
		}
		for i := delay; i < len(samples); i++ {
			wet := int(float64(samples[i-delay])*decay) / len(reverbTaps)
			out[i] = Saturate(int(out[i]) + wet)
		}
	}
	return out
}

// BassBoost adds amount times a one-pole low-passed copy of the signal.
// Negative amounts cut bass.
func BassBoost(samples []int16, amount float64) []int16 {
	const alpha = 0.1
	out := make([]int16, len(samples))
	prev := 0.0
	for i, s := range samples {
		filtered := prev + alpha*(float64(s)-prev)
		prev = filtered
		out[i] = Saturate(int(s) + int(filtered*amount))
	}
	return out
}

// TrebleBoost adds amount times the first difference of the signal.
func TrebleBoost(samples []int16, amount float64) []int16 {
	out := make([]int16, len(samples))
	if len(samples) == 0 {
		return out
	}
	out[0] = samples[0]
	for i := 1; i < len(samples); i++ {
		diff := int(samples[i]) - int(samples[i-1])
		out[i] = Saturate(int(samples[i]) + int(float64(diff)*amount))
	}
	return out
}

// Peak returns the largest absolute sample value.
func Peak(samples []int16) int {
	peak := 0
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Normalize scales the buffer so its peak reaches 32767.
func Normalize(samples []int16) []int16 {
	peak := Peak(samples)
	if peak == 0 {
		return clone(samples)
	}
	gain := float64(math.MaxInt16) / float64(peak)
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = Saturate(int(math.Round(float64(s) * gain)))
	}
	return out
}

// TrimSilence drops leading and trailing samples quieter than threshold.
func TrimSilence(samples []int16, threshold int) []int16 {
	start, end := silenceBounds(samples, threshold)
	return clone(samples[start:end])
}

// silenceBounds returns the half-open range from the first to the last
// sample reaching threshold. It is empty when every sample is quieter.
func silenceBounds(samples []int16, threshold int) (start, end int) {
	end = len(samples)
	for start < end && abs(int(samples[start])) < threshold {
		start++
	}
	for end > start && abs(int(samples[end-1])) < threshold {
		end--
	}
	return start, end
}

// PitchShift resamples by 2^(semitones/12).
func PitchShift(samples []int16, semitones float64) []int16 {
	return ChangeSpeed(samples, math.Pow(2, semitones/12))
}

// Chipmunk shifts up six semitones.
func Chipmunk(samples []int16) []int16 { return PitchShift(samples, 6) }

// DeepVoice shifts down six semitones.
func DeepVoice(samples []int16) []int16 { return PitchShift(samples, -6) }

// RobotVoice ring-modulates the signal with a sine of the given frequency.
func RobotVoice(samples []int16, frequency float64, sampleRate int) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		mod := math.Sin(2 * math.Pi * frequency * float64(i) / float64(sampleRate))
		out[i] = scale(s, mod)
	}
	return out
}

// Telephone cuts bass and treble to imitate a narrow band line.
func Telephone(samples []int16) []int16 {
	return TrebleBoost(BassBoost(samples, -0.8), -0.5)
}

// NoiseGate silences samples quieter than threshold.
func NoiseGate(samples []int16, threshold int) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if abs(int(s)) >= threshold {
			out[i] = s
		}
	}
	return out
}

// Compress divides the excess above threshold (a fraction of full scale)
// by ratio, keeping the sample's sign.
func Compress(samples []int16, threshold, ratio float64) []int16 {
	limit := int(math.MaxInt16 * threshold)
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := int(s)
		a := abs(v)
		if a <= limit || ratio <= 0 {
			out[i] = s
			continue
		}
		c := limit + int(float64(a-limit)/ratio)
		if v < 0 {
			c = -c
		}
		out[i] = Saturate(c)
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clone(samples []int16) []int16 {
	out := make([]int16, len(samples))
	copy(out, samples)
	return out
}
