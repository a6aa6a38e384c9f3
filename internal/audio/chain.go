package audio

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EffectKind names a track effect.
type EffectKind string

const (
	EffectReverse     EffectKind = "reverse"
	EffectSpeed       EffectKind = "speed"
	EffectEcho        EffectKind = "echo"
	EffectReverb      EffectKind = "reverb"
	EffectBassBoost   EffectKind = "bass_boost"
	EffectTrebleBoost EffectKind = "treble_boost"
	EffectNormalize   EffectKind = "normalize"
	EffectTrimSilence EffectKind = "trim_silence"
	EffectPitchShift  EffectKind = "pitch_shift"
	EffectChipmunk    EffectKind = "chipmunk"
	EffectDeepVoice   EffectKind = "deep_voice"
	EffectRobot       EffectKind = "robot"
	EffectTelephone   EffectKind = "telephone"
	EffectNoiseGate   EffectKind = "noise_gate"
	EffectCompress    EffectKind = "compress"
)

const (
	echoDelayMs   = 250
	compressRatio = 4
)

// Amount meaning per kind: speed factor, echo decay, reverb room size,
// boost amount, silence or gate threshold, semitones, robot carrier Hz,
// compressor threshold as a fraction of full scale. Kinds without a
// parameter have no entry.
var effectDefaults = map[EffectKind]float64{
	EffectSpeed:       1.5,
	EffectEcho:        0.5,
	EffectReverb:      0.5,
	EffectBassBoost:   0.5,
	EffectTrebleBoost: 0.5,
	EffectTrimSilence: 500,
	EffectPitchShift:  4,
	EffectRobot:       50,
	EffectNoiseGate:   500,
	EffectCompress:    0.5,
}

var effectKinds = map[EffectKind]bool{
	EffectReverse: true, EffectNormalize: true, EffectChipmunk: true,
	EffectDeepVoice: true, EffectTelephone: true,
}

func init() {
	for k := range effectDefaults {
		effectKinds[k] = true
	}
}

// TrackEffect is one step of a track's effect chain, applied to the decoded
// source before it is placed on the mix.
type TrackEffect struct {
	Kind   EffectKind
	Amount float64
}

// EffectKinds lists every track effect in name order.
func EffectKinds() []EffectKind {
	out := make([]EffectKind, 0, len(effectKinds))
	for k := range effectKinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DefaultAmount is the parameter used when none is given.
func DefaultAmount(kind EffectKind) float64 { return effectDefaults[kind] }

// NewTrackEffect validates kind and amount. A zero amount takes the default.
func NewTrackEffect(kind string, amount float64) (TrackEffect, error) {
	k := EffectKind(strings.ToLower(strings.TrimSpace(kind)))
	if !effectKinds[k] {
		return TrackEffect{}, fmt.Errorf("unknown audio effect %q", kind)
	}
	if amount == 0 {
		amount = effectDefaults[k]
	}
	if (k == EffectSpeed || k == EffectReverb || k == EffectRobot) && amount <= 0 {
		return TrackEffect{}, fmt.Errorf("%s needs a positive amount", k)
	}
	return TrackEffect{Kind: k, Amount: amount}, nil
}

// ParseTrackEffect reads kind[:amount].
func ParseTrackEffect(s string) (TrackEffect, error) {
	name, value, ok := strings.Cut(s, ":")
	var amount float64
	if ok {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return TrackEffect{}, fmt.Errorf("invalid amount in %q", s)
		}
		amount = v
	}
	return NewTrackEffect(name, amount)
}

// ApplyEffects runs chain over interleaved samples. Level effects see the
// whole buffer so channels keep their balance; everything else runs per
// channel.
func ApplyEffects(samples []int16, chain []TrackEffect, sampleRate, channels int) []int16 {
	for _, e := range chain {
		switch e.Kind {
		case EffectNormalize:
			samples = Normalize(samples)
		case EffectNoiseGate:
			samples = NoiseGate(samples, int(e.Amount))
		case EffectCompress:
			samples = Compress(samples, e.Amount, compressRatio)
		case EffectTrimSilence:
			samples = trimSilenceFrames(samples, int(e.Amount), channels)
		default:
			samples = perChannel(samples, channels, func(s []int16) []int16 {
				return applyMono(s, e, sampleRate)
			})
		}
	}
	return samples
}

func applyMono(s []int16, e TrackEffect, sampleRate int) []int16 {
	switch e.Kind {
	case EffectReverse:
		return Reverse(s)
	case EffectSpeed:
		return ChangeSpeed(s, e.Amount)
	case EffectEcho:
		return Echo(s, sampleRate*echoDelayMs/1000, e.Amount)
	case EffectReverb:
		return Reverb(s, e.Amount)
	case EffectBassBoost:
		return BassBoost(s, e.Amount)
	case EffectTrebleBoost:
		return TrebleBoost(s, e.Amount)
	case EffectPitchShift:
		return PitchShift(s, e.Amount)
	case EffectChipmunk:
		return Chipmunk(s)
	case EffectDeepVoice:
		return DeepVoice(s)
	case EffectRobot:
		return RobotVoice(s, e.Amount, sampleRate)
	case EffectTelephone:
		return Telephone(s)
	}
	return s
}

// perChannel splits interleaved samples, runs fn on each channel and
// interleaves the results, truncated to the shortest channel.
func perChannel(samples []int16, channels int, fn func([]int16) []int16) []int16 {
	if channels <= 1 {
		return fn(samples)
	}
	frames := len(samples) / channels
	split := make([][]int16, channels)
	n := -1
	for c := range split {
		ch := make([]int16, frames)
		for f := 0; f < frames; f++ {
			ch[f] = samples[f*channels+c]
		}
		split[c] = fn(ch)
		if n < 0 || len(split[c]) < n {
			n = len(split[c])
		}
	}

	out := make([]int16, n*channels)
	for f := 0; f < n; f++ {
		for c := range split {
			out[f*channels+c] = split[c][f]
		}
	}
	return out
}

// trimSilenceFrames trims whole frames so channels stay aligned. A frame is
// loud when any channel reaches threshold.
func trimSilenceFrames(samples []int16, threshold, channels int) []int16 {
	if channels <= 1 {
		return TrimSilence(samples, threshold)
	}
	frames := len(samples) / channels
	envelope := make([]int16, frames)
	for f := range envelope {
		for c := 0; c < channels; c++ {
			if v := abs(int(samples[f*channels+c])); v > int(envelope[f]) {
				envelope[f] = Saturate(v)
			}
		}
	}
	start, end := silenceBounds(envelope, threshold)
	return clone(samples[start*channels : end*channels])
}
