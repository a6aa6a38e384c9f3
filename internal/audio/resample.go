package audio

import "fmt"

// Resample converts interleaved samples between rates using linear
// interpolation between neighbouring frames.
func Resample(samples []int16, channels, fromRate, toRate int) ([]int16, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: input=%d, output=%d", fromRate, toRate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}
	if fromRate == toRate || len(samples) == 0 {
		return clone(samples), nil
	}

	inFrames := len(samples) / channels
	outFrames := int(int64(inFrames) * int64(toRate) / int64(fromRate))
	out := make([]int16, outFrames*channels)
	step := float64(fromRate) / float64(toRate)

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)
		next := idx + 1
		if next >= inFrames {
			next = inFrames - 1
		}
		for c := 0; c < channels; c++ {
			a := float64(samples[idx*channels+c])
			b := float64(samples[next*channels+c])
			out[i*channels+c] = Saturate(int(a + (b-a)*frac))
		}
	}
	return out, nil
}

// ConvertChannels up-mixes mono to N channels by duplication, or down-mixes
// to fewer channels by averaging.
func ConvertChannels(samples []int16, from, to int) ([]int16, error) {
	if from < 1 || to < 1 {
		return nil, fmt.Errorf("invalid channel conversion %d -> %d", from, to)
	}
	if from == to {
		return clone(samples), nil
	}

	frames := len(samples) / from
	out := make([]int16, frames*to)
	for f := 0; f < frames; f++ {
		in := samples[f*from : f*from+from]
		if from == 1 {
			for c := 0; c < to; c++ {
				out[f*to+c] = in[0]
			}
			continue
		}
		sum := 0
		for _, s := range in {
			sum += int(s)
		}
		avg := Saturate(sum / from)
		for c := 0; c < to; c++ {
			if to >= from && c < from {
				out[f*to+c] = in[c]
			} else {
				out[f*to+c] = avg
			}
		}
	}
	return out, nil
}
