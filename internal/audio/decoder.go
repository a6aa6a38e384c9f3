package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Decoder turns a source file into interleaved 16-bit PCM at the requested
// rate and channel count.
type Decoder interface {
	DecodePCM(ctx context.Context, path string, sampleRate, channels int) ([]int16, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, path string, sampleRate, channels int) ([]int16, error)

// DecodePCM calls f.
func (f DecoderFunc) DecodePCM(ctx context.Context, path string, sampleRate, channels int) ([]int16, error) {
	return f(ctx, path, sampleRate, channels)
}

// WAVDecoder decodes .wav files natively and hands anything else to
// Fallback, typically the ffmpeg executor.
type WAVDecoder struct {
	Fallback Decoder
}

// DecodePCM implements Decoder.
func (d WAVDecoder) DecodePCM(ctx context.Context, path string, sampleRate, channels int) ([]int16, error) {
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		if d.Fallback == nil {
			return nil, fmt.Errorf("no decoder for %s", path)
		}
		return d.Fallback.DecodePCM(ctx, path, sampleRate, channels)
	}

	wav, err := ReadWAVFile(path)
	if err != nil {
		return nil, err
	}

	samples, err := ConvertChannels(wav.Samples, wav.Channels, channels)
	if err != nil {
		return nil, err
	}
	return Resample(samples, channels, wav.SampleRate, sampleRate)
}
