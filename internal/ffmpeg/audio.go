package ffmpeg

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// AudioFormat defines audio extraction format options
type AudioFormat struct {
	Codec      string
	Container  string
	SampleRate int
	Channels   int
	Bitrate    string
}

// CopyFormat keeps the source codec and wraps it in Matroska.
func CopyFormat() AudioFormat {
	return AudioFormat{Codec: "copy", Container: "matroska"}
}

// ExtractAudio extracts the first audio stream to a separate file
func (e *Executor) ExtractAudio(ctx context.Context, input, output string, format AudioFormat, progressFunc ProgressFunc) error {
	e.logger.Info().
		Str("input", input).
		Str("output", output).
		Str("codec", format.Codec).
		Msg("extracting audio")

	args := []string{
		"-i", input,
		"-vn", // no video
		"-map", "0:a:0",
		"-c:a", format.Codec,
	}
	if format.SampleRate > 0 {
		args = append(args, "-ar", fmt.Sprintf("%d", format.SampleRate))
	}
	if format.Channels > 0 {
		args = append(args, "-ac", fmt.Sprintf("%d", format.Channels))
	}
	if format.Bitrate != "" {
		args = append(args, "-b:a", format.Bitrate)
	}
	if format.Container != "" {
		args = append(args, "-f", format.Container)
	}
	args = append(args, output)

	opts := RunOptions{
		Args:            args,
		ProgressHandler: progressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("audio extraction")
		},
	}

	if err := e.Run(ctx, opts); err != nil {
		return fmt.Errorf("audio extraction failed: %w", err)
	}
	return nil
}

// DecodePCM decodes the first audio stream of path to interleaved signed
// 16-bit samples at the given rate and channel count. It implements
// audio.Decoder.
func (e *Executor) DecodePCM(ctx context.Context, path string, sampleRate, channels int) ([]int16, error) {
	p, err := e.Start(ctx, []string{
		"-i", path,
		"-vn",
		"-map", "0:a:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"pipe:1",
	}, false)
	if err != nil {
		return nil, err
	}

	raw, readErr := io.ReadAll(p.Stdout)
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read decoded audio: %w", readErr)
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}

	e.logger.Debug().
		Str("file", path).
		Int("samples", len(samples)).
		Msg("decoded audio")
	return samples, nil
}
