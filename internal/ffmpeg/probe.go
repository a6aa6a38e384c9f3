package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/keagan/vortex/pkg/util"
)

// Probe extracts stream metadata from a media file
func (e *Executor) Probe(ctx context.Context, filePath string) (*MediaInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required")
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	info, err := parseProbe(output)
	if err != nil {
		return nil, err
	}
	info.FilePath = filePath

	e.logger.Debug().
		Str("file", filePath).
		Dur("duration", info.Duration).
		Int("streams", len(info.Streams)).
		Msg("probed media")
	return info, nil
}

// Duration returns the container duration of filePath.
func (e *Executor) Duration(ctx context.Context, filePath string) (time.Duration, error) {
	info, err := e.Probe(ctx, filePath)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

func parseProbe(output []byte) (*MediaInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &MediaInfo{Format: probe.Format.FormatName}
	info.Duration = parseSeconds(probe.Format.Duration)
	if br, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
		info.Bitrate = br
	}

	for _, s := range probe.Streams {
		if s.CodecType != "video" && s.CodecType != "audio" {
			continue
		}
		st := StreamInfo{
			Index:    s.Index,
			Type:     s.CodecType,
			Codec:    s.CodecName,
			Width:    s.Width,
			Height:   s.Height,
			Channels: s.Channels,
			Duration: parseSeconds(s.Duration),
		}
		if s.RFrameRate != "" {
			st.FPS = util.ParseFrameRate(s.RFrameRate)
		}
		if sr, err := strconv.Atoi(s.SampleRate); err == nil {
			st.SampleRate = sr
		}
		if br, err := strconv.ParseInt(s.BitRate, 10, 64); err == nil {
			st.Bitrate = br
		}
		if st.Duration == 0 {
			st.Duration = info.Duration
		}
		info.Streams = append(info.Streams, st)
	}
	return info, nil
}

func parseSeconds(s string) time.Duration {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		Index      int    `json:"index"`
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
		BitRate    string `json:"bit_rate"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}
