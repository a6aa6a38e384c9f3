package ffmpeg

import "time"

// MediaInfo contains metadata about a media file
type MediaInfo struct {
	FilePath string
	Duration time.Duration
	Bitrate  int64
	Format   string
	Streams  []StreamInfo
}

// StreamInfo describes one stream reported by ffprobe.
type StreamInfo struct {
	Index      int
	Type       string // "video" or "audio"
	Codec      string
	Width      int
	Height     int
	FPS        float64
	SampleRate int
	Channels   int
	Bitrate    int64
	Duration   time.Duration
}

// Video returns the first video stream.
func (m *MediaInfo) Video() (StreamInfo, bool) { return m.first("video") }

// Audio returns the first audio stream.
func (m *MediaInfo) Audio() (StreamInfo, bool) { return m.first("audio") }

func (m *MediaInfo) first(kind string) (StreamInfo, bool) {
	for _, s := range m.Streams {
		if s.Type == kind {
			return s, true
		}
	}
	return StreamInfo{}, false
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame     int
	FPS       float64
	Bitrate   string
	Time      string
	OutTimeUS int64
	Speed     string
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
type ProgressFunc func(*Progress)

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler ProgressFunc
	LogHandler      func(line string)
}

// Default encoding settings
const (
	DefaultPreset     = "medium"
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
	DefaultAudioRate  = "192k"
)

// Pixel layout exchanged with ffmpeg over pipes: 8-bit RGBA, matching
// image.NRGBA.
const pixelFormat = "rgba"
