package pipeline

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"
)

// Resolution is an export size preset.
type Resolution string

const (
	Res720p  Resolution = "720p"
	Res1080p Resolution = "1080p"
	Res4K    Resolution = "4k"
)

// Quality multiplies the base bitrate.
const (
	QualityLow    = 0.5
	QualityMedium = 1.0
	QualityHigh   = 2.0
)

// ParseResolution accepts 720p, 1080p and 4k in any case.
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(strings.ToLower(s)); r {
	case Res720p, Res1080p, Res4K:
		return r, nil
	}
	return "", fmt.Errorf("unknown resolution %q", s)
}

// ParseQuality accepts low, medium and high.
func ParseQuality(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "low":
		return QualityLow, nil
	case "medium":
		return QualityMedium, nil
	case "high":
		return QualityHigh, nil
	}
	return 0, fmt.Errorf("unknown quality %q", s)
}

// Size returns the frame size of the preset.
func (r Resolution) Size() (width, height int) {
	switch r {
	case Res720p:
		return 1280, 720
	case Res4K:
		return 3840, 2160
	default:
		return 1920, 1080
	}
}

// ResolutionFor picks the smallest preset at least height lines tall.
func ResolutionFor(height int) Resolution {
	switch {
	case height <= 720:
		return Res720p
	case height <= 1080:
		return Res1080p
	default:
		return Res4K
	}
}

// BaseBitrate is the 30fps, medium-quality bitrate of the preset.
func (r Resolution) BaseBitrate() int {
	switch r {
	case Res720p:
		return 5_000_000
	case Res4K:
		return 35_000_000
	default:
		return 10_000_000
	}
}

// Bitrate computes base(res) x quality x fps/30.
func Bitrate(res Resolution, quality, fps float64) int {
	return int(float64(res.BaseBitrate()) * quality * fps / 30)
}

// ExportConfig describes the output. Width, Height and VideoBitrate override
// the values derived from Resolution and Quality when set.
type ExportConfig struct {
	Resolution   Resolution
	Quality      float64
	FPS          float64
	AudioBitrate int
	Width        int
	Height       int
	VideoBitrate int
	Preset       string
}

// DefaultExportConfig is 1080p, medium quality, 30fps, 192k audio.
func DefaultExportConfig() ExportConfig {
	return ExportConfig{
		Resolution:   Res1080p,
		Quality:      QualityMedium,
		FPS:          30,
		AudioBitrate: 192_000,
	}
}

// Size returns the output frame size.
func (c ExportConfig) Size() (int, int) {
	if c.Width > 0 && c.Height > 0 {
		return c.Width, c.Height
	}
	return c.Resolution.Size()
}

// Bitrate returns the output video bitrate.
func (c ExportConfig) Bitrate() int {
	if c.VideoBitrate > 0 {
		return c.VideoBitrate
	}
	q := c.Quality
	if q <= 0 {
		q = QualityMedium
	}
	return Bitrate(c.Resolution, q, c.frameRate())
}

func (c ExportConfig) frameRate() float64 {
	if c.FPS <= 0 {
		return 30
	}
	return c.FPS
}

// TrackKind distinguishes the tracks of a source.
type TrackKind int

const (
	VideoTrack TrackKind = iota
	AudioTrack
)

// TrackInfo describes one elementary stream of a source.
type TrackInfo struct {
	Index      int
	Kind       TrackKind
	Codec      string
	Container  string // how audio packets are framed, e.g. "matroska" or "wav"
	Width      int
	Height     int
	FPS        float64
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// Frame is one decoded picture.
type Frame struct {
	Image *image.NRGBA
	PTS   time.Duration
}

// Packet is a chunk of an encoded stream.
type Packet struct {
	Data []byte
	PTS  time.Duration
}

// StreamFormat is the encoder's output format, known once it produces data.
type StreamFormat struct {
	Codec   string
	Width   int
	Height  int
	FPS     float64
	Bitrate int
}

// EncoderConfig configures a video encoder.
type EncoderConfig struct {
	Width   int
	Height  int
	FPS     float64
	Bitrate int
	Preset  string
}

// Backend opens the codec resources of an export.
type Backend interface {
	OpenSource(ctx context.Context, path string) (Source, error)
	NewEncoder(ctx context.Context, cfg EncoderConfig) (Encoder, error)
	NewMuxer(ctx context.Context, path string) (Muxer, error)
}

// Source is an opened input with its tracks.
type Source interface {
	Tracks() []TrackInfo
	Duration() time.Duration
	OpenVideo(ctx context.Context, track TrackInfo, width, height int, fps float64) (FrameDecoder, error)
	OpenAudio(ctx context.Context, track TrackInfo) (PacketReader, error)
	Close() error
}

// FrameDecoder yields frames until io.EOF.
type FrameDecoder interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// PacketReader yields compressed packets until io.EOF.
type PacketReader interface {
	Next(ctx context.Context) (Packet, error)
	Close() error
}

// Encoder turns frames into packets. Encode may buffer and return nothing;
// Flush drains whatever is left.
type Encoder interface {
	Encode(ctx context.Context, frame Frame) ([]Packet, error)
	Flush(ctx context.Context) ([]Packet, error)
	Format() StreamFormat
	Close() error
}

// Muxer writes the output container. Tracks are added before Start; Stop
// finalises the file and Close releases it.
type Muxer interface {
	AddVideoTrack(format StreamFormat) error
	AddAudioTrack(track TrackInfo) error
	Start() error
	WriteVideo(p Packet) error
	WriteAudio(p Packet) error
	Stop() error
	Close() error
}

// MediaStore makes finished exports visible outside the app.
type MediaStore interface {
	Register(ctx context.Context, path, name, mimeType string) (string, error)
}

// FrameHook processes each decoded frame before it is encoded.
type FrameHook func(ctx context.Context, frame *image.NRGBA, pts time.Duration) (*image.NRGBA, error)
