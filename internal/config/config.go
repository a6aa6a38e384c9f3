package config

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	WorkDir     string `yaml:"work_dir"`
	TempDir     string `yaml:"temp_dir"`
	Concurrency int    `yaml:"concurrency"`
	LogFile     string `yaml:"log_file"`

	// Defaults for new projects
	Project ProjectConfig `yaml:"project"`

	// Export settings
	Export ExportConfig `yaml:"export"`

	// Audio mixer settings
	Audio AudioConfig `yaml:"audio"`

	// FFmpeg settings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	// Background segmentation model
	Segmentation SegmentationConfig `yaml:"segmentation"`

	// Text overlay defaults
	Text TextConfig `yaml:"text"`

	// Export catalogue
	MediaStore MediaStoreConfig `yaml:"media_store"`

	// Sticker name -> image path
	Stickers map[string]string `yaml:"stickers"`
}

type ProjectConfig struct {
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	FPS    float64 `yaml:"fps"`
}

type ExportConfig struct {
	Resolution             string  `yaml:"resolution"`
	Quality                string  `yaml:"quality"`
	FPS                    float64 `yaml:"fps"`
	AudioBitrate           string  `yaml:"audio_bitrate"`
	OutputDir              string  `yaml:"output_dir"`
	FilePrefix             string  `yaml:"file_prefix"`
	DeletePartialOnFailure bool    `yaml:"delete_partial_on_failure"`
}

type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
	Threads    int    `yaml:"threads"`
	Preset     string `yaml:"preset"`
}

type SegmentationConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ModelPath   string `yaml:"model_path"`
	LibraryPath string `yaml:"library_path"`
	InputSize   int    `yaml:"input_size"`
	InputName   string `yaml:"input_name"`
	OutputName  string `yaml:"output_name"`
}

type TextConfig struct {
	FontSize    float64 `yaml:"font_size"`
	Color       string  `yaml:"color"`
	StrokeColor string  `yaml:"stroke_color"`
	StrokeWidth float64 `yaml:"stroke_width"`
	Background  string  `yaml:"background"`
	Shadow      bool    `yaml:"shadow"`
}

type MediaStoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Project.Width <= 0 || c.Project.Height <= 0 {
		return fmt.Errorf("project size must be positive, got %dx%d", c.Project.Width, c.Project.Height)
	}
	if c.Project.FPS <= 0 {
		return fmt.Errorf("project fps must be positive, got %v", c.Project.FPS)
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("audio channels must be 1 or 2, got %d", c.Audio.Channels)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio sample rate must be positive, got %d", c.Audio.SampleRate)
	}
	for _, s := range []string{c.Text.Color, c.Text.StrokeColor, c.Text.Background} {
		if _, err := ParseColor(s); err != nil {
			return err
		}
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		WorkDir:     "./work",
		TempDir:     "./temp",
		Concurrency: 4,
		Project: ProjectConfig{
			Width:  1920,
			Height: 1080,
			FPS:    30,
		},
		Export: ExportConfig{
			Resolution:             "1080p",
			Quality:                "medium",
			FPS:                    30,
			AudioBitrate:           "192k",
			OutputDir:              "./exports",
			FilePrefix:             "vortex",
			DeletePartialOnFailure: true,
		},
		Audio: AudioConfig{
			SampleRate: 44100,
			Channels:   2,
		},
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
			Preset:     "medium",
		},
		Segmentation: SegmentationConfig{
			Enabled:    false,
			ModelPath:  "./models/selfie_segmentation.onnx",
			InputSize:  256,
			InputName:  "input",
			OutputName: "output",
		},
		Text: TextConfig{
			FontSize:    48,
			Color:       "#FFFFFF",
			StrokeColor: "#000000",
			StrokeWidth: 2,
			Shadow:      true,
		},
		MediaStore: MediaStoreConfig{
			Enabled: true,
			Path:    filepath.Join(homeDir(), "media.db"),
		},
		Stickers: make(map[string]string),
	}
}

func homeDir() string {
	return filepath.Join(os.Getenv("HOME"), ".vortex")
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(homeDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// ParseColor reads #RGB, #RRGGBB or #RRGGBBAA. An empty string is
// transparent.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return color.NRGBA{}, nil
	}
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
