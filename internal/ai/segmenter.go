// Package ai runs the foreground segmentation model behind the
// background.Segmenter interface.
package ai

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/keagan/vortex/internal/background"
)

// SegmenterConfig describes the ONNX model.
type SegmenterConfig struct {
	ModelPath   string
	LibraryPath string // onnxruntime shared library, optional
	InputSize   int
	InputName   string
	OutputName  string
	Mean        [3]float32
	Std         [3]float32
}

// DefaultSegmenterConfig matches a 256x256 selfie segmentation export with
// inputs scaled to [0,1].
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		InputSize:  256,
		InputName:  "input",
		OutputName: "output",
		Std:        [3]float32{1, 1, 1},
	}
}

// Segmenter produces foreground masks with an ONNX model.
type Segmenter struct {
	logger  zerolog.Logger
	cfg     SegmenterConfig
	shape   ort.Shape
	session *ort.DynamicAdvancedSession
}

// NewSegmenter loads the model and initialises the ONNX runtime.
func NewSegmenter(logger zerolog.Logger, cfg SegmenterConfig) (*Segmenter, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if cfg.InputSize <= 0 {
		return nil, fmt.Errorf("invalid model input size %d", cfg.InputSize)
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	sess, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		nil,
	)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create segmentation session: %w", err)
	}

	logger.Info().
		Str("model", cfg.ModelPath).
		Int("input_size", cfg.InputSize).
		Msg("segmentation model loaded")

	n := int64(cfg.InputSize)
	return &Segmenter{
		logger:  logger.With().Str("component", "segmenter").Logger(),
		cfg:     cfg,
		shape:   ort.NewShape(1, 3, n, n),
		session: sess,
	}, nil
}

// Segment implements background.Segmenter. The mask has the model's
// resolution; background.Apply maps it onto the frame.
func (s *Segmenter) Segment(ctx context.Context, frame *image.NRGBA) (*background.Mask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, err := ort.NewTensor(s.shape, Preprocess(frame, s.cfg.InputSize, s.cfg.Mean, s.cfg.Std))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	n := int64(s.cfg.InputSize)
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, n, n))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer output.Destroy()

	if err := s.session.Run([]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}); err != nil {
		return nil, fmt.Errorf("segmentation inference failed: %w", err)
	}

	mask := MaskFromOutput(output.GetData(), s.cfg.InputSize)
	s.logger.Debug().
		Int("frame_w", frame.Bounds().Dx()).
		Int("frame_h", frame.Bounds().Dy()).
		Msg("segmentation complete")
	return mask, nil
}

// Close releases the session and the ONNX environment.
func (s *Segmenter) Close() error {
	s.logger.Info().Msg("closing segmentation session")
	if s.session != nil {
		if err := s.session.Destroy(); err != nil {
			return err
		}
	}
	return ort.DestroyEnvironment()
}

// Preprocess scales frame to size x size and lays it out as normalised
// float32 NCHW planes.
func Preprocess(frame image.Image, size int, mean, std [3]float32) []float32 {
	resized := resize.Resize(uint(size), uint(size), frame, resize.Bilinear)
	plane := size * size
	data := make([]float32, 3*plane)

	b := resized.Bounds()
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, bl, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*size + x
			for ch, v := range [3]uint32{r, g, bl} {
				sd := std[ch]
				if sd == 0 {
					sd = 1
				}
				data[ch*plane+i] = (float32(v>>8)/255 - mean[ch]) / sd
			}
		}
	}
	return data
}

// MaskFromOutput turns a size x size confidence plane into a mask, clamping
// each value to [0,1].
func MaskFromOutput(data []float32, size int) *background.Mask {
	mask := background.NewMask(size, size)
	for i := range mask.Confidence {
		if i >= len(data) {
			break
		}
		mask.Confidence[i] = min(1, max(0, data[i]))
	}
	return mask
}
