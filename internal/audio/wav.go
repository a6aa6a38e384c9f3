package audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// WAVHeaderSize is the size of the canonical 16-bit PCM header.
const WAVHeaderSize = 44

// ErrUnsupportedWAV is returned for non-PCM or non-16-bit files.
var ErrUnsupportedWAV = errors.New("unsupported wav format")

type wavHeader struct {
	RIFF          [4]byte
	FileSize      uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

// WAV is a decoded 16-bit PCM file.
type WAV struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Samples       []int16
}

// WriteWAV serializes interleaved 16-bit samples as a PCM WAV stream.
func WriteWAV(w io.Writer, samples []int16, sampleRate, channels int) error {
	dataSize, err := wavDataSize(len(samples))
	if err != nil {
		return err
	}
	h := wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		FileSize:      WAVHeaderSize + dataSize - 8,
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * 2),
		BlockAlign:    uint16(channels * 2),
		BitsPerSample: 16,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      dataSize,
	}

	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("failed to write wav header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	return nil
}

// ErrWAVTooLarge is returned when the sample data cannot be described by
// the 32-bit RIFF sizes.
var ErrWAVTooLarge = errors.New("wav data exceeds 4 GiB")

func wavDataSize(samples int) (uint32, error) {
	size := uint64(samples) * 2
	if size+WAVHeaderSize-8 > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d samples", ErrWAVTooLarge, samples)
	}
	return uint32(size), nil
}

// WriteWAVFile writes samples to path.
func WriteWAVFile(path string, samples []int16, sampleRate, channels int) error {
	if _, err := wavDataSize(len(samples)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}

	bw := bufio.NewWriter(f)
	if err := WriteWAV(bw, samples, sampleRate, channels); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush wav file: %w", err)
	}
	return f.Close()
}

// ReadWAV parses a RIFF/WAVE stream, skipping chunks other than fmt and data.
func ReadWAV(r io.Reader) (*WAV, error) {
	var riff struct {
		ID   [4]byte
		Size uint32
		Form [4]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return nil, fmt.Errorf("failed to read riff header: %w", err)
	}
	if string(riff.ID[:]) != "RIFF" || string(riff.Form[:]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE stream", ErrUnsupportedWAV)
	}

	var (
		out     WAV
		haveFmt bool
	)
	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			return nil, fmt.Errorf("failed to read chunk header: %w", err)
		}

		switch string(chunk.ID[:]) {
		case "fmt ":
			var f struct {
				AudioFormat   uint16
				Channels      uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
				return nil, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			if f.AudioFormat != 1 || f.BitsPerSample != 16 {
				return nil, fmt.Errorf("%w: format=%d bits=%d", ErrUnsupportedWAV, f.AudioFormat, f.BitsPerSample)
			}
			if extra := int64(chunk.Size) - 16; extra > 0 {
				if _, err := io.CopyN(io.Discard, r, extra); err != nil {
					return nil, fmt.Errorf("failed to skip fmt extension: %w", err)
				}
			}
			out.SampleRate = int(f.SampleRate)
			out.Channels = int(f.Channels)
			out.BitsPerSample = int(f.BitsPerSample)
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt", ErrUnsupportedWAV)
			}
			out.Samples = make([]int16, chunk.Size/2)
			if err := binary.Read(r, binary.LittleEndian, out.Samples); err != nil {
				return nil, fmt.Errorf("failed to read samples: %w", err)
			}
			return &out, nil

		default:
			skip := int64(chunk.Size) + int64(chunk.Size&1)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("failed to skip %q chunk: %w", chunk.ID[:], err)
			}
		}
	}
}

// ReadWAVFile opens and parses path.
func ReadWAVFile(path string) (*WAV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer f.Close()

	return ReadWAV(bufio.NewReader(f))
}
