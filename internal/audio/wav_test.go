package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteWAVOneSecondStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	samples := make([]int16, 44100*2)
	samples[0], samples[1] = -5, 7

	require.NoError(t, WriteWAVFile(path, samples, 44100, 2))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 44+44100*2*2)

	le := binary.LittleEndian
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, uint32(len(data)-8), le.Uint32(data[4:8]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))
	assert.Equal(t, uint32(16), le.Uint32(data[16:20]))
	assert.Equal(t, uint16(1), le.Uint16(data[20:22]))
	assert.Equal(t, uint16(2), le.Uint16(data[22:24]))
	assert.Equal(t, uint32(44100), le.Uint32(data[24:28]))
	assert.Equal(t, uint32(44100*2*2), le.Uint32(data[28:32]))
	assert.Equal(t, uint16(4), le.Uint16(data[32:34]))
	assert.Equal(t, uint16(16), le.Uint16(data[34:36]))
	assert.Equal(t, "data", string(data[36:40]))
	assert.Equal(t, uint32(44100*2*2), le.Uint32(data[40:44]))

	wav, err := ReadWAVFile(path)
	require.NoError(t, err)
	assert.Equal(t, 44100, wav.SampleRate)
	assert.Equal(t, 2, wav.Channels)
	assert.Equal(t, 16, wav.BitsPerSample)
	assert.Equal(t, int16(-5), wav.Samples[0])
	assert.Equal(t, int16(7), wav.Samples[1])
}

func TestWAVDataSizeLimit(t *testing.T) {
	size, err := wavDataSize(44100 * 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(44100*2*2), size)

	maxSamples := (math.MaxUint32 - WAVHeaderSize + 8) / 2
	_, err = wavDataSize(maxSamples)
	require.NoError(t, err)

	_, err = wavDataSize(maxSamples + 1)
	assert.ErrorIs(t, err, ErrWAVTooLarge)
	_, err = wavDataSize(7 * 3600 * 44100 * 2)
	assert.ErrorIs(t, err, ErrWAVTooLarge)
}

func TestReadWAVSkipsUnknownChunks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWAV(&buf, []int16{1, 2, 3, 4}, 8000, 1))
	raw := buf.Bytes()

	// splice a LIST chunk with an odd payload between fmt and data
	var spliced bytes.Buffer
	spliced.Write(raw[:36])
	spliced.WriteString("LIST")
	binary.Write(&spliced, binary.LittleEndian, uint32(3))
	spliced.Write([]byte{'a', 'b', 'c', 0})
	spliced.Write(raw[36:])

	wav, err := ReadWAV(&spliced)
	require.NoError(t, err)
	assert.Equal(t, []int16{1, 2, 3, 4}, wav.Samples)
	assert.Equal(t, 8000, wav.SampleRate)
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	_, err := ReadWAV(bytes.NewReader([]byte("not a wav file at all, really")))
	assert.ErrorIs(t, err, ErrUnsupportedWAV)
}

func TestWAVDecoderConvertsFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	require.NoError(t, WriteWAVFile(path, []int16{100, 200, 300, 400}, 22050, 1))

	pcm, err := WAVDecoder{}.DecodePCM(t.Context(), path, 44100, 2)
	require.NoError(t, err)
	require.Len(t, pcm, 16)
	assert.Equal(t, []int16{100, 100, 150, 150, 200, 200}, pcm[:6])
}

func TestWAVDecoderFallback(t *testing.T) {
	called := false
	d := WAVDecoder{Fallback: DecoderFunc(func(_ context.Context, path string, _, _ int) ([]int16, error) {
		called = true
		return nil, nil
	})}

	_, err := d.DecodePCM(t.Context(), "clip.mp4", 44100, 2)
	require.NoError(t, err)
	assert.True(t, called)
}
