package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultChunkSize is the packet size of a FileReader.
const DefaultChunkSize = 64 << 10

// FileReader copies an already-encoded file into the muxer chunk by chunk.
// PTS is interpolated from the byte offset, which is exact enough for
// progress reporting.
type FileReader struct {
	f        *os.File
	size     int64
	offset   int64
	duration time.Duration
	buf      []byte
	remove   bool
}

// OpenFileReader opens path. With remove set the file is deleted on Close.
func OpenFileReader(path string, duration time.Duration, remove bool) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileReader{
		f:        f,
		size:     info.Size(),
		duration: duration,
		buf:      make([]byte, DefaultChunkSize),
		remove:   remove,
	}, nil
}

// Next returns the next chunk or io.EOF.
func (r *FileReader) Next(ctx context.Context) (Packet, error) {
	if err := ctx.Err(); err != nil {
		return Packet{}, err
	}
	n, err := r.f.Read(r.buf)
	if n == 0 {
		if err == nil || err == io.EOF {
			return Packet{}, io.EOF
		}
		return Packet{}, fmt.Errorf("read %s: %w", r.f.Name(), err)
	}
	r.offset += int64(n)

	var pts time.Duration
	if r.size > 0 {
		pts = time.Duration(float64(r.duration) * float64(r.offset) / float64(r.size))
	}
	return Packet{Data: append([]byte(nil), r.buf[:n]...), PTS: pts}, nil
}

// Close closes and optionally removes the file.
func (r *FileReader) Close() error {
	err := r.f.Close()
	if r.remove {
		if rerr := os.Remove(r.f.Name()); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}
