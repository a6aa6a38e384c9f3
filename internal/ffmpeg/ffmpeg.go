// Package ffmpeg drives the ffmpeg and ffprobe binaries. It supplies the
// codec backend of the export pipeline, single-frame extraction for the
// compositor and PCM decoding for the audio mixer.
package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Options locates the binaries. Empty paths are looked up in PATH.
type Options struct {
	FFmpegPath  string
	FFprobePath string
	Threads     int
	Preset      string
}

// Executor handles all ffmpeg operations with progress streaming
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
	preset      string
}

// New creates a new ffmpeg executor
func New(logger zerolog.Logger, opts Options) (*Executor, error) {
	ffmpegPath, err := lookPath(opts.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobePath, err := lookPath(opts.FFprobePath, "ffprobe")
	if err != nil {
		return nil, err
	}

	preset := opts.Preset
	if preset == "" {
		preset = DefaultPreset
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     opts.Threads,
		preset:      preset,
	}, nil
}

func lookPath(configured, name string) (string, error) {
	if configured == "" {
		configured = name
	}
	path, err := exec.LookPath(configured)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return path, nil
}

func (e *Executor) baseArgs(progress bool) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "info"}
	if e.threads > 0 {
		args = append(args, "-threads", fmt.Sprintf("%d", e.threads))
	}
	if progress {
		args = append(args, "-progress", "pipe:2")
	}
	return args
}

// Run executes ffmpeg with the given arguments and streams progress
func (e *Executor) Run(ctx context.Context, opts RunOptions) error {
	if len(opts.Args) == 0 {
		return fmt.Errorf("no arguments provided")
	}

	args := append(e.baseArgs(true), opts.Args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", args).
		Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		e.streamOutput(stderr, opts.ProgressHandler, opts.LogHandler)
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if opts.LogHandler != nil {
				opts.LogHandler(scanner.Text())
			}
		}
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}

	e.logger.Debug().Msg("ffmpeg execution completed")
	return nil
}

// Process is a running ffmpeg with piped stdin and stdout.
type Process struct {
	cmd    *exec.Cmd
	Stdin  io.WriteCloser
	Stdout io.ReadCloser

	logs sync.WaitGroup
	once sync.Once
	mu   sync.Mutex
	tail []string
	err  error
}

// Start launches ffmpeg for streaming use. Stdin is only piped when
// withStdin is set.
func (e *Executor) Start(ctx context.Context, args []string, withStdin bool) (*Process, error) {
	args = append(e.baseArgs(false), args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", args).
		Msg("starting ffmpeg process")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	p := &Process{cmd: cmd}

	var err error
	if withStdin {
		if p.Stdin, err = cmd.StdinPipe(); err != nil {
			return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
		}
	}
	if p.Stdout, err = cmd.StdoutPipe(); err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	p.logs.Add(1)
	go func() {
		defer p.logs.Done()
		e.streamOutput(stderr, nil, func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("process output")
			p.remember(line)
		})
	}()
	return p, nil
}

const tailLines = 8

func (p *Process) remember(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tail = append(p.tail, line)
	if len(p.tail) > tailLines {
		p.tail = p.tail[len(p.tail)-tailLines:]
	}
}

// Wait closes stdin, waits for exit and reports a failure together with the
// last lines ffmpeg logged. Stdout must be drained first. It is safe to call
// more than once.
func (p *Process) Wait() error {
	p.once.Do(func() {
		if p.Stdin != nil {
			_ = p.Stdin.Close()
		}
		p.logs.Wait()
		if err := p.cmd.Wait(); err != nil {
			p.mu.Lock()
			tail := strings.Join(p.tail, " | ")
			p.mu.Unlock()
			p.err = fmt.Errorf("ffmpeg exited: %w: %s", err, tail)
		}
	})
	return p.err
}

// Kill stops the process and reaps it.
func (p *Process) Kill() error {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	err := p.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// streamOutput parses ffmpeg output and calls handlers
func (e *Executor) streamOutput(r io.Reader, progressHandler func(*Progress), logHandler func(string)) {
	scanner := bufio.NewScanner(r)
	progressData := &Progress{}

	for scanner.Scan() {
		line := scanner.Text()

		if logHandler != nil {
			logHandler(line)
		}

		switch {
		case strings.HasPrefix(line, "frame="):
			fmt.Sscanf(line, "frame=%d", &progressData.Frame)
		case strings.HasPrefix(line, "fps="):
			fmt.Sscanf(line, "fps=%f", &progressData.FPS)
		case strings.HasPrefix(line, "bitrate="):
			progressData.Bitrate = value(line)
		case strings.HasPrefix(line, "out_time_us="):
			fmt.Sscanf(line, "out_time_us=%d", &progressData.OutTimeUS)
		case strings.HasPrefix(line, "time="):
			progressData.Time = value(line)
		case strings.HasPrefix(line, "speed="):
			progressData.Speed = value(line)
		case strings.HasPrefix(line, "progress="):
			// End of progress block
			if progressHandler != nil && (progressData.Frame > 0 || progressData.OutTimeUS > 0) {
				progressHandler(progressData)
			}
			progressData = &Progress{}
		}
	}
}

func value(line string) string {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
