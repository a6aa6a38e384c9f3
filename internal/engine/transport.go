package engine

import "time"

// transport is the playback clock. While playing, the position is the
// position at the last start plus the wall time since, clamped to the
// timeline duration; reaching the end stops playback.
type transport struct {
	playing bool
	base    time.Duration
	since   time.Time
}

func (t *transport) position(now time.Time, duration time.Duration) time.Duration {
	pos := t.base
	if t.playing {
		pos += now.Sub(t.since)
	}
	if pos >= duration {
		pos = duration
		if t.playing {
			t.playing = false
			t.base = duration
		}
	}
	return max(0, pos)
}

// Play starts the clock from the current position. At the end of the
// timeline it restarts from zero.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized || e.transport.playing {
		return
	}
	d := e.project.Duration()
	if d == 0 {
		return
	}
	now := e.opts.Now()
	if e.transport.position(now, d) >= d {
		e.transport.base = 0
	}
	e.transport.playing = true
	e.transport.since = now
	e.logger.Debug().Dur("position", e.transport.base).Msg("playback started")
}

// Pause freezes the clock.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized || !e.transport.playing {
		return
	}
	e.transport.base = e.transport.position(e.opts.Now(), e.project.Duration())
	e.transport.playing = false
}

// Stop pauses and rewinds to zero.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transport = transport{}
}

// SeekTo moves the playhead, clamped to the timeline. Playback continues
// from there when running.
func (e *Engine) SeekTo(position time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return
	}
	e.transport.base = max(0, min(position, e.project.Duration()))
	e.transport.since = e.opts.Now()
}

// CurrentPosition is the playhead position.
func (e *Engine) CurrentPosition() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return 0
	}
	return e.transport.position(e.opts.Now(), e.project.Duration())
}

// IsPlaying reports whether the clock runs. It turns false once the
// playhead reaches the end.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return false
	}
	e.transport.position(e.opts.Now(), e.project.Duration())
	return e.transport.playing
}
