// Package timeline holds the editable project model: tracks of trimmed,
// time-placed clips with their filters, transitions and background settings.
//
// Mutations are synchronous and last-write-wins. Clips may overlap on a
// track; trimming never ripples neighbouring clips. Export works on a
// Snapshot so editing can continue while it runs.
package timeline

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/keagan/vortex/internal/background"
	"github.com/keagan/vortex/internal/effects"
	"github.com/keagan/vortex/internal/transitions"
)

var (
	ErrClipNotFound   = errors.New("clip not found")
	ErrTrackNotFound  = errors.New("track not found")
	ErrFilterNotFound = errors.New("filter not found")
	ErrInvalidTrim    = errors.New("trim out must be after trim in")
	ErrInvalidSplit   = errors.New("split point outside clip")
	ErrInvalidSource  = errors.New("source duration must be positive")
)

const (
	MinSpeed  = 0.1
	MaxSpeed  = 10.0
	MaxVolume = 2.0
)

// TrackKind tells the compositor whether a track carries pictures.
type TrackKind string

const (
	VideoTrack TrackKind = "video"
	AudioTrack TrackKind = "audio"
)

// Track is an ordered lane of clips.
type Track struct {
	Index int
	Kind  TrackKind
	Clips []*Clip
}

// TransitionSpec blends the last Duration of a clip into the next clip on
// the same track.
type TransitionSpec struct {
	Kind     transitions.Kind `yaml:"kind"`
	Duration time.Duration    `yaml:"duration"`
}

// Clip is a trimmed, time-placed reference to a source file.
type Clip struct {
	ID             int
	Source         string
	SourceDuration time.Duration
	TrackIndex     int
	Start          time.Duration
	TrimIn         time.Duration
	TrimOut        time.Duration
	Speed          float64
	Volume         float64
	Filters        []effects.Filter
	Transition     *TransitionSpec
	Background     *background.Options
}

// EffectiveDuration is the time the clip occupies on the timeline.
func (c Clip) EffectiveDuration() time.Duration {
	return time.Duration(float64(c.TrimOut-c.TrimIn) / c.Speed)
}

// End is the first timeline instant after the clip.
func (c Clip) End() time.Duration {
	return c.Start + c.EffectiveDuration()
}

// Contains reports whether t falls inside [Start, End).
func (c Clip) Contains(t time.Duration) bool {
	return t >= c.Start && t < c.End()
}

// SourceTime maps timeline time t to a position in the source media.
func (c Clip) SourceTime(t time.Duration) time.Duration {
	return c.TrimIn + time.Duration(float64(t-c.Start)*c.Speed)
}

func (c *Clip) clone() *Clip {
	cp := *c
	cp.Filters = append([]effects.Filter(nil), c.Filters...)
	if c.Transition != nil {
		tr := *c.Transition
		cp.Transition = &tr
	}
	if c.Background != nil {
		bg := *c.Background
		cp.Background = &bg
	}
	return &cp
}

// Project is the root of the editing model.
type Project struct {
	Width  int
	Height int
	FPS    float64
	Tracks []*Track

	mu           sync.RWMutex
	nextClipID   int
	nextFilterID int
}

// NewProject creates a project with the default video, overlay and audio
// tracks.
func NewProject(width, height int, fps float64) *Project {
	p := &Project{Width: width, Height: height, FPS: fps, nextClipID: 1, nextFilterID: 1}
	p.Tracks = []*Track{
		{Index: 0, Kind: VideoTrack},
		{Index: 1, Kind: VideoTrack},
		{Index: 2, Kind: AudioTrack},
	}
	return p
}

// AddTrack appends a track and returns its index.
func (p *Project) AddTrack(kind TrackKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := len(p.Tracks)
	p.Tracks = append(p.Tracks, &Track{Index: idx, Kind: kind})
	return idx
}

// Duration is the end of the last clip.
func (p *Project) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var d time.Duration
	for _, tr := range p.Tracks {
		for _, c := range tr.Clips {
			d = max(d, c.End())
		}
	}
	return d
}

// AddClip places the whole of source on track at start.
func (p *Project) AddClip(source string, sourceDuration time.Duration, track int, start time.Duration) (Clip, error) {
	if sourceDuration <= 0 {
		return Clip{}, ErrInvalidSource
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	tr, err := p.track(track)
	if err != nil {
		return Clip{}, err
	}
	c := &Clip{
		ID:             p.nextClipID,
		Source:         source,
		SourceDuration: sourceDuration,
		TrackIndex:     track,
		Start:          max(0, start),
		TrimOut:        sourceDuration,
		Speed:          1,
		Volume:         1,
	}
	p.nextClipID++
	tr.insert(c)
	return *c.clone(), nil
}

// RemoveClip deletes a clip.
func (p *Project) RemoveClip(id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tr, i, err := p.find(id)
	if err != nil {
		return err
	}
	tr.Clips = append(tr.Clips[:i], tr.Clips[i+1:]...)
	return nil
}

// MoveClip moves a clip to another track and start time.
func (p *Project) MoveClip(id, track int, start time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	dst, err := p.track(track)
	if err != nil {
		return err
	}
	src, i, err := p.find(id)
	if err != nil {
		return err
	}
	c := src.Clips[i]
	src.Clips = append(src.Clips[:i], src.Clips[i+1:]...)
	c.TrackIndex = track
	c.Start = max(0, start)
	dst.insert(c)
	return nil
}

// TrimClip sets the source range of a clip. Both points are clamped to the
// source and trimOut must end up after trimIn.
func (p *Project) TrimClip(id int, trimIn, trimOut time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, err := p.clip(id)
	if err != nil {
		return err
	}
	trimIn = clampDur(trimIn, 0, c.SourceDuration)
	trimOut = clampDur(trimOut, 0, c.SourceDuration)
	if trimOut <= trimIn {
		return fmt.Errorf("%w: in=%s out=%s", ErrInvalidTrim, trimIn, trimOut)
	}
	c.TrimIn, c.TrimOut = trimIn, trimOut
	return nil
}

// SplitClip cuts a clip at timeline time at, which must fall strictly
// inside it. The second half keeps the transition and is returned.
func (p *Project) SplitClip(id int, at time.Duration) (Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tr, i, err := p.find(id)
	if err != nil {
		return Clip{}, err
	}
	first := tr.Clips[i]
	if at <= first.Start || at >= first.End() {
		return Clip{}, fmt.Errorf("%w: %s not in (%s, %s)", ErrInvalidSplit, at, first.Start, first.End())
	}

	cut := first.SourceTime(at)
	if cut <= first.TrimIn || cut >= first.TrimOut {
		return Clip{}, fmt.Errorf("%w: %s", ErrInvalidSplit, at)
	}

	second := first.clone()
	second.ID = p.nextClipID
	p.nextClipID++
	second.Start = at
	second.TrimIn = cut
	for j := range second.Filters {
		second.Filters[j].ID = p.nextFilterID
		p.nextFilterID++
	}

	first.TrimOut = cut
	first.Transition = nil
	tr.insert(second)
	return *second.clone(), nil
}

// SetClipSpeed sets playback speed, clamped to [MinSpeed, MaxSpeed].
func (p *Project) SetClipSpeed(id int, speed float64) error {
	return p.update(id, func(c *Clip) error {
		c.Speed = max(MinSpeed, min(MaxSpeed, speed))
		return nil
	})
}

// SetClipVolume sets the volume multiplier, clamped to [0, MaxVolume].
func (p *Project) SetClipVolume(id int, volume float64) error {
	return p.update(id, func(c *Clip) error {
		c.Volume = max(0, min(MaxVolume, volume))
		return nil
	})
}

// AddFilter appends a filter to the clip's chain.
func (p *Project) AddFilter(id int, kind effects.Kind, intensity float64) (effects.Filter, error) {
	if _, err := effects.ParseKind(string(kind)); err != nil {
		return effects.Filter{}, err
	}
	var f effects.Filter
	err := p.update(id, func(c *Clip) error {
		f = effects.Filter{ID: p.nextFilterID, Kind: kind, Intensity: intensity}
		p.nextFilterID++
		c.Filters = append(c.Filters, f)
		return nil
	})
	return f, err
}

// RemoveFilter drops one filter from a clip's chain.
func (p *Project) RemoveFilter(id, filterID int) error {
	return p.update(id, func(c *Clip) error {
		for i, f := range c.Filters {
			if f.ID == filterID {
				c.Filters = append(c.Filters[:i], c.Filters[i+1:]...)
				return nil
			}
		}
		return ErrFilterNotFound
	})
}

// SetTransition sets or, with nil, clears the transition out of a clip.
func (p *Project) SetTransition(id int, spec *TransitionSpec) error {
	return p.update(id, func(c *Clip) error {
		if spec == nil {
			c.Transition = nil
			return nil
		}
		tr := *spec
		tr.Duration = max(0, tr.Duration)
		c.Transition = &tr
		return nil
	})
}

// SetBackground sets or, with nil, clears background replacement.
func (p *Project) SetBackground(id int, opts *background.Options) error {
	return p.update(id, func(c *Clip) error {
		if opts == nil {
			c.Background = nil
			return nil
		}
		o := *opts
		c.Background = &o
		return nil
	})
}

// Clip returns a copy of one clip.
func (p *Project) Clip(id int) (Clip, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, err := p.clip(id)
	if err != nil {
		return Clip{}, false
	}
	return *c.clone(), true
}

// Clips returns copies of all clips ordered by track then start.
func (p *Project) Clips() []Clip {
	return p.collect(func(*Clip) bool { return true })
}

// ClipsAt returns the clips covering t ordered by track index.
func (p *Project) ClipsAt(t time.Duration) []Clip {
	return p.collect(func(c *Clip) bool { return c.Contains(t) })
}

// ClipsInRange returns the clips overlapping [start, end).
func (p *Project) ClipsInRange(start, end time.Duration) []Clip {
	return p.collect(func(c *Clip) bool { return c.Start < end && c.End() > start })
}

// NextClip returns the clip that follows id on the same track.
func (p *Project) NextClip(id int) (Clip, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tr, i, err := p.find(id)
	if err != nil {
		return Clip{}, false
	}
	end := tr.Clips[i].End()
	for _, c := range tr.Clips {
		if c.ID != id && c.Start >= end {
			return *c.clone(), true
		}
	}
	return Clip{}, false
}

// TrackKind returns the kind of track index.
func (p *Project) TrackKind(index int) (TrackKind, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tr, err := p.track(index)
	if err != nil {
		return "", false
	}
	return tr.Kind, true
}

// Snapshot returns a deep copy that shares nothing with p.
func (p *Project) Snapshot() *Project {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cp := &Project{
		Width:        p.Width,
		Height:       p.Height,
		FPS:          p.FPS,
		nextClipID:   p.nextClipID,
		nextFilterID: p.nextFilterID,
	}
	for _, tr := range p.Tracks {
		t := &Track{Index: tr.Index, Kind: tr.Kind, Clips: make([]*Clip, len(tr.Clips))}
		for i, c := range tr.Clips {
			t.Clips[i] = c.clone()
		}
		cp.Tracks = append(cp.Tracks, t)
	}
	return cp
}

// Clear removes every clip but keeps the tracks.
func (p *Project) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tr := range p.Tracks {
		tr.Clips = nil
	}
}

func (p *Project) collect(keep func(*Clip) bool) []Clip {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Clip
	for _, tr := range p.Tracks {
		for _, c := range tr.Clips {
			if keep(c) {
				out = append(out, *c.clone())
			}
		}
	}
	return out
}

func (p *Project) update(id int, fn func(*Clip) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, err := p.clip(id)
	if err != nil {
		return err
	}
	return fn(c)
}

func (p *Project) track(index int) (*Track, error) {
	if index < 0 || index >= len(p.Tracks) {
		return nil, fmt.Errorf("%w: %d", ErrTrackNotFound, index)
	}
	return p.Tracks[index], nil
}

func (p *Project) find(id int) (*Track, int, error) {
	for _, tr := range p.Tracks {
		for i, c := range tr.Clips {
			if c.ID == id {
				return tr, i, nil
			}
		}
	}
	return nil, 0, fmt.Errorf("%w: %d", ErrClipNotFound, id)
}

func (p *Project) clip(id int) (*Clip, error) {
	tr, i, err := p.find(id)
	if err != nil {
		return nil, err
	}
	return tr.Clips[i], nil
}

// insert keeps clips ordered by start, then id.
func (t *Track) insert(c *Clip) {
	t.Clips = append(t.Clips, c)
	sort.SliceStable(t.Clips, func(i, j int) bool {
		if t.Clips[i].Start != t.Clips[j].Start {
			return t.Clips[i].Start < t.Clips[j].Start
		}
		return t.Clips[i].ID < t.Clips[j].ID
	})
}

func clampDur(v, lo, hi time.Duration) time.Duration {
	return max(lo, min(hi, v))
}
