// Package overlays renders time-windowed text and sticker overlays on top of
// composed frames.
package overlays

import (
	"errors"
	"fmt"
	"image"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/keagan/vortex/internal/imaging"
)

// DefaultDuration is how long a newly added overlay stays on screen.
const DefaultDuration = 5 * time.Second

// DefaultAnimDuration is the animation length of a newly added overlay.
const DefaultAnimDuration = 500 * time.Millisecond

var (
	ErrOverlayNotFound = errors.New("overlay not found")
	ErrUnknownSticker  = errors.New("unknown sticker")

	// ErrUnsupportedAnimation is returned when an animation does not apply to
	// the overlay's kind, such as typewriter on a sticker.
	ErrUnsupportedAnimation = errors.New("animation not supported by overlay")
)

// Overlay is anything the renderer can draw.
type Overlay interface {
	OverlayID() int
	Active(t time.Duration) bool
	Draw(dst *image.NRGBA, t time.Duration)
}

// Registry maps sticker names to image files.
type Registry struct {
	mu       sync.RWMutex
	stickers map[string]string
}

// NewRegistry creates a new sticker registry
func NewRegistry() *Registry {
	return &Registry{
		stickers: make(map[string]string),
	}
}

// Register adds a sticker to the registry
func (r *Registry) Register(name, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stickers[name] = path
}

// Get retrieves a sticker path by name
func (r *Registry) Get(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	path, ok := r.stickers[name]
	return path, ok
}

// List returns all registered sticker names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stickers))
	for name := range r.stickers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Manager owns the overlays of a project. Text and stickers share one ID
// sequence so ID order is draw order.
type Manager struct {
	mu       sync.RWMutex
	registry *Registry
	style    TextStyle
	overlays map[int]Overlay
	nextID   int
}

// NewManager creates a manager. Text overlays start from style.
func NewManager(registry *Registry, style TextStyle) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Manager{
		registry: registry,
		style:    style,
		overlays: make(map[int]Overlay),
		nextID:   1,
	}
}

// Registry returns the sticker registry.
func (m *Manager) Registry() *Registry { return m.registry }

func defaultPlacement(x, y float64) Placement {
	return Placement{X: x, Y: y, Scale: 1, Opacity: 1}
}

func defaultWindow(start, duration time.Duration) Window {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return Window{
		Start:        start,
		End:          start + duration,
		Animation:    AnimNone,
		AnimDuration: DefaultAnimDuration,
	}
}

// AddText places text centered at normalized (x, y) for [start, start+duration).
func (m *Manager) AddText(text string, x, y float64, start, duration time.Duration) TextOverlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := &TextOverlay{
		ID:        m.nextID,
		Text:      text,
		Placement: defaultPlacement(x, y),
		Window:    defaultWindow(start, duration),
		Style:     m.style,
	}
	m.nextID++
	m.overlays[o.ID] = o
	return *o
}

// AddSticker places img centered at normalized (x, y).
func (m *Manager) AddSticker(img *image.NRGBA, x, y float64, start, duration time.Duration) StickerOverlay {
	return m.addSticker(&StickerOverlay{Image: img}, x, y, start, duration)
}

// AddStickerFile loads an image file as a sticker.
func (m *Manager) AddStickerFile(path string, x, y float64, start, duration time.Duration) (StickerOverlay, error) {
	img, err := imaging.Load(path)
	if err != nil {
		return StickerOverlay{}, fmt.Errorf("failed to load sticker: %w", err)
	}
	return m.addSticker(&StickerOverlay{Image: img, Source: path}, x, y, start, duration), nil
}

// AddNamedSticker adds a sticker from the registry.
func (m *Manager) AddNamedSticker(name string, x, y float64, start, duration time.Duration) (StickerOverlay, error) {
	path, ok := m.registry.Get(name)
	if !ok {
		return StickerOverlay{}, fmt.Errorf("%w: %s", ErrUnknownSticker, name)
	}
	img, err := imaging.Load(path)
	if err != nil {
		return StickerOverlay{}, fmt.Errorf("failed to load sticker %s: %w", name, err)
	}
	return m.addSticker(&StickerOverlay{Image: img, Name: name, Source: path}, x, y, start, duration), nil
}

func (m *Manager) addSticker(o *StickerOverlay, x, y float64, start, duration time.Duration) StickerOverlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = m.nextID
	o.Placement = defaultPlacement(x, y)
	o.Window = defaultWindow(start, duration)
	m.nextID++
	m.overlays[o.ID] = o
	return *o
}

// UpdateText edits a text overlay in place.
func (m *Manager) UpdateText(id int, fn func(*TextOverlay)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.overlays[id].(*TextOverlay)
	if !ok {
		return fmt.Errorf("%w: text %d", ErrOverlayNotFound, id)
	}
	fn(o)
	return nil
}

// UpdateSticker edits a sticker in place. Scale is kept within
// [MinStickerScale, MaxStickerScale].
func (m *Manager) UpdateSticker(id int, fn func(*StickerOverlay)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.overlays[id].(*StickerOverlay)
	if !ok {
		return fmt.Errorf("%w: sticker %d", ErrOverlayNotFound, id)
	}
	fn(o)
	o.Scale = max(MinStickerScale, min(MaxStickerScale, o.Scale))
	return nil
}

// SetTimeRange moves the window of any overlay.
func (m *Manager) SetTimeRange(id int, start, end time.Duration) error {
	return m.window(id, func(w *Window, _ []Animation) error {
		w.Start, w.End = start, end
		return nil
	})
}

// SetAnimation changes the animation of an overlay. Text overlays accept
// TextAnimations and stickers StickerAnimations.
func (m *Manager) SetAnimation(id int, anim Animation, duration time.Duration) error {
	return m.window(id, func(w *Window, allowed []Animation) error {
		if !slices.Contains(allowed, anim) {
			return fmt.Errorf("%w: %s on overlay %d", ErrUnsupportedAnimation, anim, id)
		}
		w.Animation, w.AnimDuration = anim, max(0, duration)
		return nil
	})
}

func (m *Manager) window(id int, fn func(w *Window, allowed []Animation) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch o := m.overlays[id].(type) {
	case *TextOverlay:
		return fn(&o.Window, textAnimations)
	case *StickerOverlay:
		return fn(&o.Window, stickerAnimations)
	}
	return fmt.Errorf("%w: %d", ErrOverlayNotFound, id)
}

// Remove deletes an overlay.
func (m *Manager) Remove(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.overlays[id]; !ok {
		return fmt.Errorf("%w: %d", ErrOverlayNotFound, id)
	}
	delete(m.overlays, id)
	return nil
}

// Text returns a copy of a text overlay.
func (m *Manager) Text(id int) (TextOverlay, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.overlays[id].(*TextOverlay)
	if !ok {
		return TextOverlay{}, false
	}
	return *o, true
}

// Sticker returns a copy of a sticker overlay.
func (m *Manager) Sticker(id int) (StickerOverlay, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.overlays[id].(*StickerOverlay)
	if !ok {
		return StickerOverlay{}, false
	}
	return *o, true
}

// List returns copies of every overlay in ascending ID order.
func (m *Manager) List() []Overlay {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sorted()
}

// Len returns the number of overlays.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.overlays)
}

// Clear removes every overlay. IDs keep counting.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlays = make(map[int]Overlay)
}

// Snapshot returns an independent copy for rendering during export.
// Sticker images are shared; they are never written.
func (m *Manager) Snapshot() *Manager {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := &Manager{
		registry: m.registry,
		style:    m.style,
		overlays: make(map[int]Overlay, len(m.overlays)),
		nextID:   m.nextID,
	}
	for _, o := range m.sorted() {
		cp.overlays[o.OverlayID()] = o
	}
	return cp
}

// Render draws every overlay active at t onto a copy of frame, lowest ID
// first.
func (m *Manager) Render(frame *image.NRGBA, t time.Duration) *image.NRGBA {
	dst := imaging.Clone(frame)
	for _, o := range m.List() {
		if o.Active(t) {
			o.Draw(dst, t)
		}
	}
	return dst
}

// sorted copies the overlays in ID order. Callers hold m.mu.
func (m *Manager) sorted() []Overlay {
	out := make([]Overlay, 0, len(m.overlays))
	for _, o := range m.overlays {
		switch v := o.(type) {
		case *TextOverlay:
			cp := *v
			out = append(out, &cp)
		case *StickerOverlay:
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OverlayID() < out[j].OverlayID() })
	return out
}
