package engine

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Handle identifies an engine owned by an Arena. Zero is never a valid
// handle.
type Handle int64

// Arena owns engines by handle. Handles increase monotonically and are never
// reused, so a stale handle cannot reach a newer engine.
type Arena struct {
	logger zerolog.Logger
	deps   Deps
	opts   Options

	mu      sync.Mutex
	next    Handle
	engines map[Handle]*Engine
}

// NewArena creates an arena whose engines share deps and opts.
func NewArena(logger zerolog.Logger, deps Deps, opts Options) *Arena {
	return &Arena{
		logger:  logger.With().Str("component", "arena").Logger(),
		deps:    deps,
		opts:    opts,
		next:    1,
		engines: make(map[Handle]*Engine),
	}
}

// Create makes a new, uninitialized engine.
func (a *Arena) Create() Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	h := a.next
	a.next++
	a.engines[h] = New(a.logger.With().Int64("handle", int64(h)).Logger(), a.deps, a.opts)
	a.logger.Debug().Int64("handle", int64(h)).Msg("engine created")
	return h
}

// Get returns the engine for h.
func (a *Arena) Get(h Handle) (*Engine, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.engines[h]
	return e, ok
}

// Destroy releases and forgets the engine. It reports whether h was live.
func (a *Arena) Destroy(h Handle) bool {
	a.mu.Lock()
	e, ok := a.engines[h]
	delete(a.engines, h)
	a.mu.Unlock()

	if !ok {
		return false
	}
	e.Release()
	a.logger.Debug().Int64("handle", int64(h)).Msg("engine destroyed")
	return true
}

// Handles lists the live handles in ascending order.
func (a *Arena) Handles() []Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Handle, 0, len(a.engines))
	for h := range a.engines {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close destroys every engine.
func (a *Arena) Close() {
	for _, h := range a.Handles() {
		a.Destroy(h)
	}
}
