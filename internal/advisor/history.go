package advisor

import (
	"slices"
	"sync"
)

// History is the ordered, append-only record of committed turns for one
// session. It is never persisted.
type History struct {
	mu    sync.Mutex
	turns []Turn
}

func (h *History) append(t Turn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, t)
	return len(h.turns)
}

// Snapshot returns a copy of all turns in commit order.
func (h *History) Snapshot() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.turns)
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Clear drops every turn. Clearing an empty history is a no-op.
func (h *History) Clear() {
	h.mu.Lock()
	h.turns = nil
	h.mu.Unlock()
}
