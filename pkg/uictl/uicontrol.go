// Package uictl holds the small control contracts shared between the terminal
// UI and the components it drives.
package uictl

import (
	"sync"

	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer | constraints.Float
}

// Knob is a simple on/off toggle control.
type Knob interface {
	Read() bool
	On()
	Off()
	Toggle()
}

// Levels is a control that can read multiple levels.
type Levels[N Number] interface {
	Read() []N
}

// History is a bounded Levels fed by Push. Safe for concurrent use.
type History[N Number] struct {
	mu     sync.Mutex
	size   int
	values []N
}

// NewHistory keeps the newest size values.
func NewHistory[N Number](size int) *History[N] {
	return &History[N]{size: max(size, 1)}
}

// Push appends v, evicting the oldest value when full.
func (h *History[N]) Push(v N) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.values) == h.size {
		copy(h.values, h.values[1:])
		h.values[len(h.values)-1] = v
		return
	}
	h.values = append(h.values, v)
}

// Read returns a copy of the values, oldest first.
func (h *History[N]) Read() []N {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]N, len(h.values))
	copy(out, h.values)

	return out
}

// Reset drops every value.
func (h *History[N]) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.values = h.values[:0]
}
