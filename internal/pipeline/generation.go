package pipeline

import "sync/atomic"

// GenerationTracker hands out strictly increasing cycle generations.
// Only the orchestrator loop calls Begin; any goroutine may read.
type GenerationTracker struct {
	counter atomic.Uint64
}

// NewGenerationTracker returns a tracker whose first cycle is generation 1.
func NewGenerationTracker() *GenerationTracker {
	return &GenerationTracker{}
}

// Begin starts a new cycle and returns its generation. Every cycle started
// earlier stops being current as soon as Begin returns.
func (t *GenerationTracker) Begin() uint64 {
	return t.counter.Add(1)
}

// Current returns the generation of the most recently started cycle, or 0
// before the first cycle.
func (t *GenerationTracker) Current() uint64 {
	return t.counter.Load()
}

// IsCurrent reports whether gen is still the live cycle.
func (t *GenerationTracker) IsCurrent(gen uint64) bool {
	return gen != 0 && t.counter.Load() == gen
}
