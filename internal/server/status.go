package server

import (
	"context"
	"sync"
	"time"

	"github.com/alkime/dictate/internal/pipeline"
)

// Status is the last known pipeline state.
type Status struct {
	Generation uint64         `json:"generation"`
	State      pipeline.State `json:"state"`
	Level      float64        `json:"level"`
	ElapsedMs  int64          `json:"elapsedMs"`
	LastText   string         `json:"lastText,omitempty"`
	LastError  string         `json:"lastError,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// StatusTracker folds pipeline events into a Status snapshot.
type StatusTracker struct {
	mu     sync.RWMutex
	status Status
	now    func() time.Time
}

// NewStatusTracker starts in the idle state.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		status: Status{State: pipeline.StateIdle},
		now:    time.Now,
	}
}

// Watch applies events until ctx is done or events is closed.
func (t *StatusTracker) Watch(ctx context.Context, events <-chan pipeline.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			t.Apply(ev)
		}
	}
}

// Apply folds one event into the snapshot.
func (t *StatusTracker) Apply(ev pipeline.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.status
	s.Generation = max(s.Generation, ev.Generation)
	s.UpdatedAt = t.now()

	switch ev.Kind {
	case pipeline.EventState, pipeline.EventCycle:
		s.State = ev.State
		switch ev.State {
		case pipeline.StateWillStart:
			s.Level, s.ElapsedMs = 0, 0
		case pipeline.StateComplete:
			s.LastText, s.LastError = ev.Text, ev.Err
		}
	case pipeline.EventLevel:
		s.Level = ev.Level
	case pipeline.EventElapsed:
		s.ElapsedMs = ev.Elapsed.Milliseconds()
	}
}

// Snapshot returns a copy of the current status.
func (t *StatusTracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.status
}
