package tui

import (
	"context"
	"sync"

	"github.com/alkime/dictate/internal/pipeline"
	"github.com/alkime/dictate/pkg/uictl"
	tea "github.com/charmbracelet/bubbletea"
)

// Bridge connects the orchestrator to a running program. It implements
// pipeline.Indicator and pipeline.Notifier, and forwards pipeline events.
// Messages sent before Attach are dropped.
type Bridge struct {
	levels *uictl.History[float64]

	mu   sync.RWMutex
	send func(tea.Msg)
}

// NewBridge feeds level events into levels.
func NewBridge(levels *uictl.History[float64]) *Bridge {
	return &Bridge{levels: levels}
}

// Attach starts delivery. Pass (*tea.Program).Send.
func (b *Bridge) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.send = send
}

// SetIndicatorVisible implements pipeline.Indicator. Showing the indicator
// clears the meter for the new cycle.
func (b *Bridge) SetIndicatorVisible(visible bool) {
	if visible {
		b.levels.Reset()
	}
	b.dispatch(IndicatorMsg{Visible: visible})
}

// Notify implements pipeline.Notifier.
func (b *Bridge) Notify(n pipeline.Notification) {
	b.dispatch(NotificationMsg{Notification: n})
}

// Watch forwards events until ctx is done or events is closed. Level
// readings go straight to the meter history; the rest become EventMsg.
func (b *Bridge) Watch(ctx context.Context, events <-chan pipeline.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			if ev.Kind == pipeline.EventLevel {
				b.levels.Push(ev.Level)
				continue
			}
			b.dispatch(EventMsg{Event: ev})
		}
	}
}

func (b *Bridge) dispatch(msg tea.Msg) {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()

	if send != nil {
		send(msg)
	}
}
