// Package tui is the terminal front end of a dictation session: it toggles
// recording and shows what the pipeline is doing.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/alkime/dictate/internal/pipeline"
	"github.com/alkime/dictate/internal/tui/components/meter"
	"github.com/alkime/dictate/internal/tui/style"
	"github.com/alkime/dictate/pkg/uictl"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	maxNotifications = 3
	meterWidth       = 48
	meterHeight      = 2
)

// EventMsg carries a pipeline event into the program.
type EventMsg struct {
	Event pipeline.Event
}

// IndicatorMsg shows or hides the recording indicator.
type IndicatorMsg struct {
	Visible bool
}

// NotificationMsg carries a user-facing notification.
type NotificationMsg struct {
	Notification pipeline.Notification
}

// Controls are what the UI drives.
type Controls struct {
	Recording uictl.Knob
	Levels    uictl.Levels[float64]
}

// Option customises a Model.
type Option func(*Model)

// WithCancel is called when the user quits.
func WithCancel(cancel func()) Option {
	return func(m *Model) { m.cancel = cancel }
}

// Model is the root bubbletea model.
type Model struct {
	keys     KeyMap
	controls Controls
	cancel   func()
	spinner  spinner.Model
	meter    meter.Model
	width    int

	generation uint64
	state      pipeline.State
	elapsed    time.Duration
	indicator  bool
	lastText   string
	lastErr    string
	notes      []pipeline.Notification
}

// New creates the root model.
func New(controls Controls, opts ...Option) *Model {
	s := spinner.New()
	s.Spinner = spinner.Points

	m := &Model{
		keys:     DefaultKeyMap(),
		controls: controls,
		spinner:  s,
		meter:    meter.New(controls.Levels, meterWidth, meterHeight),
		state:    pipeline.StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Init starts the spinner and meter tickers.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.meter.Init())
}

// Update handles all messages.
func (m *Model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.ForceQuit), key.Matches(msg, m.keys.Quit):
			if m.cancel != nil {
				m.cancel()
			}

			return m, tea.Quit

		case key.Matches(msg, m.keys.Toggle):
			if m.controls.Recording != nil {
				m.controls.Recording.Toggle()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case EventMsg:
		m.applyEvent(msg.Event)

	case IndicatorMsg:
		m.indicator = msg.Visible

	case NotificationMsg:
		m.notes = append(m.notes, msg.Notification)
		if len(m.notes) > maxNotifications {
			m.notes = m.notes[len(m.notes)-maxNotifications:]
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case meter.TickMsg:
		var cmd tea.Cmd
		m.meter, cmd = m.meter.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m *Model) applyEvent(ev pipeline.Event) {
	switch ev.Kind {
	case pipeline.EventState, pipeline.EventCycle:
		if ev.Generation < m.generation {
			return
		}

		m.generation = ev.Generation
		m.state = ev.State

		switch ev.State {
		case pipeline.StateWillStart:
			m.elapsed = 0
			m.lastErr = ""
		case pipeline.StateComplete:
			m.lastText = ev.Text
			m.lastErr = ev.Err
		}

	case pipeline.EventElapsed:
		if ev.Generation == m.generation {
			m.elapsed = ev.Elapsed
		}
	}
}

// View renders the UI.
func (m *Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.headline())
	sb.WriteString("\n\n")

	if m.indicator {
		sb.WriteString(m.meter.View())
		sb.WriteString("\n\n")
	}

	if m.lastText != "" {
		box := style.Transcript
		if m.width > 4 {
			box = box.Width(m.width - 4)
		}
		sb.WriteString(box.Render(m.lastText))
		sb.WriteString("\n\n")
	}

	for _, n := range m.notes {
		if n.Severity == pipeline.SeverityError {
			sb.WriteString(style.Error.Render("✗ " + n.Message))
		} else {
			sb.WriteString(style.Warning.Render("! " + n.Message))
		}
		sb.WriteString("\n")
	}
	if len(m.notes) > 0 {
		sb.WriteString("\n")
	}

	sb.WriteString(renderKeyHelp(m.keys.ShortHelp()))
	sb.WriteString("\n")

	return sb.String()
}

func (m *Model) headline() string {
	switch m.state {
	case pipeline.StateWillStart:
		return style.Title.Render("Starting")
	case pipeline.StateRecording:
		return style.Recording.Render("● Recording") + " " + style.Subtitle.Render(formatElapsed(m.elapsed))
	case pipeline.StateTranscribing:
		return m.spinner.View() + " " + style.Title.Render("Transcribing")
	case pipeline.StateAIProcessing:
		return m.spinner.View() + " " + style.Title.Render("Applying AI function")
	case pipeline.StateComplete:
		if m.lastErr != "" {
			return style.Error.Render("Failed")
		}

		return style.Success.Render("Done")
	default:
		return style.Muted.Render("Ready")
	}
}

func formatElapsed(d time.Duration) string {
	d = d.Truncate(100 * time.Millisecond)
	minutes := int(d / time.Minute)
	seconds := int(d%time.Minute) / int(time.Second)
	tenths := int(d%time.Second) / int(100*time.Millisecond)

	return fmt.Sprintf("%02d:%02d.%d", minutes, seconds, tenths)
}
