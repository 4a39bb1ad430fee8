// Package meter renders recent input levels as a scrolling bar graph.
package meter

import (
	"strings"
	"time"

	"github.com/alkime/dictate/internal/tui/style"
	"github.com/alkime/dictate/pkg/uictl"
	tea "github.com/charmbracelet/bubbletea"
)

// Index 0 is empty, 1-8 are increasing fill levels.
const blockChars = " ▁▂▃▄▅▆▇█"

// TickMsg triggers a redraw.
type TickMsg struct{}

// Model draws one column per level reading, oldest on the left. Readings are
// already smoothed and in [0,1].
type Model struct {
	levels uictl.Levels[float64]
	width  int
	height int
}

// New creates a meter width columns wide and height rows tall.
func New(levels uictl.Levels[float64], width, height int) Model {
	return Model{
		levels: levels,
		width:  max(width, 1),
		height: max(height, 1),
	}
}

// Width is the number of columns drawn.
func (m Model) Width() int {
	return m.width
}

// Init returns the initial tick command.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update keeps the redraw ticker going.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(TickMsg); ok {
		return m, m.tick()
	}

	return m, nil
}

// View renders the meter.
func (m Model) View() string {
	if m.levels == nil {
		return m.renderEmpty()
	}

	levels := m.levels.Read()
	if len(levels) == 0 {
		return m.renderEmpty()
	}

	return m.render(m.columns(levels))
}

// tick schedules the next redraw at 20 FPS, matching the capture level rate.
func (m Model) tick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// columns maps the newest readings onto 0..height*8, right aligned.
func (m Model) columns(levels []float64) []int {
	if len(levels) > m.width {
		levels = levels[len(levels)-m.width:]
	}

	cols := make([]int, m.width)
	offset := m.width - len(levels)
	maxLevel := m.height * 8

	for i, l := range levels {
		cols[offset+i] = toBlocks(l, maxLevel)
	}

	return cols
}

func (m Model) render(cols []int) string {
	runes := []rune(blockChars)

	var sb strings.Builder
	for row := range m.height {
		if row > 0 {
			sb.WriteString("\n")
		}

		var rowSB strings.Builder
		for _, level := range cols {
			rowSB.WriteRune(runes[m.blockIndexForRow(level, row)])
		}

		sb.WriteString(style.Progress.Render(rowSB.String()))
	}

	return sb.String()
}

// blockIndexForRow returns the block index (0-8) for a column at a row. Row 0
// is the top.
func (m Model) blockIndexForRow(level, row int) int {
	base := (m.height - 1 - row) * 8
	fill := level - base

	switch {
	case fill <= 0:
		return 0
	case fill >= 8:
		return 8
	default:
		return fill
	}
}

func (m Model) renderEmpty() string {
	var sb strings.Builder
	for row := range m.height {
		if row > 0 {
			sb.WriteString("\n")
		}

		ch := " "
		if row == m.height-1 {
			ch = "▁"
		}

		sb.WriteString(style.Muted.Render(strings.Repeat(ch, m.width)))
	}

	return sb.String()
}

func toBlocks(level float64, maxLevel int) int {
	if level <= 0 {
		return 0
	}

	return min(int(level*float64(maxLevel)), maxLevel)
}
