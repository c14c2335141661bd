// Package tui renders sweep progress with bubbletea.
package tui

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"cwsweep/internal/results"
	"cwsweep/internal/sweep"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// cellMsg carries one completed cell.
type cellMsg struct{ sweep.CellResult }

// finishedMsg marks the end of the sweep.
type finishedMsg struct{ err error }

var (
	grayStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	redStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	greenStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	titleStyle = lipgloss.NewStyle().Bold(true)
)

// Writer shows sweep cells in a bubbletea TUI. It implements sweep.CellWriter.
type Writer struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewWriter starts a bubbletea program on the alternate screen. Quitting the
// TUI before Close interrupts the process.
func NewWriter(ov results.Overview) *Writer {
	w := &Writer{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newModel(ov), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// WriteCell implements sweep.CellWriter.
func (w *Writer) WriteCell(c sweep.CellResult) error {
	w.program.Send(cellMsg{c})
	return nil
}

// Finish reports the sweep outcome to the TUI.
func (w *Writer) Finish(err error) {
	w.program.Send(finishedMsg{err: err})
}

// Close shuts down the TUI program and waits for cleanup.
func (w *Writer) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type model struct {
	ov         results.Overview
	info       table.Model
	grid       table.Model
	gridRows   []table.Row
	bar        progress.Model
	vp         viewport.Model
	logs       []string
	completed  int
	total      int
	failures   int
	finished   bool
	finalErr   string
	wrap       bool
	autoscroll bool
	width      int
	height     int
}

func newModel(ov results.Overview) model {
	info := table.New(
		table.WithColumns([]table.Column{{Title: "Sweep", Width: 16}, {Title: "Value", Width: 38}}),
		table.WithRows([]table.Row{
			{"Sweep ID", ov.SweepID},
			{"Stations", strconv.Itoa(ov.Stations)},
			{"cwMin exponents", fmt.Sprintf("%d..%d", ov.MinRange[0], ov.MinRange[1])},
			{"cwMax exponents", fmt.Sprintf("%d..%d", ov.MaxRange[0], ov.MaxRange[1])},
			{"Stop time", ov.StopTime},
		}),
		table.WithHeight(6),
	)

	cols := []table.Column{{Title: "cwMax", Width: 8}}
	for e := ov.MinRange[0]; e <= ov.MinRange[1]; e++ {
		cols = append(cols, table.Column{Title: "cwMin " + formatBound(e), Width: 11})
	}
	var rows []table.Row
	for e := ov.MaxRange[0]; e <= ov.MaxRange[1]; e++ {
		row := make(table.Row, len(cols))
		row[0] = formatBound(e)
		for i := 1; i < len(row); i++ {
			row[i] = "·"
		}
		rows = append(rows, row)
	}
	grid := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))

	total := 0
	if n, k := len(rows), len(cols)-1; n > 0 && k > 0 {
		total = n * k
	}
	return model{
		ov:         ov,
		info:       info,
		grid:       grid,
		gridRows:   rows,
		bar:        progress.New(progress.WithDefaultGradient()),
		vp:         viewport.New(0, 0),
		total:      total,
		autoscroll: true,
	}
}

func formatBound(e int) string {
	return strconv.FormatFloat(sweep.Bound(e), 'g', 6, 64)
}

func formatMbps(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width
		m.bar.Width = msg.Width - 20
		if m.bar.Width < 10 {
			m.bar.Width = 10
		}
		m.resize()
		m.refreshViewport()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
		case "up", "k":
			m.vp.LineUp(1)
		case "down", "j":
			m.vp.LineDown(1)
		}
	case cellMsg:
		m.applyCell(msg.CellResult)
		m.refreshViewport()
	case finishedMsg:
		m.finished = true
		if msg.err != nil {
			m.finalErr = msg.err.Error()
		}
	}
	return m, nil
}

func (m *model) applyCell(c sweep.CellResult) {
	m.completed++
	if c.Total > 0 {
		m.total = c.Total
	}
	val := formatMbps(c.Result.AverageThroughputMbps)
	line := fmt.Sprintf("[%d/%d] cwMax=%g cwMin=%g avg=%s Mbps flows=%d %s",
		c.Index+1, c.Total, c.Result.Config.WindowMax, c.Result.Config.WindowMin,
		val, len(c.Result.Flows), grayStyle.Render(c.Elapsed.Round(time.Millisecond).String()))
	if c.Err != nil {
		m.failures++
		val = "ERR"
		line = redStyle.Render(fmt.Sprintf("[%d/%d] cwMax=%g cwMin=%g FAILED %v",
			c.Index+1, c.Total, c.Result.Config.WindowMax, c.Result.Config.WindowMin, c.Err))
	}
	m.logs = append(m.logs, line)

	r := c.MaxExponent - m.ov.MaxRange[0]
	col := c.MinExponent - m.ov.MinRange[0] + 1
	if r >= 0 && r < len(m.gridRows) && col >= 1 && col < len(m.gridRows[r]) {
		m.gridRows[r][col] = val
		m.grid.SetRows(m.gridRows)
	}
}

func (m *model) resize() {
	used := lipgloss.Height(m.info.View()) + lipgloss.Height(m.grid.View()) + 6
	h := m.height - used
	if h < 1 {
		h = 1
	}
	m.vp.Height = h
}

func (m *model) refreshViewport() {
	lines := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		switch {
		case m.wrap:
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		case m.vp.Width > 0:
			lines = append(lines, truncate.StringWithTail(l, uint(m.vp.Width), "…"))
		default:
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m model) fraction() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.completed) / float64(m.total)
}

func (m model) status() string {
	switch {
	case m.finished && m.finalErr != "":
		return redStyle.Render("sweep aborted: " + m.finalErr)
	case m.finished:
		return greenStyle.Render("sweep complete")
	}
	s := fmt.Sprintf("%d/%d cells", m.completed, m.total)
	if m.failures > 0 {
		s += fmt.Sprintf(", %d failed", m.failures)
	}
	return s
}

func (m model) View() string {
	divider := strings.Repeat("─", m.vp.Width)
	sections := []string{
		titleStyle.Render("Contention window sweep"),
		m.info.View(),
		m.bar.ViewAs(m.fraction()) + " " + m.status(),
		m.grid.View(),
		divider,
		m.vp.View(),
		divider,
		grayStyle.Render("q quit • w wrap • s autoscroll • ↑/↓ scroll"),
	}
	return strings.Join(sections, "\n")
}
