package tui

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"cwsweep/internal/experiment"
	"cwsweep/internal/results"
	"cwsweep/internal/sweep"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

var testOverview = results.Overview{
	SweepID:  "abc",
	Stations: 3,
	MinRange: [2]int{2, 4},
	MaxRange: [2]int{4, 6},
	StopTime: "10s",
}

func cell(idx, eMax, eMin int, avg float64, err error) sweep.CellResult {
	return sweep.CellResult{
		Index: idx, Total: 9, MaxExponent: eMax, MinExponent: eMin,
		Result: experiment.AggregateResult{
			Config:                experiment.Config{StationCount: 3, WindowMin: sweep.Bound(eMin), WindowMax: sweep.Bound(eMax)},
			AverageThroughputMbps: avg,
		},
		Err:     err,
		Elapsed: 20 * time.Millisecond,
	}
}

func TestWriterMessages(t *testing.T) {
	p := &fakeProgram{}
	w := &Writer{program: p}
	if err := w.WriteCell(cell(0, 4, 2, 1, nil)); err != nil {
		t.Fatalf("WriteCell: %v", err)
	}
	if _, ok := p.msgs[0].(cellMsg); !ok {
		t.Fatalf("expected cellMsg, got %T", p.msgs[0])
	}
	w.Finish(errors.New("boom"))
	if m, ok := p.msgs[1].(finishedMsg); !ok || m.err == nil {
		t.Fatalf("expected finishedMsg with error, got %#v", p.msgs[1])
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(p.msgs) != 3 {
		t.Fatalf("expected quit message, got %d messages", len(p.msgs))
	}
}

func TestModelGrid(t *testing.T) {
	m := newModel(testOverview)
	if m.total != 9 || len(m.gridRows) != 3 || len(m.gridRows[0]) != 4 {
		t.Fatalf("grid shape = %d rows x %d cols, total %d", len(m.gridRows), len(m.gridRows[0]), m.total)
	}
	if m.gridRows[2][0] != "64" {
		t.Fatalf("row label = %q, want 64", m.gridRows[2][0])
	}

	mi, _ := m.Update(cellMsg{cell(4, 5, 3, 12.5, nil)})
	m = mi.(model)
	if got := m.gridRows[1][2]; got != "12.500" {
		t.Fatalf("grid cell = %q, want 12.500", got)
	}
	mi, _ = m.Update(cellMsg{cell(5, 5, 4, math.NaN(), errors.New("engine"))})
	m = mi.(model)
	if got := m.gridRows[1][3]; got != "ERR" {
		t.Fatalf("failed cell = %q, want ERR", got)
	}
	mi, _ = m.Update(cellMsg{cell(6, 6, 2, math.Inf(1), nil)})
	m = mi.(model)
	if got := m.gridRows[2][1]; got != "inf" {
		t.Fatalf("inf cell = %q", got)
	}
	if m.completed != 3 || m.failures != 1 || len(m.logs) != 3 {
		t.Fatalf("completed=%d failures=%d logs=%d", m.completed, m.failures, len(m.logs))
	}
	if !strings.Contains(m.status(), "3/9 cells, 1 failed") {
		t.Fatalf("status = %q", m.status())
	}
	if f := m.fraction(); math.Abs(f-3.0/9) > 1e-12 {
		t.Fatalf("fraction = %v", f)
	}

	// out-of-grid cells are logged but not placed
	mi, _ = m.Update(cellMsg{cell(7, 9, 9, 1, nil)})
	m = mi.(model)
	if len(m.logs) != 4 {
		t.Fatalf("logs = %d", len(m.logs))
	}

	mi, _ = m.Update(finishedMsg{})
	m = mi.(model)
	if !strings.Contains(m.status(), "sweep complete") {
		t.Fatalf("status = %q", m.status())
	}
	mi, _ = m.Update(finishedMsg{err: errors.New("cell failed")})
	m = mi.(model)
	if !strings.Contains(m.status(), "sweep aborted: cell failed") {
		t.Fatalf("status = %q", m.status())
	}
}

func TestWrapToggle(t *testing.T) {
	m := newModel(testOverview)
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 20, Height: 40})
	m = mi.(model)
	mi, _ = m.Update(cellMsg{cell(0, 4, 2, 33.123, nil)})
	m = mi.(model)
	if n := m.vp.TotalLineCount(); n != 1 {
		t.Fatalf("expected truncated single line, got %d", n)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	m = mi.(model)
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	if n := m.vp.TotalLineCount(); n < 2 {
		t.Fatalf("expected wrapped content, got %d lines", n)
	}
}

func TestQuitKeyAndView(t *testing.T) {
	m := newModel(testOverview)
	mi, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = mi.(model)
	if m.autoscroll {
		t.Fatalf("autoscroll should be off")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}); cmd == nil {
		t.Fatalf("expected quit command")
	}
	view := m.View()
	for _, want := range []string{"Contention window sweep", "abc", "0/9 cells"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q", want)
		}
	}
}

func TestFormatMbps(t *testing.T) {
	cases := map[float64]string{1.23456: "1.235", math.Inf(-1): "-inf", 0: "0.000"}
	for in, want := range cases {
		if got := formatMbps(in); got != want {
			t.Fatalf("formatMbps(%v) = %q, want %q", in, got, want)
		}
	}
	if formatMbps(math.NaN()) != "nan" {
		t.Fatalf("NaN not formatted")
	}
}
