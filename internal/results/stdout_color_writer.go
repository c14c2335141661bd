package results

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
)

var (
	grayStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	blueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	greenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	yellowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	redStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	magentaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
)

// Overview describes a sweep for the ColorStdoutWriter banner.
type Overview struct {
	SweepID  string
	Stations int
	MinRange [2]int
	MaxRange [2]int
	StopTime string
}

// ColorStdoutWriter prints human-friendly, colorized cell rows.
type ColorStdoutWriter struct {
	ov   *Overview
	out  io.Writer
	once sync.Once
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
// ov may be nil to skip the banner.
func NewColorStdoutWriter(ov *Overview) *ColorStdoutWriter {
	return &ColorStdoutWriter{ov: ov, out: os.Stdout}
}

func (w *ColorStdoutWriter) printOverview() {
	if w.ov == nil {
		return
	}
	fmt.Fprintln(w.out, "Sweep Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Sweep ID:\t%s\n", w.ov.SweepID)
	fmt.Fprintf(tw, "Stations:\t%d\n", w.ov.Stations)
	fmt.Fprintf(tw, "cwMin exponents:\t%d..%d\n", w.ov.MinRange[0], w.ov.MinRange[1])
	fmt.Fprintf(tw, "cwMax exponents:\t%d..%d\n", w.ov.MaxRange[0], w.ov.MaxRange[1])
	fmt.Fprintf(tw, "Stop time:\t%s\n", w.ov.StopTime)
	tw.Flush()
	fmt.Fprintln(w.out)
}

// WriteCell outputs a single cell row in colorized format.
func (w *ColorStdoutWriter) WriteCell(row CellRow) error {
	w.once.Do(w.printOverview)

	fmt.Fprint(w.out, grayStyle.Render(fmt.Sprintf("[%d/%d]", row.Index+1, row.Total)), " ")
	fmt.Fprint(w.out, blueStyle.Render(fmt.Sprintf("cwMax=%g", row.WindowMax)), " ")
	fmt.Fprint(w.out, magentaStyle.Render(fmt.Sprintf("cwMin=%g", row.WindowMin)), " ")
	if row.Error != "" {
		fmt.Fprintln(w.out, redStyle.Render("FAILED "+row.Error))
		return nil
	}
	v := float64(row.AvgThroughputMbps)
	style := greenStyle
	if math.IsNaN(v) || math.IsInf(v, 0) {
		style = yellowStyle
	}
	fmt.Fprint(w.out, style.Render(fmt.Sprintf("avg=%.4f Mbps", v)), " ")
	fmt.Fprintf(w.out, "flows=%d ", row.Flows)
	fmt.Fprintln(w.out, grayStyle.Render(fmt.Sprintf("%.0fms", row.ElapsedMS)))
	return nil
}
