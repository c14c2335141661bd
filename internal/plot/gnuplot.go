package plot

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// WriteScript emits a self-contained gnuplot script: terminal and output,
// title, labels, extra commands, one plot command listing every dataset as
// inline data ('-'), then the data blocks each terminated by "e".
func WriteScript(w io.Writer, out Output, target string) error {
	bw := bufio.NewWriter(w)
	if target != "" {
		fmt.Fprintf(bw, "set terminal %s\n", terminal(target))
		fmt.Fprintf(bw, "set output '%s'\n", target)
	}
	if out.Title != "" {
		fmt.Fprintf(bw, "set title %s\n", quote(out.Title))
	}
	if out.Axes.X != "" {
		fmt.Fprintf(bw, "set xlabel '%s'\n", out.Axes.X)
	}
	if out.Axes.Y != "" {
		fmt.Fprintf(bw, "set ylabel '%s'\n", out.Axes.Y)
	}
	for _, e := range out.Extra {
		fmt.Fprintln(bw, e)
	}

	if len(out.Datasets) > 0 {
		parts := make([]string, len(out.Datasets))
		for i, ds := range out.Datasets {
			parts[i] = fmt.Sprintf("'-' title %s with lines", quote(ds.Label))
		}
		fmt.Fprintf(bw, "plot %s\n", strings.Join(parts, ", "))
		for _, ds := range out.Datasets {
			for _, p := range ds.Points {
				fmt.Fprintf(bw, "%s %s\n", FormatValue(p.WindowMin), FormatValue(p.ThroughputMbps))
			}
			fmt.Fprintln(bw, "e")
		}
	}
	return bw.Flush()
}

// FormatValue prints v with six significant digits; non-finite values are
// written as nan, inf or -inf.
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func terminal(target string) string {
	switch strings.ToLower(filepath.Ext(target)) {
	case ".png":
		return "png"
	case ".svg":
		return "svg"
	case ".eps", ".ps":
		return "postscript eps enhanced color"
	case ".tex":
		return "latex"
	default:
		return "pdf"
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
