package plot

import (
	"errors"
	"io"
	"math"
	"path/filepath"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var palette = []drawing.Color{
	chart.ColorBlue,
	chart.ColorGreen,
	chart.ColorRed,
	chart.ColorOrange,
	chart.ColorCyan,
	chart.ColorAlternateGray,
}

// ErrNothingToRender is returned when no dataset has a finite point.
var ErrNothingToRender = errors.New("no finite data points to render")

func imageFormat(path string) chart.RendererProvider {
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return chart.SVG
	}
	return chart.PNG
}

// RenderImage draws the plot through go-chart. Non-finite points are left
// out of the image; a dataset without finite points is omitted.
func RenderImage(w io.Writer, out Output, format chart.RendererProvider) error {
	var series []chart.Series
	for i, ds := range out.Datasets {
		var xs, ys []float64
		for _, p := range ds.Points {
			if isFinite(p.WindowMin) && isFinite(p.ThroughputMbps) {
				xs = append(xs, p.WindowMin)
				ys = append(ys, p.ThroughputMbps)
			}
		}
		if len(xs) == 0 {
			continue
		}
		// go-chart needs two x values to compute a range
		if len(xs) == 1 {
			xs = append(xs, xs[0]+1)
			ys = append(ys, ys[0])
		}
		col := palette[i%len(palette)]
		series = append(series, chart.ContinuousSeries{
			Name:    ds.Label,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: col,
				StrokeWidth: 2,
				DotColor:    col,
				DotWidth:    3,
			},
		})
	}
	if len(series) == 0 {
		return ErrNothingToRender
	}

	ch := chart.Chart{
		Title:      out.Title,
		Width:      960,
		Height:     540,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      chart.XAxis{Name: out.Axes.X},
		YAxis:      chart.YAxis{Name: out.Axes.Y},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.LegendLeft(&ch)}
	return ch.Render(format, w)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
