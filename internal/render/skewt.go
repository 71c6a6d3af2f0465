// Package render draws a session's skew-T diagram and probability readout as
// PNG images. It consumes only diagram-space geometry from package skewt.
package render

import (
	"fmt"
	"io"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/couchcryptid/sounding-edit-service/internal/domain"
	"github.com/couchcryptid/sounding-edit-service/internal/skewt"
)

var (
	temperatureColor = drawing.ColorFromHex("d62728")
	dewpointColor    = drawing.ColorFromHex("2ca02c")
	isothermColor    = drawing.ColorFromHex("c8c8c8")
	freezingColor    = drawing.ColorFromHex("1f77b4")
	isobarColor      = drawing.ColorFromHex("969696")
)

// chart padding around the drawable area, in pixels
var diagramPadding = chart.Box{Top: 20, Left: 20, Right: 60, Bottom: 40}

// Diagram renders the background grid and, when profile is non-nil, the
// temperature (red) and dewpoint (green) traces with their handles.
func Diagram(w io.Writer, tr *skewt.Transform, profile *domain.Profile) error {
	cfg := tr.Config()
	width, height := cfg.Width, cfg.Height

	var series []chart.Series
	for _, iso := range tr.Isotherms() {
		a, b, ok := clipToWidth(iso.Bottom, iso.Top, width)
		if !ok {
			continue
		}
		st := chart.Style{StrokeColor: isothermColor, StrokeWidth: 1}
		if iso.Freezing {
			st = chart.Style{StrokeColor: freezingColor, StrokeWidth: 2}
		}
		series = append(series, segment(fmt.Sprintf("%g°C", iso.Temperature), a, b, height, st))
	}
	for _, bar := range tr.Isobars(skewt.DefaultIsobars) {
		series = append(series, segment(fmt.Sprintf("%g hPa", bar.Pressure),
			skewt.Point{X: 0, Y: bar.Y}, skewt.Point{X: width, Y: bar.Y}, height,
			chart.Style{StrokeColor: isobarColor, StrokeWidth: 1, StrokeDashArray: []float64{4, 4}}))
	}

	if profile != nil {
		th, err := tr.Handles(profile.Temperature, profile.Pressure)
		if err != nil {
			return fmt.Errorf("temperature trace: %w", err)
		}
		dh, err := tr.Handles(profile.Dewpoint, profile.Pressure)
		if err != nil {
			return fmt.Errorf("dewpoint trace: %w", err)
		}
		series = append(series,
			trace("Temperature", th, height, temperatureColor),
			trace("Dewpoint", dh, height, dewpointColor),
		)
	}

	ch := chart.Chart{
		Width:      int(width) + diagramPadding.Left + diagramPadding.Right,
		Height:     int(height) + diagramPadding.Top + diagramPadding.Bottom,
		Background: chart.Style{Padding: diagramPadding},
		XAxis: chart.XAxis{
			Name:  "°C",
			Range: &chart.ContinuousRange{Min: 0, Max: width},
			Ticks: temperatureTicks(tr),
		},
		YAxis: chart.YAxis{
			Name:  "hPa",
			Range: &chart.ContinuousRange{Min: 0, Max: height},
			Ticks: pressureTicks(tr),
		},
		Series: series,
	}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render skew-T: %w", err)
	}
	return nil
}

// segment draws a straight line between two diagram points. Diagram y grows
// downward; chart y grows upward.
func segment(name string, a, b skewt.Point, height float64, st chart.Style) chart.ContinuousSeries {
	return chart.ContinuousSeries{
		Name:    name,
		XValues: []float64{a.X, b.X},
		YValues: []float64{height - a.Y, height - b.Y},
		Style:   st,
	}
}

func trace(name string, handles []skewt.Handle, height float64, col drawing.Color) chart.ContinuousSeries {
	xs := make([]float64, len(handles))
	ys := make([]float64, len(handles))
	for i, h := range handles {
		xs[i] = h.X
		ys[i] = height - h.Y
	}
	return chart.ContinuousSeries{
		Name:    name,
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeColor: col,
			StrokeWidth: 2,
			DotColor:    col,
			DotWidth:    3,
		},
	}
}

// clipToWidth clips the segment a-b to 0 <= x <= width. ok is false when
// nothing is visible.
func clipToWidth(a, b skewt.Point, width float64) (skewt.Point, skewt.Point, bool) {
	dx := b.X - a.X
	lo, hi := 0.0, 1.0
	if dx == 0 {
		if a.X < 0 || a.X > width {
			return a, b, false
		}
		return a, b, true
	}
	s0, s1 := (0-a.X)/dx, (width-a.X)/dx
	if s0 > s1 {
		s0, s1 = s1, s0
	}
	lo, hi = max(lo, s0), min(hi, s1)
	if lo >= hi {
		return a, b, false
	}
	at := func(s float64) skewt.Point {
		return skewt.Point{X: a.X + s*dx, Y: a.Y + s*(b.Y-a.Y)}
	}
	return at(lo), at(hi), true
}

// temperatureTicks labels the reference isobar every 10 °C.
func temperatureTicks(tr *skewt.Transform) []chart.Tick {
	cfg := tr.Config()
	var ticks []chart.Tick
	for t := cfg.MinTemperature; t <= cfg.MaxTemperature; t++ {
		if int(t)%10 != 0 {
			continue
		}
		ticks = append(ticks, chart.Tick{Value: tr.ToDiagram(t, cfg.ReferencePressure).X, Label: fmt.Sprintf("%g", t)})
	}
	return ticks
}

// pressureTicks labels the isobars inside the pressure domain.
func pressureTicks(tr *skewt.Transform) []chart.Tick {
	height := tr.Config().Height
	bars := tr.Isobars(skewt.DefaultIsobars)
	ticks := make([]chart.Tick, 0, len(bars))
	// Ascending chart y: bottom of the diagram first.
	for _, bar := range bars {
		ticks = append(ticks, chart.Tick{Value: height - bar.Y, Label: fmt.Sprintf("%g", bar.Pressure)})
	}
	return ticks
}
