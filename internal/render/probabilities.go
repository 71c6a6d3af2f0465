package render

import (
	"fmt"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/couchcryptid/sounding-edit-service/internal/domain"
)

const (
	barChartWidth  = 480
	barChartHeight = 320
)

var classColors = []drawing.Color{
	drawing.ColorFromHex("7f7f7f"), // uncertainty
	drawing.ColorFromHex("e377c2"), // freezing rain
	drawing.ColorFromHex("9467bd"), // sleet
	drawing.ColorFromHex("2ca02c"), // rain
	drawing.ColorFromHex("1f77b4"), // snow
}

// Probabilities renders the prediction as a bar chart in percent.
func Probabilities(w io.Writer, pred domain.Prediction) error {
	bars := probabilityBars(pred)
	for i := range bars {
		bars[i].Style = chart.Style{FillColor: classColors[i], StrokeColor: classColors[i], StrokeWidth: 1}
	}

	bc := chart.BarChart{
		Title:      "Precipitation type",
		Width:      barChartWidth,
		Height:     barChartHeight,
		BarWidth:   60,
		BarSpacing: 20,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10}},
		YAxis: chart.YAxis{
			Name:  "%",
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
		},
		Bars: bars,
	}
	if err := bc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render probabilities: %w", err)
	}
	return nil
}

// probabilityBars orders the classes the way the readout lists them.
func probabilityBars(pred domain.Prediction) []chart.Value {
	pct := pred.Percentages()
	return []chart.Value{
		{Label: "Uncertainty", Value: math.Round(pred.Uncertainty*1000) / 10},
		{Label: "Freezing rain", Value: pct.FrzR},
		{Label: "Sleet", Value: pct.IceP},
		{Label: "Rain", Value: pct.Rain},
		{Label: "Snow", Value: pct.Snow},
	}
}
