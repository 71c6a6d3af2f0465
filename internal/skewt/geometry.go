package skewt

import (
	"errors"
	"fmt"
)

// Handle is the diagram position of one level of one profile series. Index
// is the level's array index and doubles as its stable identifier.
type Handle struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// ErrLengthMismatch is returned when a value series and the pressure grid differ
// in length.
var ErrLengthMismatch = errors.New("skewt: series and pressure lengths differ")

// Handles positions every level of values on the diagram.
func (t *Transform) Handles(values, pressure []float64) ([]Handle, error) {
	if len(values) != len(pressure) {
		return nil, fmt.Errorf("%w: %d values, %d pressures", ErrLengthMismatch, len(values), len(pressure))
	}
	out := make([]Handle, len(values))
	for i := range values {
		p := t.ToDiagram(values[i], pressure[i])
		out[i] = Handle{Index: i, X: p.X, Y: p.Y}
	}
	return out, nil
}

// Isotherm is a skewed line of constant temperature spanning the full
// pressure domain.
type Isotherm struct {
	Temperature float64 `json:"temperature"`
	Freezing    bool    `json:"freezing"`
	Top         Point   `json:"top"`
	Bottom      Point   `json:"bottom"`
}

// Isotherms returns background isotherms every 5 °C from -100 to 40 °C. Lines
// outside the visible box are included; the renderer clips.
func (t *Transform) Isotherms() []Isotherm {
	var out []Isotherm
	for tc := -100; tc < 45; tc += 5 {
		temp := float64(tc)
		out = append(out, Isotherm{
			Temperature: temp,
			Freezing:    tc == 0,
			Top:         t.ToDiagram(temp, t.cfg.TopPressure),
			Bottom:      t.ToDiagram(temp, t.cfg.BasePressure),
		})
	}
	return out
}

// DefaultIsobars are the labelled pressure lines of the diagram.
var DefaultIsobars = []float64{1000, 850, 700, 500, 300, 200, 100}

// Isobar is a horizontal labelled pressure line.
type Isobar struct {
	Pressure float64 `json:"pressure"`
	Y        float64 `json:"y"`
}

// Isobars returns the levels that fall inside the pressure domain.
func (t *Transform) Isobars(levels []float64) []Isobar {
	out := make([]Isobar, 0, len(levels))
	for _, p := range levels {
		if p < t.cfg.TopPressure || p > t.cfg.BasePressure {
			continue
		}
		out = append(out, Isobar{Pressure: p, Y: t.PressureY(p)})
	}
	return out
}
