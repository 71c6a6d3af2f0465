// Package skewt maps between physical sounding space (temperature, pressure)
// and skew-T diagram pixel space.
//
// The vertical axis is logarithmic in pressure over [TopPressure, BasePressure]
// with y = 0 at the top. The horizontal axis is linear in temperature over
// [MinTemperature, MaxTemperature] and skewed: a point at pressure p is
// shifted right by (y(ReferencePressure) - y(p)) / tan(SkewDegrees), so
// isotherms lean to the right with height.
package skewt

import (
	"errors"
	"fmt"
	"math"
)

// Config fixes the chart geometry. Zero values are not usable; start from
// DefaultConfig.
type Config struct {
	Width  float64 // drawable pixel width
	Height float64 // drawable pixel height

	TopPressure       float64 // hPa at y = 0
	BasePressure      float64 // hPa at y = Height
	ReferencePressure float64 // hPa where the skew offset is zero

	MinTemperature float64 // °C at x = 0 on the reference isobar
	MaxTemperature float64 // °C at x = Width on the reference isobar

	SkewDegrees float64
}

// DefaultConfig returns the geometry of the original diagram for the given
// drawable extents.
func DefaultConfig(width, height float64) Config {
	return Config{
		Width:             width,
		Height:            height,
		TopPressure:       300,
		BasePressure:      1050,
		ReferencePressure: 1050,
		MinTemperature:    -35,
		MaxTemperature:    30,
		SkewDegrees:       55,
	}
}

// ErrInvalidConfig is returned by NewTransform for unusable geometry.
var ErrInvalidConfig = errors.New("skewt: invalid config")

// Point is a position in diagram pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Transform is immutable chart state. It is safe for concurrent use.
type Transform struct {
	cfg      Config
	logTop   float64
	logSpan  float64 // ln(base) - ln(top)
	tempSpan float64
	tanSkew  float64
	refY     float64
}

// NewTransform validates cfg and precomputes the scale constants.
func NewTransform(cfg Config) (*Transform, error) {
	switch {
	case !(cfg.Width > 0) || !(cfg.Height > 0):
		return nil, fmt.Errorf("%w: extents must be positive, got %vx%v", ErrInvalidConfig, cfg.Width, cfg.Height)
	case !(cfg.TopPressure > 0) || !(cfg.BasePressure > cfg.TopPressure):
		return nil, fmt.Errorf("%w: need 0 < top (%v) < base (%v)", ErrInvalidConfig, cfg.TopPressure, cfg.BasePressure)
	case !(cfg.ReferencePressure > 0):
		return nil, fmt.Errorf("%w: reference pressure must be positive", ErrInvalidConfig)
	case !(cfg.MaxTemperature > cfg.MinTemperature):
		return nil, fmt.Errorf("%w: need min temperature < max temperature", ErrInvalidConfig)
	case !(cfg.SkewDegrees > 0 && cfg.SkewDegrees < 90):
		return nil, fmt.Errorf("%w: skew angle %v outside (0, 90)", ErrInvalidConfig, cfg.SkewDegrees)
	}

	t := &Transform{
		cfg:      cfg,
		logTop:   math.Log(cfg.TopPressure),
		logSpan:  math.Log(cfg.BasePressure) - math.Log(cfg.TopPressure),
		tempSpan: cfg.MaxTemperature - cfg.MinTemperature,
		tanSkew:  math.Tan(cfg.SkewDegrees * math.Pi / 180),
	}
	t.refY = t.PressureY(cfg.ReferencePressure)
	return t, nil
}

// Config returns the geometry the transform was built with.
func (t *Transform) Config() Config { return t.cfg }

// PressureY is the log-pressure scale.
func (t *Transform) PressureY(pressure float64) float64 {
	return t.cfg.Height * (math.Log(pressure) - t.logTop) / t.logSpan
}

// PressureAtY inverts PressureY.
func (t *Transform) PressureAtY(y float64) float64 {
	return math.Exp(t.logTop + y/t.cfg.Height*t.logSpan)
}

// TemperatureX is the unskewed linear temperature scale.
func (t *Transform) TemperatureX(tempC float64) float64 {
	return t.cfg.Width * (tempC - t.cfg.MinTemperature) / t.tempSpan
}

func (t *Transform) temperatureAtUnskewedX(x float64) float64 {
	return t.cfg.MinTemperature + x/t.cfg.Width*t.tempSpan
}

// SkewOffset is the horizontal shift applied at pressure.
func (t *Transform) SkewOffset(pressure float64) float64 {
	return (t.refY - t.PressureY(pressure)) / t.tanSkew
}

// ToDiagram maps (temperature, pressure) to diagram pixels.
func (t *Transform) ToDiagram(tempC, pressure float64) Point {
	return Point{
		X: t.TemperatureX(tempC) + t.SkewOffset(pressure),
		Y: t.PressureY(pressure),
	}
}

// FromDiagram is the exact inverse of ToDiagram.
func (t *Transform) FromDiagram(p Point) (tempC, pressure float64) {
	pressure = t.PressureAtY(p.Y)
	return t.TemperatureAt(p.X, pressure), pressure
}

// TemperatureAt recovers the temperature at horizontal position x for a
// known pressure: un-skew, then invert the linear scale. Drags keep the
// level's pressure, so this is how a handle position becomes a temperature.
func (t *Transform) TemperatureAt(x, pressure float64) float64 {
	return t.temperatureAtUnskewedX(x - t.SkewOffset(pressure))
}
