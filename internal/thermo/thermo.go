// Package thermo holds the moisture physics used when a sounding edit must
// conserve relative humidity.
//
// Saturation vapour pressure follows the Magnus form used by the p-type
// model's training data:
//
//	es(t) = 6.112 * exp(17.67 t / (t + 243.5))      t in °C, es in hPa
//
// and its algebraic inverse
//
//	t(e) = -243.5 ln(e/6.112) / (ln(e/6.112) - 17.67)
//
// Only the singularities are rejected. Temperatures outside the physically
// sane range (roughly -80 °C to 50 °C) are computed as-is; plausibility is the
// caller's concern.
package thermo

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MagnusE0 is the saturation vapour pressure at 0 °C in hPa.
	MagnusE0 = 6.112
	// MagnusA is the dimensionless Magnus coefficient.
	MagnusA = 17.67
	// MagnusB is the Magnus temperature offset in °C.
	MagnusB = 243.5
)

// ErrDomain reports an input outside the domain of a Magnus expression.
var ErrDomain = errors.New("thermo: value outside function domain")

// SaturationPressure returns the saturation vapour pressure in hPa over water
// at tempC.
func SaturationPressure(tempC float64) (float64, error) {
	if math.IsNaN(tempC) || math.IsInf(tempC, 0) {
		return 0, fmt.Errorf("saturation pressure of %v: %w", tempC, ErrDomain)
	}
	if tempC <= -MagnusB {
		return 0, fmt.Errorf("saturation pressure at %.2f °C (must exceed %.1f): %w", tempC, -MagnusB, ErrDomain)
	}
	return MagnusE0 * math.Exp(MagnusA*tempC/(tempC+MagnusB)), nil
}

// TemperatureFromVapor returns the temperature in °C whose saturation vapour
// pressure equals vaporHPa. Applied to an actual vapour pressure this is the
// dewpoint.
func TemperatureFromVapor(vaporHPa float64) (float64, error) {
	if math.IsNaN(vaporHPa) || math.IsInf(vaporHPa, 0) || vaporHPa <= 0 {
		return 0, fmt.Errorf("temperature from vapour pressure %v hPa: %w", vaporHPa, ErrDomain)
	}
	logTerm := math.Log(vaporHPa / MagnusE0)
	// logTerm reaches MagnusA only as e -> infinity; guarded anyway.
	if logTerm == MagnusA {
		return 0, fmt.Errorf("temperature from vapour pressure %v hPa: %w", vaporHPa, ErrDomain)
	}
	return -MagnusB * logTerm / (logTerm - MagnusA), nil
}

// RelativeHumidity returns es(dewpoint)/es(temperature) as a fraction.
func RelativeHumidity(tempC, dewpointC float64) (float64, error) {
	es, err := SaturationPressure(tempC)
	if err != nil {
		return 0, err
	}
	e, err := SaturationPressure(dewpointC)
	if err != nil {
		return 0, err
	}
	return e / es, nil
}
