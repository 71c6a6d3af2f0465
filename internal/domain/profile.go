package domain

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrInvalidProfile is the precondition failure for malformed soundings.
// A profile that fails validation is never handed to an edit session.
var ErrInvalidProfile = errors.New("invalid profile")

// Profile is one sounding. See the package documentation for conventions.
type Profile struct {
	Pressure    []float64 `json:"pressure"`
	Temperature []float64 `json:"temperature"`
	Dewpoint    []float64 `json:"dewpoint"`
	UWind       []float64 `json:"uwind,omitempty"`
	VWind       []float64 `json:"vwind,omitempty"`
}

// Levels returns the number of vertical levels.
func (p Profile) Levels() int { return len(p.Pressure) }

// Validate checks array lengths, pressure ordering, finiteness and the
// dewpoint <= temperature invariant.
func (p Profile) Validate() error {
	n := len(p.Pressure)
	if n == 0 {
		return fmt.Errorf("%w: no levels", ErrInvalidProfile)
	}
	if len(p.Temperature) != n || len(p.Dewpoint) != n {
		return fmt.Errorf("%w: length mismatch: pressure=%d temperature=%d dewpoint=%d",
			ErrInvalidProfile, n, len(p.Temperature), len(p.Dewpoint))
	}
	if (len(p.UWind) != 0 && len(p.UWind) != n) || (len(p.VWind) != 0 && len(p.VWind) != n) {
		return fmt.Errorf("%w: wind length mismatch: uwind=%d vwind=%d levels=%d",
			ErrInvalidProfile, len(p.UWind), len(p.VWind), n)
	}
	for i := 0; i < n; i++ {
		if !finite(p.Pressure[i]) || p.Pressure[i] <= 0 {
			return fmt.Errorf("%w: pressure[%d]=%v", ErrInvalidProfile, i, p.Pressure[i])
		}
		if i > 0 && p.Pressure[i] >= p.Pressure[i-1] {
			return fmt.Errorf("%w: pressure not strictly decreasing at level %d (%v >= %v)",
				ErrInvalidProfile, i, p.Pressure[i], p.Pressure[i-1])
		}
	}
	return CheckMoisture(p.Temperature, p.Dewpoint)
}

// CheckMoisture verifies that both series are finite and that dewpoint never
// exceeds temperature.
func CheckMoisture(temperature, dewpoint []float64) error {
	if len(temperature) != len(dewpoint) {
		return fmt.Errorf("%w: temperature=%d dewpoint=%d levels", ErrInvalidProfile, len(temperature), len(dewpoint))
	}
	for i := range temperature {
		if !finite(temperature[i]) || !finite(dewpoint[i]) {
			return fmt.Errorf("%w: non-finite value at level %d", ErrInvalidProfile, i)
		}
		if dewpoint[i] > temperature[i] {
			return fmt.Errorf("%w: dewpoint %.3f exceeds temperature %.3f at level %d",
				ErrInvalidProfile, dewpoint[i], temperature[i], i)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	return Profile{
		Pressure:    slices.Clone(p.Pressure),
		Temperature: slices.Clone(p.Temperature),
		Dewpoint:    slices.Clone(p.Dewpoint),
		UWind:       slices.Clone(p.UWind),
		VWind:       slices.Clone(p.VWind),
	}
}

// Series returns the array for v. The slice aliases the profile.
func (p Profile) Series(v Variable) []float64 {
	if v == Dewpoint {
		return p.Dewpoint
	}
	return p.Temperature
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
