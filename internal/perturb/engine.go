// Package perturb spreads a manual edit at one level of a sounding across all
// levels with a Gaussian weight, and optionally recomputes the paired series
// so relative humidity is conserved.
//
// The kernel works in array-index space: adjacent levels count as one unit
// apart whatever their physical separation.
package perturb

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/couchcryptid/sounding-edit-service/internal/domain"
	"github.com/couchcryptid/sounding-edit-service/internal/skewt"
	"github.com/couchcryptid/sounding-edit-service/internal/thermo"
)

// Sigma is the kernel width, in levels, used by the editor.
const Sigma = 2.0

var (
	// ErrIndexOutOfRange reports a drag index outside the profile.
	ErrIndexOutOfRange = errors.New("perturb: level index out of range")
	// ErrInvalidSigma reports a non-positive or non-finite kernel width.
	ErrInvalidSigma = errors.New("perturb: sigma must be positive")
	// ErrLengthMismatch reports series of different lengths.
	ErrLengthMismatch = errors.New("perturb: series lengths differ")
)

// Engine applies Gaussian-weighted perturbations. The zero value is not
// usable; use New or Default.
type Engine struct {
	sigma float64
}

// New returns an engine with the given kernel width.
func New(sigma float64) (*Engine, error) {
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidSigma, sigma)
	}
	return &Engine{sigma: sigma}, nil
}

// Default returns an engine with width Sigma.
func Default() *Engine {
	return &Engine{sigma: Sigma}
}

// Sigma returns the kernel width.
func (e *Engine) Sigma() float64 { return e.sigma }

// Influence is the weight at level i of an edit made at level center. It is
// exactly 1 at center and falls off symmetrically with |i - center|.
func (e *Engine) Influence(i, center int) float64 {
	d := float64(i-center) / e.sigma
	return math.Exp(-0.5 * d * d)
}

// Weights returns Influence for every level of an n-level profile.
func (e *Engine) Weights(n, center int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = e.Influence(i, center)
	}
	return w
}

// ApplyDrag returns a new series with values[i] + delta*Influence(i, index).
// values is not modified.
func (e *Engine) ApplyDrag(values []float64, index int, delta float64) ([]float64, error) {
	if index < 0 || index >= len(values) {
		return nil, fmt.Errorf("%w: index %d, %d levels", ErrIndexOutOfRange, index, len(values))
	}
	out := make([]float64, len(values))
	floats.AddScaledTo(out, values, delta, e.Weights(len(values), index))
	return out, nil
}

// LockHumidity recomputes the series paired with edited so that relative
// humidity at every level matches the baseline profile. baseTemp and
// baseDew are the drag-start arrays; newEdited is the edited series after
// ApplyDrag. The result is a new slice of the other variable.
//
// Relative humidity is es(Td)/es(T). With T edited the new dewpoint is
// the temperature whose es equals es(T_new)*RH; with Td edited the new
// temperature is the one whose es equals es(Td_new)/RH.
func LockHumidity(edited domain.Variable, baseTemp, baseDew, newEdited []float64) ([]float64, error) {
	n := len(newEdited)
	if len(baseTemp) != n || len(baseDew) != n {
		return nil, fmt.Errorf("%w: temperature=%d dewpoint=%d edited=%d", ErrLengthMismatch, len(baseTemp), len(baseDew), n)
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		rh, err := thermo.RelativeHumidity(baseTemp[i], baseDew[i])
		if err != nil {
			return nil, fmt.Errorf("baseline humidity at level %d: %w", i, err)
		}
		esEdited, err := thermo.SaturationPressure(newEdited[i])
		if err != nil {
			return nil, fmt.Errorf("edited %s at level %d: %w", edited, i, err)
		}

		var vapor float64
		if edited == domain.Temperature {
			vapor = esEdited * rh
		} else {
			vapor = esEdited / rh
		}
		v, err := thermo.TemperatureFromVapor(vapor)
		if err != nil {
			return nil, fmt.Errorf("recompute %s at level %d: %w", edited.Other(), i, err)
		}
		// Saturated levels round-trip through es and its inverse; keep
		// dewpoint <= temperature against the last-ulp drift.
		if edited == domain.Temperature {
			v = math.Min(v, newEdited[i])
		} else {
			v = math.Max(v, newEdited[i])
		}
		out[i] = v
	}
	return out, nil
}

// DeltaFromDrag converts the total horizontal displacement of a handle
// between start and current into a temperature change at the level's
// pressure. The skew offset is identical at both ends and cancels.
func DeltaFromDrag(t *skewt.Transform, start, current skewt.Point, pressure float64) float64 {
	return t.TemperatureAt(current.X, pressure) - t.TemperatureAt(start.X, pressure)
}
