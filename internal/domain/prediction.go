package domain

import "math"

// Metrics is the string-valued profile statistics object exchanged with the
// prediction service. Unavailable statistics hold "N/A".
type Metrics map[string]string

// Prediction holds p-type class probabilities (fractions) for one profile.
type Prediction struct {
	Rain        float64 `json:"rain"`
	Snow        float64 `json:"snow"`
	IceP        float64 `json:"icep"`
	FrzR        float64 `json:"frzr"`
	Uncertainty float64 `json:"uncertainty"`
	Metrics     Metrics `json:"metrics,omitempty"`
}

// Sample is the hover readout for one map location.
type Sample struct {
	Rain        float64 `json:"rain"`
	Snow        float64 `json:"snow"`
	IceP        float64 `json:"icep"`
	FrzR        float64 `json:"frzr"`
	Uncertainty float64 `json:"uncertainty,omitempty"`
}

// Percentages is a readout of class probabilities in percent.
type Percentages struct {
	Rain float64 `json:"rain"`
	Snow float64 `json:"snow"`
	IceP float64 `json:"icep"`
	FrzR float64 `json:"frzr"`
}

// Percentages converts fractions to percent rounded to one decimal.
func (s Sample) Percentages() Percentages {
	return Percentages{
		Rain: percent(s.Rain),
		Snow: percent(s.Snow),
		IceP: percent(s.IceP),
		FrzR: percent(s.FrzR),
	}
}

// Percentages converts fractions to percent rounded to one decimal.
func (p Prediction) Percentages() Percentages {
	return Sample{Rain: p.Rain, Snow: p.Snow, IceP: p.IceP, FrzR: p.FrzR}.Percentages()
}

func percent(fraction float64) float64 {
	return math.Round(fraction*1000) / 10
}
