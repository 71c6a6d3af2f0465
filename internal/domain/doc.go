// Package domain models forecast soundings and the edits applied to them.
//
// # Profiles
//
// A sounding arrives from the p-type data service as parallel arrays indexed
// by vertical level. Level 0 is the lowest (highest pressure):
//
//	pressure     hPa, strictly decreasing with index, never edited
//	temperature  °C
//	dewpoint     °C, dewpoint[i] <= temperature[i]
//	uwind/vwind  m/s, passed through to the prediction service unchanged
//
// The HRRR-derived profiles used by the model have 21 levels on a fixed
// 250 m above-ground grid (0 to 5000 m); the model consumes the four arrays
// concatenated (84 features). Nothing here assumes 21 levels except the
// height labels in [ComputeLayerMetrics], which extend the 250 m spacing.
//
// # Predictions
//
// The service reports four class probabilities (rain, snow, ice pellets,
// freezing rain) as fractions in [0, 1], an evidential uncertainty, and a
// string-valued metrics object. Readouts show probabilities as percentages
// with one decimal.
//
// # Selections
//
// A forecast is addressed by lat/lon snapped to a 0.05° grid, a run date,
// an initialization ("00Z" or "12Z") and a forecast hour. See [Selection].
//
// # Edits
//
// A committed drag is captured as an [EditRecord] for downstream consumers.
// Timestamps come from the package clock so tests can freeze time.
package domain
