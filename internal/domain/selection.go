package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// GridStep is the lat/lon spacing of the forecast lookup grid in degrees.
const GridStep = 0.05

// ErrInvalidSelection reports an unusable location/time selection.
var ErrInvalidSelection = errors.New("invalid selection")

// Selection addresses a forecast at a point.
type Selection struct {
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Date           string  `json:"date"`           // run date, ISO-8601
	Initialization string  `json:"initialization"` // "00Z" or "12Z"
	ForecastHour   int     `json:"forecastHour"`
}

// Snap rounds lat/lon to the nearest grid point.
func (s Selection) Snap() Selection {
	s.Lat = RoundToNearest(s.Lat, GridStep)
	s.Lon = RoundToNearest(s.Lon, GridStep)
	return s
}

// RoundToNearest rounds value to the nearest multiple of step.
func RoundToNearest(value, step float64) float64 {
	return math.Round(value/step) * step
}

// Validate checks coordinate ranges, the initialization, the forecast hour
// and that Date parses.
func (s Selection) Validate() error {
	if s.Lat < -90 || s.Lat > 90 || math.IsNaN(s.Lat) {
		return fmt.Errorf("%w: lat %v out of range", ErrInvalidSelection, s.Lat)
	}
	if s.Lon < -180 || s.Lon > 180 || math.IsNaN(s.Lon) {
		return fmt.Errorf("%w: lon %v out of range", ErrInvalidSelection, s.Lon)
	}
	if _, err := s.initHour(); err != nil {
		return err
	}
	if s.ForecastHour < 0 {
		return fmt.Errorf("%w: negative forecast hour %d", ErrInvalidSelection, s.ForecastHour)
	}
	if _, err := s.RunDate(); err != nil {
		return err
	}
	return nil
}

// ValidTime is the run date at 00 UTC plus the initialization hour plus the
// forecast hour.
func (s Selection) ValidTime() (time.Time, error) {
	day, err := s.RunDate()
	if err != nil {
		return time.Time{}, err
	}
	init, err := s.initHour()
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(init+s.ForecastHour) * time.Hour), nil
}

func (s Selection) initHour() (int, error) {
	switch s.Initialization {
	case "00Z":
		return 0, nil
	case "12Z":
		return 12, nil
	default:
		return 0, fmt.Errorf("%w: initialization %q (want 00Z or 12Z)", ErrInvalidSelection, s.Initialization)
	}
}

// RunDate accepts full RFC 3339 timestamps (as produced by browsers'
// toISOString) or a bare date, and truncates to the UTC day.
func (s Selection) RunDate() (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s.Date); err == nil {
			t = t.UTC()
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidSelection, s.Date)
}
