package domain

import (
	"slices"
	"time"
)

// Modified is the edit state of a session's profile: 0 unmodified, 1 edited
// since the last load or reset.
type Modified int

const (
	Unmodified Modified = 0
	Edited     Modified = 1
)

// EditRecord is a committed drag, published for downstream consumers.
type EditRecord struct {
	SessionID   string     `json:"session_id"`
	Selection   *Selection `json:"selection,omitempty"`
	Variable    Variable   `json:"variable"`
	Index       int        `json:"index"`
	Delta       float64    `json:"delta"`
	RHLock      bool       `json:"rh_lock"`
	Temperature []float64  `json:"temperature"`
	Dewpoint    []float64  `json:"dewpoint"`
	UWind       []float64  `json:"uwind,omitempty"`
	VWind       []float64  `json:"vwind,omitempty"`
	Metrics     Metrics    `json:"metrics,omitempty"`
	CommittedAt time.Time  `json:"committed_at"`
}

// NewEditRecord captures the post-edit state of profile at committedAt.
// Arrays are copied.
func NewEditRecord(sessionID string, v Variable, index int, delta float64, rhLock bool, profile Profile, committedAt time.Time) EditRecord {
	return EditRecord{
		SessionID:   sessionID,
		Variable:    v,
		Index:       index,
		Delta:       delta,
		RHLock:      rhLock,
		Temperature: slices.Clone(profile.Temperature),
		Dewpoint:    slices.Clone(profile.Dewpoint),
		UWind:       slices.Clone(profile.UWind),
		VWind:       slices.Clone(profile.VWind),
		Metrics:     ComputeLayerMetrics(profile.Temperature),
		CommittedAt: committedAt.UTC(),
	}
}
