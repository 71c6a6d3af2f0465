// Package session owns the interactive editing state of one skew-T diagram.
//
// A Session moves through
//
//	Idle -> Loading -> Idle          (new location/time selection)
//	Idle -> Dragging -> Settling -> Idle   (one edit)
//
// Pointer-move only updates the dragged handle. All array work happens once,
// in DragEnd, against the arrays as they were at pointer-down.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/sounding-edit-service/internal/domain"
	"github.com/couchcryptid/sounding-edit-service/internal/perturb"
	"github.com/couchcryptid/sounding-edit-service/internal/skewt"
)

// State is the session's position in its edit cycle.
type State int

const (
	Idle State = iota
	Loading
	Dragging
	Settling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Dragging:
		return "dragging"
	case Settling:
		return "settling"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{Idle, Loading, Dragging, Settling} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

var (
	ErrNoProfile      = errors.New("session: no profile loaded")
	ErrDragInProgress = errors.New("session: drag already in progress")
	ErrNotDragging    = errors.New("session: no drag in progress")
	ErrLoading        = errors.New("session: profile load in progress")
	ErrClosed         = errors.New("session: closed")
	ErrEditRejected   = errors.New("session: edit rejected")
)

// Changes is what an operation altered, for the caller to redraw and
// forward. Record is set only for committed drags.
type Changes struct {
	Temperature        []float64          `json:"temperature"`
	Dewpoint           []float64          `json:"dewpoint"`
	TemperatureHandles []skewt.Handle     `json:"temperature_handles"`
	DewpointHandles    []skewt.Handle     `json:"dewpoint_handles"`
	Modified           domain.Modified    `json:"modified"`
	Metrics            domain.Metrics     `json:"metrics"`
	PositiveArea       float64            `json:"positive_area"`
	NegativeArea       float64            `json:"negative_area"`
	Record             *domain.EditRecord `json:"-"`
}

// Snapshot is a read-only copy of session state.
type Snapshot struct {
	ID          string             `json:"id"`
	State       State              `json:"state"`
	Selection   *domain.Selection  `json:"selection,omitempty"`
	ValidTime   *time.Time         `json:"valid_time,omitempty"`
	Profile     *domain.Profile    `json:"profile,omitempty"`
	RHLock      bool               `json:"rh_lock"`
	Modified    domain.Modified    `json:"modified"`
	Pending     bool               `json:"pending"`
	Prediction  *domain.Prediction `json:"prediction,omitempty"`
	Drag        *domain.EditEvent  `json:"drag,omitempty"`
	Changes     *Changes           `json:"diagram,omitempty"`
	LoadedAt    time.Time          `json:"loaded_at,omitempty"`
	PredictedAt time.Time          `json:"predicted_at,omitempty"`
}

// Session is safe for concurrent use; operations are serialized.
type Session struct {
	id        string
	transform *skewt.Transform
	engine    *perturb.Engine
	clock     clockwork.Clock

	mu          sync.Mutex
	state       State
	closed      bool
	selection   *domain.Selection
	baseline    *domain.Profile // last loaded, never mutated
	current     domain.Profile
	rhLock      bool
	modified    domain.Modified
	pending     bool // edited and awaiting a fresh prediction
	drag        *domain.EditEvent
	prediction  *domain.Prediction
	basePred    *domain.Prediction // prediction delivered with the loaded profile
	loadedAt    time.Time
	predictedAt time.Time
}

// New creates an idle session with no profile.
func New(id string, transform *skewt.Transform, engine *perturb.Engine, clock clockwork.Clock) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Session{
		id:        id,
		transform: transform,
		engine:    engine,
		clock:     clock,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Transform returns the session's chart geometry.
func (s *Session) Transform() *skewt.Transform { return s.transform }

// Close tears the session down. Later calls fail with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.drag = nil
	s.state = Idle
}

// BeginLoad enters Loading, discarding any drag in progress.
func (s *Session) BeginLoad() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.drag = nil
	s.state = Loading
	return nil
}

// FailLoad leaves Loading without replacing the profile.
func (s *Session) FailLoad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Loading {
		s.state = Idle
	}
}

// Load replaces the profile wholesale. The profile is validated first; an
// invalid profile is rejected and the previous one kept. Pending edits and
// the modified flag are cleared.
func (s *Session) Load(profile domain.Profile, selection *domain.Selection, prediction *domain.Prediction) (Changes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Changes{}, ErrClosed
	}
	if err := profile.Validate(); err != nil {
		s.state = Idle
		return Changes{}, err
	}

	base := profile.Clone()
	s.baseline = &base
	s.current = profile.Clone()
	s.selection = nil
	if selection != nil {
		sel := *selection
		s.selection = &sel
	}
	s.prediction, s.basePred = nil, nil
	if prediction != nil {
		p, b := *prediction, *prediction
		s.prediction, s.basePred = &p, &b
	}
	s.modified = domain.Unmodified
	s.pending = false
	s.drag = nil
	s.state = Idle
	s.loadedAt = s.clock.Now()
	s.predictedAt = s.loadedAt
	return s.changesLocked()
}

// SetRHLock sets the relative-humidity lock read at the next drag-end.
func (s *Session) SetRHLock(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.rhLock = on
	return nil
}

// DragStart begins a drag of one handle. Only one drag may be active; the
// index must lie inside the profile.
func (s *Session) DragStart(v domain.Variable, index int) (skewt.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return skewt.Handle{}, ErrClosed
	case s.state == Dragging:
		return skewt.Handle{}, ErrDragInProgress
	case s.state == Loading:
		return skewt.Handle{}, ErrLoading
	case s.baseline == nil:
		return skewt.Handle{}, ErrNoProfile
	}
	if index < 0 || index >= s.current.Levels() {
		return skewt.Handle{}, domain.Invariant(fmt.Errorf("%w: drag index %d, %d levels",
			perturb.ErrIndexOutOfRange, index, s.current.Levels()))
	}

	start := s.transform.ToDiagram(s.current.Series(v)[index], s.current.Pressure[index])
	s.drag = &domain.EditEvent{Variable: v, Index: index, Start: start, Current: start}
	s.state = Dragging
	return skewt.Handle{Index: index, X: start.X, Y: start.Y}, nil
}

// DragMove tracks the pointer. Only the handle's horizontal position moves;
// the level's pressure is fixed.
func (s *Session) DragMove(pt skewt.Point) (skewt.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return skewt.Handle{}, ErrClosed
	}
	if s.state != Dragging || s.drag == nil {
		return skewt.Handle{}, ErrNotDragging
	}
	s.drag.Current = skewt.Point{X: pt.X, Y: s.drag.Start.Y}
	return skewt.Handle{Index: s.drag.Index, X: s.drag.Current.X, Y: s.drag.Current.Y}, nil
}

// CancelDrag abandons a drag without touching the arrays.
func (s *Session) CancelDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Dragging {
		s.drag = nil
		s.state = Idle
	}
}

// DragEnd settles the drag at pt. The displacement from the drag-start
// handle position becomes a temperature delta, spread over all levels; with
// the RH lock on the paired series is recomputed from the drag-start
// humidity. The edit is rejected, leaving the arrays untouched, when the
// computation fails or would put a dewpoint above its temperature.
func (s *Session) DragEnd(pt skewt.Point) (Changes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Changes{}, ErrClosed
	}
	if s.state != Dragging || s.drag == nil {
		return Changes{}, ErrNotDragging
	}
	if s.baseline == nil {
		s.state = Idle
		s.drag = nil
		return Changes{}, ErrNoProfile
	}

	s.state = Settling
	ev := *s.drag
	ev.Current = skewt.Point{X: pt.X, Y: ev.Start.Y}
	s.drag = nil
	defer func() { s.state = Idle }()

	temps, dews, delta, err := s.settle(ev)
	if err != nil {
		return Changes{}, err
	}

	s.current.Temperature = temps
	s.current.Dewpoint = dews
	s.modified = domain.Edited
	s.pending = true

	ch, err := s.changesLocked()
	if err != nil {
		return Changes{}, err
	}
	rec := domain.NewEditRecord(s.id, ev.Variable, ev.Index, delta, s.rhLock, s.current, s.clock.Now())
	rec.Selection = s.selection
	ch.Record = &rec
	return ch, nil
}

// settle computes the post-edit arrays from the drag-start arrays.
func (s *Session) settle(ev domain.EditEvent) (temps, dews []float64, delta float64, err error) {
	baseT, baseTd := s.current.Temperature, s.current.Dewpoint
	delta = perturb.DeltaFromDrag(s.transform, ev.Start, ev.Current, s.current.Pressure[ev.Index])

	edited, err := s.engine.ApplyDrag(s.current.Series(ev.Variable), ev.Index, delta)
	if err != nil {
		return nil, nil, 0, domain.Invariant(err)
	}

	var other []float64
	if s.rhLock {
		other, err = perturb.LockHumidity(ev.Variable, baseT, baseTd, edited)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("%w: %w", ErrEditRejected, err)
		}
	} else {
		other = append([]float64(nil), s.current.Series(ev.Variable.Other())...)
	}

	if ev.Variable == domain.Temperature {
		temps, dews = edited, other
	} else {
		temps, dews = other, edited
	}
	if err := domain.CheckMoisture(temps, dews); err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %w", ErrEditRejected, err)
	}
	return temps, dews, delta, nil
}

// Reset restores the last loaded profile exactly, together with the
// prediction that came with it, and clears the modified flag.
func (s *Session) Reset() (Changes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Changes{}, ErrClosed
	}
	if s.baseline == nil {
		return Changes{}, ErrNoProfile
	}
	s.current = s.baseline.Clone()
	s.prediction = nil
	if s.basePred != nil {
		p := *s.basePred
		s.prediction = &p
	}
	s.modified = domain.Unmodified
	s.pending = false
	s.drag = nil
	s.state = Idle
	return s.changesLocked()
}

// ApplyPrediction stores a prediction response. Only display fields change;
// the profile arrays are never touched. Responses are applied in arrival
// order, so a slow response to an older edit can overwrite a newer one.
func (s *Session) ApplyPrediction(p domain.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.prediction = &p
	s.pending = false
	s.predictedAt = s.clock.Now()
	return nil
}

// Profile returns a copy of the current arrays.
func (s *Session) Profile() (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseline == nil {
		return domain.Profile{}, ErrNoProfile
	}
	return s.current.Clone(), nil
}

// Levels returns the number of levels in the loaded profile, or zero before
// the first load.
func (s *Session) Levels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseline == nil {
		return 0
	}
	return s.current.Levels()
}

// Modified returns the modified flag.
func (s *Session) Modified() domain.Modified {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modified
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:          s.id,
		State:       s.state,
		RHLock:      s.rhLock,
		Modified:    s.modified,
		Pending:     s.pending,
		LoadedAt:    s.loadedAt,
		PredictedAt: s.predictedAt,
	}
	if s.selection != nil {
		sel := *s.selection
		snap.Selection = &sel
		if vt, err := sel.ValidTime(); err == nil {
			snap.ValidTime = &vt
		}
	}
	if s.prediction != nil {
		p := *s.prediction
		snap.Prediction = &p
	}
	if s.drag != nil {
		d := *s.drag
		snap.Drag = &d
	}
	if s.baseline != nil {
		p := s.current.Clone()
		snap.Profile = &p
		if ch, err := s.changesLocked(); err == nil {
			snap.Changes = &ch
		}
	}
	return snap
}

func (s *Session) changesLocked() (Changes, error) {
	th, err := s.transform.Handles(s.current.Temperature, s.current.Pressure)
	if err != nil {
		return Changes{}, err
	}
	dh, err := s.transform.Handles(s.current.Dewpoint, s.current.Pressure)
	if err != nil {
		return Changes{}, err
	}
	pos, neg := domain.BuoyancyAreas(s.current.Temperature)
	return Changes{
		Temperature:        append([]float64(nil), s.current.Temperature...),
		Dewpoint:           append([]float64(nil), s.current.Dewpoint...),
		TemperatureHandles: th,
		DewpointHandles:    dh,
		Modified:           s.modified,
		Metrics:            domain.ComputeLayerMetrics(s.current.Temperature),
		PositiveArea:       pos,
		NegativeArea:       neg,
	}, nil
}
