// Package editor ties diagram edit sessions to the prediction service and the
// edit stream. It owns session lifecycle, forwards committed edits for
// re-prediction without blocking the caller, and rate-limits hover sampling.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/sounding-edit-service/internal/domain"
	"github.com/couchcryptid/sounding-edit-service/internal/observability"
	"github.com/couchcryptid/sounding-edit-service/internal/perturb"
	"github.com/couchcryptid/sounding-edit-service/internal/ratelimit"
	"github.com/couchcryptid/sounding-edit-service/internal/session"
	"github.com/couchcryptid/sounding-edit-service/internal/skewt"
)

var (
	// ErrSessionNotFound is returned for unknown or closed session ids.
	ErrSessionNotFound = errors.New("editor: session not found")
	// ErrThrottled is returned when a hover sample arrives before the
	// session's minimum sampling interval has elapsed.
	ErrThrottled = errors.New("editor: sample throttled")
	// ErrNoSampler is returned by Sample when no sampler is configured.
	ErrNoSampler = errors.New("editor: sampling unavailable")
	// ErrUpstream wraps failures of the prediction service.
	ErrUpstream = errors.New("editor: prediction service failed")
)

// ProfileSource loads the forecast sounding for a selection.
type ProfileSource interface {
	FetchProfile(ctx context.Context, sel domain.Selection) (domain.Profile, domain.Prediction, error)
}

// Predictor runs the p-type model on an edited profile.
type Predictor interface {
	Predict(ctx context.Context, profile domain.Profile) (domain.Prediction, error)
}

// Sampler reads hover probabilities at a map location.
type Sampler interface {
	Sample(ctx context.Context, sel domain.Selection) (domain.Sample, error)
}

// EditPublisher forwards committed edits downstream.
type EditPublisher interface {
	Publish(ctx context.Context, records ...domain.EditRecord) error
}

// Options tunes a Service. Zero fields take defaults.
type Options struct {
	Width, Height     float64 // default drawable extents for new sessions
	Workers           int
	QueueSize         int
	SampleMinInterval time.Duration
	Clock             clockwork.Clock
}

const (
	defaultWidth     = 650
	defaultHeight    = 500
	defaultWorkers   = 4
	defaultQueueSize = 64
)

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = defaultWidth
	}
	if o.Height <= 0 {
		o.Height = defaultHeight
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// Service orchestrates edit sessions.
type Service struct {
	sessions  *session.Manager
	source    ProfileSource
	predictor Predictor
	sampler   Sampler
	publisher EditPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options

	limitersMu sync.Mutex
	limiters   map[string]*ratelimit.Limiter

	jobs    chan predictionJob
	records chan domain.EditRecord

	running  atomic.Bool
	draining atomic.Bool
}

// New creates a Service. sampler and publisher may be nil.
func New(source ProfileSource, predictor Predictor, sampler Sampler, publisher EditPublisher,
	logger *slog.Logger, metrics *observability.Metrics, opts Options) *Service {
	opts = opts.withDefaults()
	s := &Service{
		sessions:  session.NewManager(perturb.Default(), opts.Clock),
		source:    source,
		predictor: predictor,
		sampler:   sampler,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
		limiters:  make(map[string]*ratelimit.Limiter),
		jobs:      make(chan predictionJob, opts.QueueSize),
	}
	if publisher != nil {
		s.records = make(chan domain.EditRecord, opts.QueueSize)
		metrics.PublishEnabled.Set(1)
	} else {
		metrics.PublishEnabled.Set(0)
	}
	return s
}

// CheckReadiness returns nil while the dispatcher is running and the
// service is not shutting down.
func (s *Service) CheckReadiness(_ context.Context) error {
	if s.draining.Load() {
		return errors.New("editor is shutting down")
	}
	if !s.running.Load() {
		return errors.New("prediction dispatcher not started")
	}
	return nil
}

// Open mounts a diagram: it creates a session with its own chart geometry.
// Non-positive extents take the service defaults.
func (s *Service) Open(width, height float64) (session.Snapshot, error) {
	if width <= 0 {
		width = s.opts.Width
	}
	if height <= 0 {
		height = s.opts.Height
	}
	sess, err := s.sessions.Create(skewt.DefaultConfig(width, height))
	if err != nil {
		return session.Snapshot{}, err
	}

	s.limitersMu.Lock()
	s.limiters[sess.ID()] = ratelimit.New(s.opts.SampleMinInterval, s.opts.Clock)
	s.limitersMu.Unlock()

	s.metrics.SessionsActive.Inc()
	s.logger.Info("session opened", "session_id", sess.ID(), "width", width, "height", height)
	return sess.Snapshot(), nil
}

// Close unmounts a diagram. In-flight predictions for it are discarded.
func (s *Service) Close(id string) error {
	if err := s.sessions.Close(id); err != nil {
		return ErrSessionNotFound
	}
	s.limitersMu.Lock()
	delete(s.limiters, id)
	s.limitersMu.Unlock()

	s.metrics.SessionsActive.Dec()
	s.logger.Info("session closed", "session_id", id)
	return nil
}

// Session looks up an open session.
func (s *Service) Session(id string) (*session.Session, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Snapshot returns a copy of a session's state.
func (s *Service) Snapshot(id string) (session.Snapshot, error) {
	sess, err := s.Session(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// LoadSounding fetches the forecast profile for a selection and loads it
// into the session. On failure the previous profile is kept.
func (s *Service) LoadSounding(ctx context.Context, id string, sel domain.Selection) (session.Changes, error) {
	sess, err := s.Session(id)
	if err != nil {
		return session.Changes{}, err
	}
	sel = sel.Snap()
	if err := sel.Validate(); err != nil {
		return session.Changes{}, err
	}

	if err := sess.BeginLoad(); err != nil {
		return session.Changes{}, err
	}
	profile, pred, err := s.source.FetchProfile(ctx, sel)
	if err != nil {
		sess.FailLoad()
		s.logger.Warn("profile fetch failed", "session_id", id, "error", err)
		return session.Changes{}, fmt.Errorf("%w: fetch profile: %w", ErrUpstream, err)
	}
	if pred.Metrics == nil {
		pred.Metrics = domain.ComputeLayerMetrics(profile.Temperature)
	}

	ch, err := sess.Load(profile, &sel, &pred)
	if err != nil {
		s.logger.Warn("fetched profile rejected", "session_id", id, "error", err)
		return session.Changes{}, err
	}
	s.logger.Info("sounding loaded", "session_id", id, "levels", profile.Levels(),
		"lat", sel.Lat, "lon", sel.Lon, "forecast_hour", sel.ForecastHour)
	return ch, nil
}

// LoadProfile loads a caller-supplied profile, bypassing the prediction
// service. The selection is optional.
func (s *Service) LoadProfile(id string, profile domain.Profile, sel *domain.Selection) (session.Changes, error) {
	sess, err := s.Session(id)
	if err != nil {
		return session.Changes{}, err
	}
	if sel != nil {
		snapped := sel.Snap()
		if err := snapped.Validate(); err != nil {
			return session.Changes{}, err
		}
		sel = &snapped
	}
	if err := sess.BeginLoad(); err != nil {
		return session.Changes{}, err
	}
	ch, err := sess.Load(profile, sel, nil)
	if err != nil {
		return session.Changes{}, err
	}
	s.logger.Info("profile loaded", "session_id", id, "levels", profile.Levels())
	return ch, nil
}

// SetRHLock toggles relative-humidity conservation for later drags.
func (s *Service) SetRHLock(id string, on bool) error {
	sess, err := s.Session(id)
	if err != nil {
		return err
	}
	return sess.SetRHLock(on)
}

// DragStart begins a drag of the handle at index on series v.
func (s *Service) DragStart(id string, v domain.Variable, index int) (skewt.Handle, error) {
	sess, err := s.Session(id)
	if err != nil {
		return skewt.Handle{}, err
	}
	// Client-supplied indexes are checked here; the session treats a bad
	// index as a caller bug.
	if n := sess.Levels(); n > 0 && (index < 0 || index >= n) {
		return skewt.Handle{}, fmt.Errorf("%w: drag index %d, %d levels", perturb.ErrIndexOutOfRange, index, n)
	}
	return sess.DragStart(v, index)
}

// DragMove tracks the pointer during a drag.
func (s *Service) DragMove(id string, pt skewt.Point) (skewt.Handle, error) {
	sess, err := s.Session(id)
	if err != nil {
		return skewt.Handle{}, err
	}
	return sess.DragMove(pt)
}

// DragEnd commits a drag. The edited profile is queued for re-prediction and
// publishing; neither blocks the caller.
func (s *Service) DragEnd(id string, pt skewt.Point) (session.Changes, error) {
	sess, err := s.Session(id)
	if err != nil {
		return session.Changes{}, err
	}
	ch, err := sess.DragEnd(pt)
	if err != nil {
		if errors.Is(err, session.ErrEditRejected) {
			s.metrics.EditsRejected.Inc()
			s.logger.Info("edit rejected", "session_id", id, "error", err)
		}
		return session.Changes{}, err
	}

	rec := ch.Record
	s.metrics.EditsCommitted.WithLabelValues(rec.Variable.String()).Inc()
	s.logger.Debug("edit committed", "session_id", id, "variable", rec.Variable,
		"index", rec.Index, "delta", rec.Delta, "rh_lock", rec.RHLock)

	profile, err := sess.Profile()
	if err == nil {
		s.dispatch(predictionJob{sessionID: id, profile: profile})
	}
	s.enqueueRecord(*rec)
	return ch, nil
}

// CancelDrag abandons a drag without changing the profile.
func (s *Service) CancelDrag(id string) error {
	sess, err := s.Session(id)
	if err != nil {
		return err
	}
	sess.CancelDrag()
	return nil
}

// Reset restores the last loaded profile.
func (s *Service) Reset(id string) (session.Changes, error) {
	sess, err := s.Session(id)
	if err != nil {
		return session.Changes{}, err
	}
	ch, err := sess.Reset()
	if err != nil {
		return session.Changes{}, err
	}
	s.metrics.Resets.Inc()
	return ch, nil
}

// Sample reads hover probabilities for a map location on behalf of a
// session. Calls closer together than the sampling interval fail with
// ErrThrottled without reaching the prediction service.
func (s *Service) Sample(ctx context.Context, id string, sel domain.Selection) (domain.Sample, error) {
	if _, err := s.Session(id); err != nil {
		return domain.Sample{}, err
	}
	if s.sampler == nil {
		return domain.Sample{}, ErrNoSampler
	}

	s.limitersMu.Lock()
	lim := s.limiters[id]
	s.limitersMu.Unlock()
	if lim != nil && !lim.Allow() {
		s.metrics.SamplesThrottled.Inc()
		return domain.Sample{}, ErrThrottled
	}

	sel = sel.Snap()
	if err := sel.Validate(); err != nil {
		return domain.Sample{}, err
	}
	sample, err := s.sampler.Sample(ctx, sel)
	if err != nil {
		return domain.Sample{}, fmt.Errorf("%w: sample: %w", ErrUpstream, err)
	}
	return sample, nil
}

// Shutdown marks the service as draining and closes all sessions.
func (s *Service) Shutdown() {
	s.draining.Store(true)
	s.sessions.CloseAll()
	s.metrics.SessionsActive.Set(0)
}
