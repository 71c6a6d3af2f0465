package editor

import (
	"context"
	"errors"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/sounding-edit-service/internal/domain"
	"github.com/couchcryptid/sounding-edit-service/internal/session"
)

const (
	maxPublishBatch  = 50
	publishAttempts  = 3
	initialBackoff   = 200 * time.Millisecond
	maxBackoff       = 5 * time.Second
	finalFlushWindow = 5 * time.Second
)

type predictionJob struct {
	sessionID string
	profile   domain.Profile
}

// Run starts the prediction workers and, when a publisher is configured, the
// edit publisher. It blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("editor dispatcher started", "workers", s.opts.Workers, "queue_size", s.opts.QueueSize,
		"publishing", s.publisher != nil)
	s.running.Store(true)
	defer s.running.Store(false)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.opts.Workers; i++ {
		g.Go(func() error {
			s.predictLoop(gctx)
			return nil
		})
	}
	if s.publisher != nil {
		g.Go(func() error {
			s.publishLoop(gctx)
			return nil
		})
	}

	<-ctx.Done()
	s.draining.Store(true)
	s.logger.Info("editor dispatcher stopping", "reason", ctx.Err())
	return g.Wait()
}

// dispatch queues a prediction without blocking. A full queue drops the job;
// the session stays marked as awaiting a prediction.
func (s *Service) dispatch(j predictionJob) {
	select {
	case s.jobs <- j:
		s.metrics.DispatchQueued.Inc()
	default:
		s.metrics.DispatchDropped.Inc()
		s.logger.Warn("prediction queue full, dropping request", "session_id", j.sessionID)
	}
}

func (s *Service) predictLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.jobs:
			s.metrics.DispatchQueued.Dec()
			s.predict(ctx, j)
		}
	}
}

// predict runs one job. Responses are applied in arrival order with no
// sequencing: a slow response to an older edit may overwrite a newer one.
func (s *Service) predict(ctx context.Context, j predictionJob) {
	pred, err := s.predictor.Predict(ctx, j.profile)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("prediction failed", "session_id", j.sessionID, "error", err)
		}
		return
	}
	if pred.Metrics == nil {
		pred.Metrics = domain.ComputeLayerMetrics(j.profile.Temperature)
	}

	sess, err := s.sessions.Get(j.sessionID)
	if err != nil {
		s.logger.Debug("prediction for closed session discarded", "session_id", j.sessionID)
		return
	}
	if err := sess.ApplyPrediction(pred); err != nil && !errors.Is(err, session.ErrClosed) {
		s.logger.Warn("apply prediction failed", "session_id", j.sessionID, "error", err)
	}
}

// enqueueRecord hands a committed edit to the publisher without blocking.
func (s *Service) enqueueRecord(rec domain.EditRecord) {
	if s.records == nil {
		return
	}
	select {
	case s.records <- rec:
	default:
		s.metrics.PublishErrors.Inc()
		s.logger.Warn("edit queue full, dropping record", "session_id", rec.SessionID)
	}
}

// publishLoop batches queued records into single publisher calls. Records
// still queued at shutdown get one final flush.
func (s *Service) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushWindow)
			defer cancel()
			if batch := s.drainRecords(nil); len(batch) > 0 {
				s.publishBatch(flushCtx, batch)
			}
			return
		case rec := <-s.records:
			s.publishBatch(ctx, s.drainRecords([]domain.EditRecord{rec}))
		}
	}
}

// drainRecords appends whatever is already queued, up to maxPublishBatch.
func (s *Service) drainRecords(batch []domain.EditRecord) []domain.EditRecord {
	for len(batch) < maxPublishBatch {
		select {
		case rec := <-s.records:
			batch = append(batch, rec)
		default:
			return batch
		}
	}
	return batch
}

// publishBatch retries with exponential backoff, then drops the batch.
func (s *Service) publishBatch(ctx context.Context, batch []domain.EditRecord) {
	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err := s.publisher.Publish(ctx, batch...)
		if err == nil {
			s.metrics.EditsPublished.Add(float64(len(batch)))
			return
		}
		if attempt >= publishAttempts || ctx.Err() != nil {
			s.metrics.PublishErrors.Add(float64(len(batch)))
			s.logger.Error("publish edit records failed", "error", err, "batch_size", len(batch), "attempts", attempt)
			return
		}
		s.logger.Warn("publish edit records failed, retrying", "error", err, "attempt", attempt, "backoff", backoff)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			s.metrics.PublishErrors.Add(float64(len(batch)))
			return
		}
		backoff = sharedretry.NextBackoff(backoff, maxBackoff)
	}
}
