package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/couchcryptid/sounding-edit-service/internal/domain"
	"github.com/couchcryptid/sounding-edit-service/internal/editor"
	"github.com/couchcryptid/sounding-edit-service/internal/perturb"
	"github.com/couchcryptid/sounding-edit-service/internal/render"
	"github.com/couchcryptid/sounding-edit-service/internal/session"
	"github.com/couchcryptid/sounding-edit-service/internal/skewt"
)

const upstreamTimeout = 15 * time.Second

type openRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// loadRequest carries either a selection to fetch or an explicit profile.
type loadRequest struct {
	Selection *domain.Selection `json:"selection"`
	Profile   *domain.Profile   `json:"profile"`
}

type rhLockRequest struct {
	Enabled bool `json:"enabled"`
}

type dragStartRequest struct {
	Variable domain.Variable `json:"variable"`
	Index    *int            `json:"index" binding:"required"`
}

type pointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type sampleResponse struct {
	domain.Sample
	Percentages domain.Percentages `json:"percentages"`
}

func (s *Server) handleOpen(c *gin.Context) {
	var req openRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	snap, err := s.editor.Open(req.Width, req.Height)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (s *Server) handleGet(c *gin.Context) {
	snap, err := s.editor.Snapshot(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleClose(c *gin.Context) {
	if err := s.editor.Close(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleLoad(c *gin.Context) {
	var req loadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	id := c.Param("id")
	var (
		ch  session.Changes
		err error
	)
	switch {
	case req.Profile != nil:
		ch, err = s.editor.LoadProfile(id, *req.Profile, req.Selection)
	case req.Selection != nil:
		ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
		defer cancel()
		ch, err = s.editor.LoadSounding(ctx, id, *req.Selection)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "selection or profile is required"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (s *Server) handleRHLock(c *gin.Context) {
	var req rhLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.editor.SetRHLock(c.Param("id"), req.Enabled); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rh_lock": req.Enabled})
}

func (s *Server) handleDragStart(c *gin.Context) {
	var req dragStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h, err := s.editor.DragStart(c.Param("id"), req.Variable, *req.Index)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) handleDragMove(c *gin.Context) {
	pt, ok := bindPoint(c)
	if !ok {
		return
	}
	h, err := s.editor.DragMove(c.Param("id"), pt)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) handleDragEnd(c *gin.Context) {
	pt, ok := bindPoint(c)
	if !ok {
		return
	}
	ch, err := s.editor.DragEnd(c.Param("id"), pt)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (s *Server) handleDragCancel(c *gin.Context) {
	if err := s.editor.CancelDrag(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReset(c *gin.Context) {
	ch, err := s.editor.Reset(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (s *Server) handleSample(c *gin.Context) {
	var sel domain.Selection
	if err := c.ShouldBindJSON(&sel); err != nil {
		badRequest(c, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	sample, err := s.editor.Sample(ctx, c.Param("id"), sel)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sampleResponse{Sample: sample, Percentages: sample.Percentages()})
}

func (s *Server) handleDiagram(c *gin.Context) {
	sess, err := s.editor.Session(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	snap := sess.Snapshot()

	var buf bytes.Buffer
	if err := render.Diagram(&buf, sess.Transform(), snap.Profile); err != nil {
		s.logger.Error("render diagram failed", "session_id", snap.ID, "error", err)
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) handleProbabilities(c *gin.Context) {
	snap, err := s.editor.Snapshot(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if snap.Prediction == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no prediction available"})
		return
	}

	var buf bytes.Buffer
	if err := render.Probabilities(&buf, *snap.Prediction); err != nil {
		s.logger.Error("render probabilities failed", "session_id", snap.ID, "error", err)
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func bindPoint(c *gin.Context) (skewt.Point, bool) {
	var req pointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return skewt.Point{}, false
	}
	return skewt.Point{X: req.X, Y: req.Y}, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// statusFor maps editing errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, editor.ErrSessionNotFound), errors.Is(err, session.ErrClosed):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidProfile), errors.Is(err, domain.ErrInvalidSelection),
		errors.Is(err, session.ErrEditRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrDragInProgress), errors.Is(err, session.ErrNotDragging),
		errors.Is(err, session.ErrLoading), errors.Is(err, session.ErrNoProfile):
		return http.StatusConflict
	case errors.Is(err, perturb.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, editor.ErrNoSampler):
		return http.StatusNotImplemented
	case errors.Is(err, editor.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
