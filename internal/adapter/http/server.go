package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/sounding-edit-service/internal/domain"
	"github.com/couchcryptid/sounding-edit-service/internal/session"
	"github.com/couchcryptid/sounding-edit-service/internal/skewt"
)

// Editor is the editing surface the REST API drives.
type Editor interface {
	Open(width, height float64) (session.Snapshot, error)
	Close(id string) error
	Session(id string) (*session.Session, error)
	Snapshot(id string) (session.Snapshot, error)
	LoadSounding(ctx context.Context, id string, sel domain.Selection) (session.Changes, error)
	LoadProfile(id string, profile domain.Profile, sel *domain.Selection) (session.Changes, error)
	SetRHLock(id string, on bool) error
	DragStart(id string, v domain.Variable, index int) (skewt.Handle, error)
	DragMove(id string, pt skewt.Point) (skewt.Handle, error)
	DragEnd(id string, pt skewt.Point) (session.Changes, error)
	CancelDrag(id string) error
	Reset(id string) (session.Changes, error)
	Sample(ctx context.Context, id string, sel domain.Selection) (domain.Sample, error)
}

// Server exposes the session API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	editor     Editor
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the /api/v1 session routes,
// /healthz, /readyz, and /metrics.
func NewServer(addr string, editor Editor, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine: engine,
		editor: editor,
		logger: logger,
	}

	engine.GET("/healthz", gin.WrapF(sharedobs.LivenessHandler()))
	engine.GET("/readyz", gin.WrapF(sharedobs.ReadinessHandler(ready)))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/api/v1/sessions")
	v1.POST("", s.handleOpen)
	v1.GET("/:id", s.handleGet)
	v1.DELETE("/:id", s.handleClose)
	v1.POST("/:id/load", s.handleLoad)
	v1.PUT("/:id/rhlock", s.handleRHLock)
	v1.POST("/:id/drag/start", s.handleDragStart)
	v1.POST("/:id/drag/move", s.handleDragMove)
	v1.POST("/:id/drag/end", s.handleDragEnd)
	v1.POST("/:id/drag/cancel", s.handleDragCancel)
	v1.POST("/:id/reset", s.handleReset)
	v1.POST("/:id/sample", s.handleSample)
	v1.GET("/:id/diagram.png", s.handleDiagram)
	v1.GET("/:id/probabilities.png", s.handleProbabilities)
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// requestLogger logs one line per request at debug level, or warn for
// server errors.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"session_id", c.Param("id"),
		)
	}
}
