// Package api exposes pipeline run state over a small read-mostly REST
// surface, plus a replay endpoint for operators. It never mutates run
// history directly; all writes go through the orchestrator.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geih-labs/firewatch/internal/core/domain"
	"github.com/geih-labs/firewatch/internal/core/ports/driving"
)

// SourceLister enumerates the sources the orchestrator schedules.
type SourceLister interface {
	Sources() []string
}

// Server bundles router and dependencies for the status API.
type Server struct {
	addr         string
	orchestrator driving.PipelineOrchestrator
	sources      SourceLister
	engine       *gin.Engine
}

// New constructs a server with routes and middleware.
func New(addr string, orchestrator driving.PipelineOrchestrator, sources SourceLister) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	server := &Server{
		addr:         addr,
		orchestrator: orchestrator,
		sources:      sources,
		engine:       engine,
	}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/v1")
	v1.GET("/sources", s.handleListSources)
	v1.GET("/runs", s.handleListRuns)
	v1.GET("/runs/:source", s.handleListSourceRuns)
	v1.GET("/runs/:source/:window", s.handleGetRun)
	v1.POST("/runs/:source/:window/replay", s.handleReplay)
}

func (s *Server) handleListSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": s.sources.Sources()})
}

func (s *Server) handleListRuns(c *gin.Context) {
	s.listRuns(c, "")
}

func (s *Server) handleListSourceRuns(c *gin.Context) {
	s.listRuns(c, c.Param("source"))
}

func (s *Server) listRuns(c *gin.Context, source string) {
	status := domain.RunStatus(c.Query("status"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	runs, err := s.orchestrator.ListRuns(ctx, source, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(runs), "runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	source := c.Param("source")
	windowStart, ok := parseWindowParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	run, err := s.orchestrator.GetRunStatus(ctx, source, windowStart)
	if errors.Is(err, domain.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, run)
}

// handleReplay re-executes a failed window synchronously and returns the
// new run's terminal state.
func (s *Server) handleReplay(c *gin.Context) {
	source := c.Param("source")
	windowStart, ok := parseWindowParam(c)
	if !ok {
		return
	}

	run, err := s.orchestrator.Replay(c.Request.Context(), source, windowStart)
	if errors.Is(err, domain.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no prior run for window"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, run)
}

// parseWindowParam accepts a window start as RFC3339 or a bare date.
func parseWindowParam(c *gin.Context) (time.Time, bool) {
	raw := c.Param("window")
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window start, want RFC3339 or YYYY-MM-DD"})
	return time.Time{}, false
}
