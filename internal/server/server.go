// Package server exposes a finished run over read-only HTTP endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/crimson-sun/plantrace/internal/engine"
	"github.com/crimson-sun/plantrace/internal/engine/filter"
	"github.com/crimson-sun/plantrace/internal/model"
	"github.com/crimson-sun/plantrace/internal/output/chrome"
)

// Run is what the server reports on.
type Run struct {
	ID     string
	Result *engine.Result
	Traces []model.Trace     // the exported traces, after exclusion
	Other  map[string]string // otherData of served documents
	Phase  chrome.Phase      // default phase
}

// Server serves one Run.
type Server struct {
	echo *echo.Echo
	run  Run
}

// New creates a Server and registers its routes.
func New(run Run) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("http request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	s := &Server{echo: e, run: run}
	s.RegisterRoutes(e)
	return s
}

// RegisterRoutes registers the diagnostics routes.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", s.Health)
	v1 := e.Group("/v1")
	v1.GET("/session", s.Session)
	v1.GET("/stats", s.Stats)
	v1.GET("/traces", s.Traces)
	v1.GET("/traces/actions", s.Actions)
	v1.GET("/traces/related/:task", s.Related)
	v1.GET("/plan", s.Plan)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Health reports liveness.
// GET /health
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "run": s.run.ID})
}

// Session returns the session metadata.
// GET /v1/session
func (s *Server) Session(c echo.Context) error {
	return c.JSON(http.StatusOK, s.run.Result.Reduced.Session)
}

// Stats returns the classification counters.
// GET /v1/stats
func (s *Server) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.run.Result.Stats)
}

// Traces returns every exported trace as a Chrome document.
// GET /v1/traces?phase=begin-end&short=true
func (s *Server) Traces(c echo.Context) error {
	return s.document(c, s.run.Traces)
}

// Actions returns the action traces.
// GET /v1/traces/actions
func (s *Server) Actions(c echo.Context) error {
	var actions []model.Trace
	for _, tr := range s.run.Traces {
		if tr.Optype == model.OptypeAction {
			actions = append(actions, tr)
		}
	}
	return s.document(c, actions)
}

// Related returns the traces connected to one task.
// GET /v1/traces/related/:task?mode=children|related
func (s *Server) Related(c echo.Context) error {
	mode, err := filter.ParseMode(c.QueryParam("mode"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	task := c.Param("task")
	selected := filter.Select(s.run.Traces, task, mode)
	if len(selected) == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no traces for task " + task})
	}
	return s.document(c, selected)
}

// Plan renders the tree of tasks open at the end of the log.
// GET /v1/plan
func (s *Server) Plan(c echo.Context) error {
	tree, err := s.run.Result.Plan()
	if err != nil {
		slog.Error("failed to build plan", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.String(http.StatusOK, tree.String())
}

func (s *Server) document(c echo.Context, traces []model.Trace) error {
	cfg := chrome.Config{Phase: s.run.Phase}
	if p := c.QueryParam("phase"); p != "" {
		phase, err := chrome.ParsePhase(p)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		cfg.Phase = phase
	}
	if v := c.QueryParam("short"); v != "" {
		short, err := strconv.ParseBool(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid short: " + v})
		}
		cfg.ShortNames = short
	}
	return c.JSON(http.StatusOK, chrome.New(cfg).Export(traces, s.run.Other))
}
