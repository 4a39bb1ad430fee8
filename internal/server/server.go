package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alkime/dictate/internal/config"
	"github.com/alkime/dictate/internal/history"
	"github.com/alkime/dictate/internal/stt"
	"github.com/gin-gonic/gin"
)

// History is the archive the API reads from.
type History interface {
	List(ctx context.Context, limit, offset int) ([]history.Recording, error)
	Search(ctx context.Context, query string) ([]history.Recording, error)
	Get(ctx context.Context, id string) (history.Recording, error)
	Delete(ctx context.Context, id string) error
}

// Server represents the HTTP server
type Server struct {
	config  *config.Config
	logger  *slog.Logger
	router  *gin.Engine
	history History
	status  *StatusTracker
}

// New creates a new Server instance
func New(cfg *config.Config, logger *slog.Logger, hist History, status *StatusTracker) *Server {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	server := &Server{
		config:  cfg,
		logger:  logger,
		router:  router,
		history: hist,
		status:  status,
	}

	setupSecurityMiddleware(router, cfg, logger)
	server.setupRoutes()

	return server
}

// Router exposes the handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              "127.0.0.1:" + s.config.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", srv.Addr)
		errC <- srv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errC; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api/v1")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/models", s.handleModels)
		api.GET("/history", s.handleHistoryList)
		api.GET("/history/search", s.handleHistorySearch)
		api.GET("/history/:id", s.handleHistoryGet)
		api.DELETE("/history/:id", s.handleHistoryDelete)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "dictate",
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.status.Snapshot())
}

func (s *Server) handleModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": stt.Models})
}

func (s *Server) handleHistoryList(c *gin.Context) {
	limit, err := queryInt(c, "limit", history.DefaultListLimit)
	if err != nil {
		s.badRequest(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.badRequest(c, err)
		return
	}

	recs, err := s.history.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": nonNil(recs), "limit": limit, "offset": offset})
}

func (s *Server) handleHistorySearch(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		s.badRequest(c, errors.New("missing query parameter q"))
		return
	}

	recs, err := s.history.Search(c.Request.Context(), q)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": nonNil(recs)})
}

func (s *Server) handleHistoryGet(c *gin.Context) {
	rec, err := s.history.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleHistoryDelete(c *gin.Context) {
	if err := s.history.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, history.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	s.logger.Error("Request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

func nonNil(recs []history.Recording) []history.Recording {
	if recs == nil {
		return []history.Recording{}
	}
	return recs
}
