// Package api exposes the investigation engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nsure-ai/inquest/pkg/engine"
	"github.com/nsure-ai/inquest/pkg/queue"
	"github.com/nsure-ai/inquest/pkg/version"
)

// Server is the HTTP front of the engine.
type Server struct {
	service *engine.Service
	logger  *slog.Logger
	http    *http.Server
}

// NewServer builds the server and its routes.
func NewServer(service *engine.Service, port int) *Server {
	s := &Server{
		service: service,
		logger:  slog.With("component", "api"),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog())

	router.GET("/healthz", s.handleHealthz)
	v1 := router.Group("/api/v1")
	{
		v1.POST("/investigations", s.handleStart)
		v1.GET("/investigations/:id", s.handleGet)
		v1.POST("/investigations/:id/cancel", s.handleCancel)
	}

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route tree, used by tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("HTTP API listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleStart(c *gin.Context) {
	var req engine.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := s.service.Start(req)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrQueueFull):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		case errors.Is(err, queue.ErrStopped):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"investigation_id": id})
}

func (s *Server) handleGet(c *gin.Context) {
	id := c.Param("id")
	st, ok := s.service.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "investigation not found"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleCancel(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.service.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "investigation not found"})
		return
	}
	cancelled := s.service.Cancel(id)
	c.JSON(http.StatusOK, gin.H{"investigation_id": id, "cancelled": cancelled})
}
