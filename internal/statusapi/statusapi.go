// Package statusapi is the optional gin-based health/stats surface, off by
// default and enabled only when --status_addr is set, reusing the teacher's
// logger middleware and CORS setup instead of the teacher's authenticated
// REST API (which this module replaces entirely).
package statusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/go-partisan/partisan/internal/supervisor"
	"github.com/go-partisan/partisan/pkg/logger"
)

// StatsProvider is satisfied by anything that can report its current queue
// stats; *supervisor.Supervisor implements it directly.
type StatsProvider interface {
	Stats() supervisor.Stats
}

// Server is the status HTTP surface: /healthz reports process liveness,
// /stats reports one entry per supervised queue.
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
}

// New builds a gin.Engine wired the way the teacher's routes.Setup wires
// middleware (security headers aside, since this surface carries no
// authenticated routes), serving providers' Stats() under /stats.
func New(addr string, allowedOrigins []string, log *logger.Logger, providers []StatsProvider, startTime time.Time) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(log.GinLogger())
	router.Use(log.GinRecovery())
	if len(allowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: allowedOrigins,
			AllowMethods: []string{"GET"},
			MaxAge:       12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(startTime).String(),
		})
	})

	router.GET("/stats", func(c *gin.Context) {
		stats := make([]supervisor.Stats, 0, len(providers))
		for _, p := range providers {
			stats = append(stats, p.Stats())
		}
		c.JSON(http.StatusOK, gin.H{"queues": stats})
	})

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: router},
		logger:     log,
	}
}

// Run starts serving and blocks until ctx is canceled, then shuts down
// gracefully, mirroring the teacher's cmd/api server lifecycle.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status api listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
