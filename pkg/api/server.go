// Package api serves the boat's telemetry inputs and mission status over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/heitortanoue/sailbot/pkg/geo"
	"github.com/heitortanoue/sailbot/pkg/state"
)

// StatsProvider is any component reporting statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// Server bundles the router and the boat state.
type Server struct {
	port    int
	boat    *state.BoatState
	stats   map[string]StatsProvider
	engine  *gin.Engine
	started time.Time
}

// PositionRequest is the body of POST /position.
type PositionRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lon *float64 `json:"lon" binding:"required"`
}

// WindRequest is the body of POST /wind.
type WindRequest struct {
	Angle *float64 `json:"angle" binding:"required"`
}

// NewServer builds the router. stats are reported under their key by
// GET /stats.
func NewServer(port int, boat *state.BoatState, stats map[string]StatsProvider) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		port:    port,
		boat:    boat,
		stats:   stats,
		engine:  engine,
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Engine exposes the gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[API] Listening on port %d", s.port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.POST("/position", s.handlePosition)
	s.engine.POST("/wind", s.handleWind)
	s.engine.GET("/status", s.handleStatus)
	s.engine.GET("/stats", s.handleStats)
}

func (s *Server) handleHealth(c *gin.Context) {
	_, err := s.boat.Position()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"boat_id": s.boat.BoatID(),
		"has_fix": err == nil,
		"uptime":  time.Since(s.started).Seconds(),
	})
}

func (s *Server) handlePosition(c *gin.Context) {
	var req PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pos := geo.NewWaypoint(*req.Lat, *req.Lon)
	if err := s.boat.UpdatePosition(pos); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"position": pos})
}

func (s *Server) handleWind(c *gin.Context) {
	var req WindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.boat.UpdateWind(*req.Angle)
	c.JSON(http.StatusOK, gin.H{"angle": s.boat.WindAngle()})
}

func (s *Server) handleStatus(c *gin.Context) {
	status, ok := s.boat.Status()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "mission not started"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"history": s.boat.History(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	out := gin.H{
		"state":  s.boat.GetStats(),
		"uptime": time.Since(s.started).Seconds(),
	}
	for name, provider := range s.stats {
		if provider != nil {
			out[name] = provider.GetStats()
		}
	}
	c.JSON(http.StatusOK, out)
}
