// Package api serves the local status and diagnostics API: current check
// states, recent events, a websocket event stream, and prometheus
// self-metrics. Read-only; it never mutates agent state.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mitinsharma/serverstriker/internal/alert"
	"github.com/mitinsharma/serverstriker/internal/config"
	"github.com/mitinsharma/serverstriker/internal/utils"
	"github.com/mitinsharma/serverstriker/internal/version"
)

// StatusProvider is the read surface the agent exposes to the API.
type StatusProvider interface {
	Server() string
	Snapshots() []alert.State
	Events() []alert.Event
}

// Server hosts the diagnostics API.
type Server struct {
	provider StatusProvider
	cfg      config.Config
	auth     *AuthService
	hub      *Hub
	log      *utils.Logger
	started  time.Time
}

// NewServer constructs the API server. Auth is enforced only when an
// API password hash is configured.
func NewServer(provider StatusProvider, cfg config.Config, log *utils.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	return &Server{
		provider: provider,
		cfg:      cfg,
		auth:     NewAuthService(cfg.JWTSecret),
		hub:      NewHub(log),
		log:      log,
		started:  time.Now(),
	}
}

// EventSink returns a function the agent can call for every dispatched
// event; events are fanned out to websocket clients as JSON.
func (s *Server) EventSink() func(alert.Event) {
	return func(ev alert.Event) {
		if data, err := json.Marshal(ev); err == nil {
			s.hub.Broadcast(data)
		}
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.POST("/api/login", s.handleLogin)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authorized := r.Group("/", s.requireAuth())
	authorized.GET("/api/status", s.handleStatus)
	authorized.GET("/api/events", s.handleEvents)
	authorized.GET("/api/config", s.handleConfig)
	authorized.GET("/ws", s.hub.HandleWebSocket())

	return r
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.APIAddr, Handler: s.Router()}

	go s.hub.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Writef("Status API listening on %s", s.cfg.APIAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// requireAuth gates the diagnostics routes behind a bearer token when an
// API password is configured; otherwise the API is open (loopback bind).
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.APIPasswordHash == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if err := s.auth.ValidateToken(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"server":  s.provider.Server(),
		"version": version.String(),
		"uptime":  time.Since(s.started).Truncate(time.Second).String(),
	})
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	if s.cfg.APIPasswordHash == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "authentication not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password required"})
		return
	}
	if !CheckPassword(s.cfg.APIPasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
		return
	}
	token, err := s.auth.GenerateToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"server": s.provider.Server(),
		"checks": s.provider.Snapshots(),
	})
}

func (s *Server) handleEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"events": s.provider.Events(),
	})
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg.Redacted())
}
