package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"smart-trading-engine/internal/auth"
	"smart-trading-engine/internal/database"
	"smart-trading-engine/internal/engine"
	"smart-trading-engine/internal/logging"
	"smart-trading-engine/internal/performance"
	"smart-trading-engine/internal/risk"
	"smart-trading-engine/internal/session"
	"smart-trading-engine/internal/sizing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RateLimiter provides simple in-memory rate limiting per key
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// TrailingStateStore persists trailing stop levels so a process restart
// does not lose an already-tightened stop.
type TrailingStateStore interface {
	SaveTrailingState(ctx context.Context, state *database.TrailingState) error
	LoadTrailingState(ctx context.Context, id uuid.UUID) (*database.TrailingState, error)
	DeleteTrailingState(ctx context.Context, id uuid.UUID) error
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ProductionMode bool
	AllowedOrigins []string
}

// Server exposes the decision engine over HTTP and WebSocket
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig

	entry    *engine.EntryEngine
	exit     *engine.ExitEngine
	monitor  *performance.Monitor
	sess     *session.Analyzer
	kelly    *sizing.KellyCalculator
	repo     *database.Repository // nil when persistence is disabled
	jwt      *auth.JWTManager
	password *auth.PasswordManager

	trailing      *risk.TrailingStopManager
	trailingStore TrailingStateStore // nil when Redis is disabled

	hub          *WSHub
	loginLimiter *RateLimiter
	logger       *logging.Logger
}

// NewServer creates a new API server
func NewServer(
	config ServerConfig,
	entryEngine *engine.EntryEngine,
	exitEngine *engine.ExitEngine,
	monitor *performance.Monitor,
	sess *session.Analyzer,
	kelly *sizing.KellyCalculator,
	repo *database.Repository,
	trailing *risk.TrailingStopManager,
	trailingStore TrailingStateStore,
	jwtManager *auth.JWTManager,
	passwordManager *auth.PasswordManager,
	logger *logging.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:        router,
		config:        config,
		entry:         entryEngine,
		exit:          exitEngine,
		monitor:       monitor,
		sess:          sess,
		kelly:         kelly,
		repo:          repo,
		trailing:      trailing,
		trailingStore: trailingStore,
		jwt:           jwtManager,
		password:      passwordManager,
		hub:           NewWSHub(logger),
		loginLimiter:  NewRateLimiter(10, time.Minute),
		logger:        logger.WithComponent("api"),
	}

	server.registerRoutes()
	return server
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/api/v1/auth/login", s.handleLogin)

	// The browser WebSocket API cannot set an Authorization header, so the
	// socket authenticates inside the upgrade handler (query token with a
	// bearer-header fallback) instead of through the group middleware.
	s.router.GET("/api/v1/ws", s.handleWebSocket)

	v1 := s.router.Group("/api/v1")
	v1.Use(auth.Middleware(s.jwt))
	{
		v1.POST("/analyze/entry", s.handleAnalyzeEntry)
		v1.POST("/analyze/exit", s.handleAnalyzeExit)
		v1.POST("/trades", s.handleRecordTrade)
		v1.POST("/balance", s.handleUpdateBalance)
		v1.GET("/performance/status", s.handlePerformanceStatus)
		v1.GET("/performance/metrics", s.handlePerformanceMetrics)
		v1.GET("/session", s.handleSession)
		v1.POST("/sizing", s.handlePositionSize)
		v1.GET("/trades", s.handleListTrades)
	}
}

// Start begins serving HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	go s.hub.Run()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("API server starting", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}
