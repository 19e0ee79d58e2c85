package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"stock-insight-backend/config"
	"stock-insight-backend/internal/auth"
	"stock-insight-backend/internal/cache"
	"stock-insight-backend/internal/database"
	"stock-insight-backend/internal/events"
	"stock-insight-backend/internal/marketdata"
	"stock-insight-backend/internal/scanner"
	"stock-insight-backend/internal/secrets"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RateLimiter provides simple in-memory rate limiting per key
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
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

	// Filter out old requests
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

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      config.ServerConfig
	repo        *database.Repository
	bus         *events.EventBus
	authService *auth.Service
	provider    *marketdata.Provider
	evaluator   *scanner.Evaluator
	scanner     *scanner.Scanner
	secrets     *secrets.Client
	redis       *cache.Service // nil when redis is disabled
	hub         *wsHub
	caches      analysisCaches
	rateLimiter *RateLimiter
	logger      zerolog.Logger
	startedAt   time.Time
}

// NewServer creates the API server and wires all routes
func NewServer(
	cfg *config.Config,
	repo *database.Repository,
	bus *events.EventBus,
	authService *auth.Service,
	provider *marketdata.Provider,
	evaluator *scanner.Evaluator,
	watchScanner *scanner.Scanner,
	secretsClient *secrets.Client,
	redisCache *cache.Service, // nil when redis is disabled
	logger zerolog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	server := &Server{
		router:      router,
		config:      cfg.ServerConfig,
		repo:        repo,
		bus:         bus,
		authService: authService,
		provider:    provider,
		evaluator:   evaluator,
		scanner:     watchScanner,
		secrets:     secretsClient,
		redis:       redisCache,
		hub:         newWSHub(logger),
		caches:      newAnalysisCaches(redisCache),
		rateLimiter: NewRateLimiter(20, time.Minute), // 20 requests per minute per IP on auth routes
		logger:      logger.With().Str("component", "api").Logger(),
		startedAt:   time.Now(),
	}

	router.Use(server.requestLogger())
	router.Use(metricsMiddleware())

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitOrigins(cfg.ServerConfig.AllowedOrigins)
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server.setupRoutes()

	go server.hub.Run()
	bus.SubscribeAll(server.hub.Forward)
	bus.Subscribe(events.EventScanCompleted, observeScanMetrics)
	bus.Subscribe(events.EventScanResult, observeScanMetrics)
	bus.Subscribe(events.EventError, observeScanMetrics)

	return server
}

// splitOrigins parses the comma separated allowed origins list
func splitOrigins(origins string) []string {
	var out []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		out = []string{"http://localhost:5173"}
	}
	return out
}

// requestLogger logs each request with method, path, status and latency
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// rateLimitMiddleware limits requests per client IP, used on the auth routes
// to slow down credential stuffing
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + ":" + c.FullPath()
		if !s.rateLimiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "RATE_LIMITED",
				"message": "too many requests, slow down",
			})
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health check and metrics
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jwtManager := s.authService.GetJWTManager()

	api := s.router.Group("/api")

	// Auth routes (public, rate limited per IP)
	authGroup := api.Group("/auth")
	authGroup.Use(s.rateLimitMiddleware())
	auth.NewHandlers(s.authService).RegisterRoutes(authGroup, jwtManager)

	// Analysis routes (public)
	analysis := api.Group("/analysis")
	{
		analysis.GET("/:symbol/history", s.handleHistory)
		analysis.GET("/:symbol/technicals", s.handleTechnicals)
		analysis.GET("/:symbol/seasonality", s.handleSeasonality)
		analysis.GET("/:symbol/zones", s.handleZones)
		analysis.GET("/:symbol/signal", s.handleSignal)
		analysis.GET("/:symbol/price", s.handleLivePrice)
	}

	// Account routes (authenticated)
	protected := api.Group("")
	protected.Use(auth.Middleware(jwtManager))
	{
		protected.GET("/watchlist", s.handleGetWatchlist)
		protected.POST("/watchlist", s.handleAddToWatchlist)
		protected.DELETE("/watchlist/:symbol", s.handleRemoveFromWatchlist)

		protected.GET("/portfolios", s.handleListPortfolios)
		protected.GET("/portfolios/:id", s.handleGetPortfolio)
		protected.POST("/portfolios", s.handleCreatePortfolio)
		protected.DELETE("/portfolios/:id", s.handleDeletePortfolio)

		protected.GET("/scanner/results", s.handleScannerResults)
		protected.POST("/scanner/refresh", s.handleScannerRefresh)
	}

	// Websocket (authenticated via header or token query param)
	s.router.GET("/ws", auth.Middleware(jwtManager), s.handleWebSocket)
}

// Start begins listening on the configured address and blocks until shutdown
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth reports database, redis and vault health
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	health := gin.H{
		"status": "healthy",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	}

	healthy := true
	if err := s.repo.HealthCheck(ctx); err != nil {
		health["database"] = "unhealthy"
		healthy = false
	} else {
		health["database"] = "healthy"
	}

	if s.redis != nil {
		if s.redis.IsHealthy() {
			health["redis"] = "healthy"
		} else {
			health["redis"] = "degraded" // analysis caches fall back to memory
		}
	}

	if s.secrets != nil && s.secrets.IsEnabled() {
		if err := s.secrets.Health(ctx); err != nil {
			health["vault"] = "unhealthy"
		} else {
			health["vault"] = "healthy"
		}
	}

	if !healthy {
		health["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	c.JSON(http.StatusOK, health)
}

// getUserID returns the authenticated user ID or empty string
func (s *Server) getUserID(c *gin.Context) string {
	return auth.GetUserID(c)
}

func errorResponse(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, gin.H{
		"error":   code,
		"message": message,
	})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// Router exposes the gin engine for tests
func (s *Server) Router() http.Handler {
	return s.router
}
