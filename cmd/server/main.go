package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pubkeyapp/realms-vsr-holders/internal/config"
	"github.com/pubkeyapp/realms-vsr-holders/internal/handlers"
	"github.com/pubkeyapp/realms-vsr-holders/internal/middleware"
	"github.com/pubkeyapp/realms-vsr-holders/internal/services"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/clock"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/logger"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/metrics"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/ratelimiter"
)

const shutdownTimeout = 30 * time.Second

// Server represents the main application server
type Server struct {
	httpServer   *http.Server
	config       *config.Config
	authService  *services.AuthService
	solanaClient *services.SolanaClient
	powerService *services.PowerService
	rateLimiter  *ratelimiter.RateLimiter
	router       *handlers.Router
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(&logger.Config{
		Level:       cfg.Logging.Level,
		Environment: cfg.Logging.Environment,
		OutputPaths: cfg.Logging.OutputPaths,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log := logger.GetLogger()

	log.Info("Starting governance power API server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("rpc_endpoint", services.RedactEndpoint(cfg.RPC.Endpoint)),
		zap.String("realm", cfg.Governance.Realm),
		zap.Duration("cache_ttl", cfg.Cache.TTL),
		zap.Int("rate_limit_rpm", cfg.RateLimit.RequestsPerMinute),
		zap.String("log_level", cfg.Logging.Level),
		zap.String("environment", cfg.Logging.Environment),
	)

	server, err := NewServer(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	if err := server.Start(); err != nil {
		log.Fatal("Server failed", zap.Error(err))
	}
}

// NewServer creates a new server instance with all dependencies
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log := logger.GetLogger()

	keys, err := cfg.Governance.Keys()
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()

	solanaClient := services.NewSolanaClient(&cfg.RPC, log, collector)
	if err := solanaClient.IsHealthy(ctx); err != nil {
		log.Warn("Solana RPC health check failed", zap.Error(err))
	} else {
		log.Info("Solana RPC connection healthy")
	}

	policy := services.NewPowerPolicy(solanaClient, keys, clock.SystemClock{}, log)
	powerService := services.NewPowerService(policy, cfg, collector, log)

	mongoClient, err := services.ConnectMongo(ctx, &cfg.MongoDB)
	if err != nil {
		powerService.Stop()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}
	authService := services.NewAuthService(mongoClient, &cfg.MongoDB, log)
	if err := authService.EnsureIndexes(ctx); err != nil {
		log.Warn("Failed to ensure API key indexes", zap.Error(err))
	}

	rateLimiter := ratelimiter.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.WindowSize)

	healthHandler := handlers.NewHealthHandler(
		services.NewDatabaseHealthChecker(mongoClient, &cfg.MongoDB),
		services.NewRPCHealthChecker(solanaClient),
	)
	statusHandler := handlers.NewStatusHandler(powerService, solanaClient)
	router := handlers.NewRouter(powerService, healthHandler, statusHandler)

	log.Info("Server components initialized successfully")

	return &Server{
		config:       cfg,
		authService:  authService,
		solanaClient: solanaClient,
		powerService: powerService,
		rateLimiter:  rateLimiter,
		router:       router,
	}, nil
}

// newEngine builds the gin engine with the middleware stack and routes
func newEngine(router *handlers.Router, auth services.AuthServiceInterface, limiter *ratelimiter.RateLimiter, collector *metrics.Collector) *gin.Engine {
	engine := gin.New()

	engine.Use(logger.RecoveryMiddleware())
	engine.Use(logger.LoggingMiddleware())
	engine.Use(middleware.MetricsMiddleware(collector))
	engine.Use(corsMiddleware())

	router.SetupHealthRoutes(engine)
	router.SetupMonitoringRoutes(engine)
	// Rate limiting runs before auth so key guessing is throttled too
	router.SetupAPIRoutes(engine, limiter.Middleware(nil), middleware.AuthMiddleware(auth))

	return engine
}

// Start starts the HTTP server and blocks until shutdown
func (s *Server) Start() error {
	log := logger.GetLogger()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := newEngine(s.router, s.authService, s.rateLimiter, s.powerService.Metrics())

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:           engine,
		ReadTimeout:       s.config.Server.ReadTimeout,
		WriteTimeout:      s.config.Server.WriteTimeout,
		IdleTimeout:       s.config.Server.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	log.Info("HTTP server configured",
		zap.String("address", s.httpServer.Addr),
		zap.Duration("read_timeout", s.config.Server.ReadTimeout),
		zap.Duration("write_timeout", s.config.Server.WriteTimeout),
		zap.Duration("idle_timeout", s.config.Server.IdleTimeout),
	)

	s.rateLimiter.StartCleanup(s.config.RateLimit.CleanupInterval)

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	return s.waitForShutdown(errCh)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// waitForShutdown waits for a signal or a listener failure, then stops the server
func (s *Server) waitForShutdown(errCh <-chan error) error {
	log := logger.GetLogger()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		s.cleanup()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", zap.Duration("timeout", shutdownTimeout))
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	s.cleanup()
	log.Info("Server gracefully stopped")
	return nil
}

// cleanup performs cleanup of all services
func (s *Server) cleanup() {
	log := logger.GetLogger()

	s.rateLimiter.Stop()
	s.powerService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.authService.Close(ctx); err != nil {
		log.Error("Error closing auth service", zap.Error(err))
	}

	if err := log.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "Error syncing logger: %v\n", err)
	}
}
