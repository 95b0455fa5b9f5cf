package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	httpapi "github.com/flowpulse/backend/internal/api/http"
	"github.com/flowpulse/backend/internal/api/middleware"
	"github.com/flowpulse/backend/internal/api/ws"
	"github.com/flowpulse/backend/internal/channel"
	"github.com/flowpulse/backend/internal/domain/lifecycle"
	"github.com/flowpulse/backend/internal/infrastructure/config"
	"github.com/flowpulse/backend/internal/infrastructure/logging"
	"github.com/flowpulse/backend/internal/infrastructure/monitoring"
	"github.com/flowpulse/backend/internal/platform/sim"
	"github.com/flowpulse/backend/internal/shared/types"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and the lifecycle components behind it
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	http     *http.Server
	host     *sim.Host
	hub      *channel.Hub
	manager  *lifecycle.Manager
	metrics  *monitoring.Metrics
	shutdown chan struct{}
}

// New assembles the simulated host, push hub, lifecycle manager and
// routes. The manager is started before New returns.
func New(cfg *config.Config, root *logging.Logger, version string) (*Server, error) {
	if root == nil {
		root = logging.NewNop()
	}
	logger := root.Component("server")

	metrics := monitoring.NewMetrics(nil)

	host := sim.NewHost(HostConfig(cfg.Host), root.Component("host"))
	hub := channel.NewHub(cfg.Channels.EventBuffer, cfg.Channels.History, root.Component("hub"), metrics)
	manager := lifecycle.New(host, hub, root.Component("lifecycle"), metrics)
	if err := manager.Start(); err != nil {
		manager.Close()
		hub.Close()
		_ = host.Close()
		return nil, fmt.Errorf("start lifecycle manager: %w", err)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(root.Component("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	httpapi.NewHandlers(manager, hub, host, root.Component("api"), version).Register(router)
	router.GET("/ws", ws.NewHandler(manager, hub, root.Component("ws"), metrics).HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/log/level", gin.WrapH(root.Level))
	router.PUT("/log/level", gin.WrapH(root.Level))

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	return &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		http: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		host:     host,
		hub:      hub,
		manager:  manager,
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}, nil
}

// HostConfig maps configuration onto the simulated host
func HostConfig(cfg config.HostConfig) sim.Config {
	simCfg := sim.DefaultConfig()
	simCfg.GrantBudget = cfg.GrantBudget.Std()
	simCfg.TaskBudget = cfg.TaskBudget.Std()
	simCfg.DeferredRefresh = cfg.DeferredRefresh
	simCfg.BatteryMonitoring = cfg.BatteryMonitoring
	simCfg.Power = sim.PowerState{
		BatteryLevel: cfg.BatteryLevel,
		BatteryState: types.ParseBatteryState(cfg.BatteryState),
		LowPowerMode: cfg.LowPowerMode,
	}
	return simCfg
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.http.Addr
}

// Run serves until ctx is cancelled or the listener fails, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting lifecycle service",
			zap.String("addr", s.http.Addr),
			zap.String("refresh_method", s.manager.RefreshMethod()))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if err != nil {
			return fmt.Errorf("serve %s: %w", s.http.Addr, err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("Shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.http.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases any active grant, disconnects subscribers and stops the
// simulated host. Safe to call more than once.
func (s *Server) Close() {
	select {
	case <-s.shutdown:
		return
	default:
		close(s.shutdown)
	}

	s.manager.Close()
	s.hub.Close()
	if err := s.host.Close(); err != nil {
		s.logger.Warn("Error closing host", zap.Error(err))
	}
}
