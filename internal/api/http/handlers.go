package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flowpulse/backend/internal/channel"
	"github.com/flowpulse/backend/internal/control"
	"github.com/flowpulse/backend/internal/domain/lifecycle"
	"github.com/flowpulse/backend/internal/platform/sim"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 1000
)

// Handlers contains the HTTP handlers
type Handlers struct {
	manager *lifecycle.Manager
	hub     *channel.Hub
	host    *sim.Host
	logger  *zap.Logger
	version string
}

// NewHandlers creates a handler set. host may be nil when the backend is
// not driving a simulated host; the /host routes are then not mounted.
func NewHandlers(manager *lifecycle.Manager, hub *channel.Hub, host *sim.Host, logger *zap.Logger, version string) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		manager: manager,
		hub:     hub,
		host:    host,
		logger:  logger,
		version: version,
	}
}

// Register mounts every route on router
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	router.GET("/channels", h.ListChannels)
	router.POST("/channels/:channel/:method", h.Invoke)
	router.GET("/channels/:channel/events", h.RecentEvents)

	if h.host != nil {
		host := router.Group("/host")
		host.GET("/state", h.HostState)
		host.POST("/power", h.SetPower)
		host.POST("/grants/expire", h.ExpireGrants)
		host.POST("/grants/:id/expire", h.ExpireGrant)
		host.POST("/refresh/fire", h.FireRefresh)
		host.POST("/refresh/expire", h.ExpireRefresh)
	}
}

// Root handles the liveness probe
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Background Lifecycle Service",
		"version": h.version,
	})
}

// Health reports the state of every lifecycle component
func (h *Handlers) Health(c *gin.Context) {
	status, err := h.manager.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"grant":       status.Grant,
		"refresh":     status.Refresh,
		"power":       status.Power,
		"subscribers": h.hub.SubscriberCount(),
		"simulated":   h.host != nil,
	})
}

// ListChannels lists channel definitions
func (h *Handlers) ListChannels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"channels": h.manager.Registry().List(),
	})
}

// Invoke runs one channel method. The JSON body, if any, is the argument
// object. Business failures are 200 results; an unknown method is 501.
func (h *Handlers) Invoke(c *gin.Context) {
	channelName := c.Param("channel")
	method := c.Param("method")

	var args map[string]interface{}
	if err := c.ShouldBindJSON(&args); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "arguments must be a JSON object"})
		return
	}

	result, err := h.manager.Execute(c.Request.Context(), channelName, method, args)
	if err != nil {
		status := statusFor(err)
		body := gin.H{"error": err.Error(), "channel": channelName, "method": method}
		if errors.Is(err, channel.ErrNotImplemented) {
			body["error"] = string(channel.FrameNotImplemented)
		}
		if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
			h.logger.Error("Channel invocation failed",
				zap.String("channel", channelName),
				zap.String("method", method),
				zap.Error(err))
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// RecentEvents returns the newest retained pushes on a channel
func (h *Handlers) RecentEvents(c *gin.Context) {
	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxEventLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	events, err := h.hub.Recent(c.Param("channel"), limit)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel": c.Param("channel"),
		"events":  events,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, channel.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, channel.ErrUnknownChannel):
		return http.StatusNotFound
	case errors.Is(err, control.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
