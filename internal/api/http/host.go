package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flowpulse/backend/internal/domain/refresh"
	"github.com/flowpulse/backend/internal/platform"
	"github.com/flowpulse/backend/internal/platform/sim"
	"github.com/flowpulse/backend/internal/shared/types"
)

// PowerRequest sets the simulated power state. Omitted fields keep their
// current value.
type PowerRequest struct {
	BatteryLevel *float64 `json:"batteryLevel"`
	BatteryState *string  `json:"batteryState"`
	LowPowerMode *bool    `json:"lowPowerMode"`
}

// HostState shows grants, pending refreshes and power of the simulated host
func (h *Handlers) HostState(c *gin.Context) {
	c.JSON(http.StatusOK, h.host.State())
}

// SetPower changes the simulated power state
func (h *Handlers) SetPower(c *gin.Context) {
	var req PowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid power request"})
		return
	}

	state := h.host.Power()
	if req.BatteryLevel != nil {
		if *req.BatteryLevel < 0 || *req.BatteryLevel > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "batteryLevel must be between 0 and 1"})
			return
		}
		state.BatteryLevel = *req.BatteryLevel
	}
	if req.BatteryState != nil {
		parsed := types.ParseBatteryState(*req.BatteryState)
		if parsed == types.BatteryUnknown && *req.BatteryState != string(types.BatteryUnknown) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown batteryState"})
			return
		}
		state.BatteryState = parsed
	}
	if req.LowPowerMode != nil {
		state.LowPowerMode = *req.LowPowerMode
	}

	h.host.SetPower(state)
	c.JSON(http.StatusOK, gin.H{"success": true, "power": state})
}

// ExpireGrant fires the expiration handler of one grant
func (h *Handlers) ExpireGrant(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	if !h.host.ExpireGrant(platform.TaskID(id)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such grant", "taskId": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "taskId": id})
}

// ExpireGrants fires the expiration handler of every outstanding grant
func (h *Handlers) ExpireGrants(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "expired": h.host.ExpireAll()})
}

// FireRefresh launches the pending refresh request now
func (h *Handlers) FireRefresh(c *gin.Context) {
	if err := h.host.FireRefresh(refresh.Identifier); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, sim.ErrNoPendingRequest) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "identifier": refresh.Identifier})
}

// ExpireRefresh reclaims the running refresh task
func (h *Handlers) ExpireRefresh(c *gin.Context) {
	if !h.host.ExpireRefresh(refresh.Identifier) {
		c.JSON(http.StatusConflict, gin.H{"error": "no refresh task running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "identifier": refresh.Identifier})
}
