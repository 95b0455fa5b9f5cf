package dispatch

import (
	"fmt"

	"github.com/flowpulse/backend/internal/channel"
	"github.com/flowpulse/backend/internal/domain/power"
	"github.com/flowpulse/backend/internal/shared/types"
)

// BatteryHandler serves the battery-optimization channel
type BatteryHandler struct {
	monitor *power.Monitor
}

// NewBatteryHandler creates the battery channel handler
func NewBatteryHandler(monitor *power.Monitor) *BatteryHandler {
	return &BatteryHandler{monitor: monitor}
}

// Definition returns channel metadata
func (h *BatteryHandler) Definition() types.ChannelDefinition {
	return types.ChannelDefinition{
		Name:        channel.BatteryOptimization,
		Description: "Power-saving state and battery status",
		Methods: []types.Method{
			{
				Name:        MethodCheckLowPowerMode,
				Description: "Low power flag with battery level and state",
				Returns:     "object",
			},
			{
				Name:        MethodGetBatteryInfo,
				Description: "Battery level and state with the low power flag",
				Returns:     "object",
			},
		},
		Events: []types.Event{
			{Name: power.EventLowPowerModeChanged, Description: "Low power mode was toggled", Arguments: []string{"enabled"}},
		},
	}
}

// Handle runs cmd
func (h *BatteryHandler) Handle(cmd Command) (interface{}, error) {
	switch cmd.(type) {
	case CheckLowPowerMode:
		s := h.monitor.CheckLowPowerMode()
		return Result{
			"enabled":      s.Enabled,
			"batteryLevel": s.BatteryLevel,
			"batteryState": string(s.BatteryState),
		}, nil
	case GetBatteryInfo:
		info := h.monitor.BatteryInfo()
		return Result{
			"level":        info.Level,
			"state":        string(info.State),
			"lowPowerMode": info.LowPowerMode,
		}, nil
	default:
		return nil, fmt.Errorf("%s.%s: %w", channel.BatteryOptimization, cmd.Method(), channel.ErrNotImplemented)
	}
}
