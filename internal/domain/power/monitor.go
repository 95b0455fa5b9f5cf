// Package power reads the host's power state and forwards low-power mode
// changes to the battery channel.
package power

import (
	"sync"

	"go.uber.org/zap"

	"github.com/flowpulse/backend/internal/channel"
	"github.com/flowpulse/backend/internal/control"
	"github.com/flowpulse/backend/internal/infrastructure/monitoring"
	"github.com/flowpulse/backend/internal/platform"
	"github.com/flowpulse/backend/internal/shared/types"
)

// EventLowPowerModeChanged is pushed on the battery channel.
const EventLowPowerModeChanged = "lowPowerModeChanged"

// UnknownLevel is reported when the battery level cannot be read.
const UnknownLevel = -1.0

// Snapshot is one reading of the host power state
type Snapshot struct {
	LowPowerMode bool               `json:"lowPowerMode"`
	BatteryLevel float64            `json:"batteryLevel"`
	BatteryState types.BatteryState `json:"batteryState"`
}

// LowPowerStatus is the checkLowPowerMode response shape
type LowPowerStatus struct {
	Enabled      bool               `json:"enabled"`
	BatteryLevel float64            `json:"batteryLevel"`
	BatteryState types.BatteryState `json:"batteryState"`
}

// BatteryInfo is the getBatteryInfo response shape
type BatteryInfo struct {
	Level        float64            `json:"level"`
	State        types.BatteryState `json:"state"`
	LowPowerMode bool               `json:"lowPowerMode"`
}

// Monitor holds the single power-state subscription.
type Monitor struct {
	source  platform.PowerSource
	loop    *control.Loop
	push    channel.Invoker
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu        sync.Mutex
	sub       platform.Subscription
	started   bool
	closeOnce sync.Once
}

// NewMonitor creates an unsubscribed monitor.
func NewMonitor(source platform.PowerSource, loop *control.Loop, push channel.Invoker, logger *zap.Logger, metrics *monitoring.Metrics) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		source:  source,
		loop:    loop,
		push:    push,
		logger:  logger,
		metrics: metrics,
	}
}

// Read takes a fresh snapshot. It never fails; unreadable battery values
// degrade to UnknownLevel and the unknown state.
func (m *Monitor) Read() Snapshot {
	m.source.SetBatteryMonitoring(true)

	level := m.source.BatteryLevel()
	if level < 0 {
		level = UnknownLevel
	}
	snap := Snapshot{
		LowPowerMode: m.source.LowPowerModeEnabled(),
		BatteryLevel: level,
		BatteryState: types.ParseBatteryState(m.source.BatteryState()),
	}
	m.metrics.SetLowPowerMode(snap.LowPowerMode)
	return snap
}

// CheckLowPowerMode answers checkLowPowerMode
func (m *Monitor) CheckLowPowerMode() LowPowerStatus {
	snap := m.Read()
	return LowPowerStatus{
		Enabled:      snap.LowPowerMode,
		BatteryLevel: snap.BatteryLevel,
		BatteryState: snap.BatteryState,
	}
}

// BatteryInfo answers getBatteryInfo
func (m *Monitor) BatteryInfo() BatteryInfo {
	snap := m.Read()
	return BatteryInfo{
		Level:        snap.BatteryLevel,
		State:        snap.BatteryState,
		LowPowerMode: snap.LowPowerMode,
	}
}

// Start registers the power-state observer. Later calls, and calls after
// Close, do nothing.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.started = true
	m.sub = m.source.ObservePowerState(func() {
		m.loop.Post(m.handleChange)
	})
	m.logger.Debug("Power observer registered")
}

// Close unregisters the observer exactly once.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.started = true
		if m.sub != nil {
			m.sub.Cancel()
			m.sub = nil
			m.logger.Debug("Power observer unregistered")
		}
	})
}

func (m *Monitor) handleChange() {
	enabled := m.source.LowPowerModeEnabled()
	m.metrics.SetLowPowerMode(enabled)
	m.logger.Info("Low power mode changed", zap.Bool("enabled", enabled))
	m.push.InvokeMethod(EventLowPowerModeChanged, map[string]interface{}{"enabled": enabled})
}
