// Package lifecycle assembles the grant tracker, refresh scheduler and
// power monitor around one control loop and tears them down together.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flowpulse/backend/internal/channel"
	"github.com/flowpulse/backend/internal/control"
	"github.com/flowpulse/backend/internal/domain/dispatch"
	"github.com/flowpulse/backend/internal/domain/grant"
	"github.com/flowpulse/backend/internal/domain/power"
	"github.com/flowpulse/backend/internal/domain/refresh"
	"github.com/flowpulse/backend/internal/infrastructure/monitoring"
	"github.com/flowpulse/backend/internal/infrastructure/resilience"
	"github.com/flowpulse/backend/internal/platform"
)

const (
	submitFailureThreshold = 3
	submitCooldown         = 5 * time.Minute
)

// Channels resolves the push side of a named channel
type Channels interface {
	Channel(name string) channel.Invoker
}

// Status is a combined snapshot of every component
type Status struct {
	Grant   grant.Snapshot `json:"grant"`
	Refresh refresh.Status `json:"refresh"`
	Power   power.Snapshot `json:"power"`
}

// Manager owns the lifecycle components
type Manager struct {
	loop      *control.Loop
	tracker   *grant.Tracker
	scheduler *refresh.Scheduler
	monitor   *power.Monitor
	registry  *dispatch.Registry
	logger    *zap.Logger

	startOnce sync.Once
	startErr  error
	closeOnce sync.Once
}

// New wires components against host. Nothing is registered with the host
// until Start.
func New(host platform.Host, channels Channels, logger *zap.Logger, metrics *monitoring.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	loop := control.NewLoop(logger.Named("loop"))
	timer := channels.Channel(channel.TimerBackground)
	battery := channels.Channel(channel.BatteryOptimization)

	m := &Manager{
		loop:      loop,
		tracker:   grant.NewTracker(host, loop, timer, logger.Named("grant"), metrics),
		scheduler: refresh.NewScheduler(submitGuard(host, logger), loop, timer, logger.Named("refresh"), metrics),
		monitor:   power.NewMonitor(host, loop, battery, logger.Named("power"), metrics),
		registry:  dispatch.NewRegistry(loop, logger.Named("dispatch"), metrics),
		logger:    logger,
	}

	// Each new grant re-arms the deferred refresh
	m.tracker.OnBegin(func(platform.TaskID) { m.scheduler.ScheduleNext() })

	if err := registerChannels(m.registry,
		dispatch.NewTimerHandler(m.tracker, m.scheduler),
		dispatch.NewBatteryHandler(m.monitor),
	); err != nil {
		panic(err)
	}
	return m
}

// registerChannels adds each handler, stopping at the first rejection.
func registerChannels(registry *dispatch.Registry, handlers ...dispatch.Handler) error {
	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return fmt.Errorf("register channel handler: %w", err)
		}
	}
	return nil
}

// submitGuard picks the refresh strategy and stops resubmitting for a
// while after repeated host refusals.
func submitGuard(host platform.Host, logger *zap.Logger) refresh.Strategy {
	breaker := resilience.New("refresh-submit", resilience.Settings{
		Threshold: submitFailureThreshold,
		Cooldown:  submitCooldown,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Refresh submission breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return refresh.Guard(refresh.SelectStrategy(host, host), breaker)
}

// Start registers the refresh launch handler and the power observer.
func (m *Manager) Start() error {
	m.startOnce.Do(func() {
		if err := m.scheduler.Start(); err != nil {
			m.startErr = fmt.Errorf("start refresh scheduler: %w", err)
			return
		}
		m.monitor.Start()
		m.logger.Info("Lifecycle manager started", zap.String("refresh_method", m.scheduler.Method()))
	})
	return m.startErr
}

// Registry returns the command registry
func (m *Manager) Registry() *dispatch.Registry {
	return m.registry
}

// Execute runs one channel command
func (m *Manager) Execute(ctx context.Context, channelName, method string, args map[string]interface{}) (interface{}, error) {
	return m.registry.Execute(ctx, channelName, method, args)
}

// RefreshMethod returns the scheduling method selected for this host
func (m *Manager) RefreshMethod() string {
	return m.scheduler.Method()
}

// Status snapshots every component on the control loop
func (m *Manager) Status(ctx context.Context) (Status, error) {
	var st Status
	err := m.loop.Do(ctx, func() {
		st.Grant = m.tracker.State()
		st.Refresh = m.scheduler.Status()
		st.Power = m.monitor.Read()
	})
	if err != nil {
		return Status{}, err
	}
	return st, nil
}

// Close ends any outstanding grant, unregisters the power observer and
// stops the loop. Safe to call more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		err := m.loop.Do(context.Background(), func() {
			if !m.tracker.IsActive() {
				return
			}
			snap := m.tracker.State()
			if err := m.tracker.End(snap.TaskID); err != nil {
				m.logger.Warn("Could not end grant on shutdown", zap.Error(err))
			}
		})
		if err != nil {
			m.logger.Warn("Control loop unavailable during shutdown", zap.Error(err))
		}

		m.monitor.Close()
		m.loop.Stop()
		m.logger.Info("Lifecycle manager stopped")
	})
}
