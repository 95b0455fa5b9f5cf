// Package refresh keeps a deferred background refresh armed with the host.
//
// Each fire re-arms the next request, so once a session has scheduled one
// refresh the chain renews itself. Submission failures are logged and
// counted but never surface to callers.
package refresh

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/flowpulse/backend/internal/channel"
	"github.com/flowpulse/backend/internal/control"
	"github.com/flowpulse/backend/internal/infrastructure/monitoring"
	"github.com/flowpulse/backend/internal/platform"
)

const (
	// Identifier is the process-wide refresh request name.
	Identifier = "com.flowpulse.timer-sync"
	// Interval is the earliest delay of the next refresh.
	Interval = 15 * time.Minute
	// EventFired is pushed on the timer channel when a refresh runs.
	EventFired = "backgroundAppRefresh"
)

// Fire outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeExpired   = "expired"
)

// SessionSchedule is the result of ScheduleForSession
type SessionSchedule struct {
	Success bool   `json:"success"`
	Method  string `json:"method"`
}

// Status describes scheduler activity
type Status struct {
	Method        string     `json:"method"`
	LastSubmitted *time.Time `json:"lastSubmitted,omitempty"`
	NextEarliest  *time.Time `json:"nextEarliest,omitempty"`
	LastFired     *time.Time `json:"lastFired,omitempty"`
	Fires         int        `json:"fires"`
}

// Scheduler arms deferred refreshes. Apart from Method and Start, methods
// run on the control loop.
type Scheduler struct {
	strategy Strategy
	loop     *control.Loop
	push     channel.Invoker
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	now      func() time.Time

	lastSubmitted time.Time
	nextEarliest  time.Time
	lastFired     time.Time
	fires         int
}

// NewScheduler creates a scheduler using strategy.
func NewScheduler(strategy Strategy, loop *control.Loop, push channel.Invoker, logger *zap.Logger, metrics *monitoring.Metrics) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strategy == nil {
		strategy = LegacyStrategy{}
	}
	return &Scheduler{
		strategy: strategy,
		loop:     loop,
		push:     push,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Method returns the scheduling method chosen at construction
func (s *Scheduler) Method() string {
	return s.strategy.Method()
}

// Start registers the launch handler with the host. It must be called
// once, before any request is submitted.
func (s *Scheduler) Start() error {
	err := s.strategy.Register(Identifier, func(task platform.RefreshTask) {
		if !s.loop.Post(func() { s.handleFire(task) }) {
			task.Complete(false)
		}
	})
	if err != nil {
		return err
	}
	s.logger.Info("Refresh handler registered",
		zap.String("identifier", Identifier),
		zap.String("method", s.strategy.Method()))
	return nil
}

// ScheduleNext submits a request eligible Interval from now.
func (s *Scheduler) ScheduleNext() {
	if s.strategy.Method() == MethodLegacy {
		return
	}

	now := s.now()
	earliest := now.Add(Interval)
	err := s.strategy.Submit(Identifier, earliest)
	s.metrics.RecordRefreshSubmission(err)
	if err != nil {
		s.logger.Warn("Could not schedule background refresh", zap.Error(err))
		return
	}

	s.lastSubmitted = now
	s.nextEarliest = earliest
	s.logger.Debug("Background refresh scheduled", zap.Time("earliest", earliest))
}

// ScheduleForSession is called when a timer session starts. It never
// fails; hosts without deferred refresh report the legacy method.
func (s *Scheduler) ScheduleForSession(sessionDuration, startTime float64) SessionSchedule {
	s.logger.Info("Scheduling refresh for session",
		zap.Float64("session_duration", sessionDuration),
		zap.Float64("start_time", startTime),
		zap.String("method", s.strategy.Method()))

	s.ScheduleNext()
	return SessionSchedule{Success: true, Method: s.strategy.Method()}
}

// Status returns a snapshot of scheduler activity
func (s *Scheduler) Status() Status {
	st := Status{Method: s.strategy.Method(), Fires: s.fires}
	if !s.lastSubmitted.IsZero() {
		submitted, next := s.lastSubmitted, s.nextEarliest
		st.LastSubmitted = &submitted
		st.NextEarliest = &next
	}
	if !s.lastFired.IsZero() {
		fired := s.lastFired
		st.LastFired = &fired
	}
	return st
}

func (s *Scheduler) handleFire(task platform.RefreshTask) {
	// Exactly one of the expiration handler and the reclaim check below
	// records the expired outcome.
	var counted atomic.Bool
	task.SetExpirationHandler(func() {
		if task.Complete(false) && counted.CompareAndSwap(false, true) {
			s.metrics.RecordRefreshFire(OutcomeExpired)
		}
	})

	s.ScheduleNext()

	fired := s.now()
	s.lastFired = fired
	s.fires++
	s.push.InvokeMethod(EventFired, map[string]interface{}{
		"timestamp": float64(fired.UnixNano()) / float64(time.Second),
	})

	if !task.Complete(true) {
		if counted.CompareAndSwap(false, true) {
			s.metrics.RecordRefreshFire(OutcomeExpired)
		}
		s.logger.Warn("Background refresh reclaimed before completion", zap.String("identifier", task.Identifier()))
		return
	}
	s.metrics.RecordRefreshFire(OutcomeCompleted)
	s.logger.Info("Background refresh handled", zap.String("identifier", task.Identifier()))
}
