// Package grant tracks the single host-issued background execution grant.
//
// A Tracker is owned by a control.Loop: Begin, End, IsActive and State must
// be called on the loop goroutine. Host expiration callbacks are posted
// back onto the loop before they touch the grant slot.
package grant

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flowpulse/backend/internal/channel"
	"github.com/flowpulse/backend/internal/control"
	"github.com/flowpulse/backend/internal/infrastructure/monitoring"
	"github.com/flowpulse/backend/internal/platform"
	"github.com/flowpulse/backend/internal/shared/types"
)

// Name is the label the host sees for grants requested by the tracker.
const Name = "TimerBackgroundTask"

// Push methods emitted on the timer channel.
const (
	EventStarted = "backgroundTaskStarted"
	EventExpired = "backgroundTaskExpired"
)

// Snapshot describes the grant slot at one instant
type Snapshot struct {
	State  types.GrantState `json:"state"`
	TaskID platform.TaskID  `json:"taskId,omitempty"`
	Reason string           `json:"reason,omitempty"`
	Since  *time.Time       `json:"since,omitempty"`
}

// Tracker owns at most one outstanding grant.
type Tracker struct {
	grants  platform.GrantAPI
	loop    *control.Loop
	push    channel.Invoker
	logger  *zap.Logger
	metrics *monitoring.Metrics
	onBegin func(platform.TaskID)

	state  types.GrantState
	id     platform.TaskID
	reason string
	since  time.Time
}

// NewTracker creates a tracker in the absent state.
func NewTracker(grants platform.GrantAPI, loop *control.Loop, push channel.Invoker, logger *zap.Logger, metrics *monitoring.Metrics) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		grants:  grants,
		loop:    loop,
		push:    push,
		logger:  logger,
		metrics: metrics,
		state:   types.GrantAbsent,
		id:      platform.InvalidTask,
	}
}

// OnBegin installs a hook run on the loop after each successful Begin.
func (t *Tracker) OnBegin(fn func(platform.TaskID)) {
	t.onBegin = fn
}

// Begin requests a grant from the host. While a grant is outstanding it
// fails with ErrAlreadyActive and returns the current id.
func (t *Tracker) Begin(reason string) (platform.TaskID, error) {
	if t.state != types.GrantAbsent {
		t.metrics.RecordGrant(monitoring.GrantRejected)
		t.logger.Warn("Grant already outstanding",
			zap.Int64("task_id", int64(t.id)),
			zap.String("state", string(t.state)))
		return t.id, types.ErrAlreadyActive
	}

	var id platform.TaskID
	id = t.grants.BeginTask(Name, func() {
		t.loop.Post(func() { t.handleExpiration(id) })
	})
	if id == platform.InvalidTask {
		t.metrics.RecordGrant(monitoring.GrantDenied)
		t.logger.Warn("Host refused grant", zap.String("reason", reason))
		return platform.InvalidTask, types.ErrGrantDenied
	}

	t.state = types.GrantActive
	t.id = id
	t.reason = reason
	t.since = time.Now()
	t.metrics.RecordGrant(monitoring.GrantBegun)
	t.logger.Info("Grant started",
		zap.Int64("task_id", int64(id)),
		zap.String("reason", reason))

	// Emitted after the caller has its result
	t.loop.Post(func() {
		t.push.InvokeMethod(EventStarted, map[string]interface{}{"taskId": int64(id)})
	})

	if t.onBegin != nil {
		t.onBegin(id)
	}
	return id, nil
}

// End releases the grant identified by id. Ending an absent, mismatched or
// already ended grant fails with ErrInvalidGrant.
func (t *Tracker) End(id platform.TaskID) error {
	if t.state == types.GrantAbsent || id != t.id {
		t.metrics.RecordGrant(monitoring.GrantRejected)
		t.logger.Debug("Rejected end for unknown grant",
			zap.Int64("task_id", int64(id)),
			zap.Int64("current", int64(t.id)))
		return fmt.Errorf("end task %d: %w", id, types.ErrInvalidGrant)
	}

	t.release()
	t.metrics.RecordGrant(monitoring.GrantEnded)
	t.logger.Info("Grant ended", zap.Int64("task_id", int64(id)))
	return nil
}

// IsActive reports whether a grant is outstanding, including one that is
// being expired.
func (t *Tracker) IsActive() bool {
	return t.state == types.GrantActive || t.state == types.GrantExpiring
}

// RemainingTime forwards the host's remaining execution budget. With no
// grant outstanding the host's sentinel is returned unchanged.
func (t *Tracker) RemainingTime() time.Duration {
	return t.grants.RemainingTime()
}

// State returns a snapshot of the grant slot
func (t *Tracker) State() Snapshot {
	snap := Snapshot{State: t.state}
	if t.state != types.GrantAbsent {
		since := t.since
		snap.TaskID = t.id
		snap.Reason = t.reason
		snap.Since = &since
	}
	return snap
}

// handleExpiration runs on the loop. A callback for a grant that has
// already been ended or replaced is ignored.
func (t *Tracker) handleExpiration(id platform.TaskID) {
	if t.state == types.GrantAbsent || id != t.id {
		t.logger.Debug("Ignoring stale expiration", zap.Int64("task_id", int64(id)))
		return
	}

	t.state = types.GrantExpiring
	t.logger.Warn("Grant expiring", zap.Int64("task_id", int64(id)))
	t.push.InvokeMethod(EventExpired, nil)

	t.release()
	t.metrics.RecordGrant(monitoring.GrantExpired)
}

func (t *Tracker) release() {
	t.grants.EndTask(t.id)
	t.state = types.GrantAbsent
	t.id = platform.InvalidTask
	t.reason = ""
	t.since = time.Time{}
}
