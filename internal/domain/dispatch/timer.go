package dispatch

import (
	"fmt"

	"github.com/flowpulse/backend/internal/channel"
	"github.com/flowpulse/backend/internal/domain/grant"
	"github.com/flowpulse/backend/internal/domain/refresh"
	"github.com/flowpulse/backend/internal/platform"
	"github.com/flowpulse/backend/internal/shared/types"
)

// TimerHandler serves the timer-background channel
type TimerHandler struct {
	tracker   *grant.Tracker
	scheduler *refresh.Scheduler
}

// NewTimerHandler creates the timer channel handler
func NewTimerHandler(tracker *grant.Tracker, scheduler *refresh.Scheduler) *TimerHandler {
	return &TimerHandler{tracker: tracker, scheduler: scheduler}
}

// Definition returns channel metadata
func (h *TimerHandler) Definition() types.ChannelDefinition {
	return types.ChannelDefinition{
		Name:        channel.TimerBackground,
		Description: "Background execution grants and deferred refresh for timer sessions",
		Methods: []types.Method{
			{
				Name:        MethodStartBackgroundTask,
				Description: "Request extended execution time from the host",
				Parameters: []types.Parameter{
					{Name: "reason", Type: "string", Description: "Why the grant is needed", Default: DefaultReason},
				},
				Returns: "object",
			},
			{
				Name:        MethodEndBackgroundTask,
				Description: "Release the grant identified by taskId",
				Parameters: []types.Parameter{
					{Name: "taskId", Type: "integer", Description: "Identifier returned by startBackgroundTask", Default: int64(DefaultTaskID)},
				},
				Returns: "object",
			},
			{
				Name:        MethodGetRemainingBackgroundTime,
				Description: "Remaining execution budget in seconds, as reported by the host",
				Returns:     "number",
			},
			{
				Name:        MethodIsBackgroundTaskActive,
				Description: "Whether a grant is outstanding",
				Returns:     "boolean",
			},
			{
				Name:        MethodScheduleBackgroundRefresh,
				Description: "Arm a deferred refresh for a starting session",
				Parameters: []types.Parameter{
					{Name: "sessionDuration", Type: "integer", Description: "Session length in seconds", Default: 0},
					{Name: "startTime", Type: "number", Description: "Session start as Unix seconds", Default: 0},
				},
				Returns: "object",
			},
		},
		Events: []types.Event{
			{Name: grant.EventStarted, Description: "A grant was issued", Arguments: []string{"taskId"}},
			{Name: grant.EventExpired, Description: "The host is reclaiming the grant"},
			{Name: refresh.EventFired, Description: "A deferred refresh ran", Arguments: []string{"timestamp"}},
		},
	}
}

// Handle runs cmd. It must be called on the control loop.
func (h *TimerHandler) Handle(cmd Command) (interface{}, error) {
	switch c := cmd.(type) {
	case StartBackgroundTask:
		id, err := h.tracker.Begin(c.Reason)
		if err != nil {
			if id != platform.InvalidTask {
				return failed(err, Result{"taskId": int64(id)}), nil
			}
			return failed(err, Result{"taskId": int64(DefaultTaskID)}), nil
		}
		return succeeded(Result{"taskId": int64(id)}), nil

	case EndBackgroundTask:
		if err := h.tracker.End(c.TaskID); err != nil {
			return failed(err, nil), nil
		}
		return succeeded(nil), nil

	case GetRemainingBackgroundTime:
		return h.tracker.RemainingTime().Seconds(), nil

	case IsBackgroundTaskActive:
		return h.tracker.IsActive(), nil

	case ScheduleBackgroundRefresh:
		res := h.scheduler.ScheduleForSession(float64(c.SessionDuration), c.StartTime)
		return Result{"success": res.Success, "method": res.Method}, nil

	default:
		return nil, fmt.Errorf("%s.%s: %w", channel.TimerBackground, cmd.Method(), channel.ErrNotImplemented)
	}
}
