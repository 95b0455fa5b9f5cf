package dispatch

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/flowpulse/backend/internal/channel"
	"github.com/flowpulse/backend/internal/platform"
)

// Method names on the timer channel
const (
	MethodStartBackgroundTask        = "startBackgroundTask"
	MethodEndBackgroundTask          = "endBackgroundTask"
	MethodGetRemainingBackgroundTime = "getRemainingBackgroundTime"
	MethodIsBackgroundTaskActive     = "isBackgroundTaskActive"
	MethodScheduleBackgroundRefresh  = "scheduleBackgroundRefresh"
)

// Method names on the battery channel
const (
	MethodCheckLowPowerMode = "checkLowPowerMode"
	MethodGetBatteryInfo    = "getBatteryInfo"
)

// Argument defaults
const (
	DefaultReason = "Timer session"
	DefaultTaskID = platform.TaskID(-1)
)

// Command is a decoded channel invocation. The concrete types below are
// the only implementations.
type Command interface {
	Channel() string
	Method() string
}

type StartBackgroundTask struct {
	Reason string
}

type EndBackgroundTask struct {
	TaskID platform.TaskID
}

type GetRemainingBackgroundTime struct{}

type IsBackgroundTaskActive struct{}

type ScheduleBackgroundRefresh struct {
	SessionDuration int64
	StartTime       float64
}

type CheckLowPowerMode struct{}

type GetBatteryInfo struct{}

func (StartBackgroundTask) Channel() string        { return channel.TimerBackground }
func (EndBackgroundTask) Channel() string          { return channel.TimerBackground }
func (GetRemainingBackgroundTime) Channel() string { return channel.TimerBackground }
func (IsBackgroundTaskActive) Channel() string     { return channel.TimerBackground }
func (ScheduleBackgroundRefresh) Channel() string  { return channel.TimerBackground }
func (CheckLowPowerMode) Channel() string          { return channel.BatteryOptimization }
func (GetBatteryInfo) Channel() string             { return channel.BatteryOptimization }

func (StartBackgroundTask) Method() string        { return MethodStartBackgroundTask }
func (EndBackgroundTask) Method() string          { return MethodEndBackgroundTask }
func (GetRemainingBackgroundTime) Method() string { return MethodGetRemainingBackgroundTime }
func (IsBackgroundTaskActive) Method() string     { return MethodIsBackgroundTaskActive }
func (ScheduleBackgroundRefresh) Method() string  { return MethodScheduleBackgroundRefresh }
func (CheckLowPowerMode) Method() string          { return MethodCheckLowPowerMode }
func (GetBatteryInfo) Method() string             { return MethodGetBatteryInfo }

// Decode turns a loosely typed argument bag into a Command, applying
// per-field defaults. Missing or mistyped arguments take the default; an
// unknown method yields channel.ErrNotImplemented.
func Decode(channelName, method string, args map[string]interface{}) (Command, error) {
	switch channelName {
	case channel.TimerBackground:
		switch method {
		case MethodStartBackgroundTask:
			return StartBackgroundTask{Reason: stringArg(args, "reason", DefaultReason)}, nil
		case MethodEndBackgroundTask:
			return EndBackgroundTask{TaskID: platform.TaskID(intArg(args, "taskId", int64(DefaultTaskID)))}, nil
		case MethodGetRemainingBackgroundTime:
			return GetRemainingBackgroundTime{}, nil
		case MethodIsBackgroundTaskActive:
			return IsBackgroundTaskActive{}, nil
		case MethodScheduleBackgroundRefresh:
			return ScheduleBackgroundRefresh{
				SessionDuration: intArg(args, "sessionDuration", 0),
				StartTime:       floatArg(args, "startTime", 0),
			}, nil
		}
	case channel.BatteryOptimization:
		switch method {
		case MethodCheckLowPowerMode:
			return CheckLowPowerMode{}, nil
		case MethodGetBatteryInfo:
			return GetBatteryInfo{}, nil
		}
	default:
		return nil, fmt.Errorf("%w: %s", channel.ErrUnknownChannel, channelName)
	}
	return nil, fmt.Errorf("%s.%s: %w", channelName, method, channel.ErrNotImplemented)
}

func stringArg(args map[string]interface{}, key, def string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return def
}

// intArg accepts any integral number. Fractional values take the default.
func intArg(args map[string]interface{}, key string, def int64) int64 {
	switch v := args[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) && math.Abs(v) < 1<<63 {
			return int64(v)
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	}
	return def
}

func floatArg(args map[string]interface{}, key string, def float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return def
}
