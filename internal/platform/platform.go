package platform

import (
	"math"
	"time"
)

// TaskID is the opaque handle the host issues for a grant.
type TaskID int64

// InvalidTask is the sentinel handle returned when no grant was issued.
const InvalidTask TaskID = 0

// UnlimitedTime is reported by RemainingTime when the process is not
// running on borrowed background time.
const UnlimitedTime = time.Duration(math.MaxInt64)

// GrantAPI issues and revokes background execution grants.
type GrantAPI interface {
	// BeginTask requests a grant. The host returns InvalidTask when it
	// refuses. onExpire is invoked at most once, shortly before the host
	// reclaims the grant.
	BeginTask(name string, onExpire func()) TaskID
	// EndTask releases a grant. Ending an unknown id is a no-op.
	EndTask(id TaskID)
	// RemainingTime reports the execution budget left for the process.
	RemainingTime() time.Duration
}

// RefreshRequest asks the host to launch a registered task no earlier
// than EarliestBegin.
type RefreshRequest struct {
	Identifier    string
	EarliestBegin time.Time
}

// RefreshTask is handed to a launch handler when a deferred refresh fires.
type RefreshTask interface {
	Identifier() string
	// SetExpirationHandler installs the function the host calls if it
	// reclaims the task before completion.
	SetExpirationHandler(fn func())
	// Complete reports the outcome. Only the first call counts; it
	// returns false when the task was already finished or reclaimed.
	Complete(success bool) bool
}

// TaskScheduler schedules deferred refresh launches.
type TaskScheduler interface {
	// Register installs the launch handler for identifier. It must be
	// called once per identifier before the first Submit.
	Register(identifier string, handler func(RefreshTask)) error
	// Submit schedules a launch, replacing any pending request with the
	// same identifier.
	Submit(req RefreshRequest) error
}

// PowerSource reports device power state.
type PowerSource interface {
	// SetBatteryMonitoring toggles battery reporting. Level and state read
	// as unknown while monitoring is disabled or unsupported.
	SetBatteryMonitoring(enabled bool)
	// BatteryLevel returns 0.0-1.0, or -1 when unknown.
	BatteryLevel() float64
	// BatteryState returns one of charging, full, unplugged or unknown.
	BatteryState() string
	LowPowerModeEnabled() bool
	// ObservePowerState registers fn for power-mode change notifications.
	ObservePowerState(fn func()) Subscription
}

// Capabilities answers feature availability questions once at startup.
type Capabilities interface {
	SupportsDeferredRefresh() bool
}

// Subscription is a registered observer. Cancel unregisters it.
type Subscription interface {
	Cancel()
}

// Host bundles every collaborator a lifecycle manager needs.
type Host interface {
	GrantAPI
	TaskScheduler
	PowerSource
	Capabilities
}
