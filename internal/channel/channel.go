package channel

import (
	"errors"
	"time"

	"github.com/flowpulse/backend/internal/shared/id"
)

// Channel names
const (
	TimerBackground     = "timer-background"
	BatteryOptimization = "battery-optimization"
)

// Names lists every channel served by the backend.
var Names = []string{TimerBackground, BatteryOptimization}

var (
	// ErrNotImplemented is the distinguished outcome for an unknown method.
	// Transports render it as a sentinel frame, never as a business result.
	ErrNotImplemented = errors.New("method not implemented")
	// ErrUnknownChannel is returned for a channel name that is not served.
	ErrUnknownChannel = errors.New("unknown channel")
)

// Invoker pushes a method invocation to the caller side of one channel.
type Invoker interface {
	InvokeMethod(method string, arguments map[string]interface{})
}

// Event is a push notification published on a channel.
type Event struct {
	ID        id.EventID             `json:"id"`
	Channel   string                 `json:"channel"`
	Method    string                 `json:"method"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Known reports whether name is a served channel.
func Known(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}
