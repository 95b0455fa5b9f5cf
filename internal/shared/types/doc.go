// Package types provides shared data structures for the background lifecycle backend.
//
// This package defines the types used across domain and transport packages,
// keeping the wire vocabulary in one place.
//
// Core Types:
//   - ChannelDefinition: Channel metadata (methods and push events)
//   - Method: Command specification with parameters
//   - Event: Push notification specification
//   - GrantState: Execution grant lifecycle state
//   - BatteryState: Charging state reported by the host
//
// Errors:
//   - ErrAlreadyActive, ErrGrantDenied, ErrInvalidGrant, ErrUnsupported
//   - ErrorCode maps them to the codes carried in result payloads
//
// Example Usage:
//
//	if err := tracker.End(id); err != nil {
//	    payload["error"] = types.ErrorCode(err)
//	}
package types
