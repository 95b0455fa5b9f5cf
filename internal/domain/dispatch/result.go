package dispatch

import "github.com/flowpulse/backend/internal/shared/types"

var messages = map[string]string{
	types.CodeAlreadyActive: "Background task already running",
	types.CodeGrantDenied:   "Failed to start background task",
	types.CodeInvalidGrant:  "Invalid task ID or no background task running",
	types.CodeUnsupported:   "Not supported on this platform",
}

// Result is the payload returned for commands that report success
type Result map[string]interface{}

func succeeded(fields Result) Result {
	out := Result{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// failed renders a business failure as a payload, never as a fault
func failed(err error, fields Result) Result {
	code := types.ErrorCode(err)
	msg, ok := messages[code]
	if !ok {
		msg = err.Error()
	}
	out := Result{"success": false, "error": code, "message": msg}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Failed reports whether a payload describes a business failure
func Failed(payload interface{}) bool {
	r, ok := payload.(Result)
	if !ok {
		return false
	}
	success, ok := r["success"].(bool)
	return ok && !success
}
