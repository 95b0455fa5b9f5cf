package types

import "errors"

var (
	// ErrAlreadyActive is returned when a grant is requested while one is outstanding.
	ErrAlreadyActive = errors.New("background task already running")
	// ErrGrantDenied is returned when the host refuses to grant execution time.
	ErrGrantDenied = errors.New("failed to start background task")
	// ErrInvalidGrant is returned when ending an unknown, mismatched or absent grant.
	ErrInvalidGrant = errors.New("invalid task ID or no background task running")
	// ErrUnsupported marks a host feature unavailable on this platform.
	ErrUnsupported = errors.New("feature unsupported on this platform")
)

// Error codes carried in the "error" field of result payloads.
const (
	CodeAlreadyActive = "AlreadyActive"
	CodeGrantDenied   = "GrantDenied"
	CodeInvalidGrant  = "InvalidGrant"
	CodeUnsupported   = "Unsupported"
	CodeInternal      = "Internal"
)

// ErrorCode returns the wire code for err, matching wrapped sentinels.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyActive):
		return CodeAlreadyActive
	case errors.Is(err, ErrGrantDenied):
		return CodeGrantDenied
	case errors.Is(err, ErrInvalidGrant):
		return CodeInvalidGrant
	case errors.Is(err, ErrUnsupported):
		return CodeUnsupported
	default:
		return CodeInternal
	}
}
