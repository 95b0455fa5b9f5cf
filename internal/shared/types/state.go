package types

// GrantState represents the execution grant lifecycle
type GrantState string

const (
	GrantAbsent   GrantState = "absent"
	GrantActive   GrantState = "active"
	GrantExpiring GrantState = "expiring"
)

// BatteryState represents the charging state of the battery
type BatteryState string

const (
	BatteryUnknown   BatteryState = "unknown"
	BatteryUnplugged BatteryState = "unplugged"
	BatteryCharging  BatteryState = "charging"
	BatteryFull      BatteryState = "full"
)

// ParseBatteryState maps a host-reported string onto a BatteryState,
// degrading anything unrecognized to unknown.
func ParseBatteryState(s string) BatteryState {
	switch BatteryState(s) {
	case BatteryUnplugged, BatteryCharging, BatteryFull:
		return BatteryState(s)
	default:
		return BatteryUnknown
	}
}
