package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrAlreadyActive, CodeAlreadyActive},
		{ErrGrantDenied, CodeGrantDenied},
		{fmt.Errorf("end task 7: %w", ErrInvalidGrant), CodeInvalidGrant},
		{ErrUnsupported, CodeUnsupported},
		{errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err))
	}
}

func TestParseBatteryState(t *testing.T) {
	assert.Equal(t, BatteryCharging, ParseBatteryState("charging"))
	assert.Equal(t, BatteryFull, ParseBatteryState("full"))
	assert.Equal(t, BatteryUnplugged, ParseBatteryState("unplugged"))
	assert.Equal(t, BatteryUnknown, ParseBatteryState("discharging"))
	assert.Equal(t, BatteryUnknown, ParseBatteryState(""))
}
