package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpulse/backend/internal/channel"
	"github.com/flowpulse/backend/internal/platform"
)

func TestDecodeDefaults(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		method  string
		args    map[string]interface{}
		want    Command
	}{
		{"reason default", channel.TimerBackground, MethodStartBackgroundTask, nil, StartBackgroundTask{Reason: DefaultReason}},
		{"reason wrong type", channel.TimerBackground, MethodStartBackgroundTask, map[string]interface{}{"reason": 12.0}, StartBackgroundTask{Reason: DefaultReason}},
		{"reason given", channel.TimerBackground, MethodStartBackgroundTask, map[string]interface{}{"reason": "focus"}, StartBackgroundTask{Reason: "focus"}},
		{"empty reason kept", channel.TimerBackground, MethodStartBackgroundTask, map[string]interface{}{"reason": ""}, StartBackgroundTask{Reason: ""}},
		{"task id default", channel.TimerBackground, MethodEndBackgroundTask, map[string]interface{}{}, EndBackgroundTask{TaskID: -1}},
		{"task id float", channel.TimerBackground, MethodEndBackgroundTask, map[string]interface{}{"taskId": 7.0}, EndBackgroundTask{TaskID: 7}},
		{"task id int", channel.TimerBackground, MethodEndBackgroundTask, map[string]interface{}{"taskId": 8}, EndBackgroundTask{TaskID: 8}},
		{"task id json number", channel.TimerBackground, MethodEndBackgroundTask, map[string]interface{}{"taskId": json.Number("9")}, EndBackgroundTask{TaskID: 9}},
		{"task id fractional", channel.TimerBackground, MethodEndBackgroundTask, map[string]interface{}{"taskId": 1.5}, EndBackgroundTask{TaskID: -1}},
		{"task id string", channel.TimerBackground, MethodEndBackgroundTask, map[string]interface{}{"taskId": "3"}, EndBackgroundTask{TaskID: -1}},
		{"refresh defaults", channel.TimerBackground, MethodScheduleBackgroundRefresh, nil, ScheduleBackgroundRefresh{}},
		{"refresh given", channel.TimerBackground, MethodScheduleBackgroundRefresh, map[string]interface{}{"sessionDuration": 1500.0, "startTime": 1767322800.25}, ScheduleBackgroundRefresh{SessionDuration: 1500, StartTime: 1767322800.25}},
		{"remaining", channel.TimerBackground, MethodGetRemainingBackgroundTime, nil, GetRemainingBackgroundTime{}},
		{"active", channel.TimerBackground, MethodIsBackgroundTaskActive, nil, IsBackgroundTaskActive{}},
		{"low power", channel.BatteryOptimization, MethodCheckLowPowerMode, nil, CheckLowPowerMode{}},
		{"battery", channel.BatteryOptimization, MethodGetBatteryInfo, nil, GetBatteryInfo{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Decode(tt.channel, tt.method, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
			assert.Equal(t, tt.channel, cmd.Channel())
			assert.Equal(t, tt.method, cmd.Method())
		})
	}
}

func TestDecodeUnknownMethod(t *testing.T) {
	_, err := Decode(channel.TimerBackground, "pauseBackgroundTask", nil)
	assert.ErrorIs(t, err, channel.ErrNotImplemented)

	// Methods are scoped to their channel
	_, err = Decode(channel.BatteryOptimization, MethodStartBackgroundTask, nil)
	assert.ErrorIs(t, err, channel.ErrNotImplemented)

	_, err = Decode("audio", MethodStartBackgroundTask, nil)
	assert.ErrorIs(t, err, channel.ErrUnknownChannel)
}

func TestDefaultTaskIDNeverValid(t *testing.T) {
	assert.NotEqual(t, platform.InvalidTask, DefaultTaskID)
	assert.Less(t, int64(DefaultTaskID), int64(0))
}
