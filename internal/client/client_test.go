package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpulse/backend/internal/channel"
)

func fastOptions(retries int) Options {
	return Options{
		Timeout:       time.Second,
		HealthRetries: retries,
		RetryWaitMin:  time.Millisecond,
		RetryWaitMax:  5 * time.Millisecond,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	data, _ := sonic.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func TestCallSendsArgumentsAndDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/channels/timer-background/startBackgroundTask", r.URL.Path)

		var args map[string]interface{}
		require.NoError(t, sonic.ConfigDefault.NewDecoder(r.Body).Decode(&args))
		assert.Equal(t, "Focus", args["reason"])

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"result": map[string]interface{}{"success": true, "taskId": 7},
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", fastOptions(0))
	result, err := c.Call(context.Background(), channel.TimerBackground, "startBackgroundTask",
		map[string]interface{}{"reason": "Focus"})
	require.NoError(t, err)

	payload, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, payload["success"])
	assert.EqualValues(t, 7, payload["taskId"])
}

func TestCallMapsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channels/timer-background/nope":
			writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "not_implemented"})
		case "/channels/missing/anything":
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown channel"})
		default:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "control loop stopped"})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, fastOptions(0))
	ctx := context.Background()

	_, err := c.Call(ctx, channel.TimerBackground, "nope", nil)
	assert.ErrorIs(t, err, channel.ErrNotImplemented)

	_, err = c.Call(ctx, "missing", "anything", nil)
	assert.ErrorIs(t, err, channel.ErrUnknownChannel)

	_, err = c.Call(ctx, channel.BatteryOptimization, "checkLowPowerMode", nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusServiceUnavailable))
	assert.Contains(t, err.Error(), "control loop stopped")
}

func TestCallIsNeverRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
	}))
	defer srv.Close()

	c := New(srv.URL, fastOptions(3))
	_, err := c.Call(context.Background(), channel.TimerBackground, "startBackgroundTask", nil)
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
	assert.Equal(t, int32(1), hits.Load())
}

func TestHealthRetriesUntilReady(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "starting"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "healthy"})
	}))
	defer srv.Close()

	body, err := New(srv.URL, fastOptions(5)).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, int32(3), hits.Load())
}

func TestHealthGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "control loop stopped"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, fastOptions(1)).Health(context.Background())
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusServiceUnavailable))
}
