/*
Package monitoring provides Prometheus metrics for the lifecycle backend.

# Overview

Metrics are registered against an injected registry so that tests and
embedded uses do not collide on the global default registerer.

# Features

- Command metrics per channel and method (count, outcome, latency)
- Grant lifecycle counters and an active-grant gauge
- Deferred refresh submission and firing counters
- Low-power mode gauge
- Push event and dropped push counters
- WebSocket connection and message metrics
- HTTP request metrics via gin middleware

# Usage

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "timer-background", "startBackgroundTask")
	// ... run the command ...
	timer.Stop("success")

A nil *Metrics is valid and records nothing.
*/
package monitoring
