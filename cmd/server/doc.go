// Command flowpulse runs the background lifecycle service.
//
//	flowpulse serve [--port 8000] [--config lifecycle.yaml]
//	flowpulse listen [--addr localhost:8000] [--channels timer-background]
//	flowpulse version
//
// serve reads configuration from the environment (PORT, LOG_LEVEL,
// HOST_GRANT_BUDGET, ...) with an optional YAML or TOML file on top, and
// shuts down gracefully on SIGINT or SIGTERM.
package main
