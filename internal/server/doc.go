// Package server assembles the lifecycle service.
//
// It builds the simulated host from configuration, starts the lifecycle
// manager on top of it and mounts the transports on one gin router:
//
//	/, /health, /channels/...   REST (internal/api/http)
//	/host/...                   simulated host controls
//	/ws                         calls and push events (internal/api/ws)
//	/metrics                    Prometheus exposition
//	/log/level                  GET or PUT the log level
//
// Shutdown order is HTTP server, lifecycle manager (which ends any
// outstanding grant), push hub, then host.
package server
