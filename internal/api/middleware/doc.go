// Package middleware provides the gin middleware shared by the HTTP and
// WebSocket transports: CORS, per-client rate limiting and request logging.
package middleware
