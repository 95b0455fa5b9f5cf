// Package http exposes the lifecycle channels over plain HTTP with gin.
//
// Routes:
//
//	GET  /                              liveness
//	GET  /health                        component status
//	GET  /channels                      channel definitions
//	POST /channels/:channel/:method     invoke a method, body is the argument object
//	GET  /channels/:channel/events      recent pushes, newest first
//	/host/...                           simulated host controls
//
// Pushes are only delivered live over the WebSocket transport; HTTP callers
// poll the events route.
package http
