// Package channel carries named method channels between the backend and
// its callers.
//
// Two channels are served: "timer-background" and "battery-optimization".
// Inbound calls arrive as CallFrame values and are answered with a
// ResponseFrame. Outbound pushes go through the Hub, which fans each
// Event out to subscribers without blocking and keeps a bounded history
// per channel.
package channel
