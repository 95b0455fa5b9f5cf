// Package platform declares the host operating system collaborators the
// background lifecycle core depends on.
//
// The core never talks to the OS directly. Each OS facility is a small
// interface so it can be backed by a native bridge in an app build or by
// the in-process simulator in package sim.
//
// Collaborators:
//   - GrantAPI: long-running task grants (begin with expiration handler,
//     end by id, remaining-time query)
//   - TaskScheduler: deferred refresh requests (register launch handler,
//     submit request with earliest begin date)
//   - PowerSource: battery level, charging state, low-power flag and
//     power-mode change notifications
//   - Capabilities: one-shot feature query used to pick strategies
//
// Callbacks handed to a collaborator may be invoked on any goroutine.
// Callers are responsible for moving work onto their own control loop.
package platform
