// Package sim provides an in-process host that implements every platform
// collaborator.
//
// Grants expire when their budget runs out, deferred refresh requests launch
// once their earliest begin date passes, and power-state changes notify
// registered observers. Each transition can also be forced by hand:
//
//	host := sim.NewHost(sim.DefaultConfig(), logger)
//	defer host.Close()
//
//	host.ExpireGrant(id)
//	host.FireRefresh("com.flowpulse.timer-sync")
//	host.SetPower(sim.PowerState{LowPowerMode: true})
//
// Callbacks run on their own goroutines, the way an OS delivers them off the
// main thread. Close waits for any callback still in flight.
package sim
