/*
Package resilience provides a small circuit breaker.

The refresh scheduler wraps host submissions in a Breaker so that a host
which keeps refusing requests is left alone for a cooldown instead of
being asked again on every grant and every fire.

	b := resilience.New("refresh-submit", resilience.Settings{
		Threshold: 3,
		Cooldown:  5 * time.Minute,
	})
	err := b.Do(func() error { return scheduler.Submit(req) })
	if errors.Is(err, resilience.ErrCircuitOpen) {
		// skipped
	}

States:

	closed     calls run; Threshold consecutive failures open the breaker
	open       calls fail fast with ErrCircuitOpen until Cooldown elapses
	half-open  one probe runs; success closes, failure reopens
*/
package resilience
