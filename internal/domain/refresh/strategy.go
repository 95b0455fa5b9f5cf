package refresh

import (
	"fmt"
	"time"

	"github.com/flowpulse/backend/internal/infrastructure/resilience"
	"github.com/flowpulse/backend/internal/platform"
	"github.com/flowpulse/backend/internal/shared/types"
)

// Scheduling methods reported to callers
const (
	MethodDeferred = "deferred-refresh"
	MethodLegacy   = "legacy"
)

// Strategy is how refreshes are scheduled on the current host.
type Strategy interface {
	Method() string
	Register(identifier string, handler func(platform.RefreshTask)) error
	Submit(identifier string, earliest time.Time) error
}

// SelectStrategy queries host capabilities once and picks a strategy.
func SelectStrategy(caps platform.Capabilities, scheduler platform.TaskScheduler) Strategy {
	if caps != nil && scheduler != nil && caps.SupportsDeferredRefresh() {
		return &DeferredStrategy{scheduler: scheduler}
	}
	return LegacyStrategy{}
}

// DeferredStrategy submits one-shot requests to the host task scheduler.
type DeferredStrategy struct {
	scheduler platform.TaskScheduler
}

func (d *DeferredStrategy) Method() string { return MethodDeferred }

func (d *DeferredStrategy) Register(identifier string, handler func(platform.RefreshTask)) error {
	if err := d.scheduler.Register(identifier, handler); err != nil {
		return fmt.Errorf("register %s: %w", identifier, err)
	}
	return nil
}

func (d *DeferredStrategy) Submit(identifier string, earliest time.Time) error {
	err := d.scheduler.Submit(platform.RefreshRequest{
		Identifier:    identifier,
		EarliestBegin: earliest,
	})
	if err != nil {
		return fmt.Errorf("submit %s: %w", identifier, err)
	}
	return nil
}

// LegacyStrategy is used where the host has no deferred scheduler. It
// schedules nothing.
type LegacyStrategy struct{}

func (LegacyStrategy) Method() string { return MethodLegacy }

func (LegacyStrategy) Register(string, func(platform.RefreshTask)) error { return nil }

func (LegacyStrategy) Submit(string, time.Time) error { return types.ErrUnsupported }

// GuardedStrategy stops submitting to a host that keeps refusing requests.
// Registration is never guarded.
type GuardedStrategy struct {
	Strategy
	breaker *resilience.Breaker
}

// Guard wraps s so that Submit fails fast with resilience.ErrCircuitOpen
// while breaker is open.
func Guard(s Strategy, breaker *resilience.Breaker) Strategy {
	if breaker == nil || s.Method() == MethodLegacy {
		return s
	}
	return &GuardedStrategy{Strategy: s, breaker: breaker}
}

func (g *GuardedStrategy) Submit(identifier string, earliest time.Time) error {
	return g.breaker.Do(func() error {
		return g.Strategy.Submit(identifier, earliest)
	})
}
