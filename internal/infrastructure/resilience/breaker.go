package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the breaker
type Settings struct {
	// Consecutive failures that open the breaker
	Threshold uint32
	// How long the breaker stays open before admitting a probe
	Cooldown time.Duration
	// Called with the lock released whenever the state changes
	OnStateChange func(name string, from, to State)
}

// Breaker rejects calls after repeated failures and lets a single probe
// through once the cooldown has elapsed.
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	failures uint32
	openedAt time.Time
	probing  bool
}

// New creates a breaker. Zero settings default to 5 failures and a
// one-minute cooldown.
func New(name string, settings Settings) *Breaker {
	if settings.Threshold == 0 {
		settings.Threshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = time.Minute
	}
	return &Breaker{
		name:     name,
		settings: settings,
		now:      time.Now,
	}
}

// Name returns the breaker name
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, promoting an expired open breaker to
// half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	from, to := b.advance()
	state := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return state
}

// Do runs fn unless the breaker is open. A nil breaker always runs fn.
func (b *Breaker) Do(fn func() error) error {
	if b == nil {
		return fn()
	}

	b.mu.Lock()
	from, to := b.advance()
	if b.state == StateOpen || (b.state == StateHalfOpen && b.probing) {
		b.mu.Unlock()
		b.notify(from, to)
		return ErrCircuitOpen
	}
	if b.state == StateHalfOpen {
		b.probing = true
	}
	b.mu.Unlock()
	b.notify(from, to)

	err := fn()

	b.mu.Lock()
	if err == nil {
		from, to = b.transition(StateClosed)
		b.failures = 0
	} else {
		b.failures++
		from, to = b.state, b.state
		if b.state == StateHalfOpen || b.failures >= b.settings.Threshold {
			from, to = b.transition(StateOpen)
		}
	}
	b.probing = false
	b.mu.Unlock()
	b.notify(from, to)

	return err
}

// advance must be called with mu held.
func (b *Breaker) advance() (State, State) {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		return b.transition(StateHalfOpen)
	}
	return b.state, b.state
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) (State, State) {
	from := b.state
	b.state = to
	if to == StateOpen {
		b.openedAt = b.now()
		b.failures = 0
	}
	return from, to
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}
