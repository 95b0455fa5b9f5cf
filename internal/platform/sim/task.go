package sim

import (
	"sync"
	"time"
)

// task is a launched refresh. Completion is first-call-wins.
type task struct {
	identifier string
	host       *Host
	timer      *time.Timer

	mu       sync.Mutex
	onExpire func()
	done     bool
}

func (t *task) Identifier() string {
	return t.identifier
}

func (t *task) SetExpirationHandler(fn func()) {
	t.mu.Lock()
	t.onExpire = fn
	t.mu.Unlock()
}

func (t *task) Complete(success bool) bool {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return false
	}
	t.done = true
	t.mu.Unlock()

	t.timer.Stop()
	t.host.finish(t, success)
	return true
}

// expire invokes the expiration handler, then reclaims the task as failed if
// the handler did not complete it.
func (t *task) expire() {
	t.mu.Lock()
	fn := t.onExpire
	done := t.done
	t.mu.Unlock()

	if done {
		return
	}
	if fn != nil {
		fn()
	}
	t.Complete(false)
}
