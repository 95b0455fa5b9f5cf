package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpulse/backend/internal/control"
	"github.com/flowpulse/backend/internal/infrastructure/monitoring"
	"github.com/flowpulse/backend/internal/platform"
	"github.com/flowpulse/backend/internal/shared/types"
)

type caps bool

func (c caps) SupportsDeferredRefresh() bool { return bool(c) }

type fakeScheduler struct {
	mu        sync.Mutex
	handler   func(platform.RefreshTask)
	submitted []platform.RefreshRequest
	failWith  error
}

func (f *fakeScheduler) Register(identifier string, handler func(platform.RefreshTask)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return nil
}

func (f *fakeScheduler) Submit(req platform.RefreshRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.submitted = append(f.submitted, req)
	return nil
}

func (f *fakeScheduler) requests() []platform.RefreshRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.RefreshRequest(nil), f.submitted...)
}

func (f *fakeScheduler) launch(task platform.RefreshTask) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	handler(task)
}

type fakeTask struct {
	mu        sync.Mutex
	onExpire  func()
	completed []bool
	done      chan struct{}
	// reclaim calls the expiration handler as soon as it is installed
	reclaim bool
}

func newFakeTask() *fakeTask { return &fakeTask{done: make(chan struct{})} }

func (t *fakeTask) Identifier() string { return Identifier }

func (t *fakeTask) SetExpirationHandler(fn func()) {
	t.mu.Lock()
	t.onExpire = fn
	reclaim := t.reclaim
	t.mu.Unlock()
	if reclaim {
		fn()
	}
}

func (t *fakeTask) Complete(success bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed = append(t.completed, success)
	if len(t.completed) == 1 {
		close(t.done)
		return true
	}
	return false
}

func (t *fakeTask) results() []bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]bool(nil), t.completed...)
}

type recorder struct {
	mu     sync.Mutex
	method []string
	args   []map[string]interface{}
}

func (r *recorder) InvokeMethod(method string, arguments map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.method = append(r.method, method)
	r.args = append(r.args, arguments)
}

func newTestScheduler(t *testing.T, supported bool) (*Scheduler, *fakeScheduler, *recorder, *monitoring.Metrics) {
	t.Helper()
	host := &fakeScheduler{}
	pushes := &recorder{}
	metrics := monitoring.NewMetrics(nil)
	loop := control.NewLoop(nil)
	t.Cleanup(loop.Stop)

	s := NewScheduler(SelectStrategy(caps(supported), host), loop, pushes, nil, metrics)
	require.NoError(t, s.Start())
	return s, host, pushes, metrics
}

func onLoop(t *testing.T, s *Scheduler, fn func()) {
	t.Helper()
	require.NoError(t, s.loop.Do(context.Background(), fn))
}

func TestSelectStrategy(t *testing.T) {
	assert.Equal(t, MethodDeferred, SelectStrategy(caps(true), &fakeScheduler{}).Method())
	assert.Equal(t, MethodLegacy, SelectStrategy(caps(false), &fakeScheduler{}).Method())
	assert.Equal(t, MethodLegacy, SelectStrategy(nil, nil).Method())
}

func TestScheduleForSessionDeferred(t *testing.T) {
	s, host, _, metrics := newTestScheduler(t, true)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	var res SessionSchedule
	onLoop(t, s, func() { res = s.ScheduleForSession(1500, 1767322800) })

	assert.Equal(t, SessionSchedule{Success: true, Method: MethodDeferred}, res)
	reqs := host.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, Identifier, reqs[0].Identifier)
	assert.Equal(t, fixed.Add(15*time.Minute), reqs[0].EarliestBegin)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshSubmissions.WithLabelValues("ok")))

	var st Status
	onLoop(t, s, func() { st = s.Status() })
	require.NotNil(t, st.NextEarliest)
	assert.Equal(t, fixed.Add(Interval), *st.NextEarliest)
}

func TestScheduleForSessionLegacy(t *testing.T) {
	s, host, _, metrics := newTestScheduler(t, false)

	var res SessionSchedule
	onLoop(t, s, func() { res = s.ScheduleForSession(0, 0) })

	assert.Equal(t, SessionSchedule{Success: true, Method: MethodLegacy}, res)
	assert.Empty(t, host.requests())
	assert.Nil(t, host.handler)
	assert.Equal(t, 0, testutil.CollectAndCount(metrics.RefreshSubmissions))
}

func TestSubmissionFailureIsSwallowed(t *testing.T) {
	s, host, _, metrics := newTestScheduler(t, true)
	host.failWith = errors.New("quota exceeded")

	var res SessionSchedule
	onLoop(t, s, func() { res = s.ScheduleForSession(60, 0) })

	assert.True(t, res.Success)
	assert.Equal(t, MethodDeferred, res.Method)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshSubmissions.WithLabelValues("error")))

	var st Status
	onLoop(t, s, func() { st = s.Status() })
	assert.Nil(t, st.LastSubmitted)
}

func TestFireRearmsPushesAndCompletes(t *testing.T) {
	s, host, pushes, metrics := newTestScheduler(t, true)
	fixed := time.Unix(1767322800, 500_000_000)
	s.now = func() time.Time { return fixed }

	task := newFakeTask()
	go host.launch(task)

	select {
	case <-task.done:
	case <-time.After(time.Second):
		t.Fatal("refresh task not completed")
	}

	assert.Equal(t, []bool{true}, task.results())
	require.Len(t, host.requests(), 1)
	assert.Equal(t, fixed.Add(Interval), host.requests()[0].EarliestBegin)

	pushes.mu.Lock()
	require.Equal(t, []string{EventFired}, pushes.method)
	assert.Equal(t, 1767322800.5, pushes.args[0]["timestamp"])
	pushes.mu.Unlock()

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshFires.WithLabelValues(OutcomeCompleted)))

	var st Status
	onLoop(t, s, func() { st = s.Status() })
	assert.Equal(t, 1, st.Fires)
	require.NotNil(t, st.LastFired)
}

func TestFireExpirationHandlerFailsTask(t *testing.T) {
	s, host, _, metrics := newTestScheduler(t, true)

	task := newFakeTask()
	task.reclaim = true
	host.launch(task)
	onLoop(t, s, func() {})

	assert.Equal(t, []bool{false, true}, task.results())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshFires.WithLabelValues(OutcomeExpired)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RefreshFires.WithLabelValues(OutcomeCompleted)))
}

func TestExpirationAfterCompletionIsIgnored(t *testing.T) {
	s, host, _, metrics := newTestScheduler(t, true)

	task := newFakeTask()
	go host.launch(task)
	<-task.done
	onLoop(t, s, func() {})

	task.mu.Lock()
	onExpire := task.onExpire
	task.mu.Unlock()
	require.NotNil(t, onExpire)

	onExpire()
	assert.Equal(t, []bool{true, false}, task.results())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RefreshFires.WithLabelValues(OutcomeExpired)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshFires.WithLabelValues(OutcomeCompleted)))
}

func TestFireAfterReclaimCountsOnce(t *testing.T) {
	s, host, pushes, metrics := newTestScheduler(t, true)

	task := newFakeTask()
	// Host reclaims the task before the loop handles the fire
	require.True(t, task.Complete(false))
	host.launch(task)
	onLoop(t, s, func() {})

	assert.Equal(t, []bool{false, true}, task.results())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshFires.WithLabelValues(OutcomeExpired)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RefreshFires.WithLabelValues(OutcomeCompleted)))

	// The chain still renews and the fire is still reported
	assert.Len(t, host.requests(), 1)
	pushes.mu.Lock()
	assert.Len(t, pushes.method, 1)
	pushes.mu.Unlock()
}

func TestFireAfterLoopStopFailsTask(t *testing.T) {
	s, host, pushes, _ := newTestScheduler(t, true)
	s.loop.Stop()

	task := newFakeTask()
	host.launch(task)

	assert.Equal(t, []bool{false}, task.results())
	pushes.mu.Lock()
	assert.Empty(t, pushes.method)
	pushes.mu.Unlock()
}

func TestLegacySubmitUnsupported(t *testing.T) {
	assert.ErrorIs(t, LegacyStrategy{}.Submit(Identifier, time.Now()), types.ErrUnsupported)
}
