package sim

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flowpulse/backend/internal/platform"
	"github.com/flowpulse/backend/internal/shared/types"
)

var (
	// ErrAlreadyRegistered is returned when a launch handler is registered twice.
	ErrAlreadyRegistered = errors.New("launch handler already registered")
	// ErrNotRegistered is returned when submitting for an identifier without a handler.
	ErrNotRegistered = errors.New("no launch handler registered")
	// ErrNoPendingRequest is returned by FireRefresh when nothing is scheduled.
	ErrNoPendingRequest = errors.New("no pending refresh request")
	// ErrClosed is returned once the host has been shut down.
	ErrClosed = errors.New("host closed")
)

// Config controls the simulated host.
type Config struct {
	GrantBudget       time.Duration // lifetime of a grant before expiration
	TaskBudget        time.Duration // time a launched refresh task may run
	MaxGrants         int           // concurrent grants issued before refusing
	DeferredRefresh   bool
	BatteryMonitoring bool // whether battery monitoring is supported at all
	Power             PowerState
}

// DefaultConfig returns a host resembling a recent handset on battery.
func DefaultConfig() Config {
	return Config{
		GrantBudget:       30 * time.Second,
		TaskBudget:        30 * time.Second,
		MaxGrants:         1,
		DeferredRefresh:   true,
		BatteryMonitoring: true,
		Power: PowerState{
			BatteryLevel: 1.0,
			BatteryState: types.BatteryUnplugged,
		},
	}
}

// PowerState is the simulated device power condition.
type PowerState struct {
	BatteryLevel float64            `json:"battery_level"`
	BatteryState types.BatteryState `json:"battery_state"`
	LowPowerMode bool               `json:"low_power_mode"`
}

// GrantInfo describes an outstanding grant.
type GrantInfo struct {
	ID       platform.TaskID `json:"id"`
	Name     string          `json:"name"`
	Began    time.Time       `json:"began"`
	Deadline time.Time       `json:"deadline"`
	Expired  bool            `json:"expired"`
}

// Snapshot is a point-in-time view of the host, for inspection.
type Snapshot struct {
	Grants          []GrantInfo               `json:"grants"`
	Pending         []platform.RefreshRequest `json:"pending"`
	Running         []string                  `json:"running"`
	Completed       []Outcome                 `json:"completed"`
	Power           PowerState                `json:"power"`
	Monitoring      bool                      `json:"battery_monitoring"`
	Observers       int                       `json:"observers"`
	DeferredRefresh bool                      `json:"deferred_refresh"`
}

// Outcome records how a launched refresh task finished.
type Outcome struct {
	Identifier string    `json:"identifier"`
	Success    bool      `json:"success"`
	At         time.Time `json:"at"`
}

type grant struct {
	GrantInfo
	onExpire func()
	timer    *time.Timer
}

type pendingRefresh struct {
	req   platform.RefreshRequest
	timer *time.Timer
}

// Host is an in-process implementation of platform.Host. Timers drive grant
// expiration and refresh launches; manual triggers let tests and operators
// force those transitions.
type Host struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	closed     bool
	nextID     platform.TaskID
	grants     map[platform.TaskID]*grant
	handlers   map[string]func(platform.RefreshTask)
	pending    map[string]*pendingRefresh
	running    map[string]*task
	completed  []Outcome
	power      PowerState
	monitoring bool
	observers  map[uint64]func()
	nextObs    uint64

	wg sync.WaitGroup
}

var _ platform.Host = (*Host)(nil)

// NewHost creates a simulated host.
func NewHost(cfg Config, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.GrantBudget <= 0 {
		cfg.GrantBudget = DefaultConfig().GrantBudget
	}
	if cfg.TaskBudget <= 0 {
		cfg.TaskBudget = DefaultConfig().TaskBudget
	}
	if cfg.MaxGrants <= 0 {
		cfg.MaxGrants = 1
	}
	cfg.Power.BatteryState = types.ParseBatteryState(string(cfg.Power.BatteryState))

	return &Host{
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		grants:    make(map[platform.TaskID]*grant),
		handlers:  make(map[string]func(platform.RefreshTask)),
		pending:   make(map[string]*pendingRefresh),
		running:   make(map[string]*task),
		power:     cfg.Power,
		observers: make(map[uint64]func()),
	}
}

// ============================================================================
// Grants
// ============================================================================

// BeginTask issues a grant unless the host is out of grant slots.
func (h *Host) BeginTask(name string, onExpire func()) platform.TaskID {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || len(h.grants) >= h.cfg.MaxGrants {
		h.logger.Warn("Refusing background task", zap.String("name", name), zap.Int("outstanding", len(h.grants)))
		return platform.InvalidTask
	}

	h.nextID++
	id := h.nextID
	now := h.now()
	g := &grant{
		GrantInfo: GrantInfo{
			ID:       id,
			Name:     name,
			Began:    now,
			Deadline: now.Add(h.cfg.GrantBudget),
		},
		onExpire: onExpire,
	}
	g.timer = time.AfterFunc(h.cfg.GrantBudget, func() { h.expire(id) })
	h.grants[id] = g

	h.logger.Debug("Background task granted", zap.Int64("task_id", int64(id)), zap.Duration("budget", h.cfg.GrantBudget))
	return id
}

// EndTask releases a grant.
func (h *Host) EndTask(id platform.TaskID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.grants[id]
	if !ok {
		h.logger.Warn("Ending unknown background task", zap.Int64("task_id", int64(id)))
		return
	}
	g.timer.Stop()
	delete(h.grants, id)
	h.logger.Debug("Background task ended", zap.Int64("task_id", int64(id)))
}

// RemainingTime reports the smallest budget left across outstanding grants.
func (h *Host) RemainingTime() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.grants) == 0 {
		return platform.UnlimitedTime
	}

	now := h.now()
	remaining := platform.UnlimitedTime
	for _, g := range h.grants {
		left := g.Deadline.Sub(now)
		if left < 0 || g.Expired {
			left = 0
		}
		if left < remaining {
			remaining = left
		}
	}
	return remaining
}

// ExpireGrant fires the expiration handler for id immediately.
func (h *Host) ExpireGrant(id platform.TaskID) bool {
	h.mu.Lock()
	g, ok := h.grants[id]
	if ok {
		g.timer.Stop()
	}
	h.mu.Unlock()

	if !ok {
		return false
	}
	h.expire(id)
	return true
}

// ExpireAll fires the expiration handler of every outstanding grant.
func (h *Host) ExpireAll() int {
	h.mu.Lock()
	ids := make([]platform.TaskID, 0, len(h.grants))
	for id := range h.grants {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	n := 0
	for _, id := range ids {
		if h.ExpireGrant(id) {
			n++
		}
	}
	return n
}

func (h *Host) expire(id platform.TaskID) {
	h.mu.Lock()
	g, ok := h.grants[id]
	if !ok || g.Expired || h.closed {
		h.mu.Unlock()
		return
	}
	g.Expired = true
	fn := g.onExpire
	h.mu.Unlock()

	h.logger.Info("Background task expiring", zap.Int64("task_id", int64(id)))
	if fn != nil {
		h.goCallback(fn)
	}
}

// ============================================================================
// Deferred refresh
// ============================================================================

// Register installs the launch handler for identifier.
func (h *Host) Register(identifier string, handler func(platform.RefreshTask)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if !h.cfg.DeferredRefresh {
		return fmt.Errorf("register %s: %w", identifier, types.ErrUnsupported)
	}
	if _, exists := h.handlers[identifier]; exists {
		return fmt.Errorf("register %s: %w", identifier, ErrAlreadyRegistered)
	}
	h.handlers[identifier] = handler
	return nil
}

// Submit schedules a launch, replacing any pending request for the identifier.
func (h *Host) Submit(req platform.RefreshRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if !h.cfg.DeferredRefresh {
		return fmt.Errorf("submit %s: %w", req.Identifier, types.ErrUnsupported)
	}
	if _, ok := h.handlers[req.Identifier]; !ok {
		return fmt.Errorf("submit %s: %w", req.Identifier, ErrNotRegistered)
	}

	if prev, ok := h.pending[req.Identifier]; ok {
		prev.timer.Stop()
	}

	delay := req.EarliestBegin.Sub(h.now())
	if delay < 0 {
		delay = 0
	}
	identifier := req.Identifier
	h.pending[identifier] = &pendingRefresh{
		req:   req,
		timer: time.AfterFunc(delay, func() { h.launch(identifier) }),
	}
	return nil
}

// FireRefresh launches the pending request for identifier now.
func (h *Host) FireRefresh(identifier string) error {
	h.mu.Lock()
	p, ok := h.pending[identifier]
	if ok {
		p.timer.Stop()
	}
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("fire %s: %w", identifier, ErrNoPendingRequest)
	}
	h.launch(identifier)
	return nil
}

// ExpireRefresh reclaims the running task for identifier before it completes.
func (h *Host) ExpireRefresh(identifier string) bool {
	h.mu.Lock()
	t, ok := h.running[identifier]
	h.mu.Unlock()

	if !ok {
		return false
	}
	t.expire()
	return true
}

// Pending returns the pending request for identifier, if any.
func (h *Host) Pending(identifier string) (platform.RefreshRequest, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pending[identifier]
	if !ok {
		return platform.RefreshRequest{}, false
	}
	return p.req, true
}

// Outcomes returns completed refresh tasks in completion order.
func (h *Host) Outcomes() []Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Outcome, len(h.completed))
	copy(out, h.completed)
	return out
}

func (h *Host) launch(identifier string) {
	h.mu.Lock()
	p, ok := h.pending[identifier]
	handler := h.handlers[identifier]
	if !ok || handler == nil || h.closed {
		h.mu.Unlock()
		return
	}
	delete(h.pending, identifier)

	t := &task{identifier: identifier, host: h}
	t.timer = time.AfterFunc(h.cfg.TaskBudget, t.expire)
	h.running[identifier] = t
	h.mu.Unlock()

	h.logger.Info("Launching refresh task",
		zap.String("identifier", identifier),
		zap.Time("earliest_begin", p.req.EarliestBegin),
	)
	h.goCallback(func() { handler(t) })
}

func (h *Host) finish(t *task, success bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running[t.identifier] == t {
		delete(h.running, t.identifier)
	}
	h.completed = append(h.completed, Outcome{
		Identifier: t.identifier,
		Success:    success,
		At:         h.now(),
	})
}

// ============================================================================
// Power
// ============================================================================

// SetBatteryMonitoring toggles battery reporting.
func (h *Host) SetBatteryMonitoring(enabled bool) {
	h.mu.Lock()
	h.monitoring = enabled
	h.mu.Unlock()
}

// BatteryLevel returns the charge level, or -1 while unmonitored.
func (h *Host) BatteryLevel() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.cfg.BatteryMonitoring || !h.monitoring {
		return -1
	}
	return h.power.BatteryLevel
}

// BatteryState returns the charging state, or unknown while unmonitored.
func (h *Host) BatteryState() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.cfg.BatteryMonitoring || !h.monitoring {
		return string(types.BatteryUnknown)
	}
	return string(h.power.BatteryState)
}

// LowPowerModeEnabled reports the low-power flag.
func (h *Host) LowPowerModeEnabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.power.LowPowerMode
}

// ObservePowerState registers fn for low-power mode changes.
func (h *Host) ObservePowerState(fn func()) platform.Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextObs++
	key := h.nextObs
	h.observers[key] = fn
	return &subscription{host: h, key: key}
}

// SetPower replaces the device power state. Observers are notified when the
// low-power flag changes.
func (h *Host) SetPower(state PowerState) {
	state.BatteryState = types.ParseBatteryState(string(state.BatteryState))

	h.mu.Lock()
	changed := h.power.LowPowerMode != state.LowPowerMode
	h.power = state
	var notify []func()
	if changed && !h.closed {
		notify = make([]func(), 0, len(h.observers))
		for _, fn := range h.observers {
			notify = append(notify, fn)
		}
	}
	h.mu.Unlock()

	if changed {
		h.logger.Info("Power state changed", zap.Bool("low_power_mode", state.LowPowerMode))
	}
	for _, fn := range notify {
		h.goCallback(fn)
	}
}

// Power returns the current simulated power state.
func (h *Host) Power() PowerState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.power
}

// ObserverCount returns the number of registered power observers.
func (h *Host) ObserverCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// SupportsDeferredRefresh reports whether the task scheduler is available.
func (h *Host) SupportsDeferredRefresh() bool {
	return h.cfg.DeferredRefresh
}

// ============================================================================
// Inspection and shutdown
// ============================================================================

// State returns a snapshot of the host.
func (h *Host) State() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := Snapshot{
		Grants:          make([]GrantInfo, 0, len(h.grants)),
		Pending:         make([]platform.RefreshRequest, 0, len(h.pending)),
		Running:         make([]string, 0, len(h.running)),
		Completed:       make([]Outcome, len(h.completed)),
		Power:           h.power,
		Monitoring:      h.monitoring,
		Observers:       len(h.observers),
		DeferredRefresh: h.cfg.DeferredRefresh,
	}
	for _, g := range h.grants {
		snap.Grants = append(snap.Grants, g.GrantInfo)
	}
	sort.Slice(snap.Grants, func(i, j int) bool { return snap.Grants[i].ID < snap.Grants[j].ID })
	for _, p := range h.pending {
		snap.Pending = append(snap.Pending, p.req)
	}
	sort.Slice(snap.Pending, func(i, j int) bool { return snap.Pending[i].Identifier < snap.Pending[j].Identifier })
	for identifier := range h.running {
		snap.Running = append(snap.Running, identifier)
	}
	sort.Strings(snap.Running)
	copy(snap.Completed, h.completed)
	return snap
}

// Close stops every timer and waits for in-flight callbacks.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for id, g := range h.grants {
		g.timer.Stop()
		if !g.Expired {
			h.logger.Warn("Background task still outstanding at shutdown", zap.Int64("task_id", int64(id)))
		}
	}
	for _, p := range h.pending {
		p.timer.Stop()
	}
	for _, t := range h.running {
		t.timer.Stop()
	}
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}

func (h *Host) goCallback(fn func()) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		fn()
	}()
}

type subscription struct {
	host *Host
	key  uint64
}

func (s *subscription) Cancel() {
	s.host.mu.Lock()
	defer s.host.mu.Unlock()
	delete(s.host.observers, s.key)
}
