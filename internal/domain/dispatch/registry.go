// Package dispatch routes channel commands to the lifecycle components.
//
// Arguments are decoded once, at the boundary, into a Command. Handlers
// then run on the control loop so grant and refresh state is never
// touched concurrently.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/flowpulse/backend/internal/channel"
	"github.com/flowpulse/backend/internal/control"
	"github.com/flowpulse/backend/internal/infrastructure/monitoring"
	"github.com/flowpulse/backend/internal/shared/id"
	"github.com/flowpulse/backend/internal/shared/types"
)

// Command outcomes recorded in metrics
const (
	OutcomeOK             = "ok"
	OutcomeFailed         = "failed"
	OutcomeNotImplemented = "not_implemented"
	OutcomeUnknownChannel = "unknown_channel"
	OutcomeError          = "error"
)

// Handler serves every method on one channel
type Handler interface {
	Definition() types.ChannelDefinition
	Handle(cmd Command) (interface{}, error)
}

// Registry maps channel names to handlers
type Registry struct {
	loop     *control.Loop
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	handlers map[string]Handler
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry running handlers on loop
func NewRegistry(loop *control.Loop, logger *zap.Logger, metrics *monitoring.Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		loop:     loop,
		logger:   logger,
		metrics:  metrics,
		handlers: make(map[string]Handler),
	}
}

// Register adds a channel handler
func (r *Registry) Register(handler Handler) error {
	def := handler.Definition()
	if def.Name == "" {
		return fmt.Errorf("channel name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[def.Name]; exists {
		return fmt.Errorf("channel %s already registered", def.Name)
	}
	r.handlers[def.Name] = handler
	return nil
}

// Get retrieves a handler by channel name
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// List returns every channel definition, sorted by name
func (r *Registry) List() []types.ChannelDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]types.ChannelDefinition, 0, len(r.handlers))
	for _, h := range r.handlers {
		defs = append(defs, h.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute decodes and runs one invocation on the control loop. Unknown
// methods return channel.ErrNotImplemented; business failures come back
// as a payload with a nil error.
func (r *Registry) Execute(ctx context.Context, channelName, method string, args map[string]interface{}) (interface{}, error) {
	reqID := id.NewRequestID()
	timer := monitoring.NewTimer(r.metrics, channelName, method)
	log := r.logger.With(
		zap.String("request_id", reqID.String()),
		zap.String("channel", channelName),
		zap.String("method", method))

	handler, ok := r.Get(channelName)
	if !ok {
		timer.Stop(OutcomeUnknownChannel)
		log.Warn("Unknown channel")
		return nil, fmt.Errorf("%w: %s", channel.ErrUnknownChannel, channelName)
	}

	cmd, err := Decode(channelName, method, args)
	if err != nil {
		timer.Stop(outcomeFor(err))
		log.Debug("Command rejected", zap.Error(err))
		return nil, err
	}

	var result interface{}
	var handleErr error
	if err := r.loop.Do(ctx, func() { result, handleErr = handler.Handle(cmd) }); err != nil {
		timer.Stop(OutcomeError)
		log.Error("Command not run", zap.Error(err))
		return nil, err
	}
	if handleErr != nil {
		timer.Stop(outcomeFor(handleErr))
		log.Warn("Command failed", zap.Error(handleErr))
		return nil, handleErr
	}

	outcome := OutcomeOK
	if Failed(result) {
		outcome = OutcomeFailed
	}
	timer.Stop(outcome)
	log.Debug("Command handled", zap.String("outcome", outcome))
	return result, nil
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, channel.ErrNotImplemented):
		return OutcomeNotImplemented
	case errors.Is(err, channel.ErrUnknownChannel):
		return OutcomeUnknownChannel
	default:
		return OutcomeError
	}
}
