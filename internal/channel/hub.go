package channel

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/zap"

	"github.com/flowpulse/backend/internal/infrastructure/monitoring"
	"github.com/flowpulse/backend/internal/shared/id"
)

// Subscriber receives pushes for the channels it subscribed to.
// C is closed when the subscriber is removed or the hub closes.
type Subscriber struct {
	ID string
	C  <-chan Event

	ch       chan Event
	channels map[string]struct{}
	mu       sync.Mutex
	closed   bool
}

func (s *Subscriber) wants(channel string) bool {
	if len(s.channels) == 0 {
		return true
	}
	_, ok := s.channels[channel]
	return ok
}

// deliver never blocks; false means the buffer was full
func (s *Subscriber) deliver(evt Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return true
	}
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Hub fans push notifications out to subscribers and keeps a short
// per-channel history.
type Hub struct {
	subscribers cmap.ConcurrentMap[string, *Subscriber]
	history     map[string]*history
	buffer      int
	logger      *zap.Logger
	metrics     *monitoring.Metrics
	closed      atomic.Bool
}

// NewHub creates a hub serving every known channel. buffer bounds each
// subscriber's queue and historySize bounds each channel's history.
func NewHub(buffer, historySize int, logger *zap.Logger, metrics *monitoring.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer < 1 {
		buffer = 1
	}

	h := &Hub{
		subscribers: cmap.New[*Subscriber](),
		history:     make(map[string]*history, len(Names)),
		buffer:      buffer,
		logger:      logger,
		metrics:     metrics,
	}
	for _, name := range Names {
		h.history[name] = newHistory(historySize)
	}
	return h
}

// Channel returns the push side of one channel
func (h *Hub) Channel(name string) Invoker {
	return &channelInvoker{hub: h, name: name}
}

// Publish records an event and offers it to every interested subscriber.
// Slow subscribers lose the event rather than stall the publisher.
func (h *Hub) Publish(channel, method string, arguments map[string]interface{}) (Event, error) {
	hist, ok := h.history[channel]
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}

	evt := Event{
		ID:        id.NewEventID(),
		Channel:   channel,
		Method:    method,
		Arguments: arguments,
		Timestamp: time.Now(),
	}
	hist.add(&evt)
	h.metrics.RecordPush(channel, method)

	if h.closed.Load() {
		return evt, nil
	}

	h.subscribers.IterCb(func(key string, sub *Subscriber) {
		if !sub.wants(channel) {
			return
		}
		if !sub.deliver(evt) {
			h.metrics.RecordPushDropped(channel)
			h.logger.Warn("Dropped push for slow subscriber",
				zap.String("subscriber", key),
				zap.String("channel", channel),
				zap.String("method", method))
		}
	})

	h.logger.Debug("Published push",
		zap.String("id", evt.ID.String()),
		zap.String("channel", channel),
		zap.String("method", method))
	return evt, nil
}

// Subscribe registers a subscriber for the given channels, or for every
// channel when none are named.
func (h *Hub) Subscribe(channels ...string) (*Subscriber, error) {
	set := make(map[string]struct{}, len(channels))
	for _, name := range channels {
		if !Known(name) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
		}
		set[name] = struct{}{}
	}

	ch := make(chan Event, h.buffer)
	sub := &Subscriber{
		ID:       uuid.NewString(),
		C:        ch,
		ch:       ch,
		channels: set,
	}
	if h.closed.Load() {
		sub.close()
		return sub, nil
	}

	h.subscribers.Set(sub.ID, sub)
	h.logger.Debug("Subscriber added", zap.String("subscriber", sub.ID), zap.Strings("channels", channels))
	return sub, nil
}

// Unsubscribe removes a subscriber and closes its queue. Safe to repeat.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.subscribers.Remove(sub.ID)
	sub.close()
}

// Recent returns up to limit retained events for a channel, newest first
func (h *Hub) Recent(channel string, limit int) ([]Event, error) {
	hist, ok := h.history[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	return hist.recent(limit), nil
}

// SubscriberCount returns the number of live subscribers
func (h *Hub) SubscriberCount() int {
	return h.subscribers.Count()
}

// Close removes every subscriber. Later publishes are still recorded in
// history but reach nobody.
func (h *Hub) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	for _, sub := range h.subscribers.Items() {
		h.Unsubscribe(sub)
	}
}

type channelInvoker struct {
	hub  *Hub
	name string
}

func (c *channelInvoker) InvokeMethod(method string, arguments map[string]interface{}) {
	if _, err := c.hub.Publish(c.name, method, arguments); err != nil {
		c.hub.logger.Error("Push failed",
			zap.String("channel", c.name),
			zap.String("method", method),
			zap.Error(err))
	}
}
