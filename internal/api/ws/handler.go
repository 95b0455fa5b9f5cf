package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/flowpulse/backend/internal/channel"
	"github.com/flowpulse/backend/internal/domain/lifecycle"
	"github.com/flowpulse/backend/internal/infrastructure/monitoring"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	callTimeout    = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Frame types local to this transport
const (
	frameSystem = "system"
	framePing   = "ping"
	framePong   = "pong"
)

type systemFrame struct {
	Type       string   `json:"type"`
	Message    string   `json:"message"`
	Subscriber string   `json:"subscriber,omitempty"`
	Channels   []string `json:"channels,omitempty"`
}

type pongFrame struct {
	Type string `json:"type"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origins are enforced by the CORS middleware
	},
}

// Handler manages WebSocket connections
type Handler struct {
	manager *lifecycle.Manager
	hub     *channel.Hub
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a new WebSocket handler
func NewHandler(manager *lifecycle.Manager, hub *channel.Hub, logger *zap.Logger, metrics *monitoring.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		manager: manager,
		hub:     hub,
		logger:  logger,
		metrics: metrics,
	}
}

// conn serializes writes to one websocket
type conn struct {
	ws      *websocket.Conn
	mu      sync.Mutex
	metrics *monitoring.Metrics
}

func (c *conn) send(frameType string, frame interface{}) error {
	data, err := channel.Encode(frame)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.metrics.RecordWSMessage("out", frameType)
	return nil
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// HandleConnection upgrades the request and serves calls and pushes until
// the client goes away. ?channels=a,b limits pushes to those channels.
func (h *Handler) HandleConnection(c *gin.Context) {
	var channels []string
	if raw := c.Query("channels"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				channels = append(channels, name)
			}
		}
	}

	sub, err := h.hub.Subscribe(channels...)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.Unsubscribe(sub)
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	log := h.logger.With(zap.String("subscriber", sub.ID))
	log.Info("WebSocket connected", zap.Strings("channels", channels))

	out := &conn{ws: ws, metrics: h.metrics}
	if err := out.send(frameSystem, systemFrame{
		Type:       frameSystem,
		Message:    "Connected to background lifecycle channels",
		Subscriber: sub.ID,
		Channels:   channels,
	}); err != nil {
		h.hub.Unsubscribe(sub)
		return
	}

	pushDone := make(chan struct{})
	go h.pushLoop(out, sub, log, pushDone)

	h.readLoop(c.Request.Context(), out, log)

	h.hub.Unsubscribe(sub)
	<-pushDone
	log.Info("WebSocket disconnected")
}

// pushLoop forwards hub events and keeps the connection alive
func (h *Handler) pushLoop(out *conn, sub *channel.Subscriber, log *zap.Logger, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			if err := out.send(string(channel.FrameEvent), channel.NewEventFrame(evt)); err != nil {
				log.Debug("Push write failed", zap.Error(err))
				// The read loop notices the broken connection and unsubscribes
				out.ws.Close()
				for range sub.C {
				}
				return
			}
		case <-ticker.C:
			if err := out.ping(); err != nil {
				out.ws.Close()
				for range sub.C {
				}
				return
			}
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, out *conn, log *zap.Logger) {
	out.ws.SetReadLimit(maxMessageSize)
	_ = out.ws.SetReadDeadline(time.Now().Add(pongWait))
	out.ws.SetPongHandler(func(string) error {
		return out.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := out.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		_ = out.ws.SetReadDeadline(time.Now().Add(pongWait))
		if msgType != websocket.TextMessage {
			continue
		}

		frameType, err := channel.PeekType(data)
		if err != nil {
			h.metrics.RecordWSMessage("in", "invalid")
			_ = out.send(string(channel.FrameError), channel.ResponseFrame{Type: channel.FrameError, Error: "malformed frame"})
			continue
		}
		h.metrics.RecordWSMessage("in", string(frameType))

		switch frameType {
		case framePing:
			_ = out.send(framePong, pongFrame{Type: framePong})
		case channel.FrameCall, "":
			h.handleCall(ctx, out, data, log)
		default:
			_ = out.send(string(channel.FrameError), channel.ResponseFrame{Type: channel.FrameError, Error: "unknown frame type"})
		}
	}
}

func (h *Handler) handleCall(ctx context.Context, out *conn, data []byte, log *zap.Logger) {
	call, err := channel.DecodeCall(data)
	if err != nil {
		resp := channel.ResponseFrame{Type: channel.FrameError, Error: err.Error()}
		if call != nil {
			resp.ID = call.ID
		}
		_ = out.send(string(channel.FrameError), resp)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp := channel.ResponseFrame{ID: call.ID, Channel: call.Channel, Method: call.Method}
	result, err := h.manager.Execute(callCtx, call.Channel, call.Method, call.Arguments)
	switch {
	case err == nil:
		resp.Type = channel.FrameResult
		resp.Result = result
	case errors.Is(err, channel.ErrNotImplemented):
		resp.Type = channel.FrameNotImplemented
	default:
		resp.Type = channel.FrameError
		resp.Error = err.Error()
		log.Warn("Call failed",
			zap.String("channel", call.Channel),
			zap.String("method", call.Method),
			zap.Error(err))
	}

	if err := out.send(string(resp.Type), resp); err != nil {
		log.Debug("Response write failed", zap.Error(err))
	}
}
