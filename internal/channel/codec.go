package channel

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// FrameType discriminates WebSocket frames
type FrameType string

const (
	FrameCall           FrameType = "call"
	FrameResult         FrameType = "result"
	FrameNotImplemented FrameType = "not_implemented"
	FrameError          FrameType = "error"
	FrameEvent          FrameType = "event"
)

// CallFrame is an inbound method invocation.
type CallFrame struct {
	Type      FrameType              `json:"type"`
	ID        string                 `json:"id"`
	Channel   string                 `json:"channel"`
	Method    string                 `json:"method"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// ResponseFrame answers a CallFrame. Result is always present on result
// frames, including false and zero values.
type ResponseFrame struct {
	Type    FrameType   `json:"type"`
	ID      string      `json:"id"`
	Channel string      `json:"channel,omitempty"`
	Method  string      `json:"method,omitempty"`
	Result  interface{} `json:"result"`
	Error   string      `json:"error,omitempty"`
}

// EventFrame carries a push notification.
type EventFrame struct {
	Type      FrameType              `json:"type"`
	ID        string                 `json:"id"`
	Channel   string                 `json:"channel"`
	Method    string                 `json:"method"`
	Arguments map[string]interface{} `json:"arguments"`
	Timestamp int64                  `json:"timestamp"`
}

// NewEventFrame wraps an event for the wire.
func NewEventFrame(evt Event) EventFrame {
	return EventFrame{
		Type:      FrameEvent,
		ID:        evt.ID.String(),
		Channel:   evt.Channel,
		Method:    evt.Method,
		Arguments: evt.Arguments,
		Timestamp: evt.Timestamp.UnixMilli(),
	}
}

// Encode marshals any frame.
func Encode(frame interface{}) ([]byte, error) {
	data, err := sonic.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// DecodeCall unmarshals and validates an inbound call. Numbers in the
// argument bag decode as float64.
func DecodeCall(data []byte) (*CallFrame, error) {
	var frame CallFrame
	if err := sonic.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if frame.Type == "" {
		frame.Type = FrameCall
	}
	if frame.Type != FrameCall {
		return &frame, fmt.Errorf("unexpected frame type %q", frame.Type)
	}
	if frame.Channel == "" || frame.Method == "" {
		return &frame, fmt.Errorf("call frame requires channel and method")
	}
	return &frame, nil
}

// DecodeEvent unmarshals an event frame, for clients of the push stream.
func DecodeEvent(data []byte) (*EventFrame, error) {
	var frame EventFrame
	if err := sonic.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &frame, nil
}

// PeekType reads only the frame discriminator.
func PeekType(data []byte) (FrameType, error) {
	var head struct {
		Type FrameType `json:"type"`
	}
	if err := sonic.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("decode frame: %w", err)
	}
	return head.Type, nil
}
