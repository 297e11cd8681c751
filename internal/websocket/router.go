package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	chat_errors "jyotish-chat/pkg/errors"

	"go.uber.org/zap"
)

// errDropped marks an event that is deliberately answered with silence.
var errDropped = errors.New("dropped")

// HandlerFunc processes one inbound event. A non-nil result is returned to the
// requester in its ack; an error is reported to the requester only.
type HandlerFunc func(ctx context.Context, c *Client, data json.RawMessage) (interface{}, error)

// Router maps event names to handlers. Every dispatch is isolated: an error
// or panic in one handler is reported to the requesting client and nothing else.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	hub      *Hub
	log      *WebSocketLogger
}

func NewRouter(hub *Hub, log *WebSocketLogger) *Router {
	if log == nil {
		log = NewWebSocketLogger(nil)
	}
	return &Router{handlers: make(map[string]HandlerFunc), hub: hub, log: log}
}

func (r *Router) Register(event string, handler HandlerFunc) {
	r.mu.Lock()
	r.handlers[event] = handler
	r.mu.Unlock()
}

// Dispatch runs the handler for frame.Event and writes the ack or error frame.
func (r *Router) Dispatch(ctx context.Context, c *Client, frame InboundFrame) {
	r.mu.RLock()
	handler, ok := r.handlers[frame.Event]
	r.mu.RUnlock()

	if !ok {
		r.log.Warn("unknown_event", c, zap.String("ws_event", frame.Event))
		r.replyError(c, frame, fmt.Errorf("%w: unknown event %q", chat_errors.ErrInvalidInput, frame.Event))
		return
	}

	result, err := r.invoke(ctx, handler, c, frame)
	switch {
	case errors.Is(err, errDropped):
		return
	case err != nil:
		r.replyError(c, frame, err)
	case frame.Ack != nil:
		r.reply(c, EventAck, AckPayload{Success: true, Message: result}, frame.Ack)
	}
}

func (r *Router) invoke(ctx context.Context, handler HandlerFunc, c *Client, frame InboundFrame) (result interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("handler_panic", c, fmt.Errorf("%v", rec), zap.String("ws_event", frame.Event))
			result, err = nil, errors.New("internal error")
		}
	}()
	return handler(ctx, c, frame.Data)
}

func (r *Router) replyError(c *Client, frame InboundFrame, err error) {
	code := chat_errors.Code(err)
	if code == "INTERNAL_ERROR" {
		r.log.Error("handler_failed", c, err, zap.String("ws_event", frame.Event))
	}
	if frame.Ack != nil {
		r.reply(c, EventAck, AckPayload{Success: false, Error: err.Error(), Code: code}, frame.Ack)
		return
	}
	r.reply(c, EventErrorMessage, ErrorPayload{
		Event:   frame.Event,
		Message: "Failed to process " + frame.Event,
		Error:   err.Error(),
		Code:    code,
	}, nil)
}

func (r *Router) reply(c *Client, event string, data interface{}, ack *int64) {
	payload, err := encodeFrame(event, data, ack)
	if err != nil {
		r.log.Error("encode_failed", c, err)
		return
	}
	if !r.hub.SendTo(c.ID, payload) {
		r.log.Warn("send_buffer_full", c, zap.String("ws_event", event))
	}
}

// decode unmarshals event data, mapping failures to a validation error.
func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing payload", chat_errors.ErrInvalidInput)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", chat_errors.ErrInvalidInput, err)
	}
	return nil
}
