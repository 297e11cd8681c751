package websocket

import (
	"go.uber.org/zap"
)

// WebSocketLogger provides structured logging for WebSocket events
type WebSocketLogger struct {
	logger *zap.Logger
}

// NewWebSocketLogger derives a component logger from base, or from the global
// zap logger when base is nil.
func NewWebSocketLogger(base *zap.Logger) *WebSocketLogger {
	if base == nil {
		base = zap.L()
	}
	return &WebSocketLogger{logger: base.With(zap.String("component", "websocket"))}
}

func (l *WebSocketLogger) Info(event string, c *Client, fields ...zap.Field) {
	l.logger.Info("websocket_event", l.fields(event, c, fields)...)
}

func (l *WebSocketLogger) Warn(event string, c *Client, fields ...zap.Field) {
	l.logger.Warn("websocket_warning", l.fields(event, c, fields)...)
}

func (l *WebSocketLogger) Error(event string, c *Client, err error, fields ...zap.Field) {
	l.logger.Error("websocket_error", l.fields(event, c, append(fields, zap.Error(err)))...)
}

func (l *WebSocketLogger) fields(event string, c *Client, extra []zap.Field) []zap.Field {
	out := make([]zap.Field, 0, len(extra)+3)
	out = append(out, zap.String("event", event))
	if c != nil {
		out = append(out, zap.String("user_id", c.Identity.ID), zap.String("client_id", c.ID))
	}
	return append(out, extra...)
}
