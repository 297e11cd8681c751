package websocket

import (
	"context"
	"encoding/json"

	"jyotish-chat/internal/presence"
	"jyotish-chat/internal/redis"

	"go.uber.org/zap"
)

// CallRelay forwards call-setup signaling between two connected identities.
// It keeps no state; a target without a presence entry gets nothing and the
// caller is not told.
type CallRelay struct {
	hub      *Hub
	presence *presence.Registry
	limiter  *redis.RateLimiter
	log      *WebSocketLogger
}

func NewCallRelay(hub *Hub, registry *presence.Registry, limiter *redis.RateLimiter, log *WebSocketLogger) *CallRelay {
	if log == nil {
		log = NewWebSocketLogger(nil)
	}
	return &CallRelay{hub: hub, presence: registry, limiter: limiter, log: log}
}

func (r *CallRelay) RegisterRoutes(router *Router) {
	router.Register(EventCallUser, r.CallUser)
	router.Register(EventAnswerCall, r.AnswerCall)
	router.Register(EventRejectCall, r.RejectCall)
	router.Register(EventEndCall, r.EndCall)
}

func (r *CallRelay) CallUser(ctx context.Context, c *Client, data json.RawMessage) (interface{}, error) {
	var req callUserRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	res, err := r.limiter.AllowCall(ctx, c.Identity.ID)
	if err != nil {
		r.log.Warn("rate_limit_unavailable", c, zap.Error(err))
	} else if !res.Allowed {
		r.log.Warn("call_rate_limited", c, zap.String("recipient_id", req.RecipientID))
		return nil, errDropped
	}

	r.forward(c, req.RecipientID, EventIncomingCall, incomingCallPayload{
		CallerID:   c.Identity.ID,
		CallerName: req.CallerName,
		SignalData: req.SignalData,
		CallType:   req.CallType,
	})
	return nil, errDropped
}

func (r *CallRelay) AnswerCall(ctx context.Context, c *Client, data json.RawMessage) (interface{}, error) {
	var req callPeerRequest
	if err := decode(data, &req); err != nil || !c.limiter.Allow(EventAnswerCall) {
		return nil, errDropped
	}
	r.forward(c, req.CallerID, EventCallAccepted, req.SignalData)
	return nil, errDropped
}

func (r *CallRelay) RejectCall(ctx context.Context, c *Client, data json.RawMessage) (interface{}, error) {
	var req callPeerRequest
	if err := decode(data, &req); err != nil || !c.limiter.Allow(EventRejectCall) {
		return nil, errDropped
	}
	r.forward(c, req.CallerID, EventCallRejected, nil)
	return nil, errDropped
}

// EndCall notifies every other connection; whoever shows call UI tears it down.
func (r *CallRelay) EndCall(ctx context.Context, c *Client, data json.RawMessage) (interface{}, error) {
	if !c.limiter.Allow(EventEndCall) {
		return nil, errDropped
	}
	payload, err := encodeFrame(EventCallEnded, nil, nil)
	if err != nil {
		return nil, err
	}
	r.hub.BroadcastAll(payload, c)
	r.log.Info(EventEndCall, c)
	return nil, errDropped
}

func (r *CallRelay) forward(from *Client, targetID, event string, data interface{}) {
	handle, ok := r.presence.Lookup(targetID)
	if !ok {
		r.log.Info("call_target_offline", from, zap.String("ws_event", event), zap.String("target_id", targetID))
		return
	}
	payload, err := encodeFrame(event, data, nil)
	if err != nil {
		r.log.Error("encode_failed", from, err, zap.String("ws_event", event))
		return
	}
	if !r.hub.SendTo(handle, payload) {
		r.log.Warn("call_target_unreachable", from, zap.String("ws_event", event), zap.String("target_id", targetID))
	}
}
