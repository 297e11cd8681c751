package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jyotish-chat/internal/redis"
	"jyotish-chat/internal/services"
	chat_errors "jyotish-chat/pkg/errors"

	"go.uber.org/zap"
)

// ChatHandler serves the message protocol of conversation rooms. A room is
// named by its conversation id.
type ChatHandler struct {
	hub           *Hub
	conversations *services.ConversationService
	summaries     *services.SummaryService
	limiter       *redis.RateLimiter
	rooms         *roomLocks
	log           *WebSocketLogger
}

func NewChatHandler(hub *Hub, conversations *services.ConversationService, summaries *services.SummaryService, limiter *redis.RateLimiter, log *WebSocketLogger) *ChatHandler {
	if log == nil {
		log = NewWebSocketLogger(nil)
	}
	return &ChatHandler{
		hub:           hub,
		conversations: conversations,
		summaries:     summaries,
		limiter:       limiter,
		rooms:         newRoomLocks(),
		log:           log,
	}
}

func (h *ChatHandler) RegisterRoutes(r *Router) {
	r.Register(EventJoinRoom, h.JoinRoom)
	r.Register(EventLeaveRoom, h.LeaveRoom)
	r.Register(EventSendMessage, h.SendMessage)
	r.Register(EventEditMessage, h.EditMessage)
	r.Register(EventDeleteMessage, h.DeleteMessage)
	r.Register(EventTyping, h.Typing)
	r.Register(EventReactToMessage, h.ReactToMessage)
	r.Register(EventGenerateSummary, h.GenerateSummary)
	r.Register(EventMarkRead, h.MarkRead)
}

func (h *ChatHandler) JoinRoom(ctx context.Context, c *Client, data json.RawMessage) (interface{}, error) {
	var req chatRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	if err := h.conversations.AuthorizeRoom(ctx, c.Identity, req.ChatID); err != nil {
		return nil, err
	}
	h.hub.Join(c, req.ChatID)
	h.log.Info(EventJoinRoom, c, zap.String("chat_id", req.ChatID))
	return map[string]string{"chatId": req.ChatID}, nil
}

func (h *ChatHandler) LeaveRoom(ctx context.Context, c *Client, data json.RawMessage) (interface{}, error) {
	var req chatRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	h.hub.Leave(c, req.ChatID)
	return map[string]string{"chatId": req.ChatID}, nil
}

// SendMessage appends and broadcasts under the room lock, so members see new
// messages in the order the store accepted them.
func (h *ChatHandler) SendMessage(ctx context.Context, c *Client, data json.RawMessage) (interface{}, error) {
	var req sendMessageRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	in := services.SendMessageInput{ConversationID: req.ChatID, Content: req.Message, ReplyTo: req.ReplyTo}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := h.allow(ctx, c, h.limiter.AllowMessage); err != nil {
		return nil, err
	}

	unlock := h.rooms.lock(req.ChatID)
	defer unlock()

	view, err := h.conversations.SendMessage(ctx, c.Identity, in)
	if err != nil {
		return nil, err
	}
	h.broadcastRoom(req.ChatID, EventNewMessage, messageEnvelope{ChatID: req.ChatID, Message: view}, nil)
	return view, nil
}

func (h *ChatHandler) EditMessage(ctx context.Context, c *Client, data json.RawMessage) (interface{}, error) {
	var req editMessageRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}

	unlock := h.rooms.lock(req.ChatID)
	defer unlock()

	view, err := h.conversations.EditMessage(ctx, c.Identity, req.ChatID, req.MessageID, req.NewContent)
	if err != nil {
		return nil, h.mutationError(c, EventEditMessage, err)
	}
	h.broadcastRoom(req.ChatID, EventMessageEdited, messageEnvelope{ChatID: req.ChatID, Message: view}, nil)
	return view, nil
}

func (h *ChatHandler) DeleteMessage(ctx context.Context, c *Client, data json.RawMessage) (interface{}, error) {
	var req messageRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}

	unlock := h.rooms.lock(req.ChatID)
	defer unlock()

	if err := h.conversations.DeleteMessage(ctx, c.Identity, req.ChatID, req.MessageID); err != nil {
		return nil, h.mutationError(c, EventDeleteMessage, err)
	}
	payload := messageDeletedPayload{ChatID: req.ChatID, MessageID: req.MessageID}
	h.broadcastRoom(req.ChatID, EventMessageDeleted, payload, nil)
	return payload, nil
}

// Typing is relayed to the rest of the room only and never acknowledged.
func (h *ChatHandler) Typing(ctx context.Context, c *Client, data json.RawMessage) (interface{}, error) {
	var req typingRequest
	if err := decode(data, &req); err != nil {
		return nil, errDropped
	}
	if !c.InRoom(req.ChatID) || !c.limiter.Allow(EventTyping) {
		return nil, errDropped
	}
	h.broadcastRoom(req.ChatID, EventTyping, typingPayload{UserID: c.Identity.ID, IsTyping: req.IsTyping}, c)
	return nil, errDropped
}

func (h *ChatHandler) ReactToMessage(ctx context.Context, c *Client, data json.RawMessage) (interface{}, error) {
	var req reactionRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	if !c.limiter.Allow(EventReactToMessage) {
		return nil, chat_errors.ErrRateLimited
	}

	unlock := h.rooms.lock(req.ChatID)
	defer unlock()

	reactions, err := h.conversations.SetReaction(ctx, c.Identity, req.ChatID, req.MessageID, req.Emoji)
	if err != nil {
		return nil, h.mutationError(c, EventReactToMessage, err)
	}
	payload := reactionPayload{ChatID: req.ChatID, MessageID: req.MessageID, Reactions: reactions}
	h.broadcastRoom(req.ChatID, EventMessageReactionUpdated, payload, nil)
	return payload, nil
}

// GenerateSummary broadcasts a generated summary to the room. It is not stored.
func (h *ChatHandler) GenerateSummary(ctx context.Context, c *Client, data json.RawMessage) (interface{}, error) {
	var req chatRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	if !c.limiter.Allow(EventGenerateSummary) {
		return nil, chat_errors.ErrRateLimited
	}

	summary, err := h.summaries.Summarize(ctx, c.Identity, req.ChatID)
	if err != nil {
		return nil, h.mutationError(c, EventGenerateSummary, err)
	}
	payload := summaryPayload{ChatID: req.ChatID, Summary: summary}
	h.broadcastRoom(req.ChatID, EventSummary, payload, nil)
	return payload, nil
}

func (h *ChatHandler) MarkRead(ctx context.Context, c *Client, data json.RawMessage) (interface{}, error) {
	var req chatRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	at, err := h.conversations.MarkRead(ctx, c.Identity, req.ChatID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"chatId": req.ChatID, "readAt": at}, nil
}

// mutationError turns a vanished conversation or message into a silent drop;
// the target was most likely removed by a concurrent request.
func (h *ChatHandler) mutationError(c *Client, event string, err error) error {
	if errors.Is(err, chat_errors.ErrNotFound) {
		h.log.Info("target_gone", c, zap.String("ws_event", event), zap.String("reason", err.Error()))
		return errDropped
	}
	return err
}

type limitFunc func(ctx context.Context, key string) (*redis.RateLimitResult, error)

// allow fails open when the limiter itself is unavailable.
func (h *ChatHandler) allow(ctx context.Context, c *Client, check limitFunc) error {
	res, err := check(ctx, c.Identity.ID)
	if err != nil {
		h.log.Warn("rate_limit_unavailable", c, zap.Error(err))
		return nil
	}
	if !res.Allowed {
		return fmt.Errorf("%w: retry in %s", chat_errors.ErrRateLimited, res.ResetIn.Round(time.Second))
	}
	return nil
}

func (h *ChatHandler) broadcastRoom(room, event string, data interface{}, except *Client) {
	payload, err := encodeFrame(event, data, nil)
	if err != nil {
		h.log.Error("encode_failed", nil, err, zap.String("ws_event", event))
		return
	}
	h.hub.BroadcastRoom(room, payload, except)
}
