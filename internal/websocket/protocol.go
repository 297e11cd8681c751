package websocket

import (
	"encoding/json"
)

// Client -> server events.
const (
	EventJoinRoom        = "joinRoom"
	EventLeaveRoom       = "leaveRoom"
	EventSendMessage     = "sendMessage"
	EventEditMessage     = "editMessage"
	EventDeleteMessage   = "deleteMessage"
	EventTyping          = "typing"
	EventReactToMessage  = "reactToMessage"
	EventGenerateSummary = "generateSummary"
	EventMarkRead        = "markRead"

	EventCallUser   = "callUser"
	EventAnswerCall = "answerCall"
	EventRejectCall = "rejectCall"
	EventEndCall    = "endCall"
)

// Server -> client events.
const (
	EventNewMessage             = "newMessage"
	EventMessageEdited          = "messageEdited"
	EventMessageDeleted         = "messageDeleted"
	EventMessageReactionUpdated = "messageReactionUpdated"
	EventSummary                = "summary"

	EventIncomingCall = "incomingCall"
	EventCallAccepted = "callAccepted"
	EventCallRejected = "callRejected"
	EventCallEnded    = "callEnded"

	EventOnlineUsers      = "onlineUsers"
	EventUserStatusUpdate = "userStatusUpdate"

	EventAck          = "ack"
	EventErrorMessage = "errorMessage"
)

// InboundFrame is what a client writes. Ack, when present, asks for an
// acknowledgment frame carrying the same id.
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   *int64          `json:"ack,omitempty"`
}

type OutboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
	Ack   *int64      `json:"ack,omitempty"`
}

// AckPayload answers a request that carried an ack id.
type AckPayload struct {
	Success bool        `json:"success"`
	Message interface{} `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

type ErrorPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

type chatRequest struct {
	ChatID string `json:"chatId"`
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
	ReplyTo string `json:"replyTo,omitempty"`
}

type editMessageRequest struct {
	ChatID     string `json:"chatId"`
	MessageID  string `json:"messageId"`
	NewContent string `json:"newContent"`
}

type messageRequest struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

type typingRequest struct {
	ChatID   string `json:"chatId"`
	IsTyping bool   `json:"isTyping"`
}

type reactionRequest struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

type callUserRequest struct {
	RecipientID string          `json:"recipientId"`
	SignalData  json.RawMessage `json:"signalData,omitempty"`
	CallType    string          `json:"callType"`
	CallerName  string          `json:"callerName"`
}

type callPeerRequest struct {
	CallerID   string          `json:"callerId"`
	SignalData json.RawMessage `json:"signalData,omitempty"`
}

type messageEnvelope struct {
	ChatID  string      `json:"chatId"`
	Message interface{} `json:"message"`
}

type messageDeletedPayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

type typingPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type reactionPayload struct {
	ChatID    string            `json:"chatId"`
	MessageID string            `json:"messageId"`
	Reactions map[string]string `json:"reactions"`
}

type summaryPayload struct {
	ChatID  string `json:"chatId"`
	Summary string `json:"summary"`
}

type incomingCallPayload struct {
	CallerID   string          `json:"callerId"`
	CallerName string          `json:"callerName"`
	SignalData json.RawMessage `json:"signalData,omitempty"`
	CallType   string          `json:"callType"`
}

type statusPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

func encodeFrame(event string, data interface{}, ack *int64) ([]byte, error) {
	return json.Marshal(OutboundFrame{Event: event, Data: data, Ack: ack})
}
