package httpdto

import (
	"time"

	"jyotish-chat/internal/domain/chat"
)

type InitChatRequest struct {
	AstrologerID string      `json:"astrologerId" binding:"required"`
	UserDetails  UserDetails `json:"userDetails" binding:"required"`
}

type UserDetails struct {
	Name   string `json:"name" binding:"required"`
	Gender string `json:"gender"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Place  string `json:"place"`
}

type InitChatResponse struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

type ChatMessagesResponse struct {
	ChatID   string             `json:"chatId"`
	Messages []chat.MessageView `json:"messages"`
}

type MarkReadResponse struct {
	ChatID string    `json:"chatId"`
	ReadAt time.Time `json:"readAt"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}
