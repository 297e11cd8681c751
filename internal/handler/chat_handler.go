package handler

import (
	"net/http"

	"jyotish-chat/internal/services"
	"jyotish-chat/internal/transport/httpdto"
	chat_errors "jyotish-chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	service *services.ConversationService
}

func NewChatHandler(service *services.ConversationService) *ChatHandler {
	return &ChatHandler{service: service}
}

// Init opens the caller's consultation with an astrologer and posts the
// caller's birth details as a system message.
func (h *ChatHandler) Init(c *gin.Context) {
	identity, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.InitChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	conv, _, err := h.service.InitChat(c.Request.Context(), identity, req.AstrologerID, services.UserDetails{
		Name:   req.UserDetails.Name,
		Gender: req.UserDetails.Gender,
		Date:   req.UserDetails.Date,
		Time:   req.UserDetails.Time,
		Place:  req.UserDetails.Place,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.InitChatResponse{
		ChatID:  conv.ID,
		Message: "Chat initialized with user details.",
	}))
}

func (h *ChatHandler) List(c *gin.Context) {
	identity, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	chats, err := h.service.ListForIdentity(c.Request.Context(), identity)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(chats))
}

func (h *ChatHandler) Messages(c *gin.Context) {
	identity, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	chatID := c.Param("chatId")
	messages, err := h.service.GetWithResolvedReplies(c.Request.Context(), identity, chatID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ChatMessagesResponse{ChatID: chatID, Messages: messages}))
}

func (h *ChatHandler) Delete(c *gin.Context) {
	identity, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if err := h.service.DeleteConversation(c.Request.Context(), identity, c.Param("chatId")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"chatId": c.Param("chatId")}))
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	identity, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	chatID := c.Param("chatId")
	at, err := h.service.MarkRead(c.Request.Context(), identity, chatID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkReadResponse{ChatID: chatID, ReadAt: at}))
}

type HealthHandler struct {
	service *services.ConversationService
}

func NewHealthHandler(service *services.ConversationService) *HealthHandler {
	return &HealthHandler{service: service}
}

func (h *HealthHandler) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func (h *HealthHandler) Health(c *gin.Context) {
	if err := h.service.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, httpdto.Response[httpdto.HealthResponse]{
			Success: false,
			Data:    httpdto.HealthResponse{Status: "degraded", Store: "unreachable"},
			Error:   err.Error(),
			Code:    chat_errors.Code(chat_errors.ErrUpstream),
		})
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.HealthResponse{Status: "ok", Store: "ok"}))
}
