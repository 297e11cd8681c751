package repository

import (
	"context"
	"time"

	"jyotish-chat/internal/domain/chat"
)

// ConversationRepository is the durable store behind the conversation log. Every
// method is a single atomic document update; authorization is the caller's job.
type ConversationRepository interface {
	// Create fails with ErrAlreadyExists when the (user, astrologer) pair is taken.
	Create(ctx context.Context, c *chat.Conversation) error
	GetByID(ctx context.Context, id string) (chat.Conversation, error)
	GetByPair(ctx context.Context, userID, astrologerID string) (chat.Conversation, error)
	ListByParticipant(ctx context.Context, identityID string) ([]chat.Conversation, error)
	Delete(ctx context.Context, id string) error

	AppendMessage(ctx context.Context, conversationID string, m chat.Message) error
	UpdateMessageContent(ctx context.Context, conversationID, messageID, content string) error
	RemoveMessage(ctx context.Context, conversationID, messageID string) error
	SetReaction(ctx context.Context, conversationID, messageID, identityID, symbol string) error
	ClearReaction(ctx context.Context, conversationID, messageID, identityID string) error
	SetLastRead(ctx context.Context, conversationID string, role chat.Role, at time.Time) error

	Ping(ctx context.Context) error
}

// ProfileRepository reads display data owned by the user/astrologer services.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (chat.Profile, error)
	GetMany(ctx context.Context, ids []string) (chat.ProfileDirectory, error)
	Upsert(ctx context.Context, p chat.Profile) error
}
