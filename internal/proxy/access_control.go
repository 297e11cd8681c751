package proxy

import (
	"time"

	"jyotish-chat/internal/domain/chat"
	chat_errors "jyotish-chat/pkg/errors"
)

// AccessControl holds the authorization predicates for conversation operations.
// Every check runs against an already loaded conversation so it adds no storage
// round trip.
type AccessControl struct{}

func NewAccessControl() *AccessControl {
	return &AccessControl{}
}

func (a *AccessControl) CanSendMessage(identity chat.Identity, c *chat.Conversation) error {
	return a.ensureParticipant(identity, c)
}

func (a *AccessControl) CanViewConversation(identity chat.Identity, c *chat.Conversation) error {
	return a.ensureParticipant(identity, c)
}

func (a *AccessControl) CanJoinRoom(identity chat.Identity, c *chat.Conversation) error {
	return a.ensureParticipant(identity, c)
}

func (a *AccessControl) CanReact(identity chat.Identity, c *chat.Conversation) error {
	return a.ensureParticipant(identity, c)
}

// CanDeleteConversation lets admins remove any conversation.
func (a *AccessControl) CanDeleteConversation(identity chat.Identity, c *chat.Conversation) error {
	if identity.Role == chat.RoleAdmin {
		return nil
	}
	return a.ensureParticipant(identity, c)
}

// CanMarkRead resolves which last-read mark identity may move. The caller's
// role must match the side of the conversation it sits on.
func (a *AccessControl) CanMarkRead(identity chat.Identity, c *chat.Conversation) (chat.Role, error) {
	if identity.Role != chat.RoleUser && identity.Role != chat.RoleAstrologer {
		return "", chat_errors.ErrForbidden
	}
	side, ok := c.ParticipantRole(identity.ID)
	if !ok || side != identity.Role {
		return "", chat_errors.ErrForbidden
	}
	return side, nil
}

func (a *AccessControl) CanEditMessage(identity chat.Identity, m *chat.Message, now time.Time) error {
	if !chat.CanEdit(m, identity.ID, now) {
		return chat_errors.ErrForbidden
	}
	return nil
}

func (a *AccessControl) CanDeleteMessage(identity chat.Identity, c *chat.Conversation, m *chat.Message, now time.Time) error {
	if !chat.CanDelete(c, m, identity.ID, now) {
		return chat_errors.ErrForbidden
	}
	return nil
}

func (a *AccessControl) ensureParticipant(identity chat.Identity, c *chat.Conversation) error {
	if c == nil || !c.IsParticipant(identity.ID) {
		return chat_errors.ErrForbidden
	}
	return nil
}
