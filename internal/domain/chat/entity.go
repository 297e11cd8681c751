package chat

import "time"

type Role string

const (
	RoleUser       Role = "user"
	RoleAstrologer Role = "astrologer"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAstrologer || r == RoleAdmin
}

// Identity is the verified caller bound to a connection or request.
type Identity struct {
	ID   string
	Role Role
}

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

type Kind string

const (
	KindText   Kind = "text"
	KindSystem Kind = "system"
)

// Conversation is the message log between exactly one user and one astrologer.
// Messages are kept in insertion order.
type Conversation struct {
	ID                 string
	UserID             string
	AstrologerID       string
	Messages           []Message
	Status             Status
	UserLastRead       *time.Time
	AstrologerLastRead *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Message is a single entry of a conversation. SenderID is empty when the sender
// no longer exists.
type Message struct {
	ID        string
	SenderID  string
	Content   string
	Kind      Kind
	ReplyTo   string
	Reactions map[string]string
	CreatedAt time.Time
}

// Profile is the display data of a user or astrologer.
type Profile struct {
	ID     string
	Name   string
	Avatar string
	Role   Role
}

func (c *Conversation) IsParticipant(identityID string) bool {
	return identityID != "" && (identityID == c.UserID || identityID == c.AstrologerID)
}

// FindMessage returns the message with the given id, or nil.
func (c *Conversation) FindMessage(messageID string) *Message {
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			return &c.Messages[i]
		}
	}
	return nil
}

// LastReadFor returns the last-read mark of the participant side identityID sits on.
func (c *Conversation) LastReadFor(identityID string) *time.Time {
	if identityID == c.UserID {
		return c.UserLastRead
	}
	return c.AstrologerLastRead
}

// UnreadCount counts messages from other senders created strictly after the
// identity's last-read mark. A missing mark counts every foreign message.
func (c *Conversation) UnreadCount(identityID string) int {
	mark := c.LastReadFor(identityID)
	count := 0
	for _, m := range c.Messages {
		if m.SenderID == identityID {
			continue
		}
		if mark == nil || m.CreatedAt.After(*mark) {
			count++
		}
	}
	return count
}

// ParticipantRole reports which side of the conversation identityID is on.
func (c *Conversation) ParticipantRole(identityID string) (Role, bool) {
	switch identityID {
	case "":
		return "", false
	case c.UserID:
		return RoleUser, true
	case c.AstrologerID:
		return RoleAstrologer, true
	}
	return "", false
}
