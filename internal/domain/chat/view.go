package chat

import "time"

const (
	DeletedSenderID     = "deleted-user"
	DeletedSenderName   = "Deleted User"
	DeletedSenderAvatar = "/default-avatar.png"
)

type SenderView struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type ReplyView struct {
	ID        string      `json:"_id"`
	Content   string      `json:"content"`
	Sender    *SenderView `json:"sender"`
	CreatedAt time.Time   `json:"createdAt"`
	Type      Kind        `json:"type"`
}

type MessageView struct {
	ID        string            `json:"_id"`
	Sender    SenderView        `json:"sender"`
	Content   string            `json:"content"`
	CreatedAt time.Time         `json:"createdAt"`
	Type      Kind              `json:"type"`
	ReplyTo   *ReplyView        `json:"replyTo"`
	Reactions map[string]string `json:"reactions"`
}

type ConversationSummary struct {
	ID                 string      `json:"_id"`
	User               SenderView  `json:"userId"`
	Astrologer         SenderView  `json:"astrologerId"`
	Status             Status      `json:"status"`
	MessageCount       int         `json:"messageCount"`
	LastMessage        *MessageRef `json:"lastMessage,omitempty"`
	UserLastRead       *time.Time  `json:"userLastRead,omitempty"`
	AstrologerLastRead *time.Time  `json:"astrologerLastRead,omitempty"`
	UnreadCount        int         `json:"unreadCount"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

type MessageRef struct {
	ID        string    `json:"_id"`
	SenderID  string    `json:"sender"`
	Content   string    `json:"content"`
	Type      Kind      `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProfileDirectory resolves sender display data. Missing entries render as the
// deleted-user sentinel.
type ProfileDirectory map[string]Profile

func (d ProfileDirectory) Sender(id string) SenderView {
	if p, ok := d[id]; ok && id != "" {
		return SenderView{ID: p.ID, Name: p.Name, Avatar: p.Avatar}
	}
	return SenderView{ID: DeletedSenderID, Name: DeletedSenderName, Avatar: DeletedSenderAvatar}
}

// SenderIDs collects the distinct senders and participants referenced by c.
func (c *Conversation) SenderIDs() []string {
	seen := map[string]struct{}{}
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	add(c.UserID)
	add(c.AstrologerID)
	for _, m := range c.Messages {
		add(m.SenderID)
	}
	return ids
}

// ResolveReply looks up the reply target of m inside c. A target that no longer
// exists yields nil, never an error.
func (c *Conversation) ResolveReply(m *Message, dir ProfileDirectory) *ReplyView {
	if m == nil || m.ReplyTo == "" {
		return nil
	}
	target := c.FindMessage(m.ReplyTo)
	if target == nil {
		return nil
	}
	sender := dir.Sender(target.SenderID)
	return &ReplyView{
		ID:        target.ID,
		Content:   target.Content,
		Sender:    &sender,
		CreatedAt: target.CreatedAt,
		Type:      target.Kind,
	}
}

// View renders m with sender and reply enrichment.
func (c *Conversation) View(m *Message, dir ProfileDirectory) MessageView {
	reactions := make(map[string]string, len(m.Reactions))
	for k, v := range m.Reactions {
		reactions[k] = v
	}
	return MessageView{
		ID:        m.ID,
		Sender:    dir.Sender(m.SenderID),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Type:      m.Kind,
		ReplyTo:   c.ResolveReply(m, dir),
		Reactions: reactions,
	}
}

func (c *Conversation) Summary(identityID string, dir ProfileDirectory) ConversationSummary {
	s := ConversationSummary{
		ID:                 c.ID,
		User:               dir.Sender(c.UserID),
		Astrologer:         dir.Sender(c.AstrologerID),
		Status:             c.Status,
		MessageCount:       len(c.Messages),
		UserLastRead:       c.UserLastRead,
		AstrologerLastRead: c.AstrologerLastRead,
		UnreadCount:        c.UnreadCount(identityID),
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
	if n := len(c.Messages); n > 0 {
		last := c.Messages[n-1]
		s.LastMessage = &MessageRef{
			ID:        last.ID,
			SenderID:  last.SenderID,
			Content:   last.Content,
			Type:      last.Kind,
			CreatedAt: last.CreatedAt,
		}
	}
	return s
}
