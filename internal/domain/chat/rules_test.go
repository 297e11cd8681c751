package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToggleReaction(t *testing.T) {
	next, set := ToggleReaction("", "❤")
	assert.True(t, set)
	assert.Equal(t, "❤", next)

	next, set = ToggleReaction("❤", "❤")
	assert.False(t, set)
	assert.Equal(t, "", next)

	next, set = ToggleReaction("❤", "👍")
	assert.True(t, set)
	assert.Equal(t, "👍", next)
}

func TestCanEdit(t *testing.T) {
	now := time.Now()
	m := &Message{ID: "m1", SenderID: "u1", CreatedAt: now.Add(-9 * time.Minute)}

	assert.True(t, CanEdit(m, "u1", now))
	assert.False(t, CanEdit(m, "a1", now), "only the sender may edit")

	m.CreatedAt = now.Add(-11 * time.Minute)
	assert.False(t, CanEdit(m, "u1", now), "edit window elapsed")

	orphan := &Message{ID: "m2", CreatedAt: now}
	assert.False(t, CanEdit(orphan, "", now))
}

func TestCanDelete(t *testing.T) {
	now := time.Now()
	c := &Conversation{ID: "c1", UserID: "u1", AstrologerID: "a1"}
	old := &Message{ID: "m1", SenderID: "u1", CreatedAt: now.Add(-time.Hour)}
	fresh := &Message{ID: "m2", SenderID: "u1", CreatedAt: now.Add(-time.Minute)}

	assert.True(t, CanDelete(c, old, "u1", now), "sender may delete at any time")
	assert.False(t, CanDelete(c, old, "a1", now), "other participant is bound by the window")
	assert.True(t, CanDelete(c, fresh, "a1", now))
	assert.False(t, CanDelete(c, fresh, "stranger", now))
}

func TestUnreadCount(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	mark := base.Add(2 * time.Minute)
	c := &Conversation{
		UserID:       "u1",
		AstrologerID: "a1",
		UserLastRead: &mark,
		Messages: []Message{
			{ID: "1", SenderID: "a1", CreatedAt: base.Add(time.Minute)},
			{ID: "2", SenderID: "a1", CreatedAt: mark},
			{ID: "3", SenderID: "a1", CreatedAt: base.Add(3 * time.Minute)},
			{ID: "4", SenderID: "u1", CreatedAt: base.Add(4 * time.Minute)},
		},
	}

	assert.Equal(t, 1, c.UnreadCount("u1"), "strictly after the mark and from the other side")
	assert.Equal(t, 1, c.UnreadCount("a1"), "no astrologer mark counts every foreign message")
}

func TestResolveReplyMissingTarget(t *testing.T) {
	c := &Conversation{
		UserID:       "u1",
		AstrologerID: "a1",
		Messages: []Message{
			{ID: "1", SenderID: "u1", Content: "hello", Kind: KindText},
			{ID: "2", SenderID: "a1", Content: "reply", Kind: KindText, ReplyTo: "1"},
			{ID: "3", SenderID: "a1", Content: "dangling", Kind: KindText, ReplyTo: "gone"},
		},
	}
	dir := ProfileDirectory{"u1": {ID: "u1", Name: "Sam"}}

	reply := c.ResolveReply(&c.Messages[1], dir)
	if assert.NotNil(t, reply) {
		assert.Equal(t, "hello", reply.Content)
		assert.Equal(t, "Sam", reply.Sender.Name)
	}
	assert.Nil(t, c.ResolveReply(&c.Messages[2], dir))

	view := c.View(&c.Messages[1], dir)
	assert.Equal(t, DeletedSenderName, view.Sender.Name, "unknown sender renders as deleted user")
}
