package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"jyotish-chat/internal/domain/chat"
	"jyotish-chat/internal/repository"
	"jyotish-chat/pkg/database"
	chat_errors "jyotish-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testUser       = chat.Identity{ID: "U", Role: chat.RoleUser}
	testAstrologer = chat.Identity{ID: "A", Role: chat.RoleAstrologer}
	testOutsider   = chat.Identity{ID: "X", Role: chat.RoleUser}
	testAdmin      = chat.Identity{ID: "ADM", Role: chat.RoleAdmin}
)

type fixture struct {
	svc   *ConversationService
	repo  *repository.GormConversationRepository
	clock time.Time
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	convs := repository.NewConversationRepository(db)
	require.NoError(t, convs.AutoMigrate())
	profiles := repository.NewProfileRepository(db)
	require.NoError(t, profiles.AutoMigrate())

	ctx := context.Background()
	require.NoError(t, profiles.Upsert(ctx, chat.Profile{ID: "U", Name: "Sam", Avatar: "/u.png", Role: chat.RoleUser}))
	require.NoError(t, profiles.Upsert(ctx, chat.Profile{ID: "A", Name: "Guru", Avatar: "/a.png", Role: chat.RoleAstrologer}))
	require.NoError(t, profiles.Upsert(ctx, chat.Profile{ID: "X", Name: "Other", Role: chat.RoleUser}))

	f := &fixture{repo: convs, clock: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	f.svc = NewConversationService(convs, profiles, nil)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) openChat(t *testing.T) string {
	t.Helper()
	conv, err := f.svc.FindOrCreate(context.Background(), "U", "A")
	require.NoError(t, err)
	return conv.ID
}

func (f *fixture) send(t *testing.T, from chat.Identity, chatID, content, replyTo string) chat.MessageView {
	t.Helper()
	f.advance(time.Second)
	view, err := f.svc.SendMessage(context.Background(), from, SendMessageInput{ConversationID: chatID, Content: content, ReplyTo: replyTo})
	require.NoError(t, err)
	return view
}

func TestInitChatTwiceKeepsOneConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	details := UserDetails{Name: "Sam", Gender: "male", Date: "1990-01-01", Time: "10:00", Place: "Pune"}

	first, msg, err := f.svc.InitChat(ctx, testUser, "A", details)
	require.NoError(t, err)
	assert.Equal(t, chat.KindSystem, msg.Kind)
	assert.Contains(t, msg.Content, "Sam")
	assert.Equal(t, "Hi Guru,\nBelow are my details:\nName: Sam\nGender: male\nDOB: 1990-01-01\nTOB: 10:00\nPOB: Pune", msg.Content)

	second, _, err := f.svc.InitChat(ctx, testUser, "A", details)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	convs, err := f.repo.ListByParticipant(ctx, "U")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Len(t, convs[0].Messages, 2)
	for _, m := range convs[0].Messages {
		assert.Equal(t, chat.KindSystem, m.Kind)
		assert.Contains(t, m.Content, "Sam")
	}
}

func TestInitChatUnknownAstrologer(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.InitChat(context.Background(), testUser, "nobody", UserDetails{Name: "Sam"})
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)

	_, _, err = f.svc.InitChat(context.Background(), testAstrologer, "A", UserDetails{Name: "Sam"})
	assert.ErrorIs(t, err, chat_errors.ErrForbidden)
}

func TestFindOrCreateConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := f.svc.FindOrCreate(ctx, "U", "A")
			ids[i], errs[i] = conv.ID, err
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	convs, err := f.repo.ListByParticipant(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestSendMessageValidationAndAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chatID := f.openChat(t)

	_, err := f.svc.SendMessage(ctx, testUser, SendMessageInput{ConversationID: chatID})
	assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)

	_, err = f.svc.SendMessage(ctx, testUser, SendMessageInput{ConversationID: "missing", Content: "hi"})
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)

	_, err = f.svc.SendMessage(ctx, testOutsider, SendMessageInput{ConversationID: chatID, Content: "hi"})
	assert.ErrorIs(t, err, chat_errors.ErrForbidden)

	conv, err := f.repo.GetByID(ctx, chatID)
	require.NoError(t, err)
	assert.Empty(t, conv.Messages, "rejected sends must not write")
}

func TestSendMessageResolvesReply(t *testing.T) {
	f := newFixture(t)
	chatID := f.openChat(t)

	question := f.send(t, testUser, chatID, "when will I travel?", "")
	assert.Equal(t, "Sam", question.Sender.Name)
	assert.Nil(t, question.ReplyTo)

	answer := f.send(t, testAstrologer, chatID, "next spring", question.ID)
	require.NotNil(t, answer.ReplyTo)
	assert.Equal(t, question.ID, answer.ReplyTo.ID)
	assert.Equal(t, "when will I travel?", answer.ReplyTo.Content)
	assert.Equal(t, "Sam", answer.ReplyTo.Sender.Name)
	assert.Equal(t, "Guru", answer.Sender.Name)

	_, err := f.svc.SendMessage(context.Background(), testUser, SendMessageInput{ConversationID: chatID, Content: "?", ReplyTo: "nope"})
	assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)
}

func TestEditWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chatID := f.openChat(t)
	m := f.send(t, testUser, chatID, "draft", "")

	_, err := f.svc.EditMessage(ctx, testAstrologer, chatID, m.ID, "hijack")
	assert.ErrorIs(t, err, chat_errors.ErrForbidden)

	f.advance(9 * time.Minute)
	edited, err := f.svc.EditMessage(ctx, testUser, chatID, m.ID, "final")
	require.NoError(t, err)
	assert.Equal(t, "final", edited.Content)
	assert.Equal(t, m.ID, edited.ID)
	assert.True(t, m.CreatedAt.Equal(edited.CreatedAt))

	f.advance(2 * time.Minute)
	_, err = f.svc.EditMessage(ctx, testUser, chatID, m.ID, "too late")
	assert.ErrorIs(t, err, chat_errors.ErrForbidden)

	_, err = f.svc.EditMessage(ctx, testUser, chatID, "missing", "x")
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
}

func TestDeleteWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chatID := f.openChat(t)
	early := f.send(t, testUser, chatID, "one", "")
	late := f.send(t, testUser, chatID, "two", "")

	require.NoError(t, f.svc.DeleteMessage(ctx, testAstrologer, chatID, early.ID))

	f.advance(11 * time.Minute)
	err := f.svc.DeleteMessage(ctx, testAstrologer, chatID, late.ID)
	assert.ErrorIs(t, err, chat_errors.ErrForbidden)

	err = f.svc.DeleteMessage(ctx, testOutsider, chatID, late.ID)
	assert.ErrorIs(t, err, chat_errors.ErrForbidden)

	require.NoError(t, f.svc.DeleteMessage(ctx, testUser, chatID, late.ID))

	err = f.svc.DeleteMessage(ctx, testUser, chatID, late.ID)
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
}

func TestReactionToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chatID := f.openChat(t)
	m := f.send(t, testUser, chatID, "hello", "")

	reactions, err := f.svc.SetReaction(ctx, testAstrologer, chatID, m.ID, "❤")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "❤"}, reactions)

	reactions, err = f.svc.SetReaction(ctx, testAstrologer, chatID, m.ID, "❤")
	require.NoError(t, err)
	assert.Empty(t, reactions)

	_, err = f.svc.SetReaction(ctx, testAstrologer, chatID, m.ID, "❤")
	require.NoError(t, err)
	reactions, err = f.svc.SetReaction(ctx, testAstrologer, chatID, m.ID, "👍")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "👍"}, reactions)

	_, err = f.svc.SetReaction(ctx, testOutsider, chatID, m.ID, "👍")
	assert.ErrorIs(t, err, chat_errors.ErrForbidden)

	conv, err := f.repo.GetByID(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "👍"}, conv.Messages[0].Reactions)
}

func TestGetWithResolvedRepliesToleratesDeletedTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chatID := f.openChat(t)
	target := f.send(t, testUser, chatID, "original", "")
	f.send(t, testAstrologer, chatID, "reply", target.ID)

	require.NoError(t, f.svc.DeleteMessage(ctx, testUser, chatID, target.ID))

	views, err := f.svc.GetWithResolvedReplies(ctx, testUser, chatID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "reply", views[0].Content)
	assert.Nil(t, views[0].ReplyTo)

	_, err = f.svc.GetWithResolvedReplies(ctx, testOutsider, chatID)
	assert.ErrorIs(t, err, chat_errors.ErrForbidden)
}

func TestDeletedSenderRendersSentinel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chatID := f.openChat(t)
	f.advance(time.Second)
	_, err := f.svc.AppendMessage(ctx, chatID, chat.Message{SenderID: "gone", Content: "ghost"})
	require.NoError(t, err)

	views, err := f.svc.GetWithResolvedReplies(ctx, testUser, chatID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, chat.DeletedSenderID, views[0].Sender.ID)
	assert.Equal(t, chat.DeletedSenderName, views[0].Sender.Name)
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chatID := f.openChat(t)
	f.send(t, testAstrologer, chatID, "one", "")
	f.send(t, testAstrologer, chatID, "two", "")
	f.send(t, testUser, chatID, "mine", "")

	list, err := f.svc.ListForIdentity(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].UnreadCount)
	assert.Equal(t, "Guru", list[0].Astrologer.Name)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "mine", list[0].LastMessage.Content)

	f.advance(time.Second)
	_, err = f.svc.MarkRead(ctx, testUser, chatID)
	require.NoError(t, err)

	list, err = f.svc.ListForIdentity(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 0, list[0].UnreadCount)

	f.send(t, testAstrologer, chatID, "three", "")
	list, err = f.svc.ListForIdentity(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, list[0].UnreadCount)

	list, err = f.svc.ListForIdentity(ctx, testAstrologer)
	require.NoError(t, err)
	assert.Equal(t, 1, list[0].UnreadCount, "astrologer has no mark, counts every foreign message")
}

func TestMarkReadRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chatID := f.openChat(t)

	_, err := f.svc.MarkRead(ctx, testAdmin, chatID)
	assert.ErrorIs(t, err, chat_errors.ErrForbidden)

	_, err = f.svc.MarkRead(ctx, testOutsider, chatID)
	assert.ErrorIs(t, err, chat_errors.ErrForbidden)

	_, err = f.svc.MarkRead(ctx, testAstrologer, chatID)
	require.NoError(t, err)
	conv, err := f.repo.GetByID(ctx, chatID)
	require.NoError(t, err)
	assert.NotNil(t, conv.AstrologerLastRead)
	assert.Nil(t, conv.UserLastRead)
}

func TestDeleteConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chatID := f.openChat(t)
	f.send(t, testUser, chatID, "bye", "")

	assert.ErrorIs(t, f.svc.DeleteConversation(ctx, testOutsider, chatID), chat_errors.ErrForbidden)
	require.NoError(t, f.svc.DeleteConversation(ctx, testAdmin, chatID))

	_, err := f.repo.GetByID(ctx, chatID)
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteConversation(ctx, testUser, chatID), chat_errors.ErrNotFound)
}

func TestAuthorizeRoomAndTranscript(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chatID := f.openChat(t)
	f.send(t, testUser, chatID, "hello", "")
	f.send(t, testAstrologer, chatID, "namaste", "")

	assert.NoError(t, f.svc.AuthorizeRoom(ctx, testAstrologer, chatID))
	assert.ErrorIs(t, f.svc.AuthorizeRoom(ctx, testOutsider, chatID), chat_errors.ErrForbidden)
	assert.ErrorIs(t, f.svc.AuthorizeRoom(ctx, testUser, ""), chat_errors.ErrInvalidInput)

	transcript, err := f.svc.Transcript(ctx, testUser, chatID)
	require.NoError(t, err)
	assert.Equal(t, "Sam: hello\nGuru: namaste", transcript)
}
