package repository

import (
	"context"
	"testing"
	"time"

	"jyotish-chat/config"
	"jyotish-chat/internal/domain/chat"
	"jyotish-chat/pkg/database"
	chat_errors "jyotish-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *GormConversationRepository {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	repo := NewConversationRepository(db)
	require.NoError(t, repo.AutoMigrate())
	return repo
}

func seedConversation(t *testing.T, repo *GormConversationRepository, id string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, repo.Create(context.Background(), &chat.Conversation{
		ID:           id,
		UserID:       "u-" + id,
		AstrologerID: "a-" + id,
		Status:       chat.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
}

func TestCreateRejectsDuplicatePair(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedConversation(t, repo, "c1")

	err := repo.Create(ctx, &chat.Conversation{ID: "c2", UserID: "u-c1", AstrologerID: "a-c1", Status: chat.StatusActive})
	assert.ErrorIs(t, err, chat_errors.ErrAlreadyExists)

	got, err := repo.GetByPair(ctx, "u-c1", "a-c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
}

func TestAppendKeepsInsertionOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedConversation(t, repo, "c1")

	base := time.Now()
	for i, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, repo.AppendMessage(ctx, "c1", chat.Message{
			ID:        id,
			SenderID:  "u-c1",
			Content:   id,
			Kind:      chat.KindText,
			CreatedAt: base.Add(time.Duration(-i) * time.Second),
		}))
	}

	got, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "m1", got.Messages[0].ID)
	assert.Equal(t, "m3", got.Messages[2].ID)

	err = repo.AppendMessage(ctx, "missing", chat.Message{ID: "m4", Kind: chat.KindText, CreatedAt: base})
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
}

func TestMessageMutations(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedConversation(t, repo, "c1")
	require.NoError(t, repo.AppendMessage(ctx, "c1", chat.Message{ID: "m1", SenderID: "u-c1", Content: "hi", Kind: chat.KindText, CreatedAt: time.Now()}))
	require.NoError(t, repo.AppendMessage(ctx, "c1", chat.Message{ID: "m2", SenderID: "a-c1", Content: "yo", Kind: chat.KindText, ReplyTo: "m1", CreatedAt: time.Now()}))

	require.NoError(t, repo.UpdateMessageContent(ctx, "c1", "m1", "hello"))
	require.NoError(t, repo.SetReaction(ctx, "c1", "m1", "a-c1", "❤"))
	require.NoError(t, repo.SetReaction(ctx, "c1", "m1", "u-c1", "👍"))
	require.NoError(t, repo.ClearReaction(ctx, "c1", "m1", "u-c1"))

	got, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	m := got.FindMessage("m1")
	require.NotNil(t, m)
	assert.Equal(t, "hello", m.Content)
	assert.Equal(t, map[string]string{"a-c1": "❤"}, m.Reactions)

	require.NoError(t, repo.RemoveMessage(ctx, "c1", "m1"))
	assert.ErrorIs(t, repo.RemoveMessage(ctx, "c1", "m1"), chat_errors.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateMessageContent(ctx, "c1", "m1", "x"), chat_errors.ErrNotFound)
	assert.ErrorIs(t, repo.SetReaction(ctx, "c1", "m1", "a-c1", "❤"), chat_errors.ErrNotFound)

	got, err = repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "m2", got.Messages[0].ID)
	assert.Equal(t, "m1", got.Messages[0].ReplyTo, "reply reference survives target deletion")
}

func TestSetLastReadAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedConversation(t, repo, "c1")
	seedConversation(t, repo, "c2")

	mark := time.Now()
	require.NoError(t, repo.SetLastRead(ctx, "c1", chat.RoleAstrologer, mark))
	assert.ErrorIs(t, repo.SetLastRead(ctx, "c1", chat.RoleAdmin, mark), chat_errors.ErrInvalidInput)
	assert.ErrorIs(t, repo.SetLastRead(ctx, "nope", chat.RoleUser, mark), chat_errors.ErrNotFound)

	list, err := repo.ListByParticipant(ctx, "a-c1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].AstrologerLastRead)
	assert.WithinDuration(t, mark, *list[0].AstrologerLastRead, time.Millisecond)
	assert.Nil(t, list[0].UserLastRead)
}

func TestDeleteCascadesMessages(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedConversation(t, repo, "c1")
	require.NoError(t, repo.AppendMessage(ctx, "c1", chat.Message{ID: "m1", SenderID: "u-c1", Content: "hi", Kind: chat.KindText, CreatedAt: time.Now()}))

	require.NoError(t, repo.Delete(ctx, "c1"))
	_, err := repo.GetByID(ctx, "c1")
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)

	var orphans int64
	require.NoError(t, repo.db.Model(&messageRecord{}).Where("conversation_id = ?", "c1").Count(&orphans).Error)
	assert.Zero(t, orphans)

	assert.ErrorIs(t, repo.Delete(ctx, "c1"), chat_errors.ErrNotFound)
}

func TestProfileRepository(t *testing.T) {
	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	repo := NewProfileRepository(db)
	require.NoError(t, repo.AutoMigrate())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, chat.Profile{ID: "a1", Name: "Guru", Role: chat.RoleAstrologer}))
	require.NoError(t, repo.Upsert(ctx, chat.Profile{ID: "a1", Name: "Guru Ji", Avatar: "/g.png", Role: chat.RoleAstrologer}))

	p, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Guru Ji", p.Name)

	dir, err := repo.GetMany(ctx, []string{"a1", "ghost"})
	require.NoError(t, err)
	assert.Len(t, dir, 1)

	_, err = repo.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
}

func TestOpenSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, &config.Config{StoreDriver: config.StoreSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(ctx) })

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migrate is idempotent")
	require.NoError(t, store.Conversations.Ping(ctx))

	_, err = OpenStore(ctx, &config.Config{StoreDriver: "cassandra"})
	assert.Error(t, err)
}
