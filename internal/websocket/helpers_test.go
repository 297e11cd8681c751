package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"jyotish-chat/internal/domain/chat"
	"jyotish-chat/internal/presence"
	"jyotish-chat/internal/repository"
	"jyotish-chat/internal/services"
	"jyotish-chat/pkg/database"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type received struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Ack   *int64          `json:"ack"`
}

type stack struct {
	hub       *Hub
	registry  *presence.Registry
	router    *Router
	lifecycle *Handler
	chat      *ChatHandler
	calls     *CallRelay
	convs     *services.ConversationService
	repo      *repository.GormConversationRepository
}

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func newStack(t *testing.T, gen services.Generator) *stack {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	repo := repository.NewConversationRepository(db)
	require.NoError(t, repo.AutoMigrate())
	profiles := repository.NewProfileRepository(db)
	require.NoError(t, profiles.AutoMigrate())
	for _, p := range []chat.Profile{
		{ID: "U", Name: "Sam", Role: chat.RoleUser},
		{ID: "A", Name: "Guru", Role: chat.RoleAstrologer},
		{ID: "X", Name: "Other", Role: chat.RoleUser},
	} {
		require.NoError(t, profiles.Upsert(context.Background(), p))
	}

	log := NewWebSocketLogger(zap.NewNop())
	convs := services.NewConversationService(repo, profiles, nil)
	summaries := services.NewSummaryService(convs, gen, time.Second, nil)

	s := &stack{
		hub:      NewHub(),
		registry: presence.NewRegistry(),
		convs:    convs,
		repo:     repo,
	}
	s.router = NewRouter(s.hub, log)
	s.lifecycle = NewHandler(nil, s.hub, s.registry, s.router, nil, log)
	s.chat = NewChatHandler(s.hub, convs, summaries, nil, log)
	s.chat.RegisterRoutes(s.router)
	s.calls = NewCallRelay(s.hub, s.registry, nil, log)
	s.calls.RegisterRoutes(s.router)
	return s
}

// connect attaches a socketless client and discards the roster frames it
// caused on every already connected client.
func (s *stack) connect(t *testing.T, id string, role chat.Role, others ...*Client) *Client {
	t.Helper()
	c := NewClient(nil, chat.Identity{ID: id, Role: role})
	s.lifecycle.Attach(c)
	drain(c)
	for _, o := range others {
		drain(o)
	}
	return c
}

func (s *stack) openChat(t *testing.T) string {
	t.Helper()
	conv, err := s.convs.FindOrCreate(context.Background(), "U", "A")
	require.NoError(t, err)
	return conv.ID
}

func (s *stack) emit(c *Client, event string, data interface{}, ack *int64) {
	raw, _ := json.Marshal(data)
	s.router.Dispatch(services.WithIdentity(context.Background(), c.Identity), c, InboundFrame{Event: event, Data: raw, Ack: ack})
}

func (s *stack) join(t *testing.T, c *Client, chatID string) {
	t.Helper()
	s.emit(c, EventJoinRoom, map[string]string{"chatId": chatID}, nil)
	require.True(t, c.InRoom(chatID))
}

func ackID(n int64) *int64 { return &n }

func drain(c *Client) []received {
	var out []received
	for {
		select {
		case raw, ok := <-c.Send:
			if !ok {
				return out
			}
			var f received
			if err := json.Unmarshal(raw, &f); err == nil {
				out = append(out, f)
			}
		default:
			return out
		}
	}
}

func only(t *testing.T, c *Client, event string) received {
	t.Helper()
	frames := drain(c)
	require.Len(t, frames, 1, "frames: %+v", frames)
	require.Equal(t, event, frames[0].Event)
	return frames[0]
}

func decodeData(t *testing.T, f received, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(f.Data, v))
}
