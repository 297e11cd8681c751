package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jyotish-chat/internal/domain/chat"
	"jyotish-chat/internal/proxy"
	"jyotish-chat/internal/repository"
	chat_errors "jyotish-chat/pkg/errors"

	"github.com/google/uuid"
)

// ConversationService owns every conversation and message mutation. Callers pass
// the verified identity; authorization happens here, after the conversation is
// loaded and before anything is written.
type ConversationService struct {
	repo     repository.ConversationRepository
	profiles repository.ProfileRepository
	access   *proxy.AccessControl
	now      func() time.Time
	newID    func() string
}

func NewConversationService(repo repository.ConversationRepository, profiles repository.ProfileRepository, access *proxy.AccessControl) *ConversationService {
	if access == nil {
		access = proxy.NewAccessControl()
	}
	return &ConversationService{
		repo:     repo,
		profiles: profiles,
		access:   access,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// UserDetails is the birth data a user shares when opening a consultation.
type UserDetails struct {
	Name   string `json:"name"`
	Gender string `json:"gender"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Place  string `json:"place"`
}

type SendMessageInput struct {
	ConversationID string
	Content        string
	ReplyTo        string
}

func (in SendMessageInput) Validate() error {
	if strings.TrimSpace(in.ConversationID) == "" {
		return fmt.Errorf("%w: chatId is required", chat_errors.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Content) == "" {
		return fmt.Errorf("%w: message is required", chat_errors.ErrInvalidInput)
	}
	return nil
}

// FindOrCreate returns the conversation for the pair, creating an empty one
// when none exists. A lost creation race is resolved by re-reading the winner.
func (s *ConversationService) FindOrCreate(ctx context.Context, userID, astrologerID string) (chat.Conversation, error) {
	if userID == "" || astrologerID == "" {
		return chat.Conversation{}, fmt.Errorf("%w: userId and astrologerId are required", chat_errors.ErrInvalidInput)
	}
	if userID == astrologerID {
		return chat.Conversation{}, fmt.Errorf("%w: participants must differ", chat_errors.ErrInvalidInput)
	}

	existing, err := s.repo.GetByPair(ctx, userID, astrologerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, chat_errors.ErrNotFound) {
		return chat.Conversation{}, err
	}

	now := s.timestamp()
	conv := chat.Conversation{
		ID:           s.newID(),
		UserID:       userID,
		AstrologerID: astrologerID,
		Status:       chat.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, &conv); err != nil {
		if errors.Is(err, chat_errors.ErrAlreadyExists) {
			return s.repo.GetByPair(ctx, userID, astrologerID)
		}
		return chat.Conversation{}, err
	}
	return conv, nil
}

// InitChat opens (or reopens) the consultation between the calling user and an
// astrologer and records the user's details as a system message.
func (s *ConversationService) InitChat(ctx context.Context, caller chat.Identity, astrologerID string, details UserDetails) (chat.Conversation, chat.Message, error) {
	if caller.Role != chat.RoleUser {
		return chat.Conversation{}, chat.Message{}, fmt.Errorf("%w: only users can start a consultation", chat_errors.ErrForbidden)
	}
	if strings.TrimSpace(astrologerID) == "" {
		return chat.Conversation{}, chat.Message{}, fmt.Errorf("%w: astrologerId is required", chat_errors.ErrInvalidInput)
	}

	astrologer, err := s.profiles.GetByID(ctx, astrologerID)
	if err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			return chat.Conversation{}, chat.Message{}, fmt.Errorf("%w: astrologer user not found", chat_errors.ErrNotFound)
		}
		return chat.Conversation{}, chat.Message{}, err
	}

	conv, err := s.FindOrCreate(ctx, caller.ID, astrologerID)
	if err != nil {
		return chat.Conversation{}, chat.Message{}, err
	}

	msg, err := s.AppendMessage(ctx, conv.ID, chat.Message{
		SenderID: caller.ID,
		Content:  introduction(astrologer.Name, details),
		Kind:     chat.KindSystem,
	})
	if err != nil {
		return chat.Conversation{}, chat.Message{}, err
	}
	conv.Messages = append(conv.Messages, msg)
	return conv, msg, nil
}

func introduction(astrologerName string, d UserDetails) string {
	return fmt.Sprintf("Hi %s,\nBelow are my details:\nName: %s\nGender: %s\nDOB: %s\nTOB: %s\nPOB: %s",
		astrologerName, d.Name, d.Gender, d.Date, d.Time, d.Place)
}

// AppendMessage stamps m with a fresh id and creation time and stores it at the
// end of the conversation.
func (s *ConversationService) AppendMessage(ctx context.Context, conversationID string, m chat.Message) (chat.Message, error) {
	m.ID = s.newID()
	m.CreatedAt = s.timestamp()
	if m.Kind == "" {
		m.Kind = chat.KindText
	}
	if m.Reactions == nil {
		m.Reactions = map[string]string{}
	}
	if err := s.repo.AppendMessage(ctx, conversationID, m); err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

// SendMessage validates, authorizes and appends a text message, returning it
// enriched with sender data and the resolved reply target.
func (s *ConversationService) SendMessage(ctx context.Context, sender chat.Identity, in SendMessageInput) (chat.MessageView, error) {
	if err := in.Validate(); err != nil {
		return chat.MessageView{}, err
	}

	conv, err := s.repo.GetByID(ctx, in.ConversationID)
	if err != nil {
		return chat.MessageView{}, err
	}
	if err := s.access.CanSendMessage(sender, &conv); err != nil {
		return chat.MessageView{}, err
	}
	if in.ReplyTo != "" && conv.FindMessage(in.ReplyTo) == nil {
		return chat.MessageView{}, fmt.Errorf("%w: reply target is not part of this chat", chat_errors.ErrInvalidInput)
	}

	profile, err := s.profiles.GetByID(ctx, sender.ID)
	if err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			return chat.MessageView{}, fmt.Errorf("%w: user not found", chat_errors.ErrNotFound)
		}
		return chat.MessageView{}, err
	}

	msg, err := s.AppendMessage(ctx, conv.ID, chat.Message{
		SenderID: sender.ID,
		Content:  in.Content,
		Kind:     chat.KindText,
		ReplyTo:  in.ReplyTo,
	})
	if err != nil {
		return chat.MessageView{}, err
	}
	conv.Messages = append(conv.Messages, msg)

	ids := []string{sender.ID}
	if target := conv.FindMessage(msg.ReplyTo); target != nil && target.SenderID != "" {
		ids = append(ids, target.SenderID)
	}
	dir, err := s.profiles.GetMany(ctx, ids)
	if err != nil {
		return chat.MessageView{}, err
	}
	dir[sender.ID] = profile

	return conv.View(&conv.Messages[len(conv.Messages)-1], dir), nil
}

// EditMessage replaces the content of a message the sender wrote less than
// chat.ModifyWindow ago.
func (s *ConversationService) EditMessage(ctx context.Context, editor chat.Identity, conversationID, messageID, content string) (chat.MessageView, error) {
	if conversationID == "" || messageID == "" {
		return chat.MessageView{}, fmt.Errorf("%w: chatId and messageId are required", chat_errors.ErrInvalidInput)
	}
	if strings.TrimSpace(content) == "" {
		return chat.MessageView{}, fmt.Errorf("%w: newContent is required", chat_errors.ErrInvalidInput)
	}

	conv, msg, err := s.loadMessage(ctx, conversationID, messageID)
	if err != nil {
		return chat.MessageView{}, err
	}
	if err := s.access.CanEditMessage(editor, msg, s.now()); err != nil {
		return chat.MessageView{}, err
	}
	if err := s.repo.UpdateMessageContent(ctx, conversationID, messageID, content); err != nil {
		return chat.MessageView{}, err
	}
	msg.Content = content

	dir, err := s.profiles.GetMany(ctx, conv.SenderIDs())
	if err != nil {
		return chat.MessageView{}, err
	}
	return conv.View(msg, dir), nil
}

// DeleteMessage removes a message. Senders may always delete their own messages;
// any participant may delete within chat.ModifyWindow.
func (s *ConversationService) DeleteMessage(ctx context.Context, requester chat.Identity, conversationID, messageID string) error {
	if conversationID == "" || messageID == "" {
		return fmt.Errorf("%w: chatId and messageId are required", chat_errors.ErrInvalidInput)
	}
	conv, msg, err := s.loadMessage(ctx, conversationID, messageID)
	if err != nil {
		return err
	}
	if err := s.access.CanDeleteMessage(requester, &conv, msg, s.now()); err != nil {
		return err
	}
	return s.repo.RemoveMessage(ctx, conversationID, messageID)
}

// SetReaction toggles the reactor's symbol on a message and returns the
// message's reactions after the change.
func (s *ConversationService) SetReaction(ctx context.Context, reactor chat.Identity, conversationID, messageID, symbol string) (map[string]string, error) {
	if conversationID == "" || messageID == "" || symbol == "" {
		return nil, fmt.Errorf("%w: chatId, messageId and emoji are required", chat_errors.ErrInvalidInput)
	}
	conv, msg, err := s.loadMessage(ctx, conversationID, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanReact(reactor, &conv); err != nil {
		return nil, err
	}

	reactions := make(map[string]string, len(msg.Reactions)+1)
	for k, v := range msg.Reactions {
		reactions[k] = v
	}

	next, set := chat.ToggleReaction(reactions[reactor.ID], symbol)
	if set {
		err = s.repo.SetReaction(ctx, conversationID, messageID, reactor.ID, next)
		reactions[reactor.ID] = next
	} else {
		err = s.repo.ClearReaction(ctx, conversationID, messageID, reactor.ID)
		delete(reactions, reactor.ID)
	}
	if err != nil {
		return nil, err
	}
	return reactions, nil
}

// ListForIdentity returns every conversation identity takes part in, newest
// activity first, each with its unread count.
func (s *ConversationService) ListForIdentity(ctx context.Context, identity chat.Identity) ([]chat.ConversationSummary, error) {
	convs, err := s.repo.ListByParticipant(ctx, identity.ID)
	if err != nil {
		return nil, err
	}

	var ids []string
	for i := range convs {
		ids = append(ids, convs[i].UserID, convs[i].AstrologerID)
	}
	dir, err := s.profiles.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]chat.ConversationSummary, 0, len(convs))
	for i := range convs {
		out = append(out, convs[i].Summary(identity.ID, dir))
	}
	return out, nil
}

// GetWithResolvedReplies returns the full message log of a conversation the
// requester takes part in. Replies to deleted messages resolve to nil.
func (s *ConversationService) GetWithResolvedReplies(ctx context.Context, requester chat.Identity, conversationID string) ([]chat.MessageView, error) {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanViewConversation(requester, &conv); err != nil {
		return nil, err
	}

	dir, err := s.profiles.GetMany(ctx, conv.SenderIDs())
	if err != nil {
		return nil, err
	}

	out := make([]chat.MessageView, 0, len(conv.Messages))
	for i := range conv.Messages {
		out = append(out, conv.View(&conv.Messages[i], dir))
	}
	return out, nil
}

// MarkRead moves the caller's last-read mark to now.
func (s *ConversationService) MarkRead(ctx context.Context, identity chat.Identity, conversationID string) (time.Time, error) {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return time.Time{}, err
	}
	role, err := s.access.CanMarkRead(identity, &conv)
	if err != nil {
		return time.Time{}, err
	}
	at := s.timestamp()
	if err := s.repo.SetLastRead(ctx, conversationID, role, at); err != nil {
		return time.Time{}, err
	}
	return at, nil
}

// DeleteConversation removes the conversation together with all of its messages.
func (s *ConversationService) DeleteConversation(ctx context.Context, identity chat.Identity, conversationID string) error {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if err := s.access.CanDeleteConversation(identity, &conv); err != nil {
		return err
	}
	return s.repo.Delete(ctx, conversationID)
}

// AuthorizeRoom checks that identity may join the realtime room of a conversation.
func (s *ConversationService) AuthorizeRoom(ctx context.Context, identity chat.Identity, conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("%w: chatId is required", chat_errors.ErrInvalidInput)
	}
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	return s.access.CanJoinRoom(identity, &conv)
}

// Transcript renders the conversation as "<sender>: <content>" lines in order.
func (s *ConversationService) Transcript(ctx context.Context, requester chat.Identity, conversationID string) (string, error) {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if err := s.access.CanViewConversation(requester, &conv); err != nil {
		return "", err
	}
	dir, err := s.profiles.GetMany(ctx, conv.SenderIDs())
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		name := "System"
		if p, ok := dir[m.SenderID]; ok && m.SenderID != "" {
			name = p.Name
		}
		lines = append(lines, name+": "+m.Content)
	}
	return strings.Join(lines, "\n"), nil
}

func (s *ConversationService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *ConversationService) loadMessage(ctx context.Context, conversationID, messageID string) (chat.Conversation, *chat.Message, error) {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return chat.Conversation{}, nil, err
	}
	msg := conv.FindMessage(messageID)
	if msg == nil {
		return chat.Conversation{}, nil, fmt.Errorf("%w: message %s", chat_errors.ErrNotFound, messageID)
	}
	return conv, msg, nil
}

// timestamp is millisecond precision so every store round-trips it unchanged.
func (s *ConversationService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}
