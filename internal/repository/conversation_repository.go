package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jyotish-chat/internal/domain/chat"
	chat_errors "jyotish-chat/pkg/errors"

	"gorm.io/gorm"
)

type conversationRecord struct {
	ID                 string `gorm:"primaryKey;size:64"`
	UserID             string `gorm:"size:64;not null;uniqueIndex:idx_conversation_pair"`
	AstrologerID       string `gorm:"size:64;not null;uniqueIndex:idx_conversation_pair;index"`
	Status             string `gorm:"size:16;not null"`
	UserLastRead       *time.Time
	AstrologerLastRead *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Messages           []messageRecord `gorm:"foreignKey:ConversationID;references:ID"`
}

func (conversationRecord) TableName() string {
	return "conversations"
}

// messageRecord keeps insertion order through Seq.
type messageRecord struct {
	Seq            int64             `gorm:"primaryKey;autoIncrement"`
	ID             string            `gorm:"size:64;not null;uniqueIndex"`
	ConversationID string            `gorm:"size:64;not null;index"`
	SenderID       string            `gorm:"size:64"`
	Content        string            `gorm:"type:text;not null"`
	Kind           string            `gorm:"size:16;not null"`
	ReplyTo        string            `gorm:"size:64"`
	Reactions      map[string]string `gorm:"type:text;serializer:json"`
	CreatedAt      time.Time
}

func (messageRecord) TableName() string {
	return "messages"
}

type GormConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *GormConversationRepository {
	return &GormConversationRepository{db: db}
}

// AutoMigrate creates the conversation tables and the pair uniqueness index.
func (r *GormConversationRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&conversationRecord{}, &messageRecord{})
}

func (r *GormConversationRepository) Create(ctx context.Context, c *chat.Conversation) error {
	rec := conversationRecord{
		ID:           c.ID,
		UserID:       c.UserID,
		AstrologerID: c.AstrologerID,
		Status:       string(c.Status),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Omit("Messages").Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return chat_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *GormConversationRepository) GetByID(ctx context.Context, id string) (chat.Conversation, error) {
	var rec conversationRecord
	err := r.withMessages(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Conversation{}, chat_errors.ErrNotFound
		}
		return chat.Conversation{}, err
	}
	return rec.toDomain(), nil
}

func (r *GormConversationRepository) GetByPair(ctx context.Context, userID, astrologerID string) (chat.Conversation, error) {
	var rec conversationRecord
	err := r.withMessages(ctx).
		Where("user_id = ? AND astrologer_id = ?", userID, astrologerID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Conversation{}, chat_errors.ErrNotFound
		}
		return chat.Conversation{}, err
	}
	return rec.toDomain(), nil
}

func (r *GormConversationRepository) ListByParticipant(ctx context.Context, identityID string) ([]chat.Conversation, error) {
	var recs []conversationRecord
	err := r.withMessages(ctx).
		Where("user_id = ? OR astrologer_id = ?", identityID, identityID).
		Order("updated_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]chat.Conversation, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

// Delete removes the conversation and its messages in one transaction.
func (r *GormConversationRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&messageRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&conversationRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return chat_errors.ErrNotFound
		}
		return nil
	})
}

func (r *GormConversationRepository) AppendMessage(ctx context.Context, conversationID string, m chat.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&conversationRecord{}).
			Where("id = ?", conversationID).
			Update("updated_at", m.CreatedAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return chat_errors.ErrNotFound
		}
		rec := newMessageRecord(conversationID, m)
		return tx.Create(&rec).Error
	})
}

func (r *GormConversationRepository) UpdateMessageContent(ctx context.Context, conversationID, messageID, content string) error {
	res := r.db.WithContext(ctx).Model(&messageRecord{}).
		Where("conversation_id = ? AND id = ?", conversationID, messageID).
		Update("content", content)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *GormConversationRepository) RemoveMessage(ctx context.Context, conversationID, messageID string) error {
	res := r.db.WithContext(ctx).
		Where("conversation_id = ? AND id = ?", conversationID, messageID).
		Delete(&messageRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *GormConversationRepository) SetReaction(ctx context.Context, conversationID, messageID, identityID, symbol string) error {
	return r.mutateReactions(ctx, conversationID, messageID, func(reactions map[string]string) {
		reactions[identityID] = symbol
	})
}

func (r *GormConversationRepository) ClearReaction(ctx context.Context, conversationID, messageID, identityID string) error {
	return r.mutateReactions(ctx, conversationID, messageID, func(reactions map[string]string) {
		delete(reactions, identityID)
	})
}

func (r *GormConversationRepository) SetLastRead(ctx context.Context, conversationID string, role chat.Role, at time.Time) error {
	var column string
	switch role {
	case chat.RoleUser:
		column = "user_last_read"
	case chat.RoleAstrologer:
		column = "astrologer_last_read"
	default:
		return fmt.Errorf("%w: role %q has no read mark", chat_errors.ErrInvalidInput, role)
	}
	res := r.db.WithContext(ctx).Model(&conversationRecord{}).
		Where("id = ?", conversationID).
		UpdateColumn(column, at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *GormConversationRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *GormConversationRepository) withMessages(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	})
}

func (r *GormConversationRepository) mutateReactions(ctx context.Context, conversationID, messageID string, fn func(map[string]string)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec messageRecord
		err := tx.Where("conversation_id = ? AND id = ?", conversationID, messageID).First(&rec).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return chat_errors.ErrNotFound
			}
			return err
		}
		if rec.Reactions == nil {
			rec.Reactions = map[string]string{}
		}
		fn(rec.Reactions)
		return tx.Save(&rec).Error
	})
}

func newMessageRecord(conversationID string, m chat.Message) messageRecord {
	reactions := m.Reactions
	if reactions == nil {
		reactions = map[string]string{}
	}
	return messageRecord{
		ID:             m.ID,
		ConversationID: conversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Kind:           string(m.Kind),
		ReplyTo:        m.ReplyTo,
		Reactions:      reactions,
		CreatedAt:      m.CreatedAt,
	}
}

func (rec conversationRecord) toDomain() chat.Conversation {
	c := chat.Conversation{
		ID:                 rec.ID,
		UserID:             rec.UserID,
		AstrologerID:       rec.AstrologerID,
		Status:             chat.Status(rec.Status),
		UserLastRead:       rec.UserLastRead,
		AstrologerLastRead: rec.AstrologerLastRead,
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
		Messages:           make([]chat.Message, 0, len(rec.Messages)),
	}
	for _, m := range rec.Messages {
		reactions := m.Reactions
		if reactions == nil {
			reactions = map[string]string{}
		}
		c.Messages = append(c.Messages, chat.Message{
			ID:        m.ID,
			SenderID:  m.SenderID,
			Content:   m.Content,
			Kind:      chat.Kind(m.Kind),
			ReplyTo:   m.ReplyTo,
			Reactions: reactions,
			CreatedAt: m.CreatedAt,
		})
	}
	return c
}
