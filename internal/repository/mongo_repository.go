package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jyotish-chat/internal/domain/chat"
	chat_errors "jyotish-chat/pkg/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	conversationCollection = "chats"
	profileCollection      = "users"
)

// conversationDocument embeds its messages so each store call is one document update.
type conversationDocument struct {
	ID                 string            `bson:"_id"`
	UserID             string            `bson:"userId"`
	AstrologerID       string            `bson:"astrologerId"`
	Messages           []messageDocument `bson:"messages"`
	Status             string            `bson:"status"`
	UserLastRead       *time.Time        `bson:"userLastRead,omitempty"`
	AstrologerLastRead *time.Time        `bson:"astrologerLastRead,omitempty"`
	CreatedAt          time.Time         `bson:"createdAt"`
	UpdatedAt          time.Time         `bson:"updatedAt"`
}

type messageDocument struct {
	ID        string            `bson:"_id"`
	Sender    string            `bson:"sender,omitempty"`
	Content   string            `bson:"content"`
	Type      string            `bson:"type"`
	ReplyTo   string            `bson:"replyTo,omitempty"`
	Reactions map[string]string `bson:"reactions"`
	CreatedAt time.Time         `bson:"createdAt"`
}

type MongoConversationRepository struct {
	collection *mongo.Collection
}

func NewMongoConversationRepository(db *mongo.Database) *MongoConversationRepository {
	return &MongoConversationRepository{collection: db.Collection(conversationCollection)}
}

// EnsureIndexes installs the (userId, astrologerId) uniqueness constraint.
func (r *MongoConversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "astrologerId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_user_astrologer"),
		},
		{
			Keys: bson.D{{Key: "astrologerId", Value: 1}},
		},
	})
	return err
}

func (r *MongoConversationRepository) Create(ctx context.Context, c *chat.Conversation) error {
	doc := conversationDocument{
		ID:           c.ID,
		UserID:       c.UserID,
		AstrologerID: c.AstrologerID,
		Messages:     []messageDocument{},
		Status:       string(c.Status),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return chat_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *MongoConversationRepository) GetByID(ctx context.Context, id string) (chat.Conversation, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoConversationRepository) GetByPair(ctx context.Context, userID, astrologerID string) (chat.Conversation, error) {
	return r.findOne(ctx, bson.M{"userId": userID, "astrologerId": astrologerID})
}

func (r *MongoConversationRepository) ListByParticipant(ctx context.Context, identityID string) ([]chat.Conversation, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"userId": identityID},
		bson.M{"astrologerId": identityID},
	}}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []conversationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]chat.Conversation, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// Delete drops the conversation document; its messages go with it.
func (r *MongoConversationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *MongoConversationRepository) AppendMessage(ctx context.Context, conversationID string, m chat.Message) error {
	doc := messageDocument{
		ID:        m.ID,
		Sender:    m.SenderID,
		Content:   m.Content,
		Type:      string(m.Kind),
		ReplyTo:   m.ReplyTo,
		Reactions: map[string]string{},
		CreatedAt: m.CreatedAt,
	}
	for k, v := range m.Reactions {
		doc.Reactions[k] = v
	}
	return r.updateOne(ctx, bson.M{"_id": conversationID}, bson.M{
		"$push": bson.M{"messages": doc},
		"$set":  bson.M{"updatedAt": m.CreatedAt},
	})
}

func (r *MongoConversationRepository) UpdateMessageContent(ctx context.Context, conversationID, messageID, content string) error {
	return r.updateOne(ctx, messageFilter(conversationID, messageID), bson.M{
		"$set": bson.M{"messages.$.content": content, "updatedAt": time.Now()},
	})
}

func (r *MongoConversationRepository) RemoveMessage(ctx context.Context, conversationID, messageID string) error {
	return r.updateOne(ctx, messageFilter(conversationID, messageID), bson.M{
		"$pull": bson.M{"messages": bson.M{"_id": messageID}},
	})
}

func (r *MongoConversationRepository) SetReaction(ctx context.Context, conversationID, messageID, identityID, symbol string) error {
	return r.updateOne(ctx, messageFilter(conversationID, messageID), bson.M{
		"$set": bson.M{"messages.$.reactions." + identityID: symbol},
	})
}

func (r *MongoConversationRepository) ClearReaction(ctx context.Context, conversationID, messageID, identityID string) error {
	return r.updateOne(ctx, messageFilter(conversationID, messageID), bson.M{
		"$unset": bson.M{"messages.$.reactions." + identityID: ""},
	})
}

func (r *MongoConversationRepository) SetLastRead(ctx context.Context, conversationID string, role chat.Role, at time.Time) error {
	var field string
	switch role {
	case chat.RoleUser:
		field = "userLastRead"
	case chat.RoleAstrologer:
		field = "astrologerLastRead"
	default:
		return fmt.Errorf("%w: role %q has no read mark", chat_errors.ErrInvalidInput, role)
	}
	return r.updateOne(ctx, bson.M{"_id": conversationID}, bson.M{"$set": bson.M{field: at}})
}

func (r *MongoConversationRepository) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, nil)
}

func (r *MongoConversationRepository) findOne(ctx context.Context, filter bson.M) (chat.Conversation, error) {
	var doc conversationDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return chat.Conversation{}, chat_errors.ErrNotFound
		}
		return chat.Conversation{}, err
	}
	return doc.toDomain(), nil
}

func (r *MongoConversationRepository) updateOne(ctx context.Context, filter, update bson.M) error {
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func messageFilter(conversationID, messageID string) bson.M {
	return bson.M{"_id": conversationID, "messages._id": messageID}
}

func (d conversationDocument) toDomain() chat.Conversation {
	c := chat.Conversation{
		ID:                 d.ID,
		UserID:             d.UserID,
		AstrologerID:       d.AstrologerID,
		Status:             chat.Status(d.Status),
		UserLastRead:       d.UserLastRead,
		AstrologerLastRead: d.AstrologerLastRead,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
		Messages:           make([]chat.Message, 0, len(d.Messages)),
	}
	for _, m := range d.Messages {
		reactions := m.Reactions
		if reactions == nil {
			reactions = map[string]string{}
		}
		c.Messages = append(c.Messages, chat.Message{
			ID:        m.ID,
			SenderID:  m.Sender,
			Content:   m.Content,
			Kind:      chat.Kind(m.Type),
			ReplyTo:   m.ReplyTo,
			Reactions: reactions,
			CreatedAt: m.CreatedAt,
		})
	}
	return c
}

type profileDocument struct {
	ID     string `bson:"_id"`
	Name   string `bson:"name"`
	Avatar string `bson:"avatar,omitempty"`
	Role   string `bson:"role"`
}

type MongoProfileRepository struct {
	collection *mongo.Collection
}

func NewMongoProfileRepository(db *mongo.Database) *MongoProfileRepository {
	return &MongoProfileRepository{collection: db.Collection(profileCollection)}
}

func (r *MongoProfileRepository) GetByID(ctx context.Context, id string) (chat.Profile, error) {
	var doc profileDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return chat.Profile{}, chat_errors.ErrNotFound
		}
		return chat.Profile{}, err
	}
	return doc.toDomain(), nil
}

func (r *MongoProfileRepository) GetMany(ctx context.Context, ids []string) (chat.ProfileDirectory, error) {
	dir := chat.ProfileDirectory{}
	if len(ids) == 0 {
		return dir, nil
	}
	projection := options.Find().SetProjection(bson.M{"name": 1, "avatar": 1, "role": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, projection)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []profileDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		dir[d.ID] = d.toDomain()
	}
	return dir, nil
}

func (r *MongoProfileRepository) Upsert(ctx context.Context, p chat.Profile) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": p.ID},
		bson.M{"$set": bson.M{"name": p.Name, "avatar": p.Avatar, "role": string(p.Role)}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (d profileDocument) toDomain() chat.Profile {
	return chat.Profile{ID: d.ID, Name: d.Name, Avatar: d.Avatar, Role: chat.Role(d.Role)}
}
