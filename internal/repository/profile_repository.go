package repository

import (
	"context"
	"errors"

	"jyotish-chat/internal/domain/chat"
	chat_errors "jyotish-chat/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type profileRecord struct {
	ID     string `gorm:"primaryKey;size:64"`
	Name   string `gorm:"size:255;not null"`
	Avatar string `gorm:"size:512"`
	Role   string `gorm:"size:16;not null"`
}

func (profileRecord) TableName() string {
	return "users"
}

type GormProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *GormProfileRepository {
	return &GormProfileRepository{db: db}
}

func (r *GormProfileRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&profileRecord{})
}

func (r *GormProfileRepository) GetByID(ctx context.Context, id string) (chat.Profile, error) {
	var rec profileRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Profile{}, chat_errors.ErrNotFound
		}
		return chat.Profile{}, err
	}
	return rec.toDomain(), nil
}

func (r *GormProfileRepository) GetMany(ctx context.Context, ids []string) (chat.ProfileDirectory, error) {
	dir := chat.ProfileDirectory{}
	if len(ids) == 0 {
		return dir, nil
	}
	var recs []profileRecord
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, err
	}
	for _, rec := range recs {
		dir[rec.ID] = rec.toDomain()
	}
	return dir, nil
}

func (r *GormProfileRepository) Upsert(ctx context.Context, p chat.Profile) error {
	rec := profileRecord{ID: p.ID, Name: p.Name, Avatar: p.Avatar, Role: string(p.Role)}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "avatar", "role"}),
	}).Create(&rec).Error
}

func (rec profileRecord) toDomain() chat.Profile {
	return chat.Profile{ID: rec.ID, Name: rec.Name, Avatar: rec.Avatar, Role: chat.Role(rec.Role)}
}
