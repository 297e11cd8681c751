package repository

import (
	"context"
	"fmt"

	"jyotish-chat/config"
	"jyotish-chat/pkg/database"

	"gorm.io/gorm"
)

// Store bundles the repositories of one configured backend.
type Store struct {
	Driver        string
	Conversations ConversationRepository
	Profiles      ProfileRepository

	migrate func(ctx context.Context) error
	close   func(ctx context.Context) error
}

// OpenStore connects the backend selected by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		db, err := database.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		convs := NewMongoConversationRepository(db)
		return &Store{
			Driver:        cfg.StoreDriver,
			Conversations: convs,
			Profiles:      NewMongoProfileRepository(db),
			migrate:       convs.EnsureIndexes,
			close:         func(ctx context.Context) error { return db.Client().Disconnect(ctx) },
		}, nil

	case config.StorePostgres:
		db, err := database.OpenPostgres(cfg)
		if err != nil {
			return nil, err
		}
		return gormStore(cfg.StoreDriver, db), nil

	case config.StoreSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath, cfg)
		if err != nil {
			return nil, err
		}
		return gormStore(cfg.StoreDriver, db), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func gormStore(driver string, db *gorm.DB) *Store {
	convs := NewConversationRepository(db)
	profiles := NewProfileRepository(db)
	return &Store{
		Driver:        driver,
		Conversations: convs,
		Profiles:      profiles,
		migrate: func(context.Context) error {
			if err := convs.AutoMigrate(); err != nil {
				return err
			}
			return profiles.AutoMigrate()
		},
		close: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
}

// Migrate creates tables or indexes. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	return s.migrate(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.close(ctx)
}
