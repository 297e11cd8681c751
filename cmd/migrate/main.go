package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"jyotish-chat/config"
	"jyotish-chat/internal/domain/chat"
	"jyotish-chat/internal/repository"
	"jyotish-chat/internal/services"
)

const usage = `
Jyotish Chat - Store CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Create tables (SQL stores) or indexes (mongo)
  status      Show store connection status
  seed-dev    Upsert demo profiles and print access tokens for them

Flags:
  -token-ttl duration   Lifetime of the tokens printed by seed-dev (default 24h)

Examples:
  go run cmd/migrate/main.go up
  STORE_DRIVER=sqlite go run cmd/migrate/main.go seed-dev
`

var devProfiles = []chat.Profile{
	{ID: "dev-user-1", Name: "Asha", Role: chat.RoleUser},
	{ID: "dev-user-2", Name: "Rohan", Role: chat.RoleUser},
	{ID: "dev-astrologer-1", Name: "Pandit Verma", Role: chat.RoleAstrologer},
	{ID: "dev-admin-1", Name: "Support", Role: chat.RoleAdmin},
}

func main() {
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of tokens printed by seed-dev")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	ctx := context.Background()

	store, err := repository.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer store.Close(ctx)

	switch command {
	case "up":
		runMigrationsUp(ctx, store)
	case "status":
		showStatus(ctx, store)
	case "seed-dev":
		runMigrationsUp(ctx, store)
		runSeedDevelopment(ctx, store, services.NewAuthService(cfg), *tokenTTL)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(ctx context.Context, store *repository.Store) {
	log.Printf("🚀 Migrating %s store...", store.Driver)

	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Println("✅ Migrations completed successfully!")
}

func showStatus(ctx context.Context, store *repository.Store) {
	log.Printf("🔍 Checking %s store...", store.Driver)

	if err := store.Conversations.Ping(ctx); err != nil {
		log.Fatalf("❌ Store connection failed: %v", err)
	}
	log.Println("✅ Store connection: OK")
}

func runSeedDevelopment(ctx context.Context, store *repository.Store, auth *services.AuthService, ttl time.Duration) {
	log.Println("🌱 Seeding demo profiles...")

	for _, p := range devProfiles {
		if err := store.Profiles.Upsert(ctx, p); err != nil {
			log.Fatalf("❌ Seeding %s failed: %v", p.ID, err)
		}
		token, err := auth.IssueAccessToken(chat.Identity{ID: p.ID, Role: p.Role}, ttl)
		if err != nil {
			log.Fatalf("❌ Issuing token for %s failed: %v", p.ID, err)
		}
		log.Printf("   - %-10s %-16s %s", p.Role, p.ID, token)
	}

	log.Println("✅ Development seeding completed!")
}
