package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"storefront-backend/config"
	"storefront-backend/database"
	"storefront-backend/internal/repository"
	"storefront-backend/internal/services"
	"storefront-backend/internal/utils"
	"storefront-backend/migrations"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := utils.NewLogger(cfg.LogLevel)
	log.Info("🚀 Initializing storefront database...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, cfg.ConnectionString, cfg.DatabaseName, log)
	if err != nil {
		log.WithError(err).Fatal("❌ Failed to connect to MongoDB")
	}
	defer db.Close(context.Background())

	log.Info("📊 Creating indexes...")
	if err := db.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Fatal("❌ Index creation failed")
	}

	log.Info("🔄 Running migrations...")
	migrator := database.NewMigrationManager(db)
	if err := migrator.RunMigrations(ctx, migrations.All()); err != nil {
		log.WithError(err).Fatal("❌ Migration failed")
	}

	log.Info("👤 Seeding admin account...")
	if err := seedAdmin(ctx, cfg, db, log); err != nil {
		log.WithError(err).Warn("⚠️  Admin account not seeded")
	}

	displayStatus(ctx, migrator, log)
	log.Info("🎉 Initialization completed successfully!")
}

// seedAdmin creates the first admin from ADMIN_EMAIL and ADMIN_PASSWORD.
func seedAdmin(ctx context.Context, cfg *config.Config, db *database.DB, log *logrus.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		log.Info("ℹ️  ADMIN_EMAIL/ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	auth := services.NewAuthService(cfg.JWTSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	admins := services.NewAdminService(repository.NewAdminRepository(db), auth, log)

	created, err := admins.Seed(ctx, "", cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		log.WithField("email", utils.NormalizeEmail(cfg.AdminEmail)).Info("✅ Admin account created")
	} else {
		log.Info("ℹ️  Admin account already exists")
	}
	return nil
}

func displayStatus(ctx context.Context, migrator *database.MigrationManager, log *logrus.Logger) {
	applied, err := migrator.AppliedMigrations(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to get migration status")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("📊 STOREFRONT DATABASE STATUS")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("🔄 Migrations: %d completed\n", len(applied))
	for _, name := range applied {
		fmt.Printf("   ✅ %s\n", name)
	}
	fmt.Println(strings.Repeat("=", 50))
}
