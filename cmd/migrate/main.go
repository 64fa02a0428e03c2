package main

import (
	"github.com/sparewise/roundup-wallet/internal/education"
	"github.com/sparewise/roundup-wallet/internal/key"
	"github.com/sparewise/roundup-wallet/internal/ledger"
	"github.com/sparewise/roundup-wallet/internal/payment"
	"github.com/sparewise/roundup-wallet/internal/user"
	"github.com/sparewise/roundup-wallet/pkg/config"
	"github.com/sparewise/roundup-wallet/pkg/database"
	"github.com/sparewise/roundup-wallet/pkg/logger"
	"gorm.io/gorm"
)

// Migrates both stores. The mirror only carries the ledger tables; users,
// keys, intents and scores live on the primary alone.
func main() {
	cfg := config.LoadConfig()

	db, err := database.Connect(cfg.DBUrl)
	if err != nil {
		logger.Fatal("Primary database connection failed", logger.WithError(err))
	}
	defer database.Close(db)

	if err := migratePrimary(db); err != nil {
		logger.Fatal("Primary migration failed", logger.WithError(err))
	}
	logger.Info("Primary store migrated")

	mirrorDB, err := database.Connect(cfg.MirrorDBUrl)
	if err != nil {
		logger.Fatal("Mirror database connection failed", logger.WithError(err))
	}
	defer database.Close(mirrorDB)

	if err := migrateMirror(mirrorDB); err != nil {
		logger.Fatal("Mirror migration failed", logger.WithError(err))
	}
	logger.Info("Mirror store migrated")
}

func migratePrimary(db *gorm.DB) error {
	return db.AutoMigrate(
		&user.User{},
		&key.APIKey{},
		&ledger.Wallet{},
		&ledger.Transaction{},
		&payment.Intent{},
		&education.EduScore{},
	)
}

func migrateMirror(db *gorm.DB) error {
	return db.AutoMigrate(
		&ledger.Wallet{},
		&ledger.Transaction{},
	)
}
