package main

import (
	"github.com/sirupsen/logrus"

	"referral-ledger/internal/config"
	"referral-ledger/internal/database"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()
	cfg.ConfigureLogger()

	logrus.WithField("driver", cfg.Database.Driver).Info("Running database migrations...")

	// Versioned SQL exists for MySQL only; other drivers fall back to the model schema.
	if cfg.Database.Driver == "mysql" {
		if err := database.RunMigrations(cfg.Database); err != nil {
			logrus.Fatalf("Migrations failed: %v", err)
		}
	} else {
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logrus.Fatalf("Database: %v", err)
		}
		if err := database.Migrate(db); err != nil {
			logrus.Fatalf("Migrations failed: %v", err)
		}
	}

	logrus.Info("Migrations completed successfully!")
}
