package db

import (
	"context"
	"errors"
	"os"
)

// InitTestDB connects to TEST_DATABASE_URL and applies the migrations.
func InitTestDB(ctx context.Context, migrationsPath string) error {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		return errors.New("TEST_DATABASE_URL environment variable is not set")
	}

	if err := Init(ctx, dbURL); err != nil {
		return err
	}

	_, err := RunMigrations(ctx, DB, migrationsPath)
	return err
}
