package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/waqt/internal/config"
	"github.com/Nixie-Tech-LLC/waqt/internal/dataset"
	"github.com/Nixie-Tech-LLC/waqt/internal/db"
)

// datasetSource picks where the schedule comes from: a URL, then
// PostgreSQL, then a local file.
func datasetSource(cfg *config.Config) (dataset.Source, error) {
	switch {
	case cfg.DatasetURL != "":
		log.Info().Str("url", cfg.DatasetURL).Msg("dataset from URL")
		return dataset.NewHTTPSource(cfg.DatasetURL), nil
	case cfg.DatabaseURL != "":
		if err := connectDB(cfg); err != nil {
			return nil, err
		}
		log.Info().Msg("dataset from PostgreSQL")
		return dataset.NewPostgresSource(db.DB), nil
	default:
		log.Info().Str("file", cfg.DatasetFile).Msg("dataset from file")
		return &dataset.FileSource{Path: cfg.DatasetFile}, nil
	}
}

func connectDB(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := db.Init(ctx, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("db init: %w", err)
	}
	if _, err := db.RunMigrations(ctx, db.DB, cfg.MigrationsPath); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}
	return nil
}
