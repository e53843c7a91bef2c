package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

var (
	DB *sqlx.DB
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Init connects to PostgreSQL and assigns the pool to DB. The database is
// often still starting when the service comes up, so failed attempts are
// retried until ctx ends.
func Init(ctx context.Context, databaseURL string) error {
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		var conn *sqlx.DB
		conn, err = sqlx.ConnectContext(ctx, "postgres", databaseURL)
		if err == nil {
			DB = conn
			log.Info().Int("attempt", attempt).Msg("[db] connected")
			return nil
		}

		log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", connectBackoff).Msg("[db] connect failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	return fmt.Errorf("postgres unreachable after %d attempts: %w", connectAttempts, err)
}

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RunMigrations applies the *.up.sql files of dir in name order, skipping
// the ones recorded in schema_migrations. Each file runs in its own
// transaction together with its bookkeeping row.
func RunMigrations(ctx context.Context, conn *sqlx.DB, dir string) (applied int, err error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return 0, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return 0, nil
	}
	sort.Strings(files)

	if _, err := conn.ExecContext(ctx, migrationsTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	var done []string
	if err := conn.SelectContext(ctx, &done, `SELECT name FROM schema_migrations`); err != nil {
		return 0, fmt.Errorf("read schema_migrations: %w", err)
	}
	seen := make(map[string]bool, len(done))
	for _, name := range done {
		seen[name] = true
	}

	for _, file := range files {
		name := filepath.Base(file)
		if seen[name] {
			continue
		}
		body, err := os.ReadFile(file)
		if err != nil {
			return applied, fmt.Errorf("read %s: %w", name, err)
		}
		if err := applyMigration(ctx, conn, name, string(body)); err != nil {
			return applied, err
		}
		applied++
		log.Info().Str("migration", name).Msg("[db] migration applied")
	}
	return applied, nil
}

func applyMigration(ctx context.Context, conn *sqlx.DB, name, stmt string) error {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if stmt != "" {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("record %s: %w", name, err)
	}
	return tx.Commit()
}
