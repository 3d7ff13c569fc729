package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RunMigrations applies every *.up.sql file in dir in lexical order and
// records it in schema_migrations. Files already recorded are skipped, so the
// API and the seed tool can both call this on start.
func RunMigrations(ctx context.Context, db DBTX, dir string, logger zerolog.Logger) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no migrations found in %s", dir)
	}
	sort.Strings(files)

	if _, err := db.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := 0
	for _, file := range files {
		name := filepath.Base(file)

		var done bool
		if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name).Scan(&done); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if done {
			continue
		}

		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		logger.Info().Str("migration", name).Msg("applying migration")
		if _, err := db.Exec(ctx, string(content)); err != nil {
			// Databases created before schema_migrations existed.
			if !strings.Contains(err.Error(), "already exists") {
				return fmt.Errorf("apply migration %s: %w", name, err)
			}
			logger.Warn().Err(err).Str("migration", name).Msg("migration partially applied before, recording it")
		}

		if _, err := db.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT DO NOTHING`, name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		applied++
	}

	logger.Info().Int("applied", applied).Int("total", len(files)).Msg("migrations up to date")
	return nil
}
