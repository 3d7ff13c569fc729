// Command seed upserts deal definitions from a YAML file into the catalog.
// Claim counters of existing deals are never touched.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/azizikri/deal-claim/internal/config"
	"github.com/azizikri/deal-claim/internal/domain"
	"github.com/azizikri/deal-claim/internal/logging"
	"github.com/azizikri/deal-claim/internal/repository"
)

type dealFile struct {
	Deals []domain.Deal `yaml:"deals"`
}

func main() {
	path := flag.String("file", "deals.yaml", "YAML file with a top-level deals list")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.App.Dev)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *path, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed failed")
	}
}

func run(ctx context.Context, cfg *config.Config, path string, logger zerolog.Logger) error {
	deals, err := loadDeals(path)
	if err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool, cfg.Database.Migrations, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	store := repository.New(pool)
	ids := make([]string, 0, len(deals))
	for _, d := range deals {
		saved, err := store.UpsertDeal(ctx, d)
		if err != nil {
			return fmt.Errorf("upsert deal %s: %w", d.ID, err)
		}
		ids = append(ids, saved.ID)
		logger.Info().Str("deal_id", saved.ID).Int("claim_count", saved.ClaimCount).Msg("deal upserted")
	}

	if cfg.Redis.Enabled && len(ids) > 0 {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		cache := repository.NewSnapshotCache(store, rdb, cfg.Redis.TTL, logger)
		if err := cache.Invalidate(ctx, ids...); err != nil {
			logger.Warn().Err(err).Msg("snapshot cache invalidation failed")
		}
	}

	logger.Info().Int("deals", len(ids)).Str("file", path).Msg("seed complete")
	return nil
}

func loadDeals(path string) ([]domain.Deal, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f dealFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, d := range f.Deals {
		if err := validateDeal(d); err != nil {
			return nil, fmt.Errorf("deal #%d (%s): %w", i+1, d.ID, err)
		}
	}
	return f.Deals, nil
}

func validateDeal(d domain.Deal) error {
	switch {
	case d.ID == "":
		return fmt.Errorf("id is required")
	case d.Title == "":
		return fmt.Errorf("title is required")
	case d.PartnerName == "":
		return fmt.Errorf("partner_name is required")
	case d.Discount == "":
		return fmt.Errorf("discount is required")
	case !d.Category.Valid():
		return fmt.Errorf("unknown category %q", d.Category)
	case !d.AccessLevel.Valid():
		return fmt.Errorf("unknown access_level %q", d.AccessLevel)
	case d.MaxClaims != nil && *d.MaxClaims < 0:
		return fmt.Errorf("max_claims must not be negative")
	}
	return nil
}
