// Command seed-db loads the sample menu and promotions and prints the hash of
// a staff key for the RESTO_STAFF_KEY_HASHES setting.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/romeosyl08-png/resto/internal/domain/menu"
	"github.com/romeosyl08-png/resto/internal/domain/promotion"
	"github.com/romeosyl08-png/resto/internal/handler"
	"github.com/romeosyl08-png/resto/internal/storage/postgres"
)

type variantJSON struct {
	Code  string `json:"code"`
	Price int64  `json:"price"`
	Stock int    `json:"stock"`
}

type itemJSON struct {
	Name        string        `json:"name"`
	Weekdays    []int         `json:"weekdays"`
	Stock       *int          `json:"stock"`
	MaxPerOrder int           `json:"max_per_order"`
	Variants    []variantJSON `json:"variants"`
}

func main() {
	var (
		databaseURL string
		menuFile    string
		staffKey    string
		pepper      string
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&menuFile, "menu-file", "db/seed/menu.json", "path to menu JSON file")
	flag.StringVar(&staffKey, "staff-key", "", "staff API key to hash (or RESTO_SEED_STAFF_KEY env)")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for staff key hashing (or RESTO_STAFF_API_KEY_PEPPER env)")
	flag.Parse()

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if databaseURL == "" {
			databaseURL = os.Getenv("DATABASE_URL")
		}
		if databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		if staffKey == "" {
			staffKey = os.Getenv("RESTO_SEED_STAFF_KEY")
		}
		if pepper == "" {
			pepper = os.Getenv("RESTO_STAFF_API_KEY_PEPPER")
		}
		return run(ctx, lg, databaseURL, menuFile, staffKey, pepper)
	})
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, menuFile, staffKey, pepper string) error {
	lg.Info("Connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedMenu(ctx, lg, postgres.NewMenuRepository(pool), menuFile); err != nil {
		return errors.Wrap(err, "seed menu")
	}
	if err := seedPromotions(ctx, lg, postgres.NewPromotionRepository(pool)); err != nil {
		return errors.Wrap(err, "seed promotions")
	}

	if staffKey != "" {
		lg.Info("Staff key hash", zap.String("hash", handler.HashKey([]byte(pepper), staffKey)))
	}
	return nil
}

func seedMenu(ctx context.Context, lg *zap.Logger, repo *postgres.MenuRepository, menuFile string) error {
	lg.Info("Reading menu file", zap.String("path", menuFile))

	data, err := os.ReadFile(menuFile)
	if err != nil {
		return errors.Wrap(err, "read menu file")
	}
	var items []itemJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse menu JSON")
	}

	existing, err := repo.ListActive(ctx)
	if err != nil {
		return errors.Wrap(err, "list items")
	}
	seen := make(map[string]bool, len(existing))
	for _, it := range existing {
		seen[it.Name] = true
	}

	for _, in := range items {
		if seen[in.Name] {
			lg.Info("Item exists, skipping", zap.String("name", in.Name))
			continue
		}
		item := menu.Item{
			Name:        in.Name,
			Active:      true,
			Weekdays:    in.Weekdays,
			Stock:       in.Stock,
			MaxPerOrder: in.MaxPerOrder,
		}
		for _, v := range in.Variants {
			item.Variants = append(item.Variants, menu.Variant{
				Code:   v.Code,
				Price:  v.Price,
				Stock:  v.Stock,
				Active: true,
			})
		}
		if err := repo.CreateItem(ctx, &item); err != nil {
			return err
		}
		lg.Info("Created item", zap.Int64("id", item.ID), zap.String("name", item.Name))
	}
	return nil
}

func seedPromotions(ctx context.Context, lg *zap.Logger, repo *postgres.PromotionRepository) error {
	one := 1
	minOrder := decimal.NewFromInt(15)
	promos := []promotion.Promotion{
		{
			Code:              "WELCOME10",
			Type:              promotion.TypePercent,
			Value:             decimal.NewFromInt(10),
			UsageLimitPerUser: &one,
			Segment:           promotion.SegmentNewCustomers,
			Active:            true,
		},
		{
			Code:              "COMEBACK5",
			Type:              promotion.TypeFixedAmount,
			Value:             decimal.NewFromInt(5),
			MinOrderAmount:    &minOrder,
			UsageLimitPerUser: &one,
			Segment:           promotion.SegmentInactive30Days,
			Active:            true,
		},
	}
	if err := repo.Upsert(ctx, promos); err != nil {
		return err
	}
	lg.Info("Upserted promotions", zap.Int("count", len(promos)))
	return nil
}
