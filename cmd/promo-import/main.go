// Command promo-import loads promotion campaigns from gzipped CSV exports.
//
// Files are parsed concurrently. When a code appears more than once the row
// from the file given last wins. All rows are upserted in one transaction.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/romeosyl08-png/resto/internal/domain/promotion"
	"github.com/romeosyl08-png/resto/internal/storage/postgres"
)

const batchSize = 500

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if databaseURL == "" {
			databaseURL = os.Getenv("DATABASE_URL")
		}
		if databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		files := flag.Args()
		if len(files) == 0 {
			return errors.New("usage: promo-import [flags] file.csv.gz...")
		}
		return run(ctx, lg, databaseURL, files)
	})
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, files []string) error {
	lg.Info("Parsing promotion files", zap.Int("files", len(files)))

	parsed := make([][]promotion.Promotion, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			promos, err := parseFile(gctx, path)
			if err != nil {
				return errors.Wrapf(err, "parse %s", path)
			}
			lg.Info("Parsed file", zap.String("path", path), zap.Int("rows", len(promos)))
			parsed[i] = promos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	promos := merge(parsed)
	if len(promos) == 0 {
		lg.Info("No promotions to import")
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewPromotionRepository(pool)
	if err := postgres.NewTransactor(pool).InTx(ctx, func(ctx context.Context) error {
		for start := 0; start < len(promos); start += batchSize {
			end := min(start+batchSize, len(promos))
			if err := repo.Upsert(ctx, promos[start:end]); err != nil {
				return err
			}
			lg.Info("Write progress", zap.Int("written", end), zap.Int("total", len(promos)))
		}
		return nil
	}); err != nil {
		return errors.Wrap(err, "write promotions")
	}

	lg.Info("Promotion import done", zap.Int("count", len(promos)))
	return nil
}

// merge flattens per-file results keeping the last row of every code, in
// order of first appearance.
func merge(files [][]promotion.Promotion) []promotion.Promotion {
	index := make(map[string]int)
	var out []promotion.Promotion
	for _, promos := range files {
		for _, p := range promos {
			if i, ok := index[p.Code]; ok {
				out[i] = p
				continue
			}
			index[p.Code] = len(out)
			out = append(out, p)
		}
	}
	return out
}
