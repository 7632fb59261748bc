// Command voucher-sweep marks loyalty vouchers past their expiry as expired.
//
// Reads compute the effective status anyway; the sweep keeps stored statuses
// and available-voucher counts accurate for reporting.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/romeosyl08-png/resto/internal/app"
	"github.com/romeosyl08-png/resto/internal/domain/loyalty"
	"github.com/romeosyl08-png/resto/internal/storage/postgres"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		cfg, err := appkg.LoadConfig()
		if err != nil {
			return err
		}

		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		engine := loyalty.NewEngine(
			postgres.NewLoyaltyRepository(pool),
			postgres.NewOrderRepository(pool),
			postgres.NewTransactor(pool),
			loyalty.Config{},
		)
		n, err := engine.ExpireVouchers(ctx)
		if err != nil {
			return errors.Wrap(err, "expire vouchers")
		}
		lg.Info("Voucher sweep done", zap.Int64("expired", n))
		return nil
	})
}
