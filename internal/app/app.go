package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/romeosyl08-png/resto/internal/domain/loyalty"
	"github.com/romeosyl08-png/resto/internal/domain/menu"
	"github.com/romeosyl08-png/resto/internal/domain/order"
	"github.com/romeosyl08-png/resto/internal/domain/promotion"
	"github.com/romeosyl08-png/resto/internal/handler"
	"github.com/romeosyl08-png/resto/internal/storage/postgres"
	"github.com/romeosyl08-png/resto/internal/storage/redis"
	"github.com/romeosyl08-png/resto/pkg/health"
	"github.com/romeosyl08-png/resto/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application. m is usually
// the *app.Telemetry of go-faster/sdk.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	policy, err := cfg.Window.Policy()
	if err != nil {
		return errors.Wrap(err, "window policy")
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	rdb, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return errors.Wrap(err, "connect redis")
	}
	defer func() { _ = rdb.Close() }()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddReadinessCheck("redis", 5*time.Second, health.PingCheck("redis", redis.Pinger{Client: rdb}))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	tx := postgres.NewTransactor(pool)
	menuRepo := postgres.NewMenuRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	promoRepo := postgres.NewPromotionRepository(pool)
	loyaltyRepo := postgres.NewLoyaltyRepository(pool)
	carts := redis.NewCartStore(rdb, cfg.Session.TTL)

	// Domain services.
	metrics, err := order.NewMetrics(m.MeterProvider().Meter("resto"))
	if err != nil {
		return errors.Wrap(err, "create metrics")
	}
	promos := promotion.NewService(promoRepo, orderRepo, orderRepo, tx).
		WithInactivePeriod(time.Duration(cfg.Promotion.InactiveDays) * 24 * time.Hour)
	engine := loyalty.NewEngine(loyaltyRepo, orderRepo, tx, cfg.Loyalty.engine())
	orderService := order.NewService(menuRepo, orderRepo, promos, engine, tx, policy, metrics)
	menuService := menu.NewService(menuRepo, policy)

	// HTTP handlers.
	h := handler.NewHandler(
		handler.Config{
			CookieName:   cfg.Session.CookieName,
			CookieSecure: cfg.Session.Secure,
			SessionTTL:   cfg.Session.TTL,
			MaxQty:       cfg.Cart.MaxQty,
			Policy:       policy,
		},
		menuService,
		carts,
		menuRepo,
		promos,
		orderService,
		engine,
	)
	staff := handler.NewStaffAuth([]byte(cfg.Staff.APIKeyPepper), cfg.Staff.KeyHashes)
	promoLimit := httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
		Max:     cfg.PromoRateLimit.Max,
		Window:  cfg.PromoRateLimit.Window,
		KeyFunc: httpmiddleware.CookieKey(h.CookieName()),
	})

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux, promoLimit, staff.Middleware())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("resto-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
