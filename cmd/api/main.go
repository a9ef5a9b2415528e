package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"xquisito-tap/internal/backend"
	"xquisito-tap/internal/cart"
	"xquisito-tap/internal/checkout"
	"xquisito-tap/internal/config"
	"xquisito-tap/internal/db"
	"xquisito-tap/internal/httpserver"
	"xquisito-tap/internal/migrate"
	"xquisito-tap/internal/orderstatus"
	"xquisito-tap/internal/receipt"
	"xquisito-tap/internal/restaurant"
	"xquisito-tap/internal/session"
	"xquisito-tap/internal/storage"
)

func main() {
	configPath := pflag.String("config", "", "YAML config file overlaid on the environment")
	dev := pflag.Bool("dev", false, "human-readable development logging")
	pflag.Parse()

	var (
		logger *zap.Logger
		err    error
	)
	if *dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var (
		store storage.Store
		pool  *pgxpool.Pool
		ready []httpserver.ReadinessCheck
	)
	if cfg.DBConnString == "" {
		logger.Warn("DB_DSN not set, client state is kept in memory")
		if store, err = storage.NewMemory(); err != nil {
			logger.Fatal("init memory store", zap.Error(err))
		}
	} else {
		if pool, err = db.Connect(ctx, cfg.DBConnString, logger); err != nil {
			logger.Fatal("connect to db", zap.Error(err))
		}
		defer pool.Close()
		if err := migrate.Apply(ctx, pool); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
		store = storage.NewPostgres(pool, logger)
		ready = append(ready, httpserver.ReadinessCheck{Name: "postgres", Check: pool.Ping})
	}

	client := backend.New(cfg.BackendURL, cfg.BackendTimeout, logger)
	sessions := session.New(store, func(src backend.CredentialSource) session.API {
		return client.As(src)
	}, logger, session.WithMigrationDelay(cfg.MigrationDelay))

	catalog, err := restaurant.NewCatalog(client.As(nil), cfg.MenuCacheTTL, 256, logger)
	if err != nil {
		logger.Fatal("init catalog", zap.Error(err))
	}
	restaurants, err := restaurant.NewRegistry(catalog, cfg.Location(), 4096, logger)
	if err != nil {
		logger.Fatal("init restaurant registry", zap.Error(err))
	}
	go restaurants.Run(ctx, restaurant.RecomputeInterval)

	carts, err := cart.NewRegistry(4096, logger)
	if err != nil {
		logger.Fatal("init cart registry", zap.Error(err))
	}
	receipts, err := receipt.NewStore(store, 4096)
	if err != nil {
		logger.Fatal("init receipts", zap.Error(err))
	}
	orders, err := orderstatus.NewViewer(4096, logger)
	if err != nil {
		logger.Fatal("init order viewer", zap.Error(err))
	}

	var publisher checkout.Publisher = checkout.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPub, err := checkout.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Fatal("connect to amqp", zap.Error(err))
		}
		defer func() { _ = amqpPub.Close() }()
		publisher = amqpPub
		ready = append(ready, httpserver.ReadinessCheck{Name: "amqp", Check: func(context.Context) error {
			return amqpPub.Ping()
		}})
	}

	calc := cfg.Pricing.Calculator()
	schedule := cfg.Pricing.Schedule()

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Sessions: sessions,
		Dial: func(src backend.CredentialSource) httpserver.Backend {
			return client.As(src)
		},
		Restaurants: restaurants,
		Carts:       carts,
		Checkout:    checkout.New(calc, schedule, receipts, store, publisher, logger),
		Receipts:    receipts,
		Orders:      orders,
		Calculator:  calc,
		Schedule:    schedule,
		CORSOrigins: cfg.CORSOrigins,
		Ready:       ready,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("addr", cfg.HTTPAddr), zap.String("backend", cfg.BackendURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}
