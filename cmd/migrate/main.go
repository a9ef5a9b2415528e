package main

import (
	"context"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"xquisito-tap/internal/config"
	"xquisito-tap/internal/db"
	"xquisito-tap/internal/migrate"
)

func main() {
	down := pflag.Int("down", 0, "roll back this many migrations instead of applying")
	version := pflag.Bool("version", false, "print the applied schema version and exit")
	pflag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.FromEnv()
	if cfg.DBConnString == "" {
		logger.Fatal("DB_DSN is required")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	switch {
	case *version:
		v, dirty, err := migrate.Version(ctx, pool)
		if err != nil {
			logger.Fatal("read schema version", zap.Error(err))
		}
		logger.Info("schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
	case *down > 0:
		if err := migrate.Rollback(ctx, pool, *down); err != nil {
			logger.Fatal("roll back migrations", zap.Error(err))
		}
		logger.Info("migrations rolled back", zap.Int("steps", *down))
	default:
		if err := migrate.Apply(ctx, pool); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
		logger.Info("migrations applied")
	}
}
