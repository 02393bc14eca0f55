// Command seedcodes inserts referral codes from a YAML batch file.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/flox/server/internal/app"
	"github.com/flox/server/internal/module/referral"
	"github.com/flox/server/internal/shared/config"
	"github.com/flox/server/internal/shared/database"
	"github.com/flox/server/internal/shared/logger"
)

func main() {
	file := flag.String("file", "", "seed file (defaults to referral.seed_file)")
	migrate := flag.Bool("migrate", false, "migrate the schema before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLog, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zapLog.Sync() }()

	path := *file
	if path == "" {
		path = cfg.Referral.SeedFile
	}
	if path == "" {
		zapLog.Fatal("no seed file given")
	}

	specs, err := referral.LoadSeedFile(path)
	if err != nil {
		zapLog.Fatal("load seed file", zap.Error(err))
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		zapLog.Fatal("open database", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	if *migrate || cfg.Database.AutoMigrate {
		if err := database.Migrate(db, app.Models()...); err != nil {
			zapLog.Fatal("migrate", zap.Error(err))
		}
	}

	repo := referral.NewRepository(db)
	svc := referral.NewService(repo, referral.NewValidator(repo, nil), zapLog)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	inserted, err := svc.Seed(ctx, specs)
	if err != nil {
		zapLog.Fatal("seed referral codes", zap.Error(err))
	}
	zapLog.Info("done", zap.String("file", path), zap.Int64("inserted", inserted), zap.Int("total", len(specs)))
}
