package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	product "github.com/codmtracker/codm-backend/internal/products"
	"github.com/codmtracker/codm-backend/internal/seed"
	"github.com/codmtracker/codm-backend/internal/tournaments"
	"github.com/codmtracker/codm-backend/pkg/config"
	"github.com/codmtracker/codm-backend/pkg/db"
	"github.com/codmtracker/codm-backend/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "seed"})
	_ = godotenv.Load()

	file := flag.String("file", "", "catalog YAML to upsert")
	flag.Parse()
	if *file == "" {
		fmt.Fprintln(os.Stderr, "missing -file")
		os.Exit(1)
	}

	cfg, err := config.Load()
	requireResource(logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"file": *file,
	})

	catalog, err := seed.LoadFile(*file)
	requireResource(logg, "catalog file", err)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(logg, "database", err)
	defer dbClient.Close()

	seeder, err := seed.NewSeeder(seed.SeederParams{
		Products:    product.NewRepository(dbClient.DB()),
		Tournaments: tournaments.NewRepository(dbClient.DB()),
		TxRunner:    dbClient,
		Logger:      logg,
	})
	requireResource(logg, "seeder", err)

	summary, err := seeder.Apply(ctx, catalog)
	if err != nil {
		logg.Error(ctx, "seed failed", err)
		os.Exit(1)
	}
	fmt.Printf("seeded %d categories, %d products, %d tournaments\n",
		summary.Categories, summary.Products, summary.Tournaments)
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
