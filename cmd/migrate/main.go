package main

import (
	"context"
	"log"
	"time"

	"centime/internal/infrastructure/postgres"
	"centime/internal/shared/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Migration error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log.Println("Applying database schema...")
	if _, err := db.ExecContext(ctx, postgres.Schema); err != nil {
		return err
	}
	log.Println("Schema applied successfully")

	return nil
}
