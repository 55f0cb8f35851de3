package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/finexbank/ledger/internal/postgres"
)

var (
	dsn           = flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres connection string (or set DATABASE_URL)")
	migrationsDir = flag.String("migrations", "migrations", "Path to migrations directory")
)

func main() {
	flag.Parse()

	if *dsn == "" {
		log.Fatal("Error: -dsn flag or DATABASE_URL is required")
	}

	ctx := context.Background()

	pool, err := postgres.Connect(ctx, *dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := postgres.ApplyMigrations(ctx, pool, *migrationsDir); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations applied successfully")
}
