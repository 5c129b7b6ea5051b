package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"envanter/internal/config"
	"envanter/internal/store"
)

func main() {
	var (
		dsn  = flag.String("dsn", "", "Postgres DSN (overrides DB_DSN env var)")
		seed = flag.Bool("seed", false, "Seed demo accounts and data after migrating up")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: migrate [-dsn=...] [-seed] <up|down|status|reset|version|redo> [args]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg := config.Load()
	if *dsn != "" {
		cfg.DBDSN = *dsn
	}
	if cfg.DBDSN == "" {
		log.Fatal("DB_DSN environment variable or -dsn flag is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg, err := store.OpenPostgres(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pg.Close()

	fmt.Println("Connected to database")

	if err := store.RunMigrations(ctx, pg.DB, command, flag.Args()[min(1, flag.NArg()):]...); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if *seed && command == "up" {
		if err := store.Seed(ctx, pg); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		fmt.Println("Demo data seeded")
	}
	fmt.Printf("migrate %s done\n", command)
}
