package main

import (
	"errors"
	"flag"
	"log"

	"github.com/example/chefmarket/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	migrationsPath := flag.String("path", "file://migrations", "migration source")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("[Migrate] usage: migrate [-path file://migrations] <up|down|version>")
	}

	cfg, err := config.Load("migrate")
	if err != nil {
		log.Fatalf("[Migrate] Failed to load config: %v", err)
	}

	m, err := migrate.New(*migrationsPath, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Migrate] Failed to create migrate instance: %v", err)
	}
	defer func() { _, _ = m.Close() }()

	switch flag.Arg(0) {
	case "up":
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("[Migrate] No pending migrations")
			return
		}
		if err != nil {
			log.Fatalf("[Migrate] Up failed: %v", err)
		}
		log.Println("[Migrate] Migrations applied")

	case "down":
		err = m.Steps(-1)
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("[Migrate] No migrations to roll back")
			return
		}
		if err != nil {
			log.Fatalf("[Migrate] Down failed: %v", err)
		}
		log.Println("[Migrate] Rolled back one migration")

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Println("[Migrate] No migrations applied yet")
			return
		}
		if err != nil {
			log.Fatalf("[Migrate] Failed to get version: %v", err)
		}
		log.Printf("[Migrate] Version %d (dirty: %v)", version, dirty)

	default:
		log.Fatalf("[Migrate] Unknown command %q", flag.Arg(0))
	}
}
