package main

import (
	"flag"
	"log"

	"stakepoll/internal/platform/config"
	"stakepoll/internal/platform/db"
)

// Migrator entrypoint: applies migrations/ to POSTGRES_DSN.
func main() {
	action := flag.String("action", db.MigrateUp, "up, down, force or version")
	steps := flag.Int("steps", 0, "number of migrations for up/down (0 = all); target version for force")
	path := flag.String("path", "", "migrations directory (defaults to MIGRATIONS_PATH)")
	flag.Parse()

	cfg, err := config.LoadForMigrations()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *path == "" {
		*path = cfg.MigrationsPath
	}

	status, err := db.RunMigrations(*path, cfg.PostgresDSN, *action, *steps)
	if err != nil {
		log.Fatalf("migration %s failed: %v", *action, err)
	}
	log.Printf("migration %s done: version=%d dirty=%t changed=%t", *action, status.Version, status.Dirty, status.Changed)
}
