package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/lib/pq"
	"github.com/tullo/trust/config"
	"github.com/tullo/trust/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/migrate/main.go [up|down|status]")
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		slog.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	switch command {
	case "up":
		slog.Info("running migrations")
		if err := database.RunMigrations(db); err != nil {
			slog.Error("migration failed", "err", err)
			os.Exit(1)
		}
		version, _ := database.CurrentVersion(db)
		slog.Info("migrations completed", "version", version)

	case "status":
		showMigrationStatus(db)

	case "down":
		version, err := database.RollbackLatest(db)
		if err != nil {
			slog.Error("rollback failed", "err", err)
			os.Exit(1)
		}
		if version == 0 {
			slog.Info("nothing to roll back")
			return
		}
		slog.Info("rolled back migration", "version", version)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Available commands: up, down, status")
		os.Exit(1)
	}
}

func showMigrationStatus(db *sql.DB) {
	rows, err := db.Query("SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		slog.Warn("no migrations found or table doesn't exist", "err", err)
		return
	}
	defer rows.Close()

	applied := make(map[int]string)
	for rows.Next() {
		var version int
		var appliedAt string
		if err := rows.Scan(&version, &appliedAt); err != nil {
			slog.Warn("error scanning row", "err", err)
			continue
		}
		applied[version] = appliedAt
	}

	fmt.Println("\nMigrations:")
	fmt.Println("-----------")
	for _, m := range database.Migrations {
		if at, ok := applied[m.Version]; ok {
			fmt.Printf("Version %d - Applied at: %s\n", m.Version, at)
		} else {
			fmt.Printf("Version %d - Pending\n", m.Version)
		}
	}
}
