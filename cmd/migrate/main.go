// Command migrate runs schema operations for the backend.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"parley/internal/config"
	"parley/internal/database"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate/main.go <create|up|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}
	cmd := strings.ToLower(strings.TrimSpace(flag.Arg(0)))

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// create runs before the gorm connect since the target database may not
	// exist yet.
	if cmd == "create" {
		return createDatabase(cfg)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	switch cmd {
	case "up":
		if err := database.ApplySchema(db); err != nil {
			return fmt.Errorf("schema apply failed: %w", err)
		}
		log.Println("schema applied")
	case "status":
		return status(db)
	default:
		return usage()
	}

	return nil
}

// createDatabase provisions the configured database through the maintenance
// database. CREATE DATABASE cannot run inside a transaction, so this stays on
// database/sql rather than gorm.
func createDatabase(cfg *config.Config) error {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=postgres sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, sslMode,
	)

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open maintenance connection: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var exists bool
	err = sqlDB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, cfg.DBName,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check database: %w", err)
	}
	if exists {
		log.Printf("database %s already exists", cfg.DBName)
		return nil
	}

	if _, err := sqlDB.ExecContext(ctx, `CREATE DATABASE `+pgx.Identifier{cfg.DBName}.Sanitize()); err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	log.Printf("database %s created", cfg.DBName)
	return nil
}

func status(db *gorm.DB) error {
	missing := 0
	for _, model := range database.PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("parse model: %w", err)
		}
		if db.Migrator().HasTable(model) {
			log.Printf("present: %s", stmt.Schema.Table)
		} else {
			log.Printf("missing: %s", stmt.Schema.Table)
			missing++
		}
	}
	if missing > 0 {
		log.Printf("%d table(s) missing; run up to apply", missing)
	}
	return nil
}
