package database

import (
	"database/sql"
	"fmt"

	"nasmon/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// NewConnection opens the Postgres pool used by all stores.
func NewConnection(cfg config.DbConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	return db, nil
}

// EnsureSchema creates the engine's tables when they do not exist yet.
// The persistence store owns these tables; nothing else writes to them.
func EnsureSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			uuid            UUID PRIMARY KEY,
			node            TEXT NOT NULL,
			source          TEXT NOT NULL,
			klass           TEXT NOT NULL,
			"key"           TEXT NOT NULL,
			datetime        TIMESTAMP NOT NULL,
			last_occurrence TIMESTAMP NOT NULL,
			text            TEXT NOT NULL,
			args            JSONB NOT NULL,
			dismissed       BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS alert_services (
			id         BIGSERIAL PRIMARY KEY,
			name       TEXT NOT NULL,
			type       TEXT NOT NULL,
			attributes JSONB NOT NULL,
			enabled    BOOLEAN NOT NULL DEFAULT TRUE,
			level      TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS alert_class_configs (
			klass             TEXT PRIMARY KEY,
			level             TEXT,
			policy            TEXT,
			proactive_support BOOLEAN
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	return nil
}
