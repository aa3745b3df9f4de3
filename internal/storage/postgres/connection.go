package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/asterolab/lightcurve-backend/config"
	_ "github.com/lib/pq"
)

// NewConnection opens the database/sql connection used by the samples
// repository. Batch sample inserts hold connections briefly, so a modest
// pool is enough.
func NewConnection(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := DSN(cfg)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
