package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/xaenox/taskmaster/pkg/config"
)

// NewPostgresStorage connects to PostgreSQL and applies the schema. SQLite is
// the default backend; this one exists for deployments that already run a
// database server.
func NewPostgresStorage(cfg config.DatabaseConfig) (*SQLStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &SQLStorage{db: db, driver: "postgres"}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}
