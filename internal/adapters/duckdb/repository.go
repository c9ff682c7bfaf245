package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/manthysbr/floral/internal/core/ports"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	sequential   BOOLEAN NOT NULL,
	started_at   TIMESTAMP NOT NULL,
	finished_at  TIMESTAMP NOT NULL,
	outcome      TEXT NOT NULL,
	succeeded    INTEGER NOT NULL,
	failed       INTEGER NOT NULL,
	not_run      INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	duration_ms  BIGINT NOT NULL
)`,
}

type Repository struct {
	db *sql.DB
}

// NewRepository opens the database at path. An empty path is an in-memory
// database that lives as long as the process.
func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// DuckDB allows a single writer per process.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Repository{db: db}, nil
}

// Ensure Repository implements Repository interface
var _ ports.Repository = (*Repository)(nil)

func (r *Repository) Close() error {
	return r.db.Close()
}
