package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// TableName is the table enriched points are appended to
const TableName = "gpx_tracks"

// SQLiteSchema creates gpx_tracks on SQLite
const SQLiteSchema = `
	CREATE TABLE IF NOT EXISTS gpx_tracks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		time TIMESTAMP NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		speed REAL NOT NULL,
		course REAL NOT NULL
	)
`

// PostgresSchema creates gpx_tracks on PostgreSQL
const PostgresSchema = `
	CREATE TABLE IF NOT EXISTS gpx_tracks (
		id INTEGER GENERATED BY DEFAULT AS IDENTITY (START WITH 1) PRIMARY KEY,
		time TIMESTAMPTZ NOT NULL,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		speed DOUBLE PRECISION NOT NULL,
		course DOUBLE PRECISION NOT NULL
	)
`

// PgExecer is the subset of a pgx pool needed to run DDL
type PgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates gpx_tracks if it does not exist. A non-empty ddlFile
// replaces the built-in statement; it must be idempotent itself.
func EnsureSchema(ctx context.Context, db *sql.DB, ddlFile string) error {
	ddl, err := loadDDL(ddlFile, SQLiteSchema)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s table: %w", TableName, err)
	}
	log.Printf("[Schema] table %s ready", TableName)
	return nil
}

// EnsurePostgresSchema is EnsureSchema for a pgx connection
func EnsurePostgresSchema(ctx context.Context, db PgExecer, ddlFile string) error {
	ddl, err := loadDDL(ddlFile, PostgresSchema)
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s table: %w", TableName, err)
	}
	log.Printf("[Schema] table %s ready", TableName)
	return nil
}

func loadDDL(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	ddl := strings.TrimSpace(string(content))
	if ddl == "" {
		return "", fmt.Errorf("schema file %s is empty", path)
	}
	return ddl, nil
}
