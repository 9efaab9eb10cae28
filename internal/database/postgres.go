package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"modsync/internal/database/queries"
)

// NewPostgresDatabase connects to PostgreSQL using a pgx DSN or URL.
func NewPostgresDatabase(ctx context.Context, dsn string) (*SQLDatabase, error) {
	db, err := OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return newSQLDatabase(db, queries.Postgres, ""), nil
}

// NewPostgresDatabaseFromDB wraps an existing PostgreSQL connection pool.
func NewPostgresDatabaseFromDB(db *sql.DB) *SQLDatabase {
	return newSQLDatabase(db, queries.Postgres, "")
}

// OpenPostgres opens a pooled connection and checks that the server answers.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db.SetMaxIdleConns(6)
	db.SetMaxOpenConns(50)
	db.SetConnMaxLifetime(time.Hour)

	return db, nil
}
