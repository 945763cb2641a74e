// Package store persists the fetch log in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/newsroom-scraper/api/schemas"
)

// DefaultListLimit caps List when the caller asks for no limit.
const DefaultListLimit = 100

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	sqlCreateFetchLog = `
        CREATE TABLE IF NOT EXISTS fetch_log (
            id             BIGSERIAL PRIMARY KEY,
            source         TEXT NOT NULL,
            articles_count INTEGER NOT NULL DEFAULT 0,
            fetched_at     TIMESTAMPTZ NOT NULL DEFAULT now()
        );
    `
	sqlInsertFetch = `
        INSERT INTO fetch_log (source, articles_count)
        VALUES ($1, $2)
        RETURNING id, fetched_at;
    `
	sqlListFetches = `
        SELECT id, source, articles_count, fetched_at
        FROM fetch_log
        ORDER BY fetched_at DESC, id DESC
        LIMIT $1;
    `
)

// FetchLog records how many items each fetch produced.
type FetchLog struct {
	pool DBPool
	log  *zap.Logger
}

// Connect opens a pool for url and returns it with a ready FetchLog.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*FetchLog, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	fl, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return fl, pool, nil
}

// New verifies the connection and makes sure the fetch_log table exists.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*FetchLog, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, sqlCreateFetchLog); err != nil {
		return nil, fmt.Errorf("failed to create fetch_log table: %w", err)
	}
	return &FetchLog{pool: pool, log: logger.Named("store")}, nil
}

// Record appends an entry and returns it as stored.
func (f *FetchLog) Record(ctx context.Context, source string, count int) (schemas.FetchLogEntry, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return schemas.FetchLogEntry{}, errors.New("source is required")
	}
	if count < 0 {
		return schemas.FetchLogEntry{}, fmt.Errorf("articles_count must not be negative, got %d", count)
	}

	entry := schemas.FetchLogEntry{Source: source, ArticlesCount: count}
	if err := f.pool.QueryRow(ctx, sqlInsertFetch, source, count).Scan(&entry.ID, &entry.FetchedAt); err != nil {
		return schemas.FetchLogEntry{}, fmt.Errorf("failed to record fetch: %w", err)
	}
	f.log.Debug("Fetch recorded.", zap.String("source", source), zap.Int("count", count))
	return entry, nil
}

// List returns up to limit entries, newest first.
func (f *FetchLog) List(ctx context.Context, limit int) ([]schemas.FetchLogEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := f.pool.Query(ctx, sqlListFetches, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch log: %w", err)
	}
	defer rows.Close()

	entries := []schemas.FetchLogEntry{}
	for rows.Next() {
		var e schemas.FetchLogEntry
		if err := rows.Scan(&e.ID, &e.Source, &e.ArticlesCount, &e.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fetch log row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fetch log rows: %w", err)
	}
	return entries, nil
}
