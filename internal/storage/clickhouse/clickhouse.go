// Package clickhouse implements the two accumulating stores of the
// pipeline (request/response log rows and rate-limit accounting rows)
// on top of ClickHouse bulk inserts. Record calls only buffer in
// memory; the single network write per store per batch happens in
// Flush.
package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Options configures the ClickHouse connection.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Connect opens a ClickHouse connection and verifies it with a ping.
func Connect(ctx context.Context, opts Options) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse at %s: %w", opts.Addr, err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse at %s: %w", opts.Addr, err)
	}
	return conn, nil
}

// EnsureSchema creates the worker's tables if they do not exist.
func EnsureSchema(ctx context.Context, conn driver.Conn) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS request_response_log (
			request_id String,
			response_id String,
			organization_id String,
			model String,
			provider String,
			path String,
			user_id String,
			status Int32,
			delay_ms Int64,
			prompt_tokens Int64,
			completion_tokens Int64,
			prompt_text String,
			request_created_at DateTime64(3),
			response_created_at DateTime64(3),
			ingested_at DateTime64(3) DEFAULT now64(3)
		) ENGINE = MergeTree
		ORDER BY (organization_id, request_created_at, request_id)`,
		`CREATE TABLE IF NOT EXISTS rate_limit_log (
			insert_id String,
			organization_id String,
			request_id String,
			tier String,
			created_at DateTime64(3) DEFAULT now64(3)
		) ENGINE = MergeTree
		ORDER BY (organization_id, created_at)`,
	}
	for _, stmt := range statements {
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure clickhouse schema: %w", err)
		}
	}
	return nil
}
