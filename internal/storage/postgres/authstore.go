// Package postgres resolves API keys to organizations against the
// platform's control database.
package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/relaystack/ingest/internal/core/domain"
	"github.com/relaystack/ingest/internal/core/ports"
)

// ErrUnknownKey is returned when no organization owns the presented
// API key.
var ErrUnknownKey = errors.New("unknown api key")

// AuthStore looks up organizations by hashed API key.
type AuthStore struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*AuthStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &AuthStore{db: db}, nil
}

// NewAuthStore wraps an existing database handle.
func NewAuthStore(db *sql.DB) *AuthStore {
	return &AuthStore{db: db}
}

// Authenticate implements ports.Authenticator. Keys are stored hashed;
// only the sha256 of the presented token ever touches the database.
func (s *AuthStore) Authenticate(ctx context.Context, authorization string) (*domain.Organization, error) {
	token := stripBearer(authorization)
	if token == "" {
		return nil, ErrUnknownKey
	}

	var org domain.Organization
	err := s.db.QueryRowContext(ctx, `
		SELECT o.id, o.name, o.tier
		FROM organizations o
		JOIN api_keys k ON k.organization_id = o.id
		WHERE k.key_hash = $1 AND NOT k.revoked`,
		HashKey(token),
	).Scan(&org.ID, &org.Name, &org.Tier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownKey
	}
	if err != nil {
		return nil, fmt.Errorf("look up api key: %w", err)
	}
	return &org, nil
}

// Close releases the database handle.
func (s *AuthStore) Close() error {
	return s.db.Close()
}

// HashKey returns the sha256 hex digest under which API keys are
// stored.
func HashKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// stripBearer accepts both a bare token and "Bearer <token>".
func stripBearer(authorization string) string {
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(authorization)
}

var _ ports.Authenticator = (*AuthStore)(nil)
