// Package deadletter captures events and flush payloads that failed to
// reach the log, in a local sqlite file, so operators can replay them.
// This is the durability backstop for the pipeline's at-most-once
// delivery into ClickHouse: the consumer still commits its offsets, but
// nothing is silently lost.
package deadletter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/relaystack/ingest/internal/core/domain"
	"github.com/relaystack/ingest/internal/core/ports"
)

// Store is a sqlite-backed dead-letter store.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the dead-letter database at path.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open dead-letter db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init dead-letter schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS dead_letters (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		batch_id TEXT NOT NULL,
		partition_num INTEGER NOT NULL,
		last_offset TEXT,
		request_id TEXT,
		response_id TEXT,
		organization_id TEXT,
		failure TEXT,
		payload TEXT,
		created_at TIMESTAMP NOT NULL
	)`)
	return err
}

// CaptureEvent implements ports.DeadLetterStore for one halted
// traversal.
func (s *Store) CaptureEvent(ctx context.Context, ev *domain.Event, batch *domain.Batch, f *domain.Failure) error {
	payload, err := json.Marshal(ev.Raw)
	if err != nil {
		return fmt.Errorf("marshal raw event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO dead_letters
		(id, kind, batch_id, partition_num, last_offset, request_id, response_id, organization_id, failure, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), string(f.Kind), batch.ID, batch.Partition, lastOffset(batch),
		ev.RequestID(), ev.ResponseID(), ev.OrgID(), f.Error(), string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

// CaptureFlush implements ports.DeadLetterStore for a store whose bulk
// commit failed. The whole batch's rows for that store are gone, so the
// record carries batch granularity only.
func (s *Store) CaptureFlush(ctx context.Context, store string, batch *domain.Batch, cause error) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO dead_letters
		(id, kind, batch_id, partition_num, last_offset, payload, failure, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), "flush:"+store, batch.ID, batch.Partition, lastOffset(batch),
		"", cause.Error(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert flush dead letter: %w", err)
	}
	return nil
}

// Entry is one captured dead letter.
type Entry struct {
	ID        string
	Kind      string
	BatchID   string
	Partition int
	RequestID string
	Failure   string
	Payload   string
	CreatedAt time.Time
}

// Pending returns up to limit captured entries, oldest first, for
// replay tooling.
func (s *Store) Pending(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, batch_id, partition_num, COALESCE(request_id, ''), COALESCE(failure, ''), COALESCE(payload, ''), created_at
		FROM dead_letters ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query dead letters: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Kind, &e.BatchID, &e.Partition, &e.RequestID, &e.Failure, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes a replayed entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letters WHERE id = ?`, id)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func lastOffset(batch *domain.Batch) string {
	if batch.LastOffset == nil {
		return ""
	}
	return batch.LastOffset()
}

var _ ports.DeadLetterStore = (*Store)(nil)
