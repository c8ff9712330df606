package clickhouse

import (
	"context"
	"fmt"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"github.com/relaystack/ingest/internal/core/domain"
	"github.com/relaystack/ingest/internal/core/ports"
)

type quotaRow struct {
	orgID     string
	requestID string
	tier      string
}

// QuotaStore buffers rate-limit accounting rows for one batch. Each
// flush carries a fresh insert id so a batch's quota rows can be traced
// back to one bulk write.
type QuotaStore struct {
	conn driver.Conn

	mu   sync.Mutex
	rows []quotaRow
}

// NewQuotaStore creates a quota store over an open connection.
func NewQuotaStore(conn driver.Conn) *QuotaStore {
	return &QuotaStore{conn: conn}
}

// Record implements ports.QuotaStore. Memory-only and safe for
// concurrent use.
func (s *QuotaStore) Record(ctx context.Context, ev *domain.Event) error {
	if ev.RequestID() == "" {
		return ErrMissingIdentity
	}
	row := quotaRow{
		orgID:     ev.OrgID(),
		requestID: ev.RequestID(),
	}
	if ev.Org != nil {
		row.tier = ev.Org.Tier
	}

	s.mu.Lock()
	s.rows = append(s.rows, row)
	s.mu.Unlock()
	return nil
}

// Flush implements ports.QuotaStore and returns the insert id of the
// bulk write.
func (s *QuotaStore) Flush(ctx context.Context) (string, error) {
	s.mu.Lock()
	rows := s.rows
	s.rows = nil
	s.mu.Unlock()

	if len(rows) == 0 {
		return "", nil
	}

	insertID := uuid.NewString()
	batch, err := s.conn.PrepareBatch(ctx,
		`INSERT INTO rate_limit_log (insert_id, organization_id, request_id, tier)`)
	if err != nil {
		return "", fmt.Errorf("prepare quota batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(insertID, r.orgID, r.requestID, r.tier); err != nil {
			return "", fmt.Errorf("append quota row %s: %w", r.requestID, err)
		}
	}
	if err := batch.Send(); err != nil {
		return "", fmt.Errorf("send quota batch of %d rows: %w", len(rows), err)
	}
	return insertID, nil
}

// Buffered returns how many rows are waiting for the next flush.
func (s *QuotaStore) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

var _ ports.QuotaStore = (*QuotaStore)(nil)
