package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/relaystack/ingest/internal/core/domain"
	"github.com/relaystack/ingest/internal/core/ports"
)

// ErrMissingIdentity is returned when an event reaches a store without
// its immutable request id.
var ErrMissingIdentity = errors.New("event has no request id")

type logRow struct {
	requestID         string
	responseID        string
	orgID             string
	model             string
	provider          string
	path              string
	userID            string
	status            int32
	delayMS           int64
	promptTokens      int64
	completionTokens  int64
	promptText        string
	requestCreatedAt  time.Time
	responseCreatedAt time.Time
}

// LogStore buffers request/response log rows for one batch and commits
// them in a single bulk insert.
type LogStore struct {
	conn driver.Conn

	mu   sync.Mutex
	rows []logRow
}

// NewLogStore creates a log store over an open connection.
func NewLogStore(conn driver.Conn) *LogStore {
	return &LogStore{conn: conn}
}

// Record implements ports.LogStore. Memory-only and safe for concurrent
// use by every event goroutine of a batch.
func (s *LogStore) Record(ctx context.Context, ev *domain.Event) error {
	if ev.RequestID() == "" {
		return ErrMissingIdentity
	}
	row := logRow{
		requestID:         ev.RequestID(),
		responseID:        ev.ResponseID(),
		orgID:             ev.OrgID(),
		provider:          ev.Raw.Request.Provider,
		path:              ev.Raw.Request.Path,
		userID:            ev.Raw.Request.UserID,
		status:            int32(ev.Raw.Response.Status),
		delayMS:           ev.Raw.Response.DelayMS,
		requestCreatedAt:  ev.Raw.Request.CreatedAt,
		responseCreatedAt: ev.Raw.Response.CreatedAt,
	}
	if ev.Request != nil {
		row.model = ev.Request.Model
	}
	if ev.Response != nil {
		if row.model == "" {
			row.model = ev.Response.Model
		}
		row.promptTokens = ev.Response.Usage.PromptTokens
		row.completionTokens = ev.Response.Usage.CompletionTokens
	}
	if ev.Prompt != nil {
		row.promptText = ev.Prompt.Text
		if row.promptTokens == 0 {
			row.promptTokens = int64(ev.Prompt.TokenCount)
		}
	}

	s.mu.Lock()
	s.rows = append(s.rows, row)
	s.mu.Unlock()
	return nil
}

// Flush implements ports.LogStore: one bulk insert for everything the
// batch recorded. The buffer is spent whether or not the insert
// succeeds; the caller decides what to do with a failure.
func (s *LogStore) Flush(ctx context.Context) (int, error) {
	s.mu.Lock()
	rows := s.rows
	s.rows = nil
	s.mu.Unlock()

	if len(rows) == 0 {
		return 0, nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO request_response_log (
		request_id, response_id, organization_id, model, provider, path, user_id,
		status, delay_ms, prompt_tokens, completion_tokens, prompt_text,
		request_created_at, response_created_at)`)
	if err != nil {
		return 0, fmt.Errorf("prepare log batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(
			r.requestID, r.responseID, r.orgID, r.model, r.provider, r.path, r.userID,
			r.status, r.delayMS, r.promptTokens, r.completionTokens, r.promptText,
			r.requestCreatedAt, r.responseCreatedAt,
		); err != nil {
			return 0, fmt.Errorf("append log row %s: %w", r.requestID, err)
		}
	}
	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send log batch of %d rows: %w", len(rows), err)
	}
	return len(rows), nil
}

// Buffered returns how many rows are waiting for the next flush.
func (s *LogStore) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

var _ ports.LogStore = (*LogStore)(nil)
