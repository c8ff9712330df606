// Package consumer is the queue-side driver: it assembles Kafka
// messages into batches, hands them to the batch runner, and commits
// offsets once the runner returns. The runner never returns an error,
// so offset advancement is unconditional; lost events are captured by
// the dead-letter store, not by redelivery.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/relaystack/ingest/internal/core/domain"
	"github.com/relaystack/ingest/internal/core/ports"
)

// Reader is the slice of kafka.Reader the consumer uses, extracted so
// tests can drive the loop with a fake.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// BatchProcessor is the pipeline entry point.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, events []*domain.RawEvent, batch *domain.Batch)
}

// Config configures the consumer loop.
type Config struct {
	Reader    Reader
	Processor BatchProcessor
	Reporter  ports.FailureReporter
	Logger    *slog.Logger
	// BatchSize caps how many messages go into one batch.
	BatchSize int
	// MaxWait bounds how long a partially filled batch waits for more
	// messages before being dispatched.
	MaxWait time.Duration
}

// Consumer drives the ingestion loop.
type Consumer struct {
	reader    Reader
	processor BatchProcessor
	reporter  ports.FailureReporter
	logger    *slog.Logger
	batchSize int
	maxWait   time.Duration
}

// New creates a consumer.
func New(cfg Config) *Consumer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = time.Second
	}
	return &Consumer{
		reader:    cfg.Reader,
		processor: cfg.Processor,
		reporter:  cfg.Reporter,
		logger:    logger,
		batchSize: batchSize,
		maxWait:   maxWait,
	}
}

// NewKafkaReader builds the production reader.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10 << 20,
		CommitInterval: 0, // explicit commits only, after ProcessBatch returns
	})
}

// Run consumes until ctx is cancelled. Each assembled batch runs to
// completion; there is no mid-batch abort.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msgs, err := c.nextBatch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if len(msgs) == 0 {
			continue
		}

		events, batch := c.assemble(ctx, msgs)
		c.processor.ProcessBatch(ctx, events, batch)

		if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
			c.logger.Error("offset commit failed",
				slog.String("batch_id", batch.ID),
				slog.Any("error", err),
			)
		}
	}
}

// nextBatch blocks for the first message, then keeps fetching under a
// maxWait deadline until the batch is full.
func (c *Consumer) nextBatch(ctx context.Context) ([]kafka.Message, error) {
	first, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	msgs := []kafka.Message{first}

	fillCtx, cancel := context.WithTimeout(ctx, c.maxWait)
	defer cancel()
	for len(msgs) < c.batchSize {
		msg, err := c.reader.FetchMessage(fillCtx)
		if err != nil {
			// The fill deadline is how a partial batch ships.
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// assemble decodes messages into raw events and builds the batch
// descriptor. The last offset accessor closes over the fully collected
// message slice, so it is safe to call only once assembly is done.
func (c *Consumer) assemble(ctx context.Context, msgs []kafka.Message) ([]*domain.RawEvent, *domain.Batch) {
	batch := &domain.Batch{
		ID:           uuid.NewString(),
		Partition:    msgs[0].Partition,
		MessageCount: len(msgs),
		LastOffset: func() string {
			return strconv.FormatInt(msgs[len(msgs)-1].Offset, 10)
		},
	}

	events := make([]*domain.RawEvent, 0, len(msgs))
	for _, msg := range msgs {
		var raw domain.RawEvent
		if err := json.Unmarshal(msg.Value, &raw); err != nil {
			f := domain.NewFailure(domain.FailureDecode, "decode", err)
			c.reporter.StageFailure(ctx, f, domain.NewEvent(&domain.RawEvent{}), batch)
			continue
		}
		events = append(events, &raw)
	}
	return events, batch
}
