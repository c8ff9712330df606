package domain

import "strconv"

// Batch describes one inbound message-queue batch. It is read-only for
// the pipeline and travels into failure reports for diagnosis.
//
// LastOffset is deferred rather than a fixed value: the final offset of
// a batch is only known once every message has been read, so callers
// must not invoke it before the batch is fully assembled.
type Batch struct {
	ID           string
	Partition    int
	MessageCount int
	LastOffset   func() string
}

// Tags returns the diagnostic fields attached to every failure report
// for this batch.
func (b *Batch) Tags() map[string]string {
	tags := map[string]string{
		"batch_id":  b.ID,
		"partition": strconv.Itoa(b.Partition),
		"messages":  strconv.Itoa(b.MessageCount),
	}
	if b.LastOffset != nil {
		tags["last_offset"] = b.LastOffset()
	}
	return tags
}
