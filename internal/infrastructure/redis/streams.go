package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/wallet/internal/domain/outbox"
	"github.com/redis/go-redis/v9"
)

// TransferStream carries committed ledger events for downstream consumers
// (notifications, analytics).
const TransferStream = "ledger:transfers"

type StreamProducer struct {
	client redis.StreamCmdable
	stream string
	maxLen int64
}

// NewStreamProducer publishes to stream, trimming it to about maxLen entries
// (zero disables trimming).
func NewStreamProducer(client redis.StreamCmdable, stream string, maxLen int64) *StreamProducer {
	if stream == "" {
		stream = TransferStream
	}
	return &StreamProducer{client: client, stream: stream, maxLen: maxLen}
}

// Publish appends an outbox entry to the stream. Consumers dedupe on
// event_id since a relay crash between XADD and marking the entry published
// replays it.
func (p *StreamProducer) Publish(ctx context.Context, entry *outbox.Entry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"event_id":     entry.ID.String(),
			"event_type":   entry.EventType,
			"aggregate_id": entry.AggregateID.String(),
			"payload":      string(payload),
			"timestamp":    time.Now().Unix(),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", entry.EventType, err)
	}
	return nil
}

func (p *StreamProducer) Stream() string {
	return p.stream
}
