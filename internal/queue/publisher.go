package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"petamigos/contentguard/internal/models"
)

// RecordField is the stream entry field carrying the JSON audit record.
const RecordField = "record"

// Publisher hands audit records to the worker through a redis stream.
type Publisher struct {
	client redis.Cmdable
	stream string
}

func NewPublisher(client redis.Cmdable, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

func (p *Publisher) Record(ctx context.Context, record models.AuditRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{RecordField: string(payload)},
	}).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
