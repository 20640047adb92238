package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"petamigos/contentguard/internal/models"
	"petamigos/contentguard/internal/queue"
)

var errMissingRecord = errors.New("message has no record field")

// RecordWriter persists a decoded audit record.
type RecordWriter interface {
	Record(ctx context.Context, record models.AuditRecord) error
}

// AuditProcessor drains the audit stream into the moderation store.
type AuditProcessor struct {
	writer RecordWriter
	logger zerolog.Logger
}

func NewAuditProcessor(writer RecordWriter, logger zerolog.Logger) *AuditProcessor {
	return &AuditProcessor{
		writer: writer,
		logger: logger,
	}
}

func (p *AuditProcessor) Handle(ctx context.Context, msg redis.XMessage) error {
	record, err := decodeRecord(msg.Values)
	if err != nil {
		// a poison message would otherwise be reclaimed forever
		p.logger.Error().
			Err(err).
			Str("message_id", msg.ID).
			Msg("dropping undecodable audit message")
		return nil
	}

	if err := p.writer.Record(ctx, record); err != nil {
		return fmt.Errorf("persist audit record %s: %w", record.ID, err)
	}

	p.logger.Debug().
		Str("message_id", msg.ID).
		Str("record_id", record.ID).
		Msg("audit record persisted")
	return nil
}

func decodeRecord(values map[string]interface{}) (models.AuditRecord, error) {
	var record models.AuditRecord

	raw, ok := values[queue.RecordField].(string)
	if !ok || raw == "" {
		return record, errMissingRecord
	}
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return record, fmt.Errorf("decode record: %w", err)
	}
	if record.ID == "" {
		return record, errors.New("record has no id")
	}
	return record, nil
}
