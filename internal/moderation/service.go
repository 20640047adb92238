package moderation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"petamigos/contentguard/internal/ids"
	"petamigos/contentguard/internal/metrics"
	"petamigos/contentguard/internal/models"
)

// Sink is the append-only write side of the moderation store.
type Sink interface {
	Record(ctx context.Context, record models.AuditRecord) error
}

type EvidenceStore interface {
	PutEvidence(ctx context.Context, key string, data []byte, contentType string) error
}

type Violation struct {
	ContentType     models.ContentType
	ContentData     string
	Reason          string
	ConfidenceScore float64
	Evidence        []byte
	EvidenceMIME    string
}

type Service struct {
	sink     Sink
	evidence EvidenceStore
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(sink Sink, evidence EvidenceStore, log zerolog.Logger) *Service {
	return &Service{
		sink:     sink,
		evidence: evidence,
		log:      log,
		now:      time.Now,
	}
}

// RecordViolation writes one audit record for reviewers. Evidence upload is
// best effort; only the sink write decides the returned error.
func (s *Service) RecordViolation(ctx context.Context, v Violation) (models.AuditRecord, error) {
	now := s.now().UTC()
	record := models.AuditRecord{
		ID:              ids.New(),
		ContentID:       "upload-" + strconv.FormatInt(now.UnixMilli(), 10),
		ContentType:     v.ContentType,
		ContentData:     v.ContentData,
		Reason:          v.Reason,
		ConfidenceScore: clampScore(v.ConfidenceScore),
		Status:          models.ReviewStatusPending,
		CreatedAt:       now,
	}

	if s.evidence != nil && len(v.Evidence) > 0 {
		key := evidenceKey(now, record.ID)
		if err := s.evidence.PutEvidence(ctx, key, v.Evidence, v.EvidenceMIME); err != nil {
			s.log.Error().Err(err).Str("record_id", record.ID).Msg("evidence upload failed")
		} else {
			record.EvidenceKey = key
		}
	}

	if err := s.sink.Record(ctx, record); err != nil {
		metrics.AuditWrites.WithLabelValues("error").Inc()
		return record, fmt.Errorf("record audit entry: %w", err)
	}
	metrics.AuditWrites.WithLabelValues("ok").Inc()

	s.log.Info().
		Str("record_id", record.ID).
		Str("content_id", record.ContentID).
		Str("content_type", string(record.ContentType)).
		Str("reason", record.Reason).
		Msg("added item to moderation queue")
	return record, nil
}

func evidenceKey(now time.Time, recordID string) string {
	return fmt.Sprintf("%s/%s", now.Format("2006/01/02"), recordID)
}

func clampScore(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
