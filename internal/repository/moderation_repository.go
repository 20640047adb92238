package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"petamigos/contentguard/internal/models"
)

var (
	ErrRecordNotFound  = errors.New("moderation record not found")
	ErrAlreadyReviewed = errors.New("moderation record already reviewed")
)

const uniqueViolation = "23505"

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ModerationRepository stores audit records in moderation_queue and
// reviewer decisions in moderation_reviews. Neither table is ever updated
// in place; a record has at most one review, and is pending until then.
type ModerationRepository struct {
	db DB
}

func NewModerationRepository(db DB) *ModerationRepository {
	return &ModerationRepository{db: db}
}

func (r *ModerationRepository) Record(ctx context.Context, record models.AuditRecord) error {
	const query = `
		INSERT INTO moderation_queue (
			id, content_id, content_type, content_data, reason, confidence_score, evidence_key, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	status := record.Status
	if status == "" {
		status = models.ReviewStatusPending
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx, query,
		record.ID,
		record.ContentID,
		string(record.ContentType),
		record.ContentData,
		record.Reason,
		record.ConfidenceScore,
		record.EvidenceKey,
		string(status),
		createdAt,
	)
	return err
}

const selectRecord = `
	SELECT q.id, q.content_id, q.content_type, q.content_data, q.reason, q.confidence_score,
	       q.evidence_key,
	       COALESCE(r.decision, q.status) AS status,
	       q.created_at
	FROM moderation_queue q
	LEFT JOIN moderation_reviews r ON r.record_id = q.id
`

func (r *ModerationRepository) GetByID(ctx context.Context, id string) (models.AuditRecord, error) {
	row := r.db.QueryRow(ctx, selectRecord+` WHERE q.id = $1`, id)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AuditRecord{}, ErrRecordNotFound
		}
		return models.AuditRecord{}, err
	}
	return record, nil
}

func (r *ModerationRepository) ListPending(ctx context.Context, limit, offset int) ([]models.AuditRecord, error) {
	const where = `
		WHERE r.id IS NULL
		ORDER BY q.created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, selectRecord+where, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.AuditRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *ModerationRepository) CountPending(ctx context.Context) (int, error) {
	const query = `
		SELECT COUNT(*) FROM moderation_queue q
		WHERE NOT EXISTS (SELECT 1 FROM moderation_reviews r WHERE r.record_id = q.id)
	`
	var count int
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// AppendReview inserts the decision only while the record has none. The
// unique index on moderation_reviews(record_id) settles concurrent
// reviewers that both pass the NOT EXISTS check.
func (r *ModerationRepository) AppendReview(ctx context.Context, review models.Review) error {
	const query = `
		INSERT INTO moderation_reviews (id, record_id, moderator_id, decision, note, created_at)
		SELECT $1, $2::text, $3, $4, $5, $6
		WHERE EXISTS (SELECT 1 FROM moderation_queue WHERE id = $2::text)
		  AND NOT EXISTS (SELECT 1 FROM moderation_reviews WHERE record_id = $2::text)
	`
	tag, err := r.db.Exec(ctx, query,
		review.ID,
		review.RecordID,
		review.ModeratorID,
		string(review.Decision),
		review.Note,
		review.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyReviewed
		}
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM moderation_queue WHERE id = $1)`, review.RecordID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrRecordNotFound
	}
	return ErrAlreadyReviewed
}

func scanRecord(row pgx.Row) (models.AuditRecord, error) {
	var (
		record      models.AuditRecord
		contentType string
		status      string
	)
	if err := row.Scan(
		&record.ID,
		&record.ContentID,
		&contentType,
		&record.ContentData,
		&record.Reason,
		&record.ConfidenceScore,
		&record.EvidenceKey,
		&status,
		&record.CreatedAt,
	); err != nil {
		return models.AuditRecord{}, err
	}
	record.ContentType = models.ContentType(contentType)
	record.Status = models.ReviewStatus(status)
	return record, nil
}
