// Package guard decides whether one submission may reach the handler it
// was sent to. Evaluation walks a fixed sequence of states and stops at
// the first stage that blocks.
package guard

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"petamigos/contentguard/internal/metrics"
	"petamigos/contentguard/internal/models"
	"petamigos/contentguard/internal/moderation"
)

type State string

const (
	StateStart    State = "START"
	StateText     State = "TEXT_SCAN"
	StateMetadata State = "METADATA_SCAN"
	StateOCR      State = "OCR_SCAN"
	StateAllowed  State = "ALLOWED"
	StateBlocked  State = "BLOCKED"
)

const (
	ErrorContent      = "Content Violation"
	ErrorImage        = "Image Violation"
	ErrorImageContent = "Image Content Violation"
	ErrorInternal     = "Security check failed"

	blockedImagePrefix = "Image upload blocked: "
)

type TextScanner interface {
	Scan(text string) models.ScanResult
}

type ImageValidator interface {
	ValidateFormat(data []byte) models.ScanResult
	ValidateMetadata(data []byte) models.ScanResult
}

type ImageTextScanner interface {
	ScanImageForText(ctx context.Context, data []byte) models.ScanResult
}

type ViolationRecorder interface {
	RecordViolation(ctx context.Context, v moderation.Violation) (models.AuditRecord, error)
}

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Submission is the part of a request the gate inspects.
type Submission struct {
	Fields map[string]string
	File   *Attachment
}

type Decision struct {
	Allowed bool
	Status  int
	Error   string
	Details string
	// State is the terminal state, Trail every state visited in order.
	State State
	Trail []State
}

type Gate struct {
	fields   []string
	text     TextScanner
	images   ImageValidator
	ocr      ImageTextScanner
	recorder ViolationRecorder
	log      zerolog.Logger
}

func NewGate(fields []string, text TextScanner, images ImageValidator, ocr ImageTextScanner, recorder ViolationRecorder, log zerolog.Logger) *Gate {
	return &Gate{
		fields:   fields,
		text:     text,
		images:   images,
		ocr:      ocr,
		recorder: recorder,
		log:      log,
	}
}

func (g *Gate) Fields() []string {
	return g.fields
}

type evaluation struct {
	trail []State
}

func (e *evaluation) enter(s State) {
	e.trail = append(e.trail, s)
}

func (e *evaluation) current() State {
	return e.trail[len(e.trail)-1]
}

func (e *evaluation) allow() Decision {
	stage := e.current()
	e.enter(StateAllowed)
	metrics.GuardDecisions.WithLabelValues("allowed", string(stage)).Inc()
	return Decision{Allowed: true, Status: http.StatusOK, State: StateAllowed, Trail: e.trail}
}

func (e *evaluation) block(status int, errMsg, details string) Decision {
	stage := e.current()
	e.enter(StateBlocked)
	metrics.GuardDecisions.WithLabelValues("blocked", string(stage)).Inc()
	return Decision{Status: status, Error: errMsg, Details: details, State: StateBlocked, Trail: e.trail}
}

// Evaluate never returns an error; every failure becomes a blocking
// Decision.
func (g *Gate) Evaluate(ctx context.Context, sub Submission) (decision Decision) {
	ev := &evaluation{trail: make([]State, 0, 6)}
	ev.enter(StateStart)

	defer func() {
		if r := recover(); r != nil {
			g.log.Error().
				Interface("panic", r).
				Str("stage", string(ev.current())).
				Msg("content guard panicked")
			decision = ev.block(http.StatusInternalServerError, ErrorInternal, "")
		}
	}()

	ev.enter(StateText)
	for _, field := range g.fields {
		value, ok := sub.Fields[field]
		if !ok {
			continue
		}
		if result := g.text.Scan(value); !result.Safe {
			g.log.Warn().Str("stage", string(StateText)).Str("field", field).Str("reason", result.Reason).Msg("submission blocked")
			return ev.block(http.StatusBadRequest, ErrorContent, result.Reason)
		}
	}

	if sub.File == nil {
		return ev.allow()
	}
	data := sub.File.Data

	ev.enter(StateMetadata)
	if result := g.images.ValidateFormat(data); !result.Safe {
		g.log.Warn().Str("stage", string(StateMetadata)).Str("filename", sub.File.Filename).Str("reason", result.Reason).Msg("upload blocked")
		return ev.block(http.StatusBadRequest, ErrorImage, result.Reason)
	}
	if result := g.images.ValidateMetadata(data); !result.Safe {
		g.log.Warn().Str("stage", string(StateMetadata)).Str("filename", sub.File.Filename).Str("reason", result.Reason).Msg("upload blocked")
		return ev.block(http.StatusBadRequest, ErrorImage, result.Reason)
	}

	ev.enter(StateOCR)
	result := g.ocr.ScanImageForText(ctx, data)
	if !result.Safe {
		g.recordImageViolation(ctx, sub.File, result.Reason)
		g.log.Warn().Str("stage", string(StateOCR)).Str("filename", sub.File.Filename).Str("reason", result.Reason).Msg("upload blocked")
		return ev.block(http.StatusBadRequest, ErrorImageContent, result.Reason)
	}

	return ev.allow()
}

func (g *Gate) recordImageViolation(ctx context.Context, file *Attachment, reason string) {
	if g.recorder == nil {
		return
	}
	_, err := g.recorder.RecordViolation(ctx, moderation.Violation{
		ContentType:     models.ContentTypeImage,
		ContentData:     blockedImagePrefix + reason,
		Reason:          reason,
		ConfidenceScore: 1.0,
		Evidence:        file.Data,
		EvidenceMIME:    file.ContentType,
	})
	if err != nil {
		g.log.Error().Err(err).Str("filename", file.Filename).Msg("failed to record moderation entry")
	}
}
